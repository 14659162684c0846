// package formatter provides functions to export lineup and queue contents to various formats (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/halcyonfm/trackline/internal/cache"
	"github.com/halcyonfm/trackline/internal/lineup"
	"github.com/halcyonfm/trackline/internal/models"
	"github.com/halcyonfm/trackline/internal/queue"
	"github.com/halcyonfm/trackline/internal/shared"
)

// Row is one lineup entry joined with its cached entity metadata, flattened
// for rendering.
type Row struct {
	UID      string `json:"uid"`
	Kind     string `json:"kind"`
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Owner    string `json:"owner"`
	Duration int    `json:"duration,omitempty"`
	Deleted  bool   `json:"deleted,omitempty"`
}

// EntityLookup resolves a (kind, id) pair to its cached entity. A store's
// Entity method satisfies it.
type EntityLookup func(kind models.Kind, id int64) (cache.Entity, bool)

// BuildRows joins lineup entries against the cache. Entries whose entity is
// missing still produce a row; the cache never gates display of a published
// entry.
func BuildRows(entries []lineup.Entry, lookup EntityLookup) []Row {
	rows := make([]Row, 0, len(entries))
	for _, e := range entries {
		row := Row{
			UID:  e.UID.String(),
			Kind: string(e.Kind),
			ID:   e.ID,
		}
		if lookup != nil {
			if ent, ok := lookup(e.Kind, e.ID); ok {
				fillRow(&row, ent)
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// QueueRows flattens queue items the same way lineup entries are.
func QueueRows(items []queue.Item, lookup EntityLookup) []Row {
	rows := make([]Row, 0, len(items))
	for _, item := range items {
		row := Row{
			UID:  item.UID.String(),
			Kind: string(item.Kind),
			ID:   item.ID,
		}
		if lookup != nil {
			if ent, ok := lookup(item.Kind, item.ID); ok {
				fillRow(&row, ent)
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func fillRow(row *Row, ent cache.Entity) {
	if title, ok := ent.Metadata[models.FieldTitle].(string); ok {
		row.Title = title
	}
	if owner, ok := ent.Metadata[models.FieldOwner].(string); ok {
		row.Owner = owner
	}
	if duration, ok := ent.Metadata[models.FieldDuration].(int); ok {
		row.Duration = duration
	}
	row.Deleted = ent.MarkedDeleted
}

// ExportToCSV converts rows to CSV format with columns: UID, Kind, ID, Title, Owner, Duration
func ExportToCSV(rows []Row) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"UID", "Kind", "ID", "Title", "Owner", "Duration"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, row := range rows {
		record := []string{
			row.UID,
			row.Kind,
			strconv.FormatInt(row.ID, 10),
			row.Title,
			row.Owner,
			strconv.Itoa(row.Duration),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a lineup snapshot to Markdown format
func ExportToMarkdown(lin lineup.Lineup, rows []Row) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", lin.Prefix))

	if lin.Source != "" && lin.Source != lin.Prefix {
		buf.WriteString(fmt.Sprintf("**Source**: %s\n", lin.Source))
	}
	buf.WriteString(fmt.Sprintf("**Status**: %s\n", lin.Status))
	buf.WriteString(fmt.Sprintf("**Entries**: %d\n", len(rows)))
	if lin.NullCount > 0 || lin.DeletedCount > 0 {
		buf.WriteString(fmt.Sprintf("**Removed**: %d unavailable, %d null\n", lin.DeletedCount, lin.NullCount))
	}
	buf.WriteString("\n## Entries\n\n")

	for i, row := range rows {
		title := row.Title
		if title == "" {
			title = row.UID
		}
		line := fmt.Sprintf("%d. %s", i+1, title)
		if row.Owner != "" {
			line += fmt.Sprintf(" - %s", row.Owner)
		}
		if row.Duration > 0 {
			line += fmt.Sprintf(" [%s]", shared.FormatDuration(row.Duration))
		}
		buf.WriteString(line + "\n")
	}

	return buf.Bytes(), nil
}

// ExportToText converts rows to plain text format
func ExportToText(name string, rows []Row) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Lineup: %s\n", name))
	buf.WriteString(fmt.Sprintf("Entries: %d\n\n", len(rows)))

	for i, row := range rows {
		title := row.Title
		if title == "" {
			title = row.UID
		}
		if row.Owner != "" {
			buf.WriteString(fmt.Sprintf("%d. %s - %s\n", i+1, row.Owner, title))
		} else {
			buf.WriteString(fmt.Sprintf("%d. %s\n", i+1, title))
		}
	}

	return buf.Bytes(), nil
}

// ToMetadataJSON generates a JSON representation of lineup fetch state
// (without entries)
func ToMetadataJSON(lin lineup.Lineup) ([]byte, error) {
	meta := map[string]any{
		"prefix":        lin.Prefix,
		"source":        lin.Source,
		"status":        lin.Status.String(),
		"total":         lin.Total,
		"offset":        lin.Offset,
		"limit":         lin.Limit,
		"null_count":    lin.NullCount,
		"deleted_count": lin.DeletedCount,
	}
	return shared.MarshalJSON(meta, true)
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	EntriesFile  string
	MetadataFile string
}

// WriteCSVExport exports a lineup to CSV format with an accompanying metadata JSON file.
//
// Defaults to the lineup prefix as the base filename & creates {base}_entries.csv and {base}_lineup.json
func WriteCSVExport(lin lineup.Lineup, rows []Row, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = lin.Prefix
	}

	csvData, err := ExportToCSV(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	entriesFile := baseFilepath + "_entries.csv"
	if err := os.WriteFile(entriesFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	metadataJSON, err := ToMetadataJSON(lin)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := baseFilepath + "_lineup.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{
		EntriesFile:  entriesFile,
		MetadataFile: metadataFile,
	}, nil
}

// WriteTextExport exports a lineup to plain text format.
//
// Defaults to {prefix}_entries.txt as the filename.
func WriteTextExport(lin lineup.Lineup, rows []Row, filepath string) (string, error) {
	if filepath == "" {
		filepath = fmt.Sprintf("%s_entries.txt", lin.Prefix)
	}

	textData, err := ExportToText(lin.Prefix, rows)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(filepath, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}

	return filepath, nil
}

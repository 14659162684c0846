package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/halcyonfm/trackline/internal/formatter"
	"github.com/halcyonfm/trackline/internal/lineup"
	"github.com/halcyonfm/trackline/internal/models"
	"github.com/halcyonfm/trackline/internal/services"
	"github.com/halcyonfm/trackline/internal/shared"
	"github.com/halcyonfm/trackline/internal/store"
	"github.com/halcyonfm/trackline/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Lineup prefixes mounted on the store. Every invocation registers the full
// set; the TUI cycles through the browse lineups with tab.
const (
	prefixFeed       = "feed"
	prefixTrending   = "trending"
	prefixSearch     = "search"
	prefixCollection = "collection"
	prefixProfile    = "profile"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config   *shared.Config
	provider services.Provider
	store    *store.Store
	db       *sql.DB
	logger   *log.Logger
	output   io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config   *shared.Config
	Provider services.Provider
	Store    *store.Store
	DB       *sql.DB
	Logger   *log.Logger
	Output   io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(os.Stderr)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:   opts.Config,
		provider: opts.Provider,
		store:    opts.Store,
		db:       opts.DB,
		logger:   opts.Logger,
		output:   opts.Output,
	}
}

// registerLineups mounts the standard lineup set on the store, each backed by
// one provider endpoint.
func (r *Runner) registerLineups() error {
	if r.store == nil || r.provider == nil {
		return fmt.Errorf("%w: store or provider not initialized", shared.ErrServiceUnavailable)
	}

	for _, cfg := range r.lineupConfigs() {
		if err := r.store.Register(cfg); err != nil {
			return err
		}
	}
	return nil
}

// mountLineups registers a fresh instance of each named lineup under a unique
// prefix, so one TUI mount never shares entries or cache subscriptions with
// the static CLI lineups or with another mount. Returns the instance prefixes
// in the order requested.
func (r *Runner) mountLineups(bases ...string) ([]string, error) {
	if r.store == nil || r.provider == nil {
		return nil, fmt.Errorf("%w: store or provider not initialized", shared.ErrServiceUnavailable)
	}

	configs := r.lineupConfigs()
	prefixes := make([]string, 0, len(bases))
	for _, base := range bases {
		found := false
		for _, cfg := range configs {
			if cfg.Prefix != base {
				continue
			}
			cfg.Prefix = shared.NewPrefix(base)
			if err := r.store.Register(cfg); err != nil {
				return nil, err
			}
			prefixes = append(prefixes, cfg.Prefix)
			found = true
			break
		}
		if !found {
			return nil, fmt.Errorf("%w: unknown lineup %q", shared.ErrInvalidArgument, base)
		}
	}
	return prefixes, nil
}

func (r *Runner) lineupConfigs() []tasks.LineupConfig {
	return []tasks.LineupConfig{
		{
			Prefix: prefixFeed,
			Dedupe: true,
			Fetch:  r.provider.GetFeed,
		},
		{
			Prefix: prefixTrending,
			Dedupe: true,
			Fetch:  r.provider.GetTrending,
		},
		{
			Prefix: prefixSearch,
			Source: func(payload map[string]any) string {
				query, _ := payload["query"].(string)
				return prefixSearch + "-" + sourceSegment(query)
			},
			Fetch: func(ctx context.Context, args services.PageArgs) ([]models.RawItem, error) {
				query, _ := args.Payload["query"].(string)
				if query == "" {
					return nil, fmt.Errorf("%w: query", shared.ErrMissingArgument)
				}
				return r.provider.Search(ctx, query, args)
			},
		},
		{
			Prefix: prefixCollection,
			Source: func(payload map[string]any) string {
				id, _ := payload["collection_id"].(int64)
				return prefixCollection + "-" + strconv.FormatInt(id, 10)
			},
			Fetch: func(ctx context.Context, args services.PageArgs) ([]models.RawItem, error) {
				id, _ := args.Payload["collection_id"].(int64)
				if id == 0 {
					return nil, fmt.Errorf("%w: collection id", shared.ErrMissingArgument)
				}
				return r.provider.GetCollection(ctx, id, args)
			},
			// A collection page carries the user's own gated drafts too.
			KeepGated: true,
		},
		{
			Prefix: prefixProfile,
			Source: func(payload map[string]any) string {
				id, _ := payload["user_id"].(int64)
				return prefixProfile + "-" + strconv.FormatInt(id, 10)
			},
			Fetch: func(ctx context.Context, args services.PageArgs) ([]models.RawItem, error) {
				id, _ := args.Payload["user_id"].(int64)
				if id == 0 {
					return nil, fmt.Errorf("%w: user id", shared.ErrMissingArgument)
				}
				return r.provider.GetUserTracks(ctx, id, args)
			},
			KeepDeleted: true,
		},
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, feedCommand, trendingCommand, searchCommand, collectionCommand, profileCommand, playCommand, cacheCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func (r *Runner) pageSize() int {
	if r.config.Playback.PageSize > 0 {
		return r.config.Playback.PageSize
	}
	return 20
}

// awaitLineup polls until the lineup's in-flight fetch settles.
func (r *Runner) awaitLineup(ctx context.Context, prefix string) (lineup.Lineup, error) {
	deadline := time.Now().Add(30 * time.Second)
	for {
		lin, err := r.store.Lineup(prefix)
		if err != nil {
			return lineup.Lineup{}, err
		}
		switch lin.Status {
		case lineup.StatusSuccess:
			return lin, nil
		case lineup.StatusFailed:
			return lin, fmt.Errorf("%w: lineup %s", shared.ErrAPIRequest, prefix)
		}
		if time.Now().After(deadline) {
			return lin, fmt.Errorf("%w: timed out waiting for %s", shared.ErrAPIRequest, prefix)
		}
		select {
		case <-ctx.Done():
			return lin, ctx.Err()
		case <-time.After(25 * time.Millisecond):
		}
	}
}

// fetchAndRender dispatches one page fetch and prints the resulting lineup.
func (r *Runner) fetchAndRender(ctx context.Context, prefix string, payload map[string]any, limit int, asJSON, pretty bool, save, format string) error {
	if limit <= 0 {
		limit = r.pageSize()
	}
	err := r.store.Dispatch(ctx, prefix, lineup.FetchMetadatas{
		Limit:     limit,
		Overwrite: true,
		Payload:   payload,
	})
	if err != nil {
		return err
	}

	lin, err := r.awaitLineup(ctx, prefix)
	if err != nil {
		return err
	}

	rows := formatter.BuildRows(lin.Entries, r.store.Entity)

	if save != "" {
		if err := r.saveExport(lin, rows, save, format); err != nil {
			return err
		}
	}

	if asJSON {
		return r.writeJSON(rows, pretty)
	}

	if lin.DeletedCount > 0 || lin.NullCount > 0 {
		err := r.writePlain("%d items removed (%d unavailable, %d null)\n\n",
			lin.DeletedCount+lin.NullCount, lin.DeletedCount, lin.NullCount)
		if err != nil {
			return err
		}
	}

	text, err := formatter.ExportToText(lin.Source, rows)
	if err != nil {
		return err
	}
	return r.writePlain("%s", text)
}

// saveExport writes the lineup to disk in the requested format.
func (r *Runner) saveExport(lin lineup.Lineup, rows []formatter.Row, save, format string) error {
	switch format {
	case "", "csv":
		result, err := formatter.WriteCSVExport(lin, rows, save)
		if err != nil {
			return err
		}
		return r.writePlainln("✓ Saved %s and %s", result.EntriesFile, result.MetadataFile)
	case "text", "txt":
		path, err := formatter.WriteTextExport(lin, rows, save)
		if err != nil {
			return err
		}
		return r.writePlainln("✓ Saved %s", path)
	case "md", "markdown":
		data, err := formatter.ExportToMarkdown(lin, rows)
		if err != nil {
			return err
		}
		if err := os.WriteFile(save, data, 0644); err != nil {
			return fmt.Errorf("failed to write markdown export: %w", err)
		}
		return r.writePlainln("✓ Saved %s", save)
	default:
		return fmt.Errorf("%w: format %q", shared.ErrInvalidFlag, format)
	}
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// sourceSegment sanitizes free text (a search query) into characters valid
// inside a UID chain segment.
func sourceSegment(s string) string {
	var b strings.Builder
	for _, c := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '.', c == '_', c == '-':
			b.WriteRune(c)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}

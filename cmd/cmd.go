// submodule cmd contains command definitions
package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/halcyonfm/trackline/internal/formatter"
	"github.com/halcyonfm/trackline/internal/lineup"
	"github.com/halcyonfm/trackline/internal/models"
	"github.com/halcyonfm/trackline/internal/queue"
	"github.com/halcyonfm/trackline/internal/shared"
	"github.com/urfave/cli/v3"
)

func lineupFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "limit",
			Usage: "Maximum number of items to fetch",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output rows as JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
		},
		&cli.StringFlag{
			Name:    "save",
			Aliases: []string{"o"},
			Usage:   "Save an export with the given base filename",
		},
		&cli.StringFlag{
			Name:  "format",
			Usage: "Export format for --save: csv, text, or md",
			Value: "csv",
		},
	}
}

// feedCommand fetches the signed-in user's feed
func feedCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "feed",
		Usage:  "Fetch the signed-in user's feed",
		Flags:  lineupFlags(),
		Action: r.Feed,
	}
}

// trendingCommand fetches the trending tracks lineup
func trendingCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "trending",
		Aliases: []string{"tr"},
		Usage:   "Fetch trending tracks",
		Flags:   lineupFlags(),
		Action:  r.Trending,
	}
}

// searchCommand searches the catalog
func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Search the catalog",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "query",
			},
		},
		Flags:  lineupFlags(),
		Action: r.Search,
	}
}

// collectionCommand fetches a collection with its nested tracks
func collectionCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "collection",
		Aliases: []string{"coll"},
		Usage:   "Fetch a collection and its tracks",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "id",
			},
		},
		Flags:  lineupFlags(),
		Action: r.Collection,
	}
}

// profileCommand fetches a user's tracks
func profileCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "Fetch a user's tracks",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "id",
			},
		},
		Flags:  lineupFlags(),
		Action: r.Profile,
	}
}

// playCommand fetches a lineup, starts playback, and prints the queue
func playCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "play",
		Usage: "Fetch a lineup, start playback at an entry, and print the queue",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "lineup",
			},
			&cli.StringArg{
				Name: "position",
			},
		},
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of items to fetch",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output queue rows as JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print JSON output",
			},
		},
		Action: r.Play,
	}
}

func (r *Runner) Feed(ctx context.Context, cmd *cli.Command) error {
	return r.fetchAndRender(ctx, prefixFeed, nil,
		int(cmd.Int("limit")), cmd.Bool("json"), cmd.Bool("pretty"), cmd.String("save"), cmd.String("format"))
}

func (r *Runner) Trending(ctx context.Context, cmd *cli.Command) error {
	return r.fetchAndRender(ctx, prefixTrending, nil,
		int(cmd.Int("limit")), cmd.Bool("json"), cmd.Bool("pretty"), cmd.String("save"), cmd.String("format"))
}

func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	query := cmd.StringArg("query")
	if query == "" {
		return fmt.Errorf("%w: query", shared.ErrMissingArgument)
	}
	return r.fetchAndRender(ctx, prefixSearch, map[string]any{"query": query},
		int(cmd.Int("limit")), cmd.Bool("json"), cmd.Bool("pretty"), cmd.String("save"), cmd.String("format"))
}

func (r *Runner) Collection(ctx context.Context, cmd *cli.Command) error {
	id, err := parseIDArg(cmd.StringArg("id"))
	if err != nil {
		return err
	}
	return r.fetchAndRender(ctx, prefixCollection, map[string]any{"collection_id": id},
		int(cmd.Int("limit")), cmd.Bool("json"), cmd.Bool("pretty"), cmd.String("save"), cmd.String("format"))
}

func (r *Runner) Profile(ctx context.Context, cmd *cli.Command) error {
	id, err := parseIDArg(cmd.StringArg("id"))
	if err != nil {
		return err
	}
	return r.fetchAndRender(ctx, prefixProfile, map[string]any{"user_id": id},
		int(cmd.Int("limit")), cmd.Bool("json"), cmd.Bool("pretty"), cmd.String("save"), cmd.String("format"))
}

// Play fetches one page of a lineup, starts playback at the 1-based position
// argument (default first entry), and prints the resulting queue.
func (r *Runner) Play(ctx context.Context, cmd *cli.Command) error {
	prefix := cmd.StringArg("lineup")
	if prefix == "" {
		prefix = prefixTrending
	}

	limit := int(cmd.Int("limit"))
	if limit <= 0 {
		limit = r.pageSize()
	}
	err := r.store.Dispatch(ctx, prefix, lineup.FetchMetadatas{Limit: limit, Overwrite: true})
	if err != nil {
		return err
	}
	lin, err := r.awaitLineup(ctx, prefix)
	if err != nil {
		return err
	}
	if len(lin.Entries) == 0 {
		return fmt.Errorf("%w: lineup %s is empty", shared.ErrEntryNotFound, prefix)
	}

	position := 1
	if raw := cmd.StringArg("position"); raw != "" {
		if position, err = strconv.Atoi(raw); err != nil || position < 1 || position > len(lin.Entries) {
			return fmt.Errorf("%w: position %q", shared.ErrInvalidArgument, raw)
		}
	}

	entry := lin.Entries[position-1]
	if err := r.store.Dispatch(ctx, prefix, lineup.Play{UID: entry.UID}); err != nil {
		return err
	}

	rows := formatter.QueueRows(r.store.QueueItems(), r.store.Entity)
	if cmd.Bool("json") {
		return r.writeJSON(rows, cmd.Bool("pretty"))
	}

	if now, ok := r.store.NowPlaying(); ok {
		if title, found := entityTitle(r, now); found {
			if err := r.writePlain("Now playing: %s\n\n", title); err != nil {
				return err
			}
		}
	}

	text, err := formatter.ExportToText(r.store.QueueSource(), rows)
	if err != nil {
		return err
	}
	return r.writePlain("%s", text)
}

func entityTitle(r *Runner, item queue.Item) (string, bool) {
	ent, ok := r.store.Entity(item.Kind, item.ID)
	if !ok {
		return "", false
	}
	title, _ := ent.Metadata[models.FieldTitle].(string)
	return title, title != ""
}

func parseIDArg(raw string) (int64, error) {
	if raw == "" {
		return 0, fmt.Errorf("%w: id", shared.ErrMissingArgument)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: id %q", shared.ErrInvalidArgument, raw)
	}
	return id, nil
}

package main

import (
	"context"
	"fmt"

	"github.com/halcyonfm/trackline/internal/models"
	"github.com/halcyonfm/trackline/internal/repositories"
	"github.com/halcyonfm/trackline/internal/shared"
	"github.com/urfave/cli/v3"
)

// cacheCommand inspects the offline archive database
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect archived catalog metadata",
		Commands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Show archived row counts",
				Action: r.CacheStats,
			},
			{
				Name:  "track",
				Usage: "Show an archived track by id",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "id",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
				},
				Action: r.CacheTrack,
			},
			{
				Name:  "collection",
				Usage: "Show an archived collection and its track references",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "id",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
				},
				Action: r.CacheCollection,
			},
		},
	}
}

// CacheStats prints archived row counts for tracks and collections.
func (r *Runner) CacheStats(ctx context.Context, cmd *cli.Command) error {
	if r.db == nil {
		return fmt.Errorf("%w: archive database not configured, run setup first", shared.ErrServiceUnavailable)
	}

	tracks, err := repositories.NewTrackRepository(r.db).Count()
	if err != nil {
		return fmt.Errorf("failed to count tracks: %w", err)
	}
	collections, err := repositories.NewCollectionRepository(r.db).Count()
	if err != nil {
		return fmt.Errorf("failed to count collections: %w", err)
	}

	if err := r.writePlainln("Tracks: %d", tracks); err != nil {
		return err
	}
	return r.writePlainln("Collections: %d", collections)
}

// CacheTrack prints one archived track by catalog id.
func (r *Runner) CacheTrack(ctx context.Context, cmd *cli.Command) error {
	if r.db == nil {
		return fmt.Errorf("%w: archive database not configured, run setup first", shared.ErrServiceUnavailable)
	}
	id, err := parseIDArg(cmd.StringArg("id"))
	if err != nil {
		return err
	}

	track, err := repositories.NewTrackRepository(r.db).Get(id)
	if err != nil {
		return fmt.Errorf("failed to load track %d: %w", id, err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(track, cmd.Bool("pretty"))
	}
	return r.writePlainln("%s - %s [%s] (fetched %s)",
		track.Title, track.OwnerHandle, shared.FormatDuration(track.Duration),
		track.FetchedAt.Format("2006-01-02 15:04"))
}

// CacheCollection prints one archived collection with its ordered track
// references, resolving archived track titles when present.
func (r *Runner) CacheCollection(ctx context.Context, cmd *cli.Command) error {
	if r.db == nil {
		return fmt.Errorf("%w: archive database not configured, run setup first", shared.ErrServiceUnavailable)
	}
	id, err := parseIDArg(cmd.StringArg("id"))
	if err != nil {
		return err
	}

	collection, refs, err := repositories.NewCollectionRepository(r.db).Get(id)
	if err != nil {
		return fmt.Errorf("failed to load collection %d: %w", id, err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{
			"collection": collection,
			"tracks":     refs,
		}, cmd.Bool("pretty"))
	}

	err = r.writePlainln("%s - %s (%d tracks)", collection.Title, collection.OwnerHandle, collection.TrackCount)
	if err != nil {
		return err
	}

	trackRepo := repositories.NewTrackRepository(r.db)
	for _, ref := range refs {
		label := fmt.Sprintf("%s %d", models.KindTrack, ref.TrackID)
		if track, err := trackRepo.Get(ref.TrackID); err == nil {
			label = track.Title
		}
		if err := r.writePlain("%d. %s\n", ref.Position+1, label); err != nil {
			return err
		}
	}
	return nil
}

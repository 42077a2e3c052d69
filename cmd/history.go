package main

import (
	"context"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/attunefm/attune/internal/formatter"
	"github.com/attunefm/attune/internal/models"
	"github.com/attunefm/attune/internal/repositories"
)

func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show what has been played",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Value:   20,
				Usage:   "Maximum entries to show",
			},
			&cli.StringFlag{
				Name:  "track",
				Usage: "Only plays of this track ID",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output as JSON",
			},
		},
		Action: r.History,
		Commands: []*cli.Command{
			{
				Name:  "export",
				Usage: "Write history to a file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Value:   "csv",
						Usage:   "Export format: csv, md, or txt",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output path (defaults to history_export.<format>)",
					},
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"l"},
						Value:   500,
						Usage:   "Maximum entries to export",
					},
				},
				Action: r.HistoryExport,
			},
			{
				Name:  "prune",
				Usage: "Delete entries older than the retention window",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "days",
						Value: 90,
						Usage: "Keep entries newer than this many days",
					},
				},
				Action: r.HistoryPrune,
			},
		},
	}
}

// History prints recent playback history.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repositories.NewHistoryRepository(db)

	var entries []*models.HistoryEntry
	if trackID := cmd.String("track"); trackID != "" {
		entries, err = repo.ForTrack(trackID)
	} else {
		entries, err = repo.Recent(int(cmd.Int("limit")))
	}
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		out := make([]map[string]any, 0, len(entries))
		for _, e := range entries {
			out = append(out, map[string]any{
				"track_id":  e.TrackID(),
				"title":     e.Title(),
				"artist":    e.Artist(),
				"cause":     e.Cause(),
				"played_at": e.PlayedAt(),
			})
		}
		return r.writeJSON(out, true)
	}

	if len(entries) == 0 {
		return r.writePlainln("no history yet")
	}
	for _, e := range entries {
		r.writePlainln("%s  %s - %s  (%s)",
			e.PlayedAt().Format("2006-01-02 15:04"), e.Title(), e.Artist(), e.Cause())
	}
	return nil
}

// HistoryExport writes recent history to disk in the requested format.
func (r *Runner) HistoryExport(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	entries, err := repositories.NewHistoryRepository(db).Recent(int(cmd.Int("limit")))
	if err != nil {
		return err
	}

	path, err := formatter.WriteHistoryExport(entries, cmd.String("output"), cmd.String("format"))
	if err != nil {
		return err
	}

	return r.writePlainln("Exported %d entries to %s", len(entries), path)
}

// HistoryPrune deletes entries older than the given number of days.
func (r *Runner) HistoryPrune(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	days := int(cmd.Int("days"))
	cutoff := time.Now().AddDate(0, 0, -days)

	removed, err := repositories.NewHistoryRepository(db).PruneOlderThan(cutoff)
	if err != nil {
		return err
	}

	return r.writePlainln("Pruned %d entries older than %d days", removed, days)
}

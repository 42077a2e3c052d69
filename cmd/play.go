package main

import (
	"context"
	"database/sql"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/attunefm/attune/internal/engine"
	"github.com/attunefm/attune/internal/models"
	"github.com/attunefm/attune/internal/repositories"
	"github.com/attunefm/attune/internal/session"
	"github.com/attunefm/attune/internal/shared"
	"github.com/attunefm/attune/internal/tasks"
)

func playCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "play",
		Usage:     "Play a local playlist",
		ArgsUsage: "<playlist.json>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "name",
				Aliases: []string{"n"},
				Usage:   "Profile name (defaults to the most recent profile)",
			},
			&cli.IntFlag{
				Name:  "start",
				Usage: "Queue index to start from",
			},
			&cli.BoolFlag{
				Name:  "shuffle",
				Usage: "Shuffle the queue, keeping the start track first",
			},
		},
		Action: r.Play,
	}
}

// Play starts solo playback and hands control to the console.
func (r *Runner) Play(ctx context.Context, cmd *cli.Command) error {
	deck, err := r.newDeck(ctx, cmd.String("name"))
	if err != nil {
		return err
	}
	defer deck.close()

	tracks, err := loadPlaylist(cmd.Args().First())
	if err != nil {
		return err
	}
	if err := deck.co.Load(tracks, int(cmd.Int("start")), cmd.Bool("shuffle")); err != nil {
		return err
	}

	return deck.console(r).run(deck.ctx)
}

// deck bundles the per-command playback wiring: engine, coordinator,
// persistence, and background tasks.
type deck struct {
	ctx     context.Context
	stop    context.CancelFunc
	db      *sql.DB
	eng     *engine.Engine
	client  *session.Client
	co      *session.Coordinator
	profile *models.Profile
}

// newDeck opens the database, resolves the profile, applies its playback
// preferences, and starts the engine plus background tasks.
func (r *Runner) newDeck(ctx context.Context, profileName string) (*deck, error) {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)

	db, err := r.openDatabase()
	if err != nil {
		stop()
		return nil, err
	}

	profile, err := r.resolveProfile(db, profileName)
	if err != nil {
		db.Close()
		stop()
		return nil, err
	}

	prefs, err := repositories.NewPreferencesRepository(db).ForProfile(profile.ID())
	if err != nil {
		db.Close()
		stop()
		return nil, err
	}

	eng := engine.New(r.config.Player, engine.NewTimedSource(), r.logger)
	eng.ApplyPreferences(prefs)
	eng.Start(ctx)

	history := repositories.NewHistoryRepository(db)
	go tasks.NewRecorder(eng, history, r.logger).Run(ctx)
	go tasks.NewJanitor(history, 0, 0, r.logger).Run(ctx)

	client := session.NewClient(r.config.Session, r.logger)
	co := session.NewCoordinator(eng, client, r.logger)

	r.logger.Info("playback ready", "profile", profile.Username())
	return &deck{ctx: ctx, stop: stop, db: db, eng: eng, client: client, co: co, profile: profile}, nil
}

func (d *deck) close() {
	d.client.Close()
	d.eng.Close()
	d.db.Close()
	d.stop()
}

func (d *deck) console(r *Runner) *console {
	return &console{r: r, eng: d.eng, co: d.co}
}

// resolveProfile finds a profile by name, creating it on first use. With no
// name it falls back to the most recently used profile.
func (r *Runner) resolveProfile(db *sql.DB, name string) (*models.Profile, error) {
	repo := repositories.NewProfileRepository(db)

	if name == "" {
		latest, err := repo.Latest()
		if err != nil {
			return nil, err
		}
		if latest == nil {
			return nil, fmt.Errorf("%w: no profile yet, pass --name", shared.ErrMissingArgument)
		}
		return latest, nil
	}

	profiles, err := repo.List()
	if err != nil {
		return nil, err
	}
	for _, p := range profiles {
		if p.Username() == name {
			// Touch it so it becomes the relaunch default.
			if err := repo.Update(p); err != nil {
				return nil, err
			}
			return p, nil
		}
	}

	profile := models.NewProfile(0, name)
	if err := repo.Create(profile); err != nil {
		return nil, err
	}
	r.logger.Info("created profile", "name", name)
	return profile, nil
}

// formatPosition renders a position/duration pair as m:ss.
func formatPosition(pos, total time.Duration) string {
	format := func(d time.Duration) string {
		d = d.Round(time.Second)
		return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
	}
	if total <= 0 {
		return format(pos)
	}
	return format(pos) + "/" + format(total)
}

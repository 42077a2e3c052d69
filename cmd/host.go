package main

import (
	"context"

	"github.com/urfave/cli/v3"
)

func hostCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "host",
		Usage:     "Play a playlist and open a listen-together room",
		ArgsUsage: "<playlist.json>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "name",
				Aliases: []string{"n"},
				Usage:   "Profile name (defaults to the most recent profile)",
			},
			&cli.StringFlag{
				Name:  "relay",
				Usage: "Relay websocket URL",
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
		Action: r.Host,
	}
}

// Host starts playback, creates a room, and hands control to the console.
func (r *Runner) Host(ctx context.Context, cmd *cli.Command) error {
	if relayURL := cmd.String("relay"); relayURL != "" {
		r.config.Session.RelayURL = relayURL
	}

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

	room, err := deck.co.HostSession(deck.ctx, deck.profile.Username())
	if err != nil {
		return err
	}

	r.writePlainln("Room open. Share this code: %s", room.Code)
	r.writePlainln("Approve joins with: accept <user-id>")

	return deck.console(r).run(deck.ctx)
}

package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/attunefm/attune/internal/shared"
)

func joinCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "join",
		Usage:     "Join a listen-together room as a guest",
		ArgsUsage: "<room-code>",
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
		},
		Action: r.Join,
	}
}

// Join enters a room as a guest and hands control to the console. Waiting
// for host approval blocks until the host decides or the command is
// interrupted.
func (r *Runner) Join(ctx context.Context, cmd *cli.Command) error {
	code := cmd.Args().First()
	if code == "" {
		return fmt.Errorf("%w: room code", shared.ErrMissingArgument)
	}
	if relayURL := cmd.String("relay"); relayURL != "" {
		r.config.Session.RelayURL = relayURL
	}

	deck, err := r.newDeck(ctx, cmd.String("name"))
	if err != nil {
		return err
	}
	defer deck.close()

	r.writePlainln("Asking to join %s, waiting for the host...", code)
	room, err := deck.co.JoinSession(deck.ctx, code, deck.profile.Username())
	if err != nil {
		return err
	}

	r.writePlainln("Joined %s with %d listeners. You can browse and suggest tracks.", room.Code, len(room.Participants))
	return deck.console(r).run(deck.ctx)
}

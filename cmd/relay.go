package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/attunefm/attune/internal/relay"
	"github.com/attunefm/attune/internal/server"
)

func relayCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "relay",
		Usage: "Run the room relay server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen address",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Listen port",
			},
		},
		Action: r.Relay,
	}
}

// Relay runs the websocket relay until interrupted.
func (r *Runner) Relay(ctx context.Context, cmd *cli.Command) error {
	cfg := r.config.Relay
	if host := cmd.String("host"); host != "" {
		cfg.Host = host
	}
	if port := cmd.Int("port"); port != 0 {
		cfg.Port = int(port)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	router := server.NewBasicRouter()
	router.Use(server.Logging(r.logger))
	router.Handler(relay.New(cfg, r.logger))

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	return server.Serve(ctx, addr, router, r.logger)
}

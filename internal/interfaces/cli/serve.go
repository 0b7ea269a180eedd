package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/tock-booker/internal/infrastructure/postgres"
	"github.com/example/tock-booker/internal/interfaces/web"
)

func newServeCmd(g *globals) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve health, metrics and the attempt ledger over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := g.load(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.openLedger(ctx, false); err != nil {
				return err
			}

			opts := web.Options{Metrics: a.metrics.Handler(), Log: a.log.With("web")}
			if a.runs != nil {
				opts.Runs = a.runs
				pool := a.pool
				opts.Ping = func(ctx context.Context) error { return postgres.Ping(ctx, pool) }
			}
			srv, err := web.New(opts)
			if err != nil {
				return err
			}

			if addr == "" {
				addr = a.cfg.ListenAddr
			}
			return web.Start(ctx, addr, srv.Routes(), a.log.With("http"))
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default LISTEN_ADDR)")
	return cmd
}

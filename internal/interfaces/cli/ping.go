package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/tock-booker/internal/infrastructure/postgres"
)

func newPingCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check the attempt ledger database",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.load(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			if err := a.openLedger(ctx, true); err != nil {
				return err
			}
			if err := postgres.Ping(ctx, a.pool); err != nil {
				return fmt.Errorf("db ping: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ledger: ok")
			return nil
		},
	}
}

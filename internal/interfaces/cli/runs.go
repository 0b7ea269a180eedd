package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/tock-booker/internal/interfaces/web"
)

func newRunsCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect the attempt ledger",
	}
	cmd.AddCommand(newRunsListCmd(g))
	cmd.AddCommand(newRunsShowCmd(g))
	return cmd
}

func newRunsListCmd(g *globals) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	c := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 {
				return fmt.Errorf("--limit must be >= 1")
			}
			a, err := g.load(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 20*time.Second)
			defer cancel()
			if err := a.openLedger(ctx, true); err != nil {
				return err
			}

			runs, err := a.runs.List(ctx, limit)
			if err != nil {
				return err
			}
			views := make([]web.RunView, 0, len(runs))
			for _, r := range runs {
				views = append(views, web.NewRunView(r))
			}
			if asJSON {
				return writeJSON(cmd, views)
			}
			return printRuns(cmd, views)
		},
	}
	c.Flags().IntVar(&limit, "limit", 20, "maximum runs to list")
	c.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return c
}

func newRunsShowCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run with its step trace and events (JSON)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.load(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 20*time.Second)
			defer cancel()
			if err := a.openLedger(ctx, true); err != nil {
				return err
			}

			d, err := web.LoadRunDetail(ctx, a.runs, args[0])
			if err != nil {
				return fmt.Errorf("run %s: %w", args[0], err)
			}
			return writeJSON(cmd, d)
		},
	}
}

func printRuns(cmd *cobra.Command, runs []web.RunView) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tOFFERING\tPARTY\tSTATUS\tRESULT")
	for _, r := range runs {
		result := r.Day + " " + r.Time
		if r.Status != "confirmed" {
			result = r.FailureKind
			if r.FailureState != "" {
				result += " in " + r.FailureState
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04"), r.Offering, r.PartySize, r.Status, result)
	}
	return tw.Flush()
}

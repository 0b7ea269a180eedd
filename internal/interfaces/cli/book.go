package cli

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/tock-booker/internal/infrastructure/config"
)

func newBookCmd(g *globals) *cobra.Command {
	var targetPath, fixturePath string

	cmd := &cobra.Command{
		Use:   "book",
		Short: "Run one booking attempt and print the confirmed reservation as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := g.load(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			tf, err := a.loadTarget(targetPath)
			if err != nil {
				return err
			}
			if err := a.openLedger(ctx, false); err != nil {
				return err
			}
			sessions, err := a.sessions(fixturePath)
			if err != nil {
				return err
			}

			out, err := a.orchestrator(sessions).Run(ctx, tf.Target, tf.Patron)
			if err != nil {
				return err
			}
			return writeJSON(cmd, out.Result)
		},
	}
	cmd.Flags().StringVar(&targetPath, "target", "", "target file (yaml)")
	cmd.Flags().StringVar(&fixturePath, "fixture", "", "dry run against a calendar fixture instead of the live site")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

func (a *app) loadTarget(path string) (config.TargetFile, error) {
	// A nil *crypto.AEAD must not become a non-nil Decrypter.
	var dec config.Decrypter
	if a.secrets != nil {
		dec = a.secrets
	}
	return config.LoadTarget(path, dec)
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

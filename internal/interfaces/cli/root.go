package cli

import (
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

// globals are the persistent flags shared by every command.
type globals struct {
	configFile string
}

func NewRoot() *cobra.Command {
	g := &globals{}
	cmd := &cobra.Command{
		Use:           "tockbook",
		Short:         "Finds and books Tock reservations through the site's web UI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&g.configFile, "config", "", "settings file (yaml, json or toml); environment variables take precedence")

	cmd.AddCommand(newBookCmd(g))
	cmd.AddCommand(newWatchCmd(g))
	cmd.AddCommand(newServeCmd(g))
	cmd.AddCommand(newRunsCmd(g))
	cmd.AddCommand(newPingCmd(g))
	cmd.AddCommand(newKeysCmd())
	cmd.AddCommand(newSealCmd(g))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

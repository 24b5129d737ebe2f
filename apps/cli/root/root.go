package root

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/zenGate-Global/agencydesk/apps/cli/cmd/clienv"
)

// rootCmd is the base command for the agencydesk operator CLI. Subcommands (auth, tenant, bootstrap) are attached here.
var rootCmd = &cobra.Command{
	Use:           "agencydesk",
	Short:         "agencydesk operator CLI",
	Long:          "Operator utilities for agencydesk (login smoke tests, password hashes, tenant schema repair, database bootstrap).",
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().String(clienv.LogLevelFlag, clienv.Getenv("LOG_LEVEL", "warn"), "log level written to stderr (debug, info, warn, error)")
}

// Execute runs the CLI.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// Root returns the mutable root command for wiring from subpackages.
func Root() *cobra.Command {
	return rootCmd
}

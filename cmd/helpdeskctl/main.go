package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "helpdeskctl",
		Short:         "Helpdesk operations tool",
		Long:          `helpdeskctl applies schema migrations and manages accounts for the helpdesk service. It reads the same environment configuration as the API server.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(
		newMigrateCommand(),
		newAccountCommand(),
	)
	return rootCmd
}

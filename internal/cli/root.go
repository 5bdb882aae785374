// Package cli wires configuration, the store and the services into the
// tasky command tree.
package cli

import (
	"github.com/spf13/cobra"
)

type options struct {
	configFile string
}

func NewRootCommand() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "tasky",
		Short: "Tasky - task assignment operator tools",
		Long: `Tasky manages tasks, their assignees and the user roster on a remote
relational store. It runs as a Telegram bot for operators or as one-off
commands for scripts and maintenance.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default: tasky.yaml)")

	rootCmd.AddCommand(newBotCommand(opts))
	rootCmd.AddCommand(newAuditCommand(opts))
	rootCmd.AddCommand(newMigrateCommand(opts))
	rootCmd.AddCommand(newTaskCommand(opts))
	rootCmd.AddCommand(newUserCommand(opts))

	return rootCmd
}

// Package commands implements the banksync CLI.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dvloznov/bank-sync/internal/buildinfo"
)

type rootOptions struct {
	configPath string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:     "banksync",
		Short:   "Bank transaction sync pipeline",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to banksync.yaml (BANKSYNC_* env vars override it)")

	rootCmd.AddCommand(
		newSyncCommand(opts),
		newWorkerCommand(opts),
		newServeCommand(opts),
		newMigrateCommand(opts),
	)

	return rootCmd
}

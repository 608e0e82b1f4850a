package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newSyncCommand(opts *rootOptions) *cobra.Command {
	var connectionID, teamID string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync one bank connection now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ctx, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.coordinator.Sync(ctx, connectionID, teamID)
			if err != nil {
				return err
			}

			summary := map[string]any{
				"connectionId":       result.ConnectionID,
				"teamId":             result.TeamID,
				"success":            result.Success,
				"totalUpserts":       result.TotalUpserts,
				"totalFailedUpserts": result.TotalFailedUpserts,
				"failedAccounts":     result.FailedAccounts,
				"newTransactions":    result.NewTransactions,
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(summary); err != nil {
				return fmt.Errorf("writing summary: %w", err)
			}

			if !result.Success {
				return fmt.Errorf("sync finished with %s failure on %d account(s)", result.ErrorClass, result.FailedAccounts)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&connectionID, "connection", "", "bank connection id (required)")
	cmd.Flags().StringVar(&teamID, "team", "", "team id (required)")
	_ = cmd.MarkFlagRequired("connection")
	_ = cmd.MarkFlagRequired("team")

	return cmd
}

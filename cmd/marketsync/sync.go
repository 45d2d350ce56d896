package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one manual sync tick and exit",
	Long: `Run a single sync tick immediately. Manual ticks bypass the enable flag,
the lease and the rate guard, and are recorded in the audit log.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := setup(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.store.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}

		result, err := a.scheduler.RunNow(ctx)
		if err != nil {
			return fmt.Errorf("sync %s: %w", result.RunID, err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"success":     result.Success,
			"count":       result.Count,
			"run_id":      result.RunID,
			"duration_ms": result.Duration.Milliseconds(),
		})
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

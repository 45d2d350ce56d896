package main

import (
	"github.com/spf13/cobra"

	"github.com/rickgao/market-sync/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Long:  "Create the snapshot, history, lock, flag, audit and status tables. Safe to run repeatedly.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Storage.Backend != config.BackendPostgres {
			logger.Info("nothing to migrate", "storage", cfg.Storage.Backend)
			return nil
		}

		st, _, err := openStore(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		return st.Migrate(ctx)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

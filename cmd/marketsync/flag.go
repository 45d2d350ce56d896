package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var flagCmd = &cobra.Command{
	Use:   "flag",
	Short: "Read or toggle remote enable flags",
	Long: `Read or toggle the remote flags that gate scheduled sync ticks.

Examples:
  marketsync flag get market_sync_enabled
  marketsync flag set market_sync_enabled false`,
}

var flagGetCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Print a flag value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		st, _, err := openStore(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		enabled, found, err := st.ReadFlag(ctx, args[0])
		if err != nil {
			return fmt.Errorf("read flag %s: %w", args[0], err)
		}
		if !found {
			fmt.Printf("%s: not set (treated as enabled)\n", args[0])
			return nil
		}
		fmt.Printf("%s: %t\n", args[0], enabled)
		return nil
	},
}

var flagSetCmd = &cobra.Command{
	Use:   "set <name> <true|false>",
	Short: "Set a flag value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		enabled, err := strconv.ParseBool(args[1])
		if err != nil {
			return fmt.Errorf("invalid flag value %q: %w", args[1], err)
		}

		ctx := cmd.Context()
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		st, _, err := openStore(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		if err := st.SetFlag(ctx, args[0], enabled); err != nil {
			return fmt.Errorf("set flag %s: %w", args[0], err)
		}
		logger.Info("flag updated", "name", args[0], "enabled", enabled)
		return nil
	},
}

func init() {
	flagCmd.AddCommand(flagGetCmd, flagSetCmd)
	rootCmd.AddCommand(flagCmd)
}

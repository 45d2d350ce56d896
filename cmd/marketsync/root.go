package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rickgao/market-sync/internal/config"
	"github.com/rickgao/market-sync/internal/logging"
	"github.com/rickgao/market-sync/internal/version"
)

var (
	configPath string
	envFile    string
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "marketsync",
	Short: "Market data synchronization service",
	Long: `marketsync fetches the top assets from a market data provider on a jittered
schedule and serves them from the freshest available tier.

Reads are served from the in-process cache, then the durable live record
(marked degraded), then an empty degraded snapshot. Scheduled ticks are gated
by a remote enable flag, a cross-instance lease and a per-process rate guard.`,
	Version:       version.String(),
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadEnvFile(envFile)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (defaults only when empty)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config; ignored if missing")
}

// loadEnvFile loads path into the environment without overriding variables
// that are already set.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// loadConfig reads and validates the config and installs the default logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		return nil, nil, err
	}

	logger, err := logging.New(cfg.Logging, os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	logger = logger.With("instance", cfg.Instance.ID)
	slog.SetDefault(logger)

	return cfg, logger, nil
}

package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rickgao/market-sync/internal/stream"
)

var (
	watchURL     string
	watchVerbose bool
	watchTop     int
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream snapshots from a running server to the console",
	Long: `Connect to the /ws/market stream of a running marketsync server and print
every snapshot it publishes until interrupted.

Examples:
  marketsync watch
  marketsync watch --url ws://sync.internal:8080/ws/market --verbose`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		url := watchURL
		if url == "" {
			url = fmt.Sprintf("ws://localhost:%d/ws/market", cfg.Server.Port)
		}

		client := stream.NewClient(stream.DefaultClientConfig(url), logger)
		if err := client.Connect(ctx); err != nil {
			return fmt.Errorf("connect %s: %w", url, err)
		}
		defer client.Close()

		logger.Info("streaming started - press Ctrl+C to stop", "url", url)

		var received int
		stats := time.NewTicker(time.Minute)
		defer stats.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.Info("shutdown complete", "received", received)
				return nil
			case err := <-client.Errors():
				return fmt.Errorf("stream: %w", err)
			case <-stats.C:
				logger.Info("stats", "received", received, "connected", client.IsConnected())
			case msg := <-client.Messages():
				received++
				printSnapshot(msg, watchVerbose, watchTop)
			}
		}
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchURL, "url", "", "stream URL (default ws://localhost:<server.port>/ws/market)")
	watchCmd.Flags().BoolVar(&watchVerbose, "verbose", false, "print full message JSON")
	watchCmd.Flags().IntVar(&watchTop, "top", 5, "assets to print per snapshot")
	rootCmd.AddCommand(watchCmd)
}

func printSnapshot(msg stream.TimestampedMessage, verbose bool, top int) {
	if verbose {
		data, _ := json.MarshalIndent(msg.Message, "", "  ")
		fmt.Printf("[SNAPSHOT] %s\n", data)
		return
	}

	snap := msg.Snapshot
	fmt.Printf("[SNAPSHOT] source=%s assets=%d degraded=%t ts=%s lag=%s\n",
		msg.Source, len(snap.Assets), snap.Degraded,
		snap.Timestamp.Format(time.RFC3339), msg.ReceivedAt.Sub(snap.Timestamp).Round(time.Millisecond))

	limit := max(0, min(top, len(snap.Assets)))
	parts := make([]string, 0, limit)
	for _, a := range snap.Assets[:limit] {
		change := "n/a"
		if a.PercentChange24h != nil {
			change = a.PercentChange24h.StringFixed(2) + "%"
		}
		parts = append(parts, fmt.Sprintf("%s=%s (%s)", strings.ToUpper(a.Symbol), a.Price.String(), change))
	}
	if len(parts) > 0 {
		fmt.Printf("  %s\n", strings.Join(parts, "  "))
	}
}

// marketsync keeps a freshness-tiered snapshot of the top market assets in sync
// with an external provider and serves it over HTTP.
//
// Usage:
//
//	marketsync serve --config configs/marketsync.example.yaml
//	marketsync sync
//	marketsync flag set market_sync_enabled false
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

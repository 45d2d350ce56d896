package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rickgao/market-sync/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("marketsync", version.String())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

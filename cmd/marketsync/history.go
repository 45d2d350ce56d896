package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent history records, newest first",
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

		total, err := st.CountHistory(ctx)
		if err != nil {
			return fmt.Errorf("count history: %w", err)
		}
		records, err := st.ListHistory(ctx, historyLimit)
		if err != nil {
			return fmt.Errorf("list history: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "WRITTEN\tSNAPSHOT\tASSETS\tTOP")
		for _, r := range records {
			top := "-"
			if len(r.Snapshot.Assets) > 0 {
				a := r.Snapshot.Assets[0]
				top = a.Symbol + " " + a.Price.String()
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
				r.WrittenAt.Format(time.RFC3339), r.Snapshot.Timestamp.Format(time.RFC3339),
				len(r.Snapshot.Assets), top)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Printf("\n%d of %d records (max %d retained)\n", len(records), total, cfg.Scheduler.HistoryMax)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of records to show")
	rootCmd.AddCommand(historyCmd)
}

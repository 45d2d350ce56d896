package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var statusEvents int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored sync status and recent audit events",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := setup(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		name := a.cfg.Scheduler.JobName
		status, err := a.audit.Status(ctx, name)
		if err != nil {
			return fmt.Errorf("read status: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		if status == nil {
			fmt.Fprintf(w, "job\t%s\n", name)
			fmt.Fprintln(w, "state\tnever run")
		} else {
			fmt.Fprintf(w, "job\t%s\n", status.Name)
			fmt.Fprintf(w, "enabled\t%t\n", status.Enabled)
			fmt.Fprintf(w, "last run\t%s\n", status.LastRunID)
			fmt.Fprintf(w, "last attempt\t%s\n", formatTime(status.LastAttemptAt))
			fmt.Fprintf(w, "last success\t%s\n", formatTime(status.LastSuccessAt))
			fmt.Fprintf(w, "last failure\t%s\n", formatTime(status.LastFailureAt))
			fmt.Fprintf(w, "last error\t%s\n", status.LastError)
			fmt.Fprintf(w, "item count\t%d\n", status.LastItemCount)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		if statusEvents <= 0 {
			return nil
		}
		events, err := a.audit.Events(ctx, name, statusEvents)
		if err != nil {
			return fmt.Errorf("list events: %w", err)
		}

		fmt.Println()
		w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tLEVEL\tRUN\tMESSAGE")
		for _, ev := range events {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				ev.CreatedAt.Format(time.RFC3339), ev.Level, ev.RunID, ev.Message)
		}
		return w.Flush()
	},
}

func init() {
	statusCmd.Flags().IntVarP(&statusEvents, "events", "n", 10, "number of recent audit events to show")
	rootCmd.AddCommand(statusCmd)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.RFC3339)
}

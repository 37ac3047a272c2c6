package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcus/pinmap/internal/autosync"
	"github.com/marcus/pinmap/internal/output"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep syncing on an interval until interrupted",
	Long: `Probe the API on an interval and replay queued changes whenever it is
reachable. Runs until interrupted.`,
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession(cmd)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer sess.Close()

		interval, _ := cmd.Flags().GetDuration("interval")
		if !cmd.Flags().Changed("interval") {
			interval = sess.Settings.SyncInterval
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		runner := autosync.New(sess.Store)
		runner.Interval = interval
		runner.OnTick = printTick

		output.Info("Watching %s every %s (Ctrl+C to stop)", sess.Settings.APIURL, interval)
		runner.Run(ctx)
		return nil
	},
}

// printTick writes one line per cycle; idle cycles stay quiet.
func printTick(t autosync.Tick) {
	if line := formatTick(t); line != "" {
		fmt.Println(line)
	}
}

func formatTick(t autosync.Tick) string {
	stamp := t.At.Format(time.TimeOnly)
	switch {
	case errors.Is(t.Err, context.Canceled):
		return ""
	case t.Err != nil:
		return fmt.Sprintf("%s sync failed: %v", stamp, t.Err)
	case !t.Available:
		return stamp + " backend unreachable"
	case t.Report != nil && (t.Report.Replayed > 0 || t.Report.Dropped > 0 || t.Report.Failed > 0):
		return stamp + " " + output.FormatSyncReport(t.Report)
	}
	return ""
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().Duration("interval", autosync.DefaultInterval, "probe interval")
}

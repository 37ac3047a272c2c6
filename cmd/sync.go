package cmd

import (
	"context"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/marcus/pinmap/internal/output"
	"github.com/marcus/pinmap/internal/store"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Replay queued changes against the API",
	Long: `Probe the API and, when it is reachable, replay queued changes in the
order they were made. Entries the API permanently rejects are dropped.`,
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession(cmd)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer sess.Close()

		jsonOut, _ := cmd.Flags().GetBool("json")

		if statusOnly, _ := cmd.Flags().GetBool("status"); statusOnly {
			return printStatus(cmd.Context(), sess, jsonOut)
		}

		report, err := syncOnce(cmd.Context(), sess.Store)
		if err != nil {
			output.Error("sync: %v", err)
			return err
		}
		if jsonOut {
			return output.JSON(report)
		}
		fmt.Println(output.FormatSyncReport(report))
		return nil
	},
}

// syncOnce probes the backend and drains the queue if it answered.
func syncOnce(ctx context.Context, s *store.Store) (*store.SyncReport, error) {
	s.CheckBackendConnection(ctx)
	return s.SyncPending(ctx)
}

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show backend availability and local counts",
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession(cmd)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer sess.Close()

		jsonOut, _ := cmd.Flags().GetBool("json")
		return printStatus(cmd.Context(), sess, jsonOut)
	},
}

func printStatus(ctx context.Context, sess *session, jsonOut bool) error {
	sess.Store.CheckBackendConnection(ctx)
	st, err := sess.Store.Status()
	if err != nil {
		output.Error("%v", err)
		return err
	}
	if jsonOut {
		return output.JSON(st)
	}
	fmt.Print(output.FormatStorageStatus(st, sess.Settings.APIURL))
	return nil
}

var pendingCmd = &cobra.Command{
	Use:     "pending",
	Aliases: []string{"queue"},
	Short:   "List queued changes",
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession(cmd)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer sess.Close()

		ops, err := sess.Store.Pending()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return output.JSON(ops)
		}
		if len(ops) == 0 {
			fmt.Println("Nothing queued")
			return nil
		}
		for _, op := range ops {
			fmt.Println(output.FormatPendingOp(op))
		}
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all local locations and queued changes",
	Long: `Delete all local locations and the replay queue. Nothing is sent to the
API; queued changes that were never synced are lost.`,
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		if !force {
			if !output.IsTerminal() {
				err := fmt.Errorf("refusing to clear without --force")
				output.Error("%v", err)
				return err
			}
			confirmed := false
			err := huh.NewConfirm().
				Title("Delete all local locations and queued changes?").
				Affirmative("Clear").
				Negative("Cancel").
				Value(&confirmed).
				Run()
			if err != nil {
				return err
			}
			if !confirmed {
				output.Info("Cancelled")
				return nil
			}
		}

		sess, err := openSession(cmd)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer sess.Close()

		if err := sess.Store.ClearLocalData(); err != nil {
			output.Error("%v", err)
			return err
		}
		output.Success("Local data cleared")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(clearCmd)

	syncCmd.Flags().Bool("status", false, "show status without syncing")
	syncCmd.Flags().Bool("json", false, "output as JSON")
	statusCmd.Flags().Bool("json", false, "output as JSON")
	pendingCmd.Flags().Bool("json", false, "output as JSON")
	clearCmd.Flags().BoolP("force", "f", false, "skip the confirmation prompt")
}

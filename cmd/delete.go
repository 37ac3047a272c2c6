package cmd

import (
	"github.com/spf13/cobra"

	"github.com/marcus/pinmap/internal/output"
)

var deleteCmd = &cobra.Command{
	Use:     "delete <id> [id...]",
	Aliases: []string{"rm"},
	Short:   "Delete one or more locations",
	GroupID: "core",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession(cmd)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer sess.Close()

		var firstErr error
		for _, id := range args {
			res, err := sess.Store.Delete(cmd.Context(), id)
			if err != nil {
				output.Error("%v", err)
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			if res.Synced {
				output.Success("Deleted %s", id)
			} else {
				output.Success("Deleted %s locally, queued for sync", id)
			}
		}
		return firstErr
	},
}

var duplicateCmd = &cobra.Command{
	Use:     "duplicate <id>",
	Aliases: []string{"dup", "copy"},
	Short:   "Copy a location next to the original",
	GroupID: "core",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession(cmd)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer sess.Close()

		res, err := sess.Store.Duplicate(cmd.Context(), args[0])
		if err != nil {
			output.Error("%v", err)
			return err
		}
		printResult("Created", res)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(duplicateCmd)
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcus/pinmap/internal/output"
)

var updateCmd = &cobra.Command{
	Use:     "update <id>",
	Aliases: []string{"edit"},
	Short:   "Change fields of a location",
	Long: `Change fields of a location. Only the flags you pass are applied.
Properties given with --prop are merged into the existing set.`,
	Example: `  pinmap update loc-1a2b3c --name "Monumen Nasional"
  pinmap update 5f0c... --lat -6.1755 --lng 106.8272`,
	GroupID: "core",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		patch, err := patchFromFlags(cmd.Flags())
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if patch.IsEmpty() {
			err := fmt.Errorf("nothing to update (pass at least one field flag)")
			output.Error("%v", err)
			return err
		}

		sess, err := openSession(cmd)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer sess.Close()

		res, err := sess.Store.Update(cmd.Context(), args[0], patch)
		if err != nil {
			output.Error("%v", err)
			return err
		}

		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return output.JSON(res)
		}
		printResult("Updated", res)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(updateCmd)
	addLocationFlags(updateCmd.Flags())
	updateCmd.Flags().Bool("json", false, "output the result as JSON")
}

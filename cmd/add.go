package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcus/pinmap/internal/output"
	"github.com/marcus/pinmap/internal/store"
)

var addCmd = &cobra.Command{
	Use:     "add [name]",
	Aliases: []string{"create", "new"},
	Short:   "Add a location",
	Long: `Add a location. It is written locally and pushed to the API when
reachable; otherwise the create is queued for the next sync.

Run without a name on a terminal to fill in an interactive form.`,
	Example: `  pinmap add "Monas" --lat -6.1754 --lng 106.8275 --category poi
  pinmap add "Kopi Kenangan" -c restaurant -p hours=07-22`,
	GroupID: "core",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := inputFromFlags(cmd.Flags())
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if len(args) > 0 {
			in.Name = args[0]
		}

		if in.Name == "" {
			if !output.IsTerminal() {
				err := fmt.Errorf("a name is required (pass it as an argument or with --name)")
				output.Error("%v", err)
				return err
			}
			form := newLocationForm(in)
			if err := form.Run(); err != nil {
				return err
			}
			if in, err = form.Input(); err != nil {
				output.Error("%v", err)
				return err
			}
		}

		sess, err := openSession(cmd)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer sess.Close()

		res, err := sess.Store.Create(cmd.Context(), in)
		if err != nil {
			output.Error("%v", err)
			return err
		}

		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return output.JSON(res)
		}
		printResult("Created", res)
		return nil
	},
}

// printResult reports a mutation and whether it reached the API.
func printResult(verb string, res *store.Result) {
	if res.Record == nil {
		return
	}
	output.Success("%s %s: %s", verb, res.Record.ID, res.Record.Name)
	if !res.Synced {
		output.Info("  saved locally, queued for sync")
	}
}

func init() {
	rootCmd.AddCommand(addCmd)
	addLocationFlags(addCmd.Flags())
	addCmd.Flags().Bool("json", false, "output the result as JSON")
}

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcus/pinmap/internal/output"
	"github.com/marcus/pinmap/internal/store"
)

var showCmd = &cobra.Command{
	Use:     "show <id>",
	Aliases: []string{"view"},
	Short:   "Show one location",
	GroupID: "core",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOut, _ := cmd.Flags().GetBool("json")

		sess, err := openSession(cmd)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer sess.Close()

		loc, err := sess.Store.Get(args[0])
		if err != nil {
			if jsonOut && errors.Is(err, store.ErrNotFound) {
				output.JSONError(output.ErrCodeNotFound, err.Error())
			} else {
				output.Error("%v", err)
			}
			return err
		}

		if jsonOut {
			return output.JSON(loc)
		}

		fmt.Print(output.FormatLocationLong(loc))
		rendered, err := output.RenderMarkdown(output.DescriptionMarkdown(loc))
		if err != nil {
			output.Warning("render description: %v", err)
			return nil
		}
		if rendered != "" {
			fmt.Println()
			fmt.Println(rendered)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().Bool("json", false, "output as JSON")
}

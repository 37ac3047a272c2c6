package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcus/pinmap/internal/models"
	"github.com/marcus/pinmap/internal/output"
	"github.com/marcus/pinmap/internal/store"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List locations",
	Long: `List locations, syncing with the API first when it is reachable.

With --local the API is not contacted and the on-disk set is shown as is.`,
	Example: `  pinmap list
  pinmap list --category restaurant
  pinmap list --search kopi --json`,
	GroupID: "core",
	RunE: func(cmd *cobra.Command, args []string) error {
		var f store.Filter
		if cat, _ := cmd.Flags().GetString("category"); cat != "" {
			c, err := parseCategory(cat)
			if err != nil {
				output.Error("%v", err)
				return err
			}
			f.Category = c
		}
		f.Query, _ = cmd.Flags().GetString("search")
		local, _ := cmd.Flags().GetBool("local")
		jsonOut, _ := cmd.Flags().GetBool("json")

		sess, err := openSession(cmd)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer sess.Close()

		locs, err := listLocations(cmd.Context(), sess.Store, f, local)
		if err != nil {
			output.Error("%v", err)
			return err
		}

		if jsonOut {
			return output.JSON(locs)
		}
		printLocations(locs)
		return nil
	},
}

// listLocations returns the filtered location set. Unless local is set, the
// backend is probed and the queue drained before listing so queued changes
// reach the server before its set replaces the local one.
func listLocations(ctx context.Context, s *store.Store, f store.Filter, local bool) ([]models.Location, error) {
	if local {
		return s.Search(f)
	}
	if s.CheckBackendConnection(ctx) {
		if _, err := s.SyncPending(ctx); err != nil {
			return nil, err
		}
	}
	locs, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return f.Apply(locs), nil
}

func printLocations(locs []models.Location) {
	if len(locs) == 0 {
		fmt.Println("No locations")
		return
	}
	for i := range locs {
		fmt.Println(output.FormatLocationShort(&locs[i]))
	}
	fmt.Printf("\n%d location(s)\n", len(locs))
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringP("category", "c", "", "filter by category")
	listCmd.Flags().StringP("search", "s", "", "filter by name, description, or address")
	listCmd.Flags().Bool("local", false, "show the on-disk set without contacting the API")
	listCmd.Flags().Bool("json", false, "output as JSON")
}

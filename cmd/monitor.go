package cmd

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/marcus/pinmap/internal/autosync"
	"github.com/marcus/pinmap/internal/output"
	"github.com/marcus/pinmap/internal/tui/monitor"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live TUI showing locations and the sync queue",
	Long: `Launch a live-updating TUI showing:
- Locations: the local set, marking records not yet on the API
- Pending: queued changes in replay order

The API is probed and the queue drained on every refresh.

Key bindings:
  Tab            Switch panels
  1/2            Jump to panel
  j/k            Move selection
  /              Filter (cat:<category> narrows by category)
  Esc            Clear filter
  s              Sync now
  r              Refresh
  ?              Toggle help
  q              Quit`,
	GroupID: "system",
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
		if interval < time.Second {
			interval = autosync.DefaultInterval
		}

		runner := autosync.New(sess.Store)
		runner.Interval = interval

		model := monitor.NewModel(cmd.Context(), sess.Store, runner, interval)
		model.APIURL = sess.Settings.APIURL

		p := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("error running monitor: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().Duration("interval", autosync.DefaultInterval, "refresh and sync interval")
}

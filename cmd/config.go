package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marcus/pinmap/internal/config"
	"github.com/marcus/pinmap/internal/output"
)

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Manage pinmap configuration",
	GroupID: "system",
	Long: `Manage ~/.config/pinmap/config.json.

Keys: ` + strings.Join(config.Keys(), ", ") + `

Environment variables (PINMAP_API_URL, PINMAP_OFFLINE, PINMAP_SYNC_INTERVAL,
PINMAP_HTTP_TIMEOUT) override the file.`,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value (empty value resets it)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]

		cfg, err := config.Load()
		if err != nil {
			output.Error("load config: %v", err)
			return err
		}
		if err := cfg.Set(key, val); err != nil {
			output.Error("%v", err)
			return err
		}
		if err := config.Save(cfg); err != nil {
			output.Error("save config: %v", err)
			return err
		}
		output.Success("Set %s = %s", key, val)
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Show the effective value of a config key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := config.Resolve()
		if err != nil {
			output.Error("load config: %v", err)
			return err
		}
		val, err := settings.Effective(args[0])
		if err != nil {
			output.Error("%v", err)
			return err
		}
		fmt.Println(val)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "Show all effective config values",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := config.Resolve()
		if err != nil {
			output.Error("load config: %v", err)
			return err
		}
		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return output.JSON(settings)
		}
		for _, key := range config.Keys() {
			val, _ := settings.Effective(key)
			fmt.Printf("%s = %s\n", key, val)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configListCmd)
	configListCmd.Flags().Bool("json", false, "output as JSON")
}

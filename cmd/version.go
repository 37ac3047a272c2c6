package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:     "version",
	Short:   "Show version",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		if short, _ := cmd.Flags().GetBool("short"); short {
			fmt.Println(version)
			return nil
		}
		fmt.Printf("pinmap version %s\n", version)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().Bool("short", false, "print only the version string")
}

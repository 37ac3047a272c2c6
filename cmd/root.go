package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/marcus/pinmap/internal/backend"
	"github.com/marcus/pinmap/internal/config"
	"github.com/marcus/pinmap/internal/kv"
	"github.com/marcus/pinmap/internal/store"
)

// EnvLogLevel overrides the --log-level default.
const EnvLogLevel = "PINMAP_LOG_LEVEL"

var (
	version string
	baseDir string

	// baseDirOverride replaces the working directory in tests
	baseDirOverride *string
)

// SetVersion sets the version string.
func SetVersion(v string) {
	version = v
}

var rootCmd = &cobra.Command{
	Use:   "pinmap",
	Short: "Local-first location store with background sync",
	Long: `pinmap - keep a set of map locations on disk and sync them to a locations API.

Every change is written locally first. When the API is unreachable, changes
are queued and replayed in order once it comes back.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is normal; anything else is worth a warning
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: .env: %v\n", err)
		}
		level, _ := cmd.Flags().GetString("log-level")
		if !cmd.Flags().Changed("log-level") {
			if v := os.Getenv(EnvLogLevel); v != "" {
				level = v
			}
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(level)})))
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// nameWithAliases returns "name, alias1, alias2" if aliases exist, else just "name".
func nameWithAliases(cmd *cobra.Command) string {
	if len(cmd.Aliases) > 0 {
		return cmd.Name() + ", " + strings.Join(cmd.Aliases, ", ")
	}
	return cmd.Name()
}

func init() {
	cobra.OnInitialize(initBaseDir)

	cobra.AddTemplateFunc("nameWithAliases", nameWithAliases)
	cobra.AddTemplateFunc("add", func(a, b int) int { return a + b })

	// Custom usage template that shows aliases inline
	usageTemplate := `Usage:{{if .Runnable}}
  {{.UseLine}}{{end}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command]{{end}}{{if .HasExample}}

Examples:
{{.Example}}{{end}}{{if .HasAvailableSubCommands}}{{$cmds := .Commands}}{{range $group := .Groups}}

{{.Title}}{{range $cmds}}{{if (and (eq .GroupID $group.ID) (or .IsAvailableCommand (eq .Name "help")))}}
  {{rpad (nameWithAliases .) (add .NamePadding 8)}} {{.Short}}{{end}}{{end}}{{end}}{{if not .AllChildCommandsHaveGroup}}

Additional Commands:{{range $cmds}}{{if (and (eq .GroupID "") (or .IsAvailableCommand (eq .Name "help")))}}
  {{rpad (nameWithAliases .) (add .NamePadding 8)}} {{.Short}}{{end}}{{end}}{{end}}{{end}}{{if .HasAvailableLocalFlags}}

Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableInheritedFlags}}

Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableSubCommands}}

Use "{{.CommandPath}} [command] --help" for more information about a command.{{end}}
`
	rootCmd.SetUsageTemplate(usageTemplate)

	rootCmd.AddGroup(
		&cobra.Group{ID: "core", Title: "Location Commands:"},
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
		&cobra.Group{ID: "data", Title: "Import/Export Commands:"},
		&cobra.Group{ID: "system", Title: "System Commands:"},
	)
	rootCmd.SetHelpCommandGroupID("system")
	rootCmd.SetCompletionCommandGroupID("system")

	rootCmd.PersistentFlags().String("dir", "", "directory holding the .pinmap store (default: current directory)")
	rootCmd.PersistentFlags().Bool("offline", false, "never contact the API; queue every change")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level: debug, info, warn, error")
}

func initBaseDir() {
	var err error
	baseDir, err = os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot determine working directory: %v\n", err)
		os.Exit(1)
	}
}

// getBaseDir returns the directory the store lives under.
func getBaseDir(cmd *cobra.Command) string {
	if baseDirOverride != nil {
		return *baseDirOverride
	}
	if d, _ := cmd.Flags().GetString("dir"); d != "" {
		return d
	}
	return baseDir
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// session bundles an opened store with the settings it was built from.
type session struct {
	Store    *store.Store
	Settings *config.Settings
	medium   *kv.DB
}

func (s *session) Close() error {
	return s.medium.Close()
}

// openSession opens the on-disk store and wires it to the configured API.
func openSession(cmd *cobra.Command) (*session, error) {
	settings, err := config.Resolve()
	if err != nil {
		return nil, err
	}
	if off, _ := cmd.Flags().GetBool("offline"); off {
		settings.Offline = true
	}

	medium, err := kv.Open(getBaseDir(cmd))
	if err != nil {
		return nil, err
	}

	client := backend.New(settings.APIURL, settings.HTTPTimeout)
	s := store.New(medium, client,
		store.WithLogger(slog.Default()),
		store.WithOffline(settings.Offline),
	)
	return &session{Store: s, Settings: settings, medium: medium}, nil
}

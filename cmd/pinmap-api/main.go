package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/marcus/pinmap/internal/api"
	"github.com/marcus/pinmap/internal/serverdb"
)

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg := api.LoadConfig()

	flags := pflag.NewFlagSet("pinmap-api", pflag.ExitOnError)
	flags.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "listen address")
	flags.StringVar(&cfg.DatabaseURL, "db", cfg.DatabaseURL, "SQLite path or postgres:// URL")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	flags.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "json or text")
	flags.StringSliceVar(&cfg.CORSAllowedOrigins, "cors-origin", cfg.CORSAllowedOrigins, "allowed browser origin (repeatable)")
	flags.Float64Var(&cfg.RateLimitRPS, "rate-limit", cfg.RateLimitRPS, "requests per second per client IP (0 disables)")
	migrateOnly := flags.Bool("migrate", false, "apply schema migrations and exit")
	flags.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: pinmap-api [flags]\n\nReference locations API for pinmap.\n\nFlags:")
		flags.PrintDefaults()
	}
	flags.Parse(os.Args[1:])

	slog.SetDefault(slog.New(newHandler(cfg)))

	store, err := serverdb.Open(cfg.DatabaseURL)
	if err != nil {
		slog.Error("open server db", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	if *migrateOnly {
		slog.Info("schema up to date", "dialect", store.Dialect(), "version", store.SchemaVersion(context.Background()))
		return
	}

	srv, err := api.NewServer(cfg, store)
	if err != nil {
		slog.Error("create server", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(); err != nil {
		slog.Error("start server", "err", err)
		os.Exit(1)
	}
	slog.Info("server started", "addr", srv.Addr().String(), "dialect", store.Dialect())

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "err", err)
	}
}

func newHandler(cfg api.Config) slog.Handler {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.LogFormat) == "text" {
		return slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.NewJSONHandler(os.Stderr, opts)
}

package api

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the server configuration, loaded from environment variables.
type Config struct {
	ListenAddr      string
	DatabaseURL     string // SQLite path or postgres:// DSN
	ShutdownTimeout time.Duration
	LogFormat       string // "json" (default) or "text"
	LogLevel        string // "debug", "info" (default), "warn", "error"

	RateLimitRPS   float64 // per client IP; 0 disables limiting
	RateLimitBurst int

	CORSAllowedOrigins []string // empty = CORS disabled
}

// LoadConfig reads configuration from environment variables with sensible defaults.
func LoadConfig() Config {
	cfg := Config{
		ListenAddr:      ":8081",
		DatabaseURL:     "./data/pinmap.db",
		ShutdownTimeout: 15 * time.Second,
		LogFormat:       "json",
		LogLevel:        "info",
		RateLimitRPS:    20,
		RateLimitBurst:  40,
	}

	if v := os.Getenv("PINMAP_API_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("PINMAP_API_DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("PINMAP_API_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ShutdownTimeout = d
		}
	}
	if v := os.Getenv("PINMAP_API_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("PINMAP_API_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	if v := os.Getenv("PINMAP_API_RATE_LIMIT_RPS"); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n >= 0 {
			cfg.RateLimitRPS = n
		}
	}
	if v := os.Getenv("PINMAP_API_RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RateLimitBurst = n
		}
	}

	if v := os.Getenv("PINMAP_API_CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.CORSAllowedOrigins = splitList(v)
	}

	return cfg
}

func splitList(v string) []string {
	var out []string
	for _, o := range strings.Split(v, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}

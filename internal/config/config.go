// Package config reads and writes the pinmap client config stored at
// ~/.config/pinmap/config.json. Environment variables take priority over the
// file, which takes priority over built-in defaults.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Defaults
const (
	DefaultAPIURL       = "http://localhost:8081"
	DefaultSyncInterval = 30 * time.Second
	DefaultHTTPTimeout  = 10 * time.Second
)

// Environment variable names
const (
	EnvAPIURL       = "PINMAP_API_URL"
	EnvOffline      = "PINMAP_OFFLINE"
	EnvSyncInterval = "PINMAP_SYNC_INTERVAL"
	EnvHTTPTimeout  = "PINMAP_HTTP_TIMEOUT"
)

const configFile = "config.json"

// Config is the on-disk client config. Empty fields fall back to defaults.
type Config struct {
	APIURL       string `json:"api_url,omitempty"`
	Offline      *bool  `json:"offline,omitempty"`
	SyncInterval string `json:"sync_interval,omitempty"` // duration string, default "30s"
	HTTPTimeout  string `json:"http_timeout,omitempty"`  // duration string, default "10s"
}

// Settings are the effective values after applying env, file and defaults.
type Settings struct {
	APIURL       string        `json:"api_url"`
	Offline      bool          `json:"offline"`
	SyncInterval time.Duration `json:"sync_interval"`
	HTTPTimeout  time.Duration `json:"http_timeout"`
}

// ConfigDir returns ~/.config/pinmap, creating it if necessary.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	dir := filepath.Join(home, ".config", "pinmap")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	return dir, nil
}

// Load reads the config file. A missing file is an empty config.
func Load() (*Config, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, configFile))
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", configFile, err)
	}
	return &cfg, nil
}

// Save writes the config using temp file + rename.
func Save(cfg *Config) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "config-*.json.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, filepath.Join(dir, configFile))
}

// Resolve returns the effective settings.
// Priority for every key: env > config.json > default.
func Resolve() (*Settings, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	return cfg.resolve(), nil
}

func (c *Config) resolve() *Settings {
	s := &Settings{
		APIURL:       DefaultAPIURL,
		SyncInterval: DefaultSyncInterval,
		HTTPTimeout:  DefaultHTTPTimeout,
	}

	if c.APIURL != "" {
		s.APIURL = c.APIURL
	}
	if v := os.Getenv(EnvAPIURL); v != "" {
		s.APIURL = v
	}

	if c.Offline != nil {
		s.Offline = *c.Offline
	}
	if v := parseBoolEnv(EnvOffline); v != nil {
		s.Offline = *v
	}

	s.SyncInterval = durationSetting(EnvSyncInterval, c.SyncInterval, DefaultSyncInterval)
	s.HTTPTimeout = durationSetting(EnvHTTPTimeout, c.HTTPTimeout, DefaultHTTPTimeout)
	return s
}

// durationSetting resolves a duration from env, then file, then default.
// Unparseable or non-positive values are skipped.
func durationSetting(envKey, fileValue string, def time.Duration) time.Duration {
	if v := os.Getenv(envKey); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	if fileValue != "" {
		if d, err := time.ParseDuration(fileValue); err == nil && d > 0 {
			return d
		}
	}
	return def
}

// parseBoolEnv returns nil if env not set, pointer to bool if set.
func parseBoolEnv(envKey string) *bool {
	v := strings.ToLower(os.Getenv(envKey))
	if v == "" {
		return nil
	}
	if v == "1" || v == "true" {
		b := true
		return &b
	}
	if v == "0" || v == "false" {
		b := false
		return &b
	}
	return nil
}

// Keys lists the settable config keys.
func Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var setters = map[string]func(c *Config, v string) error{
	"api_url": func(c *Config, v string) error {
		if v == "" {
			c.APIURL = ""
			return nil
		}
		u, err := url.Parse(v)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("api_url must be an http(s) URL, got %q", v)
		}
		c.APIURL = strings.TrimRight(v, "/")
		return nil
	},
	"offline": func(c *Config, v string) error {
		if v == "" {
			c.Offline = nil
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("offline must be true or false, got %q", v)
		}
		c.Offline = &b
		return nil
	},
	"sync_interval": func(c *Config, v string) error {
		if err := checkDuration(v); err != nil {
			return fmt.Errorf("sync_interval: %w", err)
		}
		c.SyncInterval = v
		return nil
	},
	"http_timeout": func(c *Config, v string) error {
		if err := checkDuration(v); err != nil {
			return fmt.Errorf("http_timeout: %w", err)
		}
		c.HTTPTimeout = v
		return nil
	},
}

func checkDuration(v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	if d <= 0 {
		return fmt.Errorf("must be positive, got %s", v)
	}
	return nil
}

// Set validates and stores a single key. An empty value resets the key to
// its default.
func (c *Config) Set(key, value string) error {
	set, ok := setters[key]
	if !ok {
		return fmt.Errorf("unknown config key %q (valid: %s)", key, strings.Join(Keys(), ", "))
	}
	return set(c, strings.TrimSpace(value))
}

// Get returns the raw file value of key, or "" when unset.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "api_url":
		return c.APIURL, nil
	case "offline":
		if c.Offline == nil {
			return "", nil
		}
		return strconv.FormatBool(*c.Offline), nil
	case "sync_interval":
		return c.SyncInterval, nil
	case "http_timeout":
		return c.HTTPTimeout, nil
	}
	return "", fmt.Errorf("unknown config key %q (valid: %s)", key, strings.Join(Keys(), ", "))
}

// Effective returns the resolved value of key as a display string.
func (s *Settings) Effective(key string) (string, error) {
	switch key {
	case "api_url":
		return s.APIURL, nil
	case "offline":
		return strconv.FormatBool(s.Offline), nil
	case "sync_interval":
		return s.SyncInterval.String(), nil
	case "http_timeout":
		return s.HTTPTimeout.String(), nil
	}
	return "", fmt.Errorf("unknown config key %q (valid: %s)", key, strings.Join(Keys(), ", "))
}

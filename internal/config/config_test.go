package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeTestConfig points HOME at a temp dir holding ~/.config/pinmap/config.json.
func writeTestConfig(t *testing.T, cfg *Config) {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	if cfg == nil {
		return
	}
	dir := filepath.Join(tmpDir, ".config", "pinmap")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, configFile), data, 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func clearEnv(t *testing.T) {
	for _, k := range []string{EnvAPIURL, EnvOffline, EnvSyncInterval, EnvHTTPTimeout} {
		t.Setenv(k, "")
	}
}

func boolPtr(b bool) *bool { return &b }

func TestResolveDefaults(t *testing.T) {
	writeTestConfig(t, nil)
	clearEnv(t)

	s, err := Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if s.APIURL != DefaultAPIURL || s.Offline || s.SyncInterval != DefaultSyncInterval || s.HTTPTimeout != DefaultHTTPTimeout {
		t.Fatalf("defaults: got %+v", s)
	}
}

func TestResolveFromFile(t *testing.T) {
	writeTestConfig(t, &Config{
		APIURL:       "https://maps.example.com",
		Offline:      boolPtr(true),
		SyncInterval: "2m",
		HTTPTimeout:  "3s",
	})
	clearEnv(t)

	s, err := Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if s.APIURL != "https://maps.example.com" {
		t.Errorf("APIURL: got %q", s.APIURL)
	}
	if !s.Offline {
		t.Error("Offline: want true from file")
	}
	if s.SyncInterval != 2*time.Minute {
		t.Errorf("SyncInterval: got %v, want 2m", s.SyncInterval)
	}
	if s.HTTPTimeout != 3*time.Second {
		t.Errorf("HTTPTimeout: got %v, want 3s", s.HTTPTimeout)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	writeTestConfig(t, &Config{
		APIURL:       "https://maps.example.com",
		Offline:      boolPtr(true),
		SyncInterval: "2m",
	})
	t.Setenv(EnvAPIURL, "http://127.0.0.1:9999")
	t.Setenv(EnvOffline, "false")
	t.Setenv(EnvSyncInterval, "5s")
	t.Setenv(EnvHTTPTimeout, "")

	s, err := Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if s.APIURL != "http://127.0.0.1:9999" || s.Offline || s.SyncInterval != 5*time.Second {
		t.Fatalf("env should win: got %+v", s)
	}
}

func TestInvalidDurationsFallThrough(t *testing.T) {
	writeTestConfig(t, &Config{SyncInterval: "soon"})
	clearEnv(t)
	t.Setenv(EnvHTTPTimeout, "-1s")

	s, err := Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if s.SyncInterval != DefaultSyncInterval {
		t.Errorf("SyncInterval: got %v, want default", s.SyncInterval)
	}
	if s.HTTPTimeout != DefaultHTTPTimeout {
		t.Errorf("HTTPTimeout: got %v, want default", s.HTTPTimeout)
	}
}

func TestSetGetSaveRoundTrip(t *testing.T) {
	writeTestConfig(t, nil)
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Set("api_url", "https://maps.example.com/"); err != nil {
		t.Fatalf("Set api_url: %v", err)
	}
	if err := cfg.Set("offline", "true"); err != nil {
		t.Fatalf("Set offline: %v", err)
	}
	if err := cfg.Set("sync_interval", "1m"); err != nil {
		t.Fatalf("Set sync_interval: %v", err)
	}
	if err := Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if v, _ := loaded.Get("api_url"); v != "https://maps.example.com" {
		t.Errorf("api_url: got %q", v)
	}
	if v, _ := loaded.Get("offline"); v != "true" {
		t.Errorf("offline: got %q", v)
	}
	s, _ := Resolve()
	if v, _ := s.Effective("sync_interval"); v != "1m0s" {
		t.Errorf("effective sync_interval: got %q", v)
	}

	// reset to default
	if err := loaded.Set("offline", ""); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if loaded.Offline != nil {
		t.Error("empty value should clear the key")
	}
}

func TestSetRejectsBadValues(t *testing.T) {
	cfg := &Config{}
	tests := []struct {
		key, value string
	}{
		{"api_url", "ftp://example.com"},
		{"api_url", "not a url"},
		{"offline", "maybe"},
		{"sync_interval", "fast"},
		{"http_timeout", "0s"},
		{"nope", "x"},
	}
	for _, tc := range tests {
		if err := cfg.Set(tc.key, tc.value); err == nil {
			t.Errorf("Set(%q, %q): expected error", tc.key, tc.value)
		}
	}
	if _, err := cfg.Get("nope"); err == nil {
		t.Error("Get unknown key: expected error")
	}
}

func TestKeysSorted(t *testing.T) {
	keys := Keys()
	want := []string{"api_url", "http_timeout", "offline", "sync_interval"}
	if len(keys) != len(want) {
		t.Fatalf("Keys: got %v", keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("Keys: got %v, want %v", keys, want)
		}
	}
}

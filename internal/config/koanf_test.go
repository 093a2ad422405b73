// Malrec - MyAnimeList Rating Crawler and Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/malrec

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestDefaultConfig verifies that defaultConfig() returns the documented defaults
func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.MAL.LimitPerUser != 128 {
		t.Errorf("MAL.LimitPerUser = %d, want 128", cfg.MAL.LimitPerUser)
	}
	if cfg.Backoff.Initial != time.Second {
		t.Errorf("Backoff.Initial = %v, want 1s", cfg.Backoff.Initial)
	}
	if cfg.Backoff.Multiplier != 2 {
		t.Errorf("Backoff.Multiplier = %v, want 2", cfg.Backoff.Multiplier)
	}
	if cfg.Backoff.Max != 60*time.Second {
		t.Errorf("Backoff.Max = %v, want 60s", cfg.Backoff.Max)
	}
	if cfg.Crawl.Concurrency != 4 {
		t.Errorf("Crawl.Concurrency = %d, want 4", cfg.Crawl.Concurrency)
	}
	if cfg.Recommend.TopN != 3 {
		t.Errorf("Recommend.TopN = %d, want 3", cfg.Recommend.TopN)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

// TestLoadWithKoanf_EnvOverrides verifies environment variables override defaults
func TestLoadWithKoanf_EnvOverrides(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("MAL_CLIENT_ID", "abc123")
	t.Setenv("CRAWL_CONCURRENCY", "8")
	t.Setenv("CRAWL_CHECKPOINT_INTERVAL", "25")
	t.Setenv("BACKOFF_MAX", "2m")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("UNRELATED_VARIABLE", "ignored")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.MAL.ClientID != "abc123" {
		t.Errorf("MAL.ClientID = %q, want abc123", cfg.MAL.ClientID)
	}
	if cfg.Crawl.Concurrency != 8 {
		t.Errorf("Crawl.Concurrency = %d, want 8", cfg.Crawl.Concurrency)
	}
	if cfg.Crawl.CheckpointInterval != 25 {
		t.Errorf("Crawl.CheckpointInterval = %d, want 25", cfg.Crawl.CheckpointInterval)
	}
	if cfg.Backoff.Max != 2*time.Minute {
		t.Errorf("Backoff.Max = %v, want 2m", cfg.Backoff.Max)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

// TestLoadWithKoanf_ConfigFile verifies YAML values sit between defaults and env
func TestLoadWithKoanf_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
crawl:
  concurrency: 2
  min_list_length: 20
store:
  path: /tmp/malrec-store
recommend:
  top_n: 10
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("RECOMMEND_TOP_N", "5")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Crawl.Concurrency != 2 {
		t.Errorf("Crawl.Concurrency = %d, want 2 from file", cfg.Crawl.Concurrency)
	}
	if cfg.Crawl.MinListLength != 20 {
		t.Errorf("Crawl.MinListLength = %d, want 20 from file", cfg.Crawl.MinListLength)
	}
	if cfg.Store.Path != "/tmp/malrec-store" {
		t.Errorf("Store.Path = %q, want /tmp/malrec-store", cfg.Store.Path)
	}
	if cfg.Recommend.TopN != 5 {
		t.Errorf("Recommend.TopN = %d, want 5 from env", cfg.Recommend.TopN)
	}
	// Untouched values keep their defaults
	if cfg.Backoff.Initial != time.Second {
		t.Errorf("Backoff.Initial = %v, want default 1s", cfg.Backoff.Initial)
	}
}

func TestLoadWithKoanf_InvalidValue(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("CRAWL_CONCURRENCY", "0")

	if _, err := LoadWithKoanf(); err == nil {
		t.Fatal("expected validation error for zero concurrency")
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"MAL_CLIENT_ID", "mal.client_id"},
		{"CRAWL_MIN_LIST_LENGTH", "crawl.min_list_length"},
		{"HTTP_PORT", "server.port"},
		{"STORE_PATH", "store.path"},
		{"PATH", ""},
		{"HOME", ""},
	}
	for _, tt := range tests {
		if got := envTransformFunc(tt.key); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestResolveClientID(t *testing.T) {
	dir := t.TempDir()
	idFile := filepath.Join(dir, "client_id.txt")
	if err := os.WriteFile(idFile, []byte("  from-file\n"), 0o600); err != nil {
		t.Fatalf("write client id: %v", err)
	}
	emptyFile := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(emptyFile, []byte("\n"), 0o600); err != nil {
		t.Fatalf("write empty file: %v", err)
	}

	tests := []struct {
		name    string
		cfg     MALConfig
		want    string
		wantErr bool
	}{
		{"direct value wins", MALConfig{ClientID: "direct", ClientIDFile: idFile}, "direct", false},
		{"file is trimmed", MALConfig{ClientIDFile: idFile}, "from-file", false},
		{"empty file", MALConfig{ClientIDFile: emptyFile}, "", true},
		{"missing file", MALConfig{ClientIDFile: filepath.Join(dir, "nope")}, "", true},
		{"nothing configured", MALConfig{}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.ResolveClientID()
			if (err != nil) != tt.wantErr {
				t.Fatalf("ResolveClientID() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ResolveClientID() = %q, want %q", got, tt.want)
			}
		})
	}
}

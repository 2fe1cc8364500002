package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatch_ReloadsOnFileWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json5")
	if err := os.WriteFile(path, []byte(`{agent: {binary: "first"}}`), 0o644); err != nil {
		t.Fatalf("write initial config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	stop := make(chan struct{})
	defer close(stop)
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := Watch(path, cfg, logger, stop); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	if err := os.WriteFile(path, []byte(`{agent: {binary: "second"}}`), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cfg.Snapshot().Agent.Binary == "second" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("config not reloaded in time, Agent.Binary = %q", cfg.Snapshot().Agent.Binary)
}

func TestWatch_KeepsPreviousConfigOnReloadFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json5")
	if err := os.WriteFile(path, []byte(`{agent: {binary: "good"}}`), 0o644); err != nil {
		t.Fatalf("write initial config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	stop := make(chan struct{})
	defer close(stop)
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := Watch(path, cfg, logger, stop); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	if err := os.WriteFile(path, []byte(`{not valid json5`), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	// Give the watcher time to process the event and fail the reload;
	// the config must still read the last-good value throughout.
	time.Sleep(300 * time.Millisecond)
	if got := cfg.Snapshot().Agent.Binary; got != "good" {
		t.Errorf("Agent.Binary = %q, want unchanged %q after a failed reload", got, "good")
	}
}

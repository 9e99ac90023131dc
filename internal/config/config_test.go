package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithNoFileReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DefaultParallelism != 1 {
		t.Fatalf("expected default_parallelism 1, got %d", cfg.DefaultParallelism)
	}
	if cfg.ShutdownGrace != 10*time.Second {
		t.Fatalf("expected shutdown_grace 10s, got %s", cfg.ShutdownGrace)
	}
	if cfg.Daemon.HTTPBind != "" {
		t.Fatalf("expected http_bind disabled by default, got %q", cfg.Daemon.HTTPBind)
	}
	if cfg.Daemon.Bind == "" {
		t.Fatalf("expected a non-empty default socket bind")
	}
}

func TestLoadMissingExplicitPathIsNotAnError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yml"))
	if err != nil {
		t.Fatalf("expected a missing explicit config path to fall back to defaults, got %v", err)
	}
}

func TestLoadOverlaysFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pueue.yml")
	contents := "default_parallelism: 4\ndaemon:\n  bind: /tmp/custom.socket\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DefaultParallelism != 4 {
		t.Fatalf("expected overridden default_parallelism 4, got %d", cfg.DefaultParallelism)
	}
	if cfg.Daemon.Bind != "/tmp/custom.socket" {
		t.Fatalf("expected overridden bind, got %q", cfg.Daemon.Bind)
	}
	// Unset keys still fall back to their defaults.
	if cfg.ShutdownGrace != 10*time.Second {
		t.Fatalf("expected shutdown_grace to keep its default, got %s", cfg.ShutdownGrace)
	}
}

func TestLoadMalformedFileIsAnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pueue.yml")
	if err := os.WriteFile(path, []byte("not: [valid: yaml"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected malformed config file to return an error")
	}
}

func TestEnvironmentOverridesDefaults(t *testing.T) {
	t.Setenv("PUEUE_DEFAULT_PARALLELISM", "7")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DefaultParallelism != 7 {
		t.Fatalf("expected env override to win, got %d", cfg.DefaultParallelism)
	}
}

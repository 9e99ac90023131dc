// Package config loads the daemon and client's settings from pueue.yml plus
// PUEUE_-prefixed environment overrides, matching spec.md §6's
// backward-compatible defaults-fill contract: every recognized key has a
// default, an absent file is not an error, and a present-but-malformed one
// is.
//
// Grounded on firestige-Otus/internal/config (viper layered-config idiom:
// SetDefault-per-key, AutomaticEnv, mapstructure tags) — the teacher itself
// reads bare env vars via os.Getenv, so this package enriches from the rest
// of the example pack rather than following agentic-shell's own way.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"pueued/internal/pathutil"
)

// Config is the full set of recognized settings (SPEC_FULL.md §4.9).
type Config struct {
	DefaultParallelism int           `mapstructure:"default_parallelism"`
	Daemon             DaemonConfig  `mapstructure:"daemon"`
	ShutdownGrace      time.Duration `mapstructure:"shutdown_grace"`
	LogDir             string        `mapstructure:"log_dir"`
	Callback           string        `mapstructure:"callback"`
	PueueDirectory     string        `mapstructure:"pueue_directory"`
}

// DaemonConfig groups the settings only the daemon process consults.
type DaemonConfig struct {
	Bind     string `mapstructure:"bind"`
	HTTPBind string `mapstructure:"http_bind"`
}

// Load reads path (if present) layered under defaults and PUEUE_ environment
// overrides. A missing file is not an error; a malformed one is.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PUEUE")
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound && !os.IsNotExist(err) {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.PueueDirectory = pathutil.ExpandHome(cfg.PueueDirectory)
	cfg.LogDir = pathutil.ExpandHome(cfg.LogDir)
	cfg.Daemon.Bind = pathutil.ExpandHome(cfg.Daemon.Bind)
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()
	pueueDir := filepath.Join(home, ".pueue")

	defaultSocket := filepath.Join(pueueDir, "pueue.socket")
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		defaultSocket = filepath.Join(runtimeDir, "pueue", "pueue.socket")
	}

	v.SetDefault("default_parallelism", 1)
	v.SetDefault("daemon.bind", defaultSocket)
	v.SetDefault("daemon.http_bind", "")
	v.SetDefault("shutdown_grace", 10*time.Second)
	v.SetDefault("log_dir", filepath.Join(pueueDir, "task_logs"))
	v.SetDefault("callback", "")
	v.SetDefault("pueue_directory", pueueDir)
}

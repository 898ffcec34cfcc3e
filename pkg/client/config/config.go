// Package config loads the CLI's persisted configuration from
// ~/.cartel/config.toml: the daemon URL to talk to and an optional
// pager command, with a $CARTEL_PAGER environment override.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	// DefaultDaemonURL is used when no config file overrides it.
	DefaultDaemonURL = "http://localhost:8000"
	defaultPager     = "less +F"
)

// Config is the CLI's persisted configuration.
type Config struct {
	DaemonURL string `toml:"daemon_url"`
	PagerCmd  string `toml:"pager_cmd,omitempty"`
}

// Dir returns ~/.cartel.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cartel"), nil
}

// Load reads ~/.cartel/config.toml, falling back to defaults for any
// field it doesn't set. A missing config file is not an error.
func Load() (*Config, error) {
	cfg := &Config{DaemonURL: DefaultDaemonURL, PagerCmd: pagerFromEnv()}

	dir, err := Dir()
	if err != nil {
		return cfg, nil
	}
	path := filepath.Join(dir, "config.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, nil
	}

	var onDisk Config
	if err := toml.Unmarshal(data, &onDisk); err != nil {
		return nil, err
	}
	if onDisk.DaemonURL != "" {
		cfg.DaemonURL = onDisk.DaemonURL
	}
	if onDisk.PagerCmd != "" {
		cfg.PagerCmd = onDisk.PagerCmd
	}
	return cfg, nil
}

// Save persists cfg to ~/.cartel/config.toml.
func Save(cfg *Config) error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "config.toml"), data, 0o644)
}

// PagerArgs splits the pager command into argv form.
func (c *Config) PagerArgs() []string {
	if c.PagerCmd == "" {
		return strings.Fields(defaultPager)
	}
	return strings.Fields(c.PagerCmd)
}

func pagerFromEnv() string {
	if p := os.Getenv("CARTEL_PAGER"); p != "" {
		return p
	}
	return defaultPager
}

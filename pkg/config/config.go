// Package config loads the watcher configuration: defaults, then the YAML
// file, then environment overrides.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is the full watcher configuration.
type Config struct {
	// BaseURL is the root of the cookie-authenticated service.
	BaseURL string `yaml:"base_url" env:"SESSIONDAWG_BASE_URL"`

	// ProbePath answers 200 with a user payload when the session is valid.
	ProbePath string `yaml:"probe_path" env:"SESSIONDAWG_PROBE_PATH"`
	// CsrfFetchPath is a benign GET that makes the server set the csrf cookie.
	CsrfFetchPath string `yaml:"csrf_fetch_path" env:"SESSIONDAWG_CSRF_FETCH_PATH"`

	Breaker BreakerConfig `yaml:"breaker"`

	// NavCooldownMS suppresses redirects for this long after a navigation.
	NavCooldownMS int `yaml:"nav_cooldown_ms" env:"SESSIONDAWG_NAV_COOLDOWN_MS"`
	// RedirectCooldownMS is the minimum spacing between login redirects.
	RedirectCooldownMS int `yaml:"redirect_cooldown_ms" env:"SESSIONDAWG_REDIRECT_COOLDOWN_MS"`

	LoginPath   string `yaml:"login_path" env:"SESSIONDAWG_LOGIN_PATH"`
	NoStorePath string `yaml:"no_store_path" env:"SESSIONDAWG_NO_STORE_PATH"`

	// StorePath is the SQLite file holding cross-restart markers. Empty
	// selects an in-memory store.
	StorePath string `yaml:"store_path" env:"SESSIONDAWG_STORE_PATH"`

	// WatchIntervalMS is the base spacing of session re-checks.
	WatchIntervalMS int `yaml:"watch_interval_ms" env:"SESSIONDAWG_WATCH_INTERVAL_MS"`

	Log LogConfig `yaml:"log"`
}

// BreakerConfig configures probe failure accumulation.
type BreakerConfig struct {
	Threshold  int `yaml:"threshold" env:"SESSIONDAWG_BREAKER_THRESHOLD"`
	CooldownMS int `yaml:"cooldown_ms" env:"SESSIONDAWG_BREAKER_COOLDOWN_MS"`
}

// LogConfig selects log level and destinations.
type LogConfig struct {
	Level  string   `yaml:"level" env:"SESSIONDAWG_LOG_LEVEL"`
	Writer []string `yaml:"writer" env:"SESSIONDAWG_LOG_WRITER"`
	File   string   `yaml:"file" env:"SESSIONDAWG_LOG_FILE"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		BaseURL:            "http://127.0.0.1:8080",
		ProbePath:          "/api/auth/user",
		CsrfFetchPath:      "/api/auth/csrf",
		Breaker:            BreakerConfig{Threshold: 5, CooldownMS: 30000},
		NavCooldownMS:      1500,
		RedirectCooldownMS: 3000,
		LoginPath:          "/login",
		NoStorePath:        "/private",
		StorePath:          "sessiondawg.sqlite3",
		WatchIntervalMS:    15000,
		Log: LogConfig{
			Level:  "info",
			Writer: []string{"console"},
			File:   "sessiondawg.log",
		},
	}
}

// Load reads path (when non-empty) over the defaults, then applies
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base_url is required")
	}
	return cfg, nil
}

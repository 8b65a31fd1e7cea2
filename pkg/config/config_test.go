package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/api/auth/user", cfg.ProbePath)
	assert.Equal(t, 5, cfg.Breaker.Threshold)
	assert.Equal(t, 30000, cfg.Breaker.CooldownMS)
	assert.Equal(t, 3000, cfg.RedirectCooldownMS)
	assert.Equal(t, "/private", cfg.NoStorePath)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
base_url: https://mail.example.net
breaker:
  threshold: 7
log:
  level: debug
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://mail.example.net", cfg.BaseURL)
	assert.Equal(t, 7, cfg.Breaker.Threshold)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Untouched keys keep their defaults.
	assert.Equal(t, 30000, cfg.Breaker.CooldownMS)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_url: https://file.example.net\n"), 0o600))
	t.Setenv("SESSIONDAWG_BASE_URL", "https://env.example.net")
	t.Setenv("SESSIONDAWG_BREAKER_THRESHOLD", "9")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.net", cfg.BaseURL)
	assert.Equal(t, 9, cfg.Breaker.Threshold)
}

func TestMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "ctrlbx", cfg.ServiceName)
	assert.Equal(t, 30, cfg.Backend.Timeout)
	assert.Equal(t, uint(1), cfg.Backend.ReadAttempts)
	assert.Equal(t, "file", cfg.Storage.Driver)
	assert.NotEmpty(t, cfg.Storage.Path)
	assert.Equal(t, "web", cfg.Session.Profile)
	assert.Equal(t, 5, cfg.UI.OfflineThresholdMin)
}

func TestLoadYAMLAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backend:
  url: https://script.google.com/macros/s/abc/exec
  read_attempts: 3
session:
  profile: mobile
`), 0o600))

	t.Setenv("CTRLBX_UI_OFFLINE_THRESHOLD_MIN", "10")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://script.google.com/macros/s/abc/exec", cfg.Backend.URL)
	assert.Equal(t, uint(3), cfg.Backend.ReadAttempts)
	assert.Equal(t, "mobile", cfg.Session.Profile)
	assert.Equal(t, 10, cfg.UI.OfflineThresholdMin)
}

func TestLoadRejectsUnknownProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session:\n  profile: kiosk\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

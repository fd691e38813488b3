package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.True(t, cfg.UI.ConfirmDelete)
}

func TestLoadFromOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[storage]
backend = "badger"
path = "~/contacts-data"

[ui]
confirm_delete = false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	home, _ := os.UserHomeDir()
	assert.Equal(t, "badger", cfg.Storage.Backend)
	assert.Equal(t, filepath.Join(home, "contacts-data"), cfg.StoragePath())
	assert.Equal(t, "state", cfg.Storage.Key, "unset keys keep their defaults")
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.UI.ConfirmDelete)
}

func TestLoadFromRejectsBadToml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[storage\nbackend="), 0644))

	_, err := LoadFrom(path)
	assert.Error(t, err)
}

func TestStoragePathDefaultsPerBackend(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "contacts.db", filepath.Base(cfg.StoragePath()))

	cfg.Storage.Backend = "file"
	assert.Equal(t, "data", filepath.Base(cfg.StoragePath()))

	cfg.Storage.Backend = "memory"
	assert.Empty(t, cfg.StoragePath())
}

func TestSaveToThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := Default()
	cfg.Storage.Backend = "file"
	cfg.Log.Level = "debug"

	require.NoError(t, cfg.SaveTo(path))

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

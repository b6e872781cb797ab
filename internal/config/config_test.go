package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, 3, cfg.Activation.Steps)
	require.Equal(t, "sexpr", cfg.Policy.Backend)
	require.Equal(t, 20, cfg.Policy.AttributionWindow)
	require.Equal(t, 256, cfg.Activation.EdgeCap)
}

func TestConfig_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := DefaultConfig()
	cfg.Store.StateDir = "/var/lib/memengine"
	cfg.Manifest.TopCommunities = 7

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/memengine", loaded.Store.StateDir)
	require.Equal(t, 7, loaded.Manifest.TopCommunities)
}

func TestConfig_LoadMissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, DefaultConfig().Activation, cfg.Activation)
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("MEMORY_STATE_DIR", "/tmp/env-state")
	t.Setenv("MEMORY_MANIFEST_TTL_SEC", "120")
	t.Setenv("MEMORY_ACTIVATION_STEPS", "5")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "/tmp/env-state", cfg.Store.StateDir)
	require.Equal(t, int64(120), cfg.Manifest.TTLSeconds)
	require.Equal(t, 5, cfg.Activation.Steps)
}

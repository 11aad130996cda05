package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"bitcaskd/internal/config"

	"github.com/stretchr/testify/require"
)

func TestPresets(t *testing.T) {
	small, err := config.Preset("small")
	require.NoError(t, err)
	require.Equal(t, 8, small.NumShards)
	require.Equal(t, int64(30*1024*1024), small.MaxLogFileSize)

	standard, err := config.Preset("standard")
	require.NoError(t, err)
	require.Equal(t, 32, standard.NumShards)
	require.Equal(t, int64(256*1024*1024), standard.MaxLogFileSize)

	xlarge, err := config.Preset("xlarge")
	require.NoError(t, err)
	require.Equal(t, 128, xlarge.NumShards)
	require.Equal(t, int64(512*1024*1024), xlarge.MaxLogFileSize)

	_, err = config.Preset("nonexistent")
	require.Error(t, err)
}

func TestDefaultIsStandard(t *testing.T) {
	require.Equal(t, config.Default(), mustPreset(t, "standard"))
}

func TestLoadLayersOverPreset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"preset":"small","numShards":64}`), 0644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, 64, cfg.NumShards)                         // overridden
	require.Equal(t, int64(30*1024*1024), cfg.MaxLogFileSize) // inherited from "small"
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0644))

	_, err := config.Load(path)
	require.Error(t, err)
}

func TestLoadRejectsNonPositiveOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"numShards":0}`), 0644))

	_, err := config.Load(path)
	require.Error(t, err)
}

func mustPreset(t *testing.T, name string) config.Config {
	cfg, err := config.Preset(name)
	require.NoError(t, err)
	return cfg
}

// Package config resolves engine configuration from built-in presets and an
// optional JSON file on disk.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config is fixed at Open and is not persisted by the engine itself.
type Config struct {
	NumShards      int
	MaxLogFileSize int64
	Preallocate    bool
	SyncWrites     bool
}

const (
	defaultPreset = "standard"
)

var presets = map[string]Config{
	"small": {
		NumShards:      8,
		MaxLogFileSize: 30 * 1024 * 1024,
		SyncWrites:     true,
	},
	"standard": {
		NumShards:      32,
		MaxLogFileSize: 256 * 1024 * 1024,
		SyncWrites:     true,
	},
	"xlarge": {
		NumShards:      128,
		MaxLogFileSize: 512 * 1024 * 1024,
		SyncWrites:     true,
	},
}

// Preset returns one of the named built-in configurations: small, standard, xlarge.
func Preset(name string) (Config, error) {
	cfg, ok := presets[name]
	if !ok {
		return Config{}, fmt.Errorf("config: unknown preset %q", name)
	}
	return cfg, nil
}

// Default returns the standard preset.
func Default() Config {
	cfg, _ := Preset(defaultPreset)
	return cfg
}

// fileConfig mirrors the optional on-disk JSON shape. Every field is a
// pointer so that an absent field falls back to the preset instead of
// zeroing it out.
type fileConfig struct {
	Preset         *string `json:"preset"`
	NumShards      *int    `json:"numShards"`
	MaxLogFileSize *int64  `json:"maxLogFileSize"`
	Preallocate    *bool   `json:"preallocate"`
	SyncWrites     *bool   `json:"syncWrites"`
}

// Load reads a JSON config file at path and layers it over the named
// preset (or "standard" if the file names none). A malformed file is
// reported, never silently ignored.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var fc fileConfig
	if err := json.Unmarshal(b, &fc); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	presetName := defaultPreset
	if fc.Preset != nil {
		presetName = *fc.Preset
	}
	cfg, err := Preset(presetName)
	if err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}

	if fc.NumShards != nil {
		cfg.NumShards = *fc.NumShards
	}
	if fc.MaxLogFileSize != nil {
		cfg.MaxLogFileSize = *fc.MaxLogFileSize
	}
	if fc.Preallocate != nil {
		cfg.Preallocate = *fc.Preallocate
	}
	if fc.SyncWrites != nil {
		cfg.SyncWrites = *fc.SyncWrites
	}

	if cfg.NumShards <= 0 {
		return Config{}, fmt.Errorf("config: %s: numShards must be positive", path)
	}
	if cfg.MaxLogFileSize <= 0 {
		return Config{}, fmt.Errorf("config: %s: maxLogFileSize must be positive", path)
	}

	return cfg, nil
}

// Package config provides the engine's configuration: defaults, TOML file
// loading, and live reload through a file watcher.
package config

import (
	"fmt"
	"io"
	"os"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all tunable engine settings.
type Config struct {
	History    History    `toml:"history"`
	Clipboard  Clipboard  `toml:"clipboard"`
	Validation Validation `toml:"validation"`
	State      State      `toml:"state"`
}

// History configures the undo/redo engine.
type History struct {
	// MaxEntries bounds the undo stack.
	MaxEntries int `toml:"max_entries"`
}

// Clipboard configures paste behavior.
type Clipboard struct {
	// OffsetX and OffsetY are the positional delta per paste.
	OffsetX float64 `toml:"offset_x"`
	OffsetY float64 `toml:"offset_y"`
}

// Validation configures the validation engine.
type Validation struct {
	// Auto re-runs validation on every structural change.
	Auto bool `toml:"auto"`
}

// State configures the state tree.
type State struct {
	// ChangeLogSize is the ring buffer capacity of the change log.
	ChangeLogSize int `toml:"change_log_size"`
}

// Default returns the engine defaults.
func Default() Config {
	return Config{
		History:    History{MaxEntries: 100},
		Clipboard:  Clipboard{OffsetX: 20, OffsetY: 20},
		Validation: Validation{Auto: false},
		State:      State{ChangeLogSize: 50},
	}
}

// Load reads a TOML config file, layered over the defaults. A missing file
// is not an error; it yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg.normalized(), nil
}

// LoadFromReader reads TOML config from an io.Reader, layered over the
// defaults.
func LoadFromReader(r io.Reader) (Config, error) {
	cfg := Default()

	data, err := io.ReadAll(r)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("parsing config: %w", err)
	}
	return cfg.normalized(), nil
}

// normalized clamps nonsense values back to the defaults.
func (c Config) normalized() Config {
	def := Default()
	if c.History.MaxEntries <= 0 {
		c.History.MaxEntries = def.History.MaxEntries
	}
	if c.State.ChangeLogSize <= 0 {
		c.State.ChangeLogSize = def.State.ChangeLogSize
	}
	return c
}

// Package config reads ganttloom.toml.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/joshharrison/ganttloom/internal/dates"
)

// DefaultPath is the config file looked up in the working directory.
const DefaultPath = "ganttloom.toml"

type Config struct {
	Schedule ScheduleConfig `toml:"schedule"`
	Server   ServerConfig   `toml:"server"`
	Log      LogConfig      `toml:"log"`
	Claude   ClaudeConfig   `toml:"claude"`
}

type ScheduleConfig struct {
	Today *dates.Date `toml:"today"` // "YYYY-MM-DD"; nil means the document or system date
	Mode  string      `toml:"mode"`
	File  string      `toml:"file"` // project document
	Path  string      `toml:"path"` // gjson path inside File
	DB    string      `toml:"db"`   // SQLite database; used instead of File when set
}

type ServerConfig struct {
	Addr       string  `toml:"addr"`
	RatePerSec float64 `toml:"rate_per_sec"`
	Burst      int     `toml:"burst"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ClaudeConfig struct {
	Model string `toml:"model"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Schedule: ScheduleConfig{Mode: "full", File: "project.json"},
		Server:   ServerConfig{Addr: "127.0.0.1:7420", RatePerSec: 20, Burst: 40},
		Log:      LogConfig{Level: "info", Format: "console"},
		Claude:   ClaudeConfig{Model: "claude-sonnet-4-5"},
	}
}

// Load reads path on top of the defaults. A missing file is not an error
// unless required is set.
func Load(path string, required bool) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("parsing config %s: unknown key %s", path, undecoded[0])
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later with a less
// helpful message.
func (c Config) Validate() error {
	switch c.Schedule.Mode {
	case "", "full", "cascade":
	default:
		return fmt.Errorf("schedule.mode must be full or cascade, got %q", c.Schedule.Mode)
	}
	if c.Server.RatePerSec < 0 {
		return errors.New("server.rate_per_sec must not be negative")
	}
	if c.Server.Burst < 0 {
		return errors.New("server.burst must not be negative")
	}
	return nil
}

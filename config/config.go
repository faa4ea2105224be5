// Package config holds the project settings of a simulation: the target
// MCU, its clock and how images are loaded.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sarchlab/avrsim/device"
	"github.com/sarchlab/avrsim/emu"
	"github.com/sarchlab/avrsim/loader"
)

// Config is a project's settings, stored as JSON.
type Config struct {
	// MCU names the device descriptor to simulate.
	MCU string `json:"mcu"`

	// ClockHz is the MCU clock frequency.
	ClockHz uint64 `json:"clock_hz"`

	// MaxInstructions stops a run after this many instructions. Zero
	// means no limit.
	MaxInstructions uint64 `json:"max_instructions"`

	// ByteOrder is "big" or "little" and selects how hex payload bytes
	// pair into words.
	ByteOrder string `json:"byte_order"`

	// LenientDecoding keeps undecodable words as data.
	LenientDecoding bool `json:"lenient_decoding"`

	// PollIntervalMs is how often a running driver reports status.
	PollIntervalMs int `json:"poll_interval_ms"`

	// LogLevel is one of trace, debug, info, warn or error.
	LogLevel string `json:"log_level"`
}

// DefaultConfig returns the settings of an ATmega328P at 16 MHz.
func DefaultConfig() *Config {
	return &Config{
		MCU:            "ATmega328P",
		ClockHz:        16_000_000,
		ByteOrder:      loader.BigEndian.String(),
		PollIntervalMs: 100,
		LogLevel:       "info",
	}
}

// LoadConfig loads a Config from a JSON file. Fields absent from the file
// keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	c := DefaultConfig()
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return c, nil
}

// SaveConfig writes the Config to a JSON file.
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the settings against the device table.
func (c *Config) Validate() error {
	if _, err := device.Lookup(c.MCU); err != nil {
		return err
	}
	if c.ClockHz == 0 {
		return fmt.Errorf("clock_hz must be > 0")
	}
	if _, err := loader.ParseByteOrder(c.ByteOrder); err != nil {
		return fmt.Errorf("byte_order: %w", err)
	}
	if c.PollIntervalMs <= 0 {
		return fmt.Errorf("poll_interval_ms must be > 0")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// LoaderOptions returns the hex loader options the settings select.
func (c *Config) LoaderOptions() ([]loader.Option, error) {
	order, err := loader.ParseByteOrder(c.ByteOrder)
	if err != nil {
		return nil, err
	}

	opts := []loader.Option{loader.WithByteOrder(order)}
	if c.LenientDecoding {
		opts = append(opts, loader.WithLenientDecoding())
	}
	return opts, nil
}

// Device looks up the configured MCU.
func (c *Config) Device() (*device.DeviceFile, error) {
	return device.Lookup(c.MCU)
}

// ParseLevel maps a level name to a slog level. "trace" is the emulator's
// per-instruction level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "trace":
		return emu.LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
}

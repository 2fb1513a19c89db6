package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration for the tpscroll daemon.
//
// The config file is the primary configuration surface; flags exist for
// small overrides and environments where a file is awkward. Defaults and
// validation are centralized here so the rest of the code can assume a
// well-formed config.
type Config struct {
	// Input device selection and grabbing
	Input InputConfig `yaml:"input"`

	// Scroll engine configuration
	Scroll ScrollConfig `yaml:"scroll"`

	// IPC socket for the ctl client
	IPC IPCConfig `yaml:"ipc"`

	// State websocket for observers
	StateWS StateWSConfig `yaml:"state_ws"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

type InputConfig struct {
	// Explicit event node paths. When empty, devices are discovered by
	// keyword match against kernel device names.
	Devices  []string `yaml:"devices,omitempty"`
	Keywords []string `yaml:"keywords,omitempty"`

	// Grab takes exclusive access so the desktop does not also see the
	// raw wheel ticks.
	Grab bool `yaml:"grab"`
}

// ScrollConfig is the user-facing engine configuration as represented in
// YAML. Intervals are in milliseconds; conversion to the internal
// seconds-based EngineConfig happens in ToEngineConfig.
type ScrollConfig struct {
	Mode string `yaml:"mode"` // "smooth" or "classic"

	TickHz int `yaml:"tick_hz"`

	MinFeedIntervalMS int `yaml:"min_feed_interval_ms"`
	MaxFeedIntervalMS int `yaml:"max_feed_interval_ms"`
	BufferDrainMS     int `yaml:"buffer_drain_ms"`

	// Max press-to-release time for a middle-button press to count as a
	// click rather than an aborted scroll hold.
	MaxClickMS int `yaml:"max_click_ms"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type StateWSConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a fully-populated Config with defaults.
// Keep this aligned with constants.go defaults and current CLI defaults.
func DefaultConfig() Config {
	return Config{
		Input: InputConfig{
			Keywords: defaultDeviceKeywords,
			Grab:     true,
		},
		Scroll: ScrollConfig{
			Mode:              string(ScrollModeSmooth),
			TickHz:            defaultTickHz,
			MinFeedIntervalMS: defaultMinFeedIntervalMS,
			MaxFeedIntervalMS: defaultMaxFeedIntervalMS,
			BufferDrainMS:     defaultBufferDrainMS,
			MaxClickMS:        defaultMaxClickMS,
		},
		IPC: IPCConfig{
			SocketPath: defaultSocketPath,
		},
		StateWS: StateWSConfig{
			Enabled: false,
			Port:    defaultStateWSPort,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfigFile reads and parses a YAML config file.
//
// Unknown fields are rejected (helps catch typos) via KnownFields(true).
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Ensure there's no trailing garbage (only whitespace/comments are allowed after the document).
	if err := dec.Decode(&struct{}{}); err == nil {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides applies overrides from flags on top of a loaded config.
//
// Flags should pass pointers; each override is only applied if set.
// Keeping the override mechanism separate from flag definitions makes it
// easy to evolve flags without proliferating conditionals.
type FlagOverrides struct {
	Device *string
	Grab   *bool

	Mode   *string
	TickHz *int

	IPCSocketPath *string
	StateWSPort   *int

	LogLevel *string
}

// Apply merges the overrides into cfg. If an override pointer is nil, it
// is ignored; a non-nil pointer is applied even if it holds a zero value.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.Device != nil {
		cfg.Input.Devices = []string{*o.Device}
	}
	if o.Grab != nil {
		cfg.Input.Grab = *o.Grab
	}

	if o.Mode != nil {
		cfg.Scroll.Mode = *o.Mode
	}
	if o.TickHz != nil {
		cfg.Scroll.TickHz = *o.TickHz
	}

	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.StateWSPort != nil {
		cfg.StateWS.Enabled = true
		cfg.StateWS.Port = *o.StateWSPort
	}

	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks config invariants and returns a user-friendly error.
// Intended to be called after defaults + file + overrides are applied.
func (c *Config) Validate() error {
	// Input
	if len(c.Input.Devices) == 0 && len(c.Input.Keywords) == 0 {
		return errors.New("input.devices or input.keywords must be set")
	}
	for i, dev := range c.Input.Devices {
		if dev == "" {
			return fmt.Errorf("input.devices[%d] is empty", i)
		}
	}

	// Scroll
	if _, err := ParseScrollMode(c.Scroll.Mode); err != nil {
		return fmt.Errorf("scroll.mode: %w", err)
	}
	if c.Scroll.TickHz < 30 || c.Scroll.TickHz > 1000 {
		return errors.New("scroll.tick_hz must be between 30 and 1000")
	}
	if c.Scroll.MinFeedIntervalMS <= 0 {
		return errors.New("scroll.min_feed_interval_ms must be > 0")
	}
	if c.Scroll.MaxFeedIntervalMS < c.Scroll.MinFeedIntervalMS {
		return errors.New("scroll.max_feed_interval_ms must be >= scroll.min_feed_interval_ms")
	}
	if c.Scroll.BufferDrainMS <= 0 {
		return errors.New("scroll.buffer_drain_ms must be > 0")
	}
	if c.Scroll.MaxClickMS <= 0 {
		return errors.New("scroll.max_click_ms must be > 0")
	}

	// IPC
	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}

	// State websocket
	if c.StateWS.Enabled && (c.StateWS.Port <= 0 || c.StateWS.Port > 65535) {
		return errors.New("state_ws.port must be between 1 and 65535")
	}

	// Logging
	if c.Logging.Level == "" {
		return errors.New("logging.level must not be empty")
	}

	return nil
}

// ToEngineConfig converts the millisecond-based file config into the
// engine's internal seconds-based config.
func (c *Config) ToEngineConfig() EngineConfig {
	return EngineConfig{
		TickHz:              c.Scroll.TickHz,
		MinFeedInterval:     float64(c.Scroll.MinFeedIntervalMS) / 1000.0,
		MaxFeedInterval:     float64(c.Scroll.MaxFeedIntervalMS) / 1000.0,
		BufferDrainDuration: float64(c.Scroll.BufferDrainMS) / 1000.0,
	}
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}

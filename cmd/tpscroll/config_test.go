package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tpscroll.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

// TestLoadConfigFile_MergesOverDefaults tests that file values override
// defaults field by field while unset sections keep their defaults
func TestLoadConfigFile_MergesOverDefaults(t *testing.T) {
	path := writeTempConfig(t, `
scroll:
  mode: classic
  tick_hz: 60
ipc:
  socket_path: /run/tpscroll.sock
`)

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Scroll.Mode != "classic" || cfg.Scroll.TickHz != 60 {
		t.Errorf("file values not applied: %+v", cfg.Scroll)
	}
	if cfg.IPC.SocketPath != "/run/tpscroll.sock" {
		t.Errorf("unexpected socket path %q", cfg.IPC.SocketPath)
	}
	// Untouched sections keep defaults.
	if cfg.Scroll.MinFeedIntervalMS != defaultMinFeedIntervalMS {
		t.Errorf("expected default min feed interval, got %d", cfg.Scroll.MinFeedIntervalMS)
	}
	if !cfg.Input.Grab {
		t.Error("expected default grab=true")
	}
}

// TestLoadConfigFile_RejectsUnknownFields tests typo detection
func TestLoadConfigFile_RejectsUnknownFields(t *testing.T) {
	path := writeTempConfig(t, `
scroll:
  tick_hzz: 60
`)

	if _, err := LoadConfigFile(path); err == nil {
		t.Error("expected unknown field to be rejected")
	}
}

// TestLoadConfigFile_RejectsTrailingDocument tests multi-document input
func TestLoadConfigFile_RejectsTrailingDocument(t *testing.T) {
	path := writeTempConfig(t, `
scroll:
  tick_hz: 60
---
scroll:
  tick_hz: 90
`)

	_, err := LoadConfigFile(path)
	if err == nil || !strings.Contains(err.Error(), "trailing document") {
		t.Errorf("expected trailing document error, got %v", err)
	}
}

// TestFlagOverrides_Apply tests that only set pointers override
func TestFlagOverrides_Apply(t *testing.T) {
	cfg := DefaultConfig()

	device := "/dev/input/event4"
	tickHz := 90
	FlagOverrides{Device: &device, TickHz: &tickHz}.Apply(&cfg)

	if len(cfg.Input.Devices) != 1 || cfg.Input.Devices[0] != device {
		t.Errorf("device override not applied: %+v", cfg.Input.Devices)
	}
	if cfg.Scroll.TickHz != 90 {
		t.Errorf("tick_hz override not applied: %d", cfg.Scroll.TickHz)
	}
	// Nil pointers leave the config alone.
	if cfg.Scroll.Mode != string(ScrollModeSmooth) {
		t.Errorf("unexpected mode change: %q", cfg.Scroll.Mode)
	}
}

// TestFlagOverrides_StateWSPortEnables tests that setting a port turns
// the websocket on
func TestFlagOverrides_StateWSPortEnables(t *testing.T) {
	cfg := DefaultConfig()
	port := 9000
	FlagOverrides{StateWSPort: &port}.Apply(&cfg)

	if !cfg.StateWS.Enabled || cfg.StateWS.Port != 9000 {
		t.Errorf("expected enabled websocket on port 9000, got %+v", cfg.StateWS)
	}
}

// TestConfigValidate tests the invariants checked after merging
func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"no_input", func(c *Config) { c.Input.Keywords = nil }, "input.devices or input.keywords"},
		{"bad_mode", func(c *Config) { c.Scroll.Mode = "warp" }, "scroll.mode"},
		{"tick_too_low", func(c *Config) { c.Scroll.TickHz = 10 }, "tick_hz"},
		{"inverted_feed_bounds", func(c *Config) {
			c.Scroll.MinFeedIntervalMS = 400
		}, "max_feed_interval_ms"},
		{"zero_drain", func(c *Config) { c.Scroll.BufferDrainMS = 0 }, "buffer_drain_ms"},
		{"empty_socket", func(c *Config) { c.IPC.SocketPath = "" }, "socket_path"},
		{"bad_ws_port", func(c *Config) {
			c.StateWS.Enabled = true
			c.StateWS.Port = 0
		}, "state_ws.port"},
		{"empty_log_level", func(c *Config) { c.Logging.Level = "" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("expected valid config, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

// TestToEngineConfig tests the millisecond to seconds conversion
func TestToEngineConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scroll.TickHz = 60
	cfg.Scroll.MinFeedIntervalMS = 20
	cfg.Scroll.MaxFeedIntervalMS = 400
	cfg.Scroll.BufferDrainMS = 100

	ec := cfg.ToEngineConfig()
	if ec.TickHz != 60 {
		t.Errorf("unexpected TickHz %d", ec.TickHz)
	}
	if !almostEqual(ec.MinFeedInterval, 0.02) || !almostEqual(ec.MaxFeedInterval, 0.4) {
		t.Errorf("unexpected feed bounds: %v %v", ec.MinFeedInterval, ec.MaxFeedInterval)
	}
	if !almostEqual(ec.BufferDrainDuration, 0.1) {
		t.Errorf("unexpected drain duration %v", ec.BufferDrainDuration)
	}
}

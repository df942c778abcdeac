// Package config loads the logger's settings file. Missing file or missing
// fields fall back to defaults; out-of-range values fail loading rather
// than run with silently clamped behaviour.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings is the full YAML-backed configuration for one device.
type Settings struct {
	// Storage
	StorageRoot    string `yaml:"storage_root"`
	KVPath         string `yaml:"kv_path"`
	NetConfigFile  string `yaml:"netconfig_file"`
	RecordPosition bool   `yaml:"record_position"`

	// Sampling
	SampleRateHz uint32 `yaml:"sample_rate_hz"`

	// Core timing (milliseconds)
	TickIntervalMs  int  `yaml:"tick_interval_ms"`
	LongPressMs     int  `yaml:"long_press_ms"`
	IdleTimeoutMs   int  `yaml:"idle_timeout_ms"`
	ScanTimeoutMs   int  `yaml:"scan_timeout_ms"`
	ErrorRecoveryMs int  `yaml:"error_recovery_ms"`
	StatsIntervalMs int  `yaml:"stats_interval_ms"`
	ProbeTimeoutMs  int  `yaml:"probe_timeout_ms"`
	SleepEnabled    bool `yaml:"sleep_enabled"`

	// Peripherals
	I2CBus       string `yaml:"i2c_bus"` // empty = first available
	ButtonIntPin string `yaml:"button_int_pin"`
	GPSPort      string `yaml:"gps_port"`
	GPSBaud      uint   `yaml:"gps_baud"`
}

// Defaults returns the settings used when no file is present.
func Defaults() Settings {
	return Settings{
		StorageRoot:     "/media/m3logger",
		KVPath:          "/var/lib/m3logger/kv.json",
		NetConfigFile:   "netconfig.json",
		SampleRateHz:    100,
		TickIntervalMs:  1,
		LongPressMs:     3000,
		IdleTimeoutMs:   5000,
		ScanTimeoutMs:   30000,
		ErrorRecoveryMs: 60000,
		StatsIntervalMs: 5000,
		ProbeTimeoutMs:  5000,
		SleepEnabled:    true,
		GPSPort:         "",
		GPSBaud:         9600,
	}
}

// Load reads path over the defaults. A missing file returns plain defaults.
func Load(path string) (Settings, error) {
	s := Defaults()
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return s, err
	}
	if err := yaml.Unmarshal(b, &s); err != nil {
		return s, fmt.Errorf("config %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return s, fmt.Errorf("config %s: %w", path, err)
	}
	return s, nil
}

// Validate rejects settings the core cannot run with.
func (s Settings) Validate() error {
	if s.StorageRoot == "" {
		return fmt.Errorf("storage_root must be set")
	}
	if s.SampleRateHz < 1 || s.SampleRateHz > 1000 {
		return fmt.Errorf("sample_rate_hz %d out of range 1..1000", s.SampleRateHz)
	}
	if s.TickIntervalMs < 1 || s.TickIntervalMs > 100 {
		return fmt.Errorf("tick_interval_ms %d out of range 1..100", s.TickIntervalMs)
	}
	if s.LongPressMs < 500 {
		return fmt.Errorf("long_press_ms %d too short", s.LongPressMs)
	}
	if s.IdleTimeoutMs < 1000 {
		return fmt.Errorf("idle_timeout_ms %d too short", s.IdleTimeoutMs)
	}
	if s.ScanTimeoutMs < 1000 {
		return fmt.Errorf("scan_timeout_ms %d too short", s.ScanTimeoutMs)
	}
	return nil
}

func (s Settings) TickInterval() time.Duration  { return time.Duration(s.TickIntervalMs) * time.Millisecond }
func (s Settings) LongPress() time.Duration     { return time.Duration(s.LongPressMs) * time.Millisecond }
func (s Settings) IdleTimeout() time.Duration   { return time.Duration(s.IdleTimeoutMs) * time.Millisecond }
func (s Settings) ScanTimeout() time.Duration   { return time.Duration(s.ScanTimeoutMs) * time.Millisecond }
func (s Settings) ErrorRecovery() time.Duration { return time.Duration(s.ErrorRecoveryMs) * time.Millisecond }
func (s Settings) StatsInterval() time.Duration { return time.Duration(s.StatsIntervalMs) * time.Millisecond }
func (s Settings) ProbeTimeout() time.Duration  { return time.Duration(s.ProbeTimeoutMs) * time.Millisecond }

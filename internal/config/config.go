// Package config provides configuration types, defaults, and the loaders
// for the JSON registry files under ~/.config/i3.
package config

import (
	"time"
)

// Config holds all daemon configuration options (config.yaml, viper keys).
type Config struct {
	// EventRingCapacity bounds the diagnostic event ring.
	EventRingCapacity int `mapstructure:"event_ring_capacity"`

	// HistoryCapacity bounds the in-memory workspace navigation ring.
	HistoryCapacity int `mapstructure:"history_capacity"`

	// AutoSaveKeep is the default number of auto-saved layouts kept per
	// project; a project's own auto_save_keep wins.
	AutoSaveKeep int `mapstructure:"auto_save_keep"`

	// BadgeMinClearAge gates badge clearing on focus, so a badge created
	// on the focused window is not immediately self-cleared.
	BadgeMinClearAge time.Duration `mapstructure:"badge_min_clear_age"`

	// LaunchTimeout is the absolute pending-launch expiry.
	LaunchTimeout time.Duration `mapstructure:"launch_timeout"`

	// CorrelationWindow is the per-launch correlation window.
	CorrelationWindow time.Duration `mapstructure:"correlation_window"`

	// Terminal selects the scratchpad terminal emulator.
	Terminal TerminalConfig `mapstructure:"terminal"`

	// OutputPreferences maps monitor roles to ordered preferred output
	// names (fallback chains).
	OutputPreferences map[string][]string `mapstructure:"output_preferences"`

	// Tracing configures the correlation trace exporter.
	Tracing TracingConfig `mapstructure:"tracing"`
}

// TerminalConfig selects the scratchpad terminal emulator.
type TerminalConfig struct {
	// Preferred is the primary emulator command (e.g. "ghostty").
	Preferred string `mapstructure:"preferred"`
	// Fallback is used when the preferred emulator is not installed.
	Fallback string `mapstructure:"fallback"`
}

// TracingConfig configures the correlation trace exporter.
type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	Exporter     string  `mapstructure:"exporter"` // none, file, stdout, otlp
	FilePath     string  `mapstructure:"file_path"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
}

// Defaults returns the default configuration.
func Defaults() Config {
	return Config{
		EventRingCapacity: 500,
		HistoryCapacity:   100,
		AutoSaveKeep:      10,
		BadgeMinClearAge:  2 * time.Second,
		LaunchTimeout:     5 * time.Second,
		CorrelationWindow: 2 * time.Second,
		Terminal: TerminalConfig{
			Preferred: "ghostty",
			Fallback:  "alacritty",
		},
		OutputPreferences: map[string][]string{},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "file",
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
	}
}

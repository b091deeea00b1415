package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// yamlConfig mirrors Config with yaml tags for default-config writing.
type yamlConfig struct {
	EventRingCapacity int                 `yaml:"event_ring_capacity"`
	HistoryCapacity   int                 `yaml:"history_capacity"`
	AutoSaveKeep      int                 `yaml:"auto_save_keep"`
	BadgeMinClearAge  string              `yaml:"badge_min_clear_age"`
	LaunchTimeout     string              `yaml:"launch_timeout"`
	CorrelationWindow string              `yaml:"correlation_window"`
	Terminal          map[string]string   `yaml:"terminal"`
	OutputPreferences map[string][]string `yaml:"output_preferences"`
	Tracing           map[string]any      `yaml:"tracing"`
}

// WriteDefaultConfig writes a commented default config.yaml when none
// exists. Existing files are never touched.
func WriteDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	d := Defaults()
	yc := yamlConfig{
		EventRingCapacity: d.EventRingCapacity,
		HistoryCapacity:   d.HistoryCapacity,
		AutoSaveKeep:      d.AutoSaveKeep,
		BadgeMinClearAge:  d.BadgeMinClearAge.String(),
		LaunchTimeout:     d.LaunchTimeout.String(),
		CorrelationWindow: d.CorrelationWindow.String(),
		Terminal: map[string]string{
			"preferred": d.Terminal.Preferred,
			"fallback":  d.Terminal.Fallback,
		},
		OutputPreferences: map[string][]string{
			"primary":   {},
			"secondary": {},
			"tertiary":  {},
		},
		Tracing: map[string]any{
			"enabled":       d.Tracing.Enabled,
			"exporter":      d.Tracing.Exporter,
			"otlp_endpoint": d.Tracing.OTLPEndpoint,
			"sample_rate":   d.Tracing.SampleRate,
		},
	}

	data, err := yaml.Marshal(&yc)
	if err != nil {
		return fmt.Errorf("encoding default config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	header := []byte("# i3pm daemon configuration. Values shown are the defaults.\n")
	return os.WriteFile(path, append(header, data...), 0644)
}

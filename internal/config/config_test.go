package config

import (
	"strings"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestFromYAMLOverridesOnTopOfDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte("velocity:\n  min_sample_size: 3\nnudges:\n  max_nudges: 10\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Velocity.MinSampleSize != 3 {
		t.Fatalf("override lost, got %d", cfg.Velocity.MinSampleSize)
	}
	if cfg.Nudges.MaxNudges != 10 {
		t.Fatalf("override lost, got %d", cfg.Nudges.MaxNudges)
	}
	// untouched keys keep their defaults
	if cfg.Priority.TierWeight != 0.25 {
		t.Fatalf("default lost, got %v", cfg.Priority.TierWeight)
	}
	if cfg.Sprint.TargetUtilization != 0.85 {
		t.Fatalf("default lost, got %v", cfg.Sprint.TargetUtilization)
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	cases := []struct {
		name string
		edit func(*Config)
		want string
	}{
		{"weights off", func(c *Config) { c.Priority.TierWeight = 0.5 }, "sum to 1.0"},
		{"bad severity", func(c *Config) { c.Nudges.MinSeverity = "panic" }, "min_severity"},
		{"unordered overalloc", func(c *Config) { c.Conflicts.OverallocHigh = 130 }, "strictly increasing"},
		{"alpha range", func(c *Config) { c.Velocity.SmoothingAlpha = 1.5 }, "smoothing_alpha"},
		{"load cap", func(c *Config) { c.Sprint.PersonLoadCap = 0 }, "person_load_cap"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.edit(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

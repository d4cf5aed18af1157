package config

import (
	"strings"
	"testing"
)

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := defaultConfig().Validate(); err != nil {
		t.Fatalf("default configuration must validate, got %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantMsg string
	}{
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantMsg: "port",
		},
		{
			name:    "unknown environment",
			mutate:  func(c *Config) { c.Server.Environment = "staging" },
			wantMsg: "environment",
		},
		{
			name:    "empty store path",
			mutate:  func(c *Config) { c.Store.Path = "" },
			wantMsg: "path",
		},
		{
			name:    "zero embed rate limit",
			mutate:  func(c *Config) { c.Embedding.RateLimitPerSecond = 0 },
			wantMsg: "rate_limit_per_second",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Fatalf("expected the message to name %q, got %q", tt.wantMsg, err.Error())
			}
		})
	}
}

func TestValidateRuntimeDefaultsCrossField(t *testing.T) {
	r := RuntimeDefaults{DedupeWindowSeconds: 60, TrendDefaultDays: 200, TrendMaxDays: 100}
	err := ValidateRuntimeDefaults(r)
	if err == nil {
		t.Fatal("expected default > max to be rejected")
	}
	if !strings.Contains(err.Error(), "trend_default_days") {
		t.Fatalf("expected the message to name the offending field, got %q", err.Error())
	}

	r = RuntimeDefaults{DedupeWindowSeconds: 60, TrendDefaultDays: 30, TrendMaxDays: 180}
	if err := ValidateRuntimeDefaults(r); err != nil {
		t.Fatalf("valid runtime defaults must pass, got %v", err)
	}
}

func TestValidateRuntimeDefaultsRanges(t *testing.T) {
	tests := []struct {
		name string
		r    RuntimeDefaults
	}{
		{"dedupe window too small", RuntimeDefaults{DedupeWindowSeconds: 0, TrendDefaultDays: 30, TrendMaxDays: 180}},
		{"dedupe window too large", RuntimeDefaults{DedupeWindowSeconds: 4000, TrendDefaultDays: 30, TrendMaxDays: 180}},
		{"trend default too large", RuntimeDefaults{DedupeWindowSeconds: 60, TrendDefaultDays: 400, TrendMaxDays: 365}},
		{"trend max too large", RuntimeDefaults{DedupeWindowSeconds: 60, TrendDefaultDays: 30, TrendMaxDays: 400}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateRuntimeDefaults(tt.r); err == nil {
				t.Fatal("expected a validation error")
			}
		})
	}
}

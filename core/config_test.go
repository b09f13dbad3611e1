package core

import (
	"strings"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "blank service name",
			mutate:  func(c *Config) { c.ServiceName = "  " },
			wantErr: "service_name",
		},
		{
			name:    "zero base delay",
			mutate:  func(c *Config) { c.Rate.BaseDelayMS = 0 },
			wantErr: "base_delay_ms",
		},
		{
			name:    "max delay below base",
			mutate:  func(c *Config) { c.Rate.MaxDelayMS = c.Rate.BaseDelayMS - 1 },
			wantErr: "max_delay_ms",
		},
		{
			name:    "decay factor at one",
			mutate:  func(c *Config) { c.Rate.DecayFactor = 1 },
			wantErr: "decay_factor",
		},
		{
			name:    "zero recovery threshold",
			mutate:  func(c *Config) { c.Rate.RecoveryThreshold = 0 },
			wantErr: "recovery_threshold",
		},
		{
			name:    "negative webhook retries",
			mutate:  func(c *Config) { c.Webhook.MaxRetries = -1 },
			wantErr: "max_retries",
		},
		{
			name:    "relative trusted base",
			mutate:  func(c *Config) { c.Webhook.TrustedBase = "/webhooks" },
			wantErr: "trusted_base",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error mentioning %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestConfigValidateAcceptsAbsoluteTrustedBase(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Webhook.TrustedBase = "https://backend.internal/webhooks"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected absolute base to validate: %v", err)
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Rate.BaseDelay().Milliseconds() != int64(cfg.Rate.BaseDelayMS) {
		t.Fatalf("base delay helper mismatch")
	}
	if cfg.Webhook.AttemptTimeout().Milliseconds() != int64(cfg.Webhook.AttemptTimeoutMS) {
		t.Fatalf("attempt timeout helper mismatch")
	}
}

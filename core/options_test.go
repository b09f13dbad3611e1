package core

import (
	"context"
	"testing"
)

func TestGoOptionsResolverLayering(t *testing.T) {
	defaults := DefaultConfig()

	loaded := Config{}
	loaded.Rate.BaseDelayMS = 250
	loaded.Webhook.MaxRetries = 5

	runtime := Config{}
	runtime.Rate.BaseDelayMS = 100
	runtime.Webhook.TrustedBase = "https://backend.internal/webhooks"

	resolved, err := (GoOptionsResolver{}).Resolve(defaults, loaded, runtime)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if resolved.Rate.BaseDelayMS != 100 {
		t.Fatalf("expected runtime layer to win, got %d", resolved.Rate.BaseDelayMS)
	}
	if resolved.Webhook.MaxRetries != 5 {
		t.Fatalf("expected loaded layer to apply, got %d", resolved.Webhook.MaxRetries)
	}
	if resolved.Webhook.TrustedBase != "https://backend.internal/webhooks" {
		t.Fatalf("expected runtime trusted base, got %q", resolved.Webhook.TrustedBase)
	}
	if resolved.ServiceName != defaults.ServiceName {
		t.Fatalf("expected default service name, got %q", resolved.ServiceName)
	}
	if resolved.Rate.DecayFactor != defaults.Rate.DecayFactor {
		t.Fatalf("expected default decay factor, got %v", resolved.Rate.DecayFactor)
	}
}

func TestGoOptionsResolverRejectsInvalidMerge(t *testing.T) {
	runtime := Config{}
	runtime.Rate.BaseDelayMS = 10_000
	runtime.Rate.MaxDelayMS = 100

	if _, err := (GoOptionsResolver{}).Resolve(DefaultConfig(), DefaultConfig(), runtime); err == nil {
		t.Fatalf("expected validation failure when max delay is below base delay")
	}
}

func TestCfgxConfigProviderLoadsRawValues(t *testing.T) {
	provider := NewCfgxConfigProvider(staticRawConfigLoader{Values: map[string]any{
		"service_name": "export-sync",
		"rate": map[string]any{
			"base_delay_ms": 200,
		},
		"webhook": map[string]any{
			"trusted_base": "https://backend.internal/webhooks",
		},
	}})

	cfg, err := provider.Load(context.Background(), DefaultConfig())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServiceName != "export-sync" {
		t.Fatalf("expected loaded service name, got %q", cfg.ServiceName)
	}
	if cfg.Rate.BaseDelayMS != 200 {
		t.Fatalf("expected loaded base delay, got %d", cfg.Rate.BaseDelayMS)
	}
	if cfg.Rate.MaxDelayMS != DefaultConfig().Rate.MaxDelayMS {
		t.Fatalf("expected default max delay, got %d", cfg.Rate.MaxDelayMS)
	}
	if cfg.Webhook.TrustedBase != "https://backend.internal/webhooks" {
		t.Fatalf("expected loaded trusted base, got %q", cfg.Webhook.TrustedBase)
	}
}

func TestCfgxConfigProviderDefaultsWithoutLoader(t *testing.T) {
	provider := NewCfgxConfigProvider(nil)
	cfg, err := provider.Load(context.Background(), DefaultConfig())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

package core

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

type RateConfig struct {
	BaseDelayMS       int     `koanf:"base_delay_ms" mapstructure:"base_delay_ms"`
	MaxDelayMS        int     `koanf:"max_delay_ms" mapstructure:"max_delay_ms"`
	DecayFactor       float64 `koanf:"decay_factor" mapstructure:"decay_factor"`
	RecoveryThreshold int     `koanf:"recovery_threshold" mapstructure:"recovery_threshold"`
}

func (c RateConfig) BaseDelay() time.Duration {
	return time.Duration(c.BaseDelayMS) * time.Millisecond
}

func (c RateConfig) MaxDelay() time.Duration {
	return time.Duration(c.MaxDelayMS) * time.Millisecond
}

type WebhookConfig struct {
	TrustedBase      string `koanf:"trusted_base" mapstructure:"trusted_base"`
	MaxRetries       int    `koanf:"max_retries" mapstructure:"max_retries"`
	BaseDelayMS      int    `koanf:"base_delay_ms" mapstructure:"base_delay_ms"`
	AttemptTimeoutMS int    `koanf:"attempt_timeout_ms" mapstructure:"attempt_timeout_ms"`
}

func (c WebhookConfig) BaseDelay() time.Duration {
	return time.Duration(c.BaseDelayMS) * time.Millisecond
}

func (c WebhookConfig) AttemptTimeout() time.Duration {
	return time.Duration(c.AttemptTimeoutMS) * time.Millisecond
}

type Config struct {
	ServiceName string        `koanf:"service_name" mapstructure:"service_name"`
	Rate        RateConfig    `koanf:"rate" mapstructure:"rate"`
	Webhook     WebhookConfig `koanf:"webhook" mapstructure:"webhook"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "collection-sync",
		Rate: RateConfig{
			BaseDelayMS:       500,
			MaxDelayMS:        30_000,
			DecayFactor:       0.75,
			RecoveryThreshold: 3,
		},
		Webhook: WebhookConfig{
			MaxRetries:       3,
			BaseDelayMS:      1_000,
			AttemptTimeoutMS: 10_000,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Rate.BaseDelayMS <= 0 {
		return fmt.Errorf("core: rate.base_delay_ms must be positive")
	}
	if c.Rate.MaxDelayMS < c.Rate.BaseDelayMS {
		return fmt.Errorf("core: rate.max_delay_ms must be >= rate.base_delay_ms")
	}
	if c.Rate.DecayFactor <= 0 || c.Rate.DecayFactor >= 1 {
		return fmt.Errorf("core: rate.decay_factor must be in (0, 1)")
	}
	if c.Rate.RecoveryThreshold <= 0 {
		return fmt.Errorf("core: rate.recovery_threshold must be positive")
	}
	if c.Webhook.MaxRetries < 0 {
		return fmt.Errorf("core: webhook.max_retries must not be negative")
	}
	if base := strings.TrimSpace(c.Webhook.TrustedBase); base != "" {
		parsed, err := url.Parse(base)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("core: webhook.trusted_base must be an absolute URL")
		}
	}
	return nil
}

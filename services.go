// Package collectionsync re-exports the core surface so downstream callers
// can depend on the module root without importing internal packages.
package collectionsync

import "github.com/goliatone/go-collection-sync/core"

type Config = core.Config

type RateConfig = core.RateConfig

type WebhookConfig = core.WebhookConfig

type Option = core.Option

type Service = core.Service

type Tier = core.Tier

type EnqueueRequest = core.EnqueueRequest
type EnqueueResult = core.EnqueueResult
type QueueStats = core.QueueStats
type RateSnapshot = core.RateSnapshot
type WebhookSession = core.WebhookSession
type ItemCompletePayload = core.ItemCompletePayload
type PhaseChangePayload = core.PhaseChangePayload
type ScrapeActivity = core.ScrapeActivity
type DeliveryAttempt = core.DeliveryAttempt
type ScrapeOutcome = core.ScrapeOutcome
type Completion = core.Completion

const (
	TierHot  = core.TierHot
	TierWarm = core.TierWarm
	TierCold = core.TierCold
)

var (
	WithLogger             = core.WithLogger
	WithLoggerProvider     = core.WithLoggerProvider
	WithMetricsRecorder    = core.WithMetricsRecorder
	WithErrorFactory       = core.WithErrorFactory
	WithErrorMapper        = core.WithErrorMapper
	WithConfigProvider     = core.WithConfigProvider
	WithOptionsResolver    = core.WithOptionsResolver
	WithPersistenceClient  = core.WithPersistenceClient
	WithRepositoryFactory  = core.WithRepositoryFactory
	WithScheduler          = core.WithScheduler
	WithWebhookNotifier    = core.WithWebhookNotifier
	WithTaskLauncher       = core.WithTaskLauncher
	WithDeliveryAuditStore = core.WithDeliveryAuditStore
	WithActivityStore      = core.WithActivityStore
	WithSessionValidator   = core.WithSessionValidator
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// ScrapeExecutor performs the actual fetch/parse against the catalog site.
// It may retry transiently but must return a terminal outcome.
type ScrapeExecutor interface {
	Execute(ctx context.Context, key string) ScrapeOutcome
}

// SessionValidator checks caller credentials against the source site before a
// collection sync is admitted.
type SessionValidator interface {
	Validate(ctx context.Context, credentials map[string]string) (SessionCheck, error)
}

// ExportFetcher retrieves the raw collection export for a validated session.
type ExportFetcher interface {
	Fetch(ctx context.Context, sessionID string) ([]byte, error)
}

type ExportParser interface {
	Parse(raw []byte) ([]CatalogItem, error)
}

// ItemScheduler is the admission surface of the scrape queue.
type ItemScheduler interface {
	Enqueue(key string, tier Tier) (EnqueueResult, error)
	Stats() QueueStats
}

// WebhookNotifier reports lifecycle transitions to the calling backend.
// Notifications are best-effort telemetry: a false return means the delivery
// could not be confirmed, never that the originating job failed.
type WebhookNotifier interface {
	Register(session WebhookSession)
	Unregister(sessionID string)
	NotifyItemComplete(ctx context.Context, payload ItemCompletePayload) bool
	NotifyPhaseChange(ctx context.Context, payload PhaseChangePayload) bool
}

// TaskLauncher runs detached fire-and-forget work so a webhook delivery never
// blocks the worker loop that triggered it.
type TaskLauncher interface {
	Launch(name string, task func(ctx context.Context)) bool
}

type DeliveryAuditStore interface {
	Append(ctx context.Context, attempt DeliveryAttempt) error
	ListBySession(ctx context.Context, sessionID string, limit int) ([]DeliveryAttempt, error)
}

type ActivityStore interface {
	Append(ctx context.Context, activity ScrapeActivity) error
	ListBySession(ctx context.Context, sessionID string, limit int) ([]ScrapeActivity, error)
}

type StoreProvider interface {
	DeliveryAuditStore() DeliveryAuditStore
	ActivityStore() ActivityStore
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

// QueueMessage is the execution message contract bridged to external job
// queues; the item key doubles as the idempotency key so queue-level dedupe
// matches the scheduler's single-flight guarantee.
type QueueMessage struct {
	JobID          string
	ItemKey        string
	Tier           string
	SessionID      string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type QueueNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

// Package gojob bridges the in-process scrape queue contracts to go-job so
// deployments can feed admissions from an external queue and mirror worker
// lifecycle events into metrics.
package gojob

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-collection-sync/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
)

const JobIDScrapeItem = "collection_sync.scrape.item"

const (
	paramItemKey   = "item_key"
	paramTier      = "tier"
	paramSessionID = "session_id"
)

// RetryPolicy defines queue retry bounds to avoid unbounded retry loops.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// NormalizeAttempt enforces bounded retry behavior for a nack operation.
func (p RetryPolicy) NormalizeAttempt(opts core.QueueNackOptions, attempt int) core.QueueNackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.DeadLetter {
		out.Requeue = false
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Requeue = false
		if p.DeadLetterOnMax || out.DeadLetter {
			out.DeadLetter = true
		}
	}
	if !out.Requeue && !out.DeadLetter {
		out.Requeue = true
	}
	return out
}

// ToExecutionMessage maps a scrape queue message to go-job. The item key
// doubles as the idempotency key so queue-level dedupe lines up with the
// scheduler's single-flight guarantee.
func ToExecutionMessage(msg *core.QueueMessage) *job.ExecutionMessage {
	if msg == nil {
		return nil
	}
	parameters := copyAnyMap(msg.Parameters)
	if key := strings.TrimSpace(msg.ItemKey); key != "" {
		parameters[paramItemKey] = key
	}
	if tier := strings.TrimSpace(msg.Tier); tier != "" {
		parameters[paramTier] = tier
	}
	if sessionID := strings.TrimSpace(msg.SessionID); sessionID != "" {
		parameters[paramSessionID] = sessionID
	}
	idempotencyKey := strings.TrimSpace(msg.IdempotencyKey)
	if idempotencyKey == "" {
		idempotencyKey = strings.TrimSpace(msg.ItemKey)
	}
	jobID := strings.TrimSpace(msg.JobID)
	if jobID == "" {
		jobID = JobIDScrapeItem
	}
	return &job.ExecutionMessage{
		JobID:          jobID,
		Parameters:     parameters,
		IdempotencyKey: idempotencyKey,
		DedupPolicy:    job.DeduplicationPolicy(strings.TrimSpace(msg.DedupPolicy)),
	}
}

// FromExecutionMessage maps a go-job message back into the queue contract.
func FromExecutionMessage(msg *job.ExecutionMessage) *core.QueueMessage {
	if msg == nil {
		return nil
	}
	parameters := copyAnyMap(msg.Parameters)
	out := &core.QueueMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		ItemKey:        stringParam(parameters, paramItemKey),
		Tier:           stringParam(parameters, paramTier),
		SessionID:      stringParam(parameters, paramSessionID),
		Parameters:     parameters,
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    strings.TrimSpace(string(msg.DedupPolicy)),
	}
	return out
}

// ToNackOptions maps queue nack options to go-job.
func ToNackOptions(opts core.QueueNackOptions) queue.NackOptions {
	return queue.NackOptions{
		Delay:      opts.Delay,
		Requeue:    opts.Requeue,
		DeadLetter: opts.DeadLetter,
		Reason:     opts.Reason,
	}
}

// FromNackOptions maps go-job nack options back.
func FromNackOptions(opts queue.NackOptions) core.QueueNackOptions {
	return core.QueueNackOptions{
		Delay:      opts.Delay,
		Requeue:    opts.Requeue,
		DeadLetter: opts.DeadLetter,
		Reason:     opts.Reason,
	}
}

type EnqueuerAdapter struct {
	enqueuer queue.Enqueuer
}

func NewEnqueuerAdapter(enqueuer queue.Enqueuer) *EnqueuerAdapter {
	return &EnqueuerAdapter{enqueuer: enqueuer}
}

func (a *EnqueuerAdapter) Enqueue(ctx context.Context, msg *core.QueueMessage) error {
	if a == nil || a.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	if msg == nil {
		return fmt.Errorf("gojob: queue message is required")
	}
	if !core.ValidItemKey(msg.ItemKey) {
		return fmt.Errorf("gojob: item key %q is not a numeric catalog id", msg.ItemKey)
	}
	return a.enqueuer.Enqueue(ctx, ToExecutionMessage(msg))
}

// Delivery is one dequeued scrape admission awaiting ack or nack.
type Delivery interface {
	Message() *core.QueueMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts core.QueueNackOptions) error
}

type DeliveryAdapter struct {
	delivery queue.Delivery
	policy   RetryPolicy
}

func NewDeliveryAdapter(delivery queue.Delivery, policy RetryPolicy) *DeliveryAdapter {
	return &DeliveryAdapter{delivery: delivery, policy: policy}
}

func (d *DeliveryAdapter) Message() *core.QueueMessage {
	if d == nil || d.delivery == nil {
		return nil
	}
	return FromExecutionMessage(d.delivery.Message())
}

func (d *DeliveryAdapter) Ack(ctx context.Context) error {
	if d == nil || d.delivery == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	return d.delivery.Ack(ctx)
}

func (d *DeliveryAdapter) Nack(ctx context.Context, opts core.QueueNackOptions) error {
	return d.NackForAttempt(ctx, opts, 0)
}

func (d *DeliveryAdapter) NackForAttempt(ctx context.Context, opts core.QueueNackOptions, attempt int) error {
	if d == nil || d.delivery == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	normalized := d.policy.NormalizeAttempt(opts, attempt)
	return d.delivery.Nack(ctx, ToNackOptions(normalized))
}

type DequeuerAdapter struct {
	dequeuer queue.Dequeuer
	policy   RetryPolicy
}

func NewDequeuerAdapter(dequeuer queue.Dequeuer, policy RetryPolicy) *DequeuerAdapter {
	return &DequeuerAdapter{dequeuer: dequeuer, policy: policy}
}

func (a *DequeuerAdapter) Dequeue(ctx context.Context) (Delivery, error) {
	if a == nil || a.dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is not configured")
	}
	delivery, err := a.dequeuer.Dequeue(ctx)
	if err != nil {
		return nil, err
	}
	return NewDeliveryAdapter(delivery, a.policy), nil
}

// MetricsHook mirrors queue worker lifecycle events into the service metrics
// recorder so externally-fed admissions show up next to in-process ones.
type MetricsHook struct {
	Recorder core.MetricsRecorder
}

func NewMetricsHook(recorder core.MetricsRecorder) *MetricsHook {
	return &MetricsHook{Recorder: recorder}
}

func (h *MetricsHook) OnStart(ctx context.Context, event worker.Event) {
	h.record(ctx, "collection_sync.queue_worker.started", event, 0)
}

func (h *MetricsHook) OnSuccess(ctx context.Context, event worker.Event) {
	h.record(ctx, "collection_sync.queue_worker.succeeded", event, event.Duration)
}

func (h *MetricsHook) OnFailure(ctx context.Context, event worker.Event) {
	h.record(ctx, "collection_sync.queue_worker.failed", event, event.Duration)
}

func (h *MetricsHook) OnRetry(ctx context.Context, event worker.Event) {
	h.record(ctx, "collection_sync.queue_worker.retried", event, 0)
}

func (h *MetricsHook) record(ctx context.Context, name string, event worker.Event, duration time.Duration) {
	if h == nil || h.Recorder == nil {
		return
	}
	tags := map[string]string{"attempt": fmt.Sprintf("%d", event.Attempt)}
	if message := eventMessage(event); message != nil {
		if message.ItemKey != "" {
			tags[paramItemKey] = message.ItemKey
		}
		if message.Tier != "" {
			tags[paramTier] = message.Tier
		}
	}
	h.Recorder.IncCounter(ctx, name, 1, tags)
	if duration > 0 {
		h.Recorder.ObserveHistogram(ctx, name+".duration_ms", float64(duration.Milliseconds()), tags)
	}
}

func eventMessage(event worker.Event) *core.QueueMessage {
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	return FromExecutionMessage(message)
}

func stringParam(parameters map[string]any, key string) string {
	value, ok := parameters[key]
	if !ok {
		return ""
	}
	text, ok := value.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(text)
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

var _ worker.Hook = (*MetricsHook)(nil)

package gojob

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-collection-sync/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
)

func TestMessageMappingRoundTrip(t *testing.T) {
	original := &core.QueueMessage{
		JobID:       JobIDScrapeItem,
		ItemKey:     "12345",
		Tier:        string(core.TierHot),
		SessionID:   "session-1",
		Parameters:  map[string]any{"source": "export"},
		DedupPolicy: "drop",
	}

	converted := ToExecutionMessage(original)
	if converted == nil {
		t.Fatalf("expected converted message")
	}
	if converted.IdempotencyKey != "12345" {
		t.Fatalf("expected item key as idempotency key, got %q", converted.IdempotencyKey)
	}

	roundTrip := FromExecutionMessage(converted)
	if roundTrip.JobID != original.JobID {
		t.Fatalf("expected job id %q, got %q", original.JobID, roundTrip.JobID)
	}
	if roundTrip.ItemKey != "12345" {
		t.Fatalf("expected item key %q, got %q", original.ItemKey, roundTrip.ItemKey)
	}
	if roundTrip.Tier != string(core.TierHot) {
		t.Fatalf("expected tier %q, got %q", core.TierHot, roundTrip.Tier)
	}
	if roundTrip.SessionID != "session-1" {
		t.Fatalf("expected session id mapping, got %q", roundTrip.SessionID)
	}
	if roundTrip.DedupPolicy != original.DedupPolicy {
		t.Fatalf("expected dedup policy %q, got %q", original.DedupPolicy, roundTrip.DedupPolicy)
	}
	if roundTrip.Parameters["source"] != "export" {
		t.Fatalf("expected parameters to survive mapping")
	}
}

func TestToExecutionMessageDefaultsJobID(t *testing.T) {
	converted := ToExecutionMessage(&core.QueueMessage{ItemKey: "987"})
	if converted.JobID != JobIDScrapeItem {
		t.Fatalf("expected default job id %q, got %q", JobIDScrapeItem, converted.JobID)
	}
}

func TestEnqueueAndDequeueAdapters(t *testing.T) {
	ctx := context.Background()
	enqueuer := &stubQueueEnqueuer{}
	enqueueAdapter := NewEnqueuerAdapter(enqueuer)

	msg := &core.QueueMessage{
		ItemKey:   "54321",
		Tier:      string(core.TierWarm),
		SessionID: "session-2",
	}
	if err := enqueueAdapter.Enqueue(ctx, msg); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if enqueuer.last == nil || enqueuer.last.JobID != JobIDScrapeItem {
		t.Fatalf("expected mapped go-job message")
	}
	if enqueuer.last.IdempotencyKey != "54321" {
		t.Fatalf("expected item key as idempotency key, got %q", enqueuer.last.IdempotencyKey)
	}

	dequeuer := &stubQueueDequeuer{delivery: &stubQueueDelivery{msg: enqueuer.last}}
	dequeueAdapter := NewDequeuerAdapter(dequeuer, RetryPolicy{})
	delivery, err := dequeueAdapter.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	got := delivery.Message()
	if got == nil || got.ItemKey != "54321" || got.Tier != string(core.TierWarm) {
		t.Fatalf("expected mapped queue message, got %+v", got)
	}
	if err := delivery.Ack(ctx); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if !dequeuer.delivery.(*stubQueueDelivery).acked {
		t.Fatalf("expected ack on underlying delivery")
	}
}

func TestEnqueueRejectsNonNumericKey(t *testing.T) {
	adapter := NewEnqueuerAdapter(&stubQueueEnqueuer{})
	err := adapter.Enqueue(context.Background(), &core.QueueMessage{ItemKey: "abc"})
	if err == nil {
		t.Fatalf("expected rejection for non numeric item key")
	}
}

func TestNackRetryPolicyBoundaries(t *testing.T) {
	ctx := context.Background()
	rawDelivery := &stubQueueDelivery{
		msg: &job.ExecutionMessage{JobID: JobIDScrapeItem},
	}
	adapter := NewDeliveryAdapter(rawDelivery, RetryPolicy{
		MaxAttempts:     3,
		MaxDelay:        10 * time.Second,
		DeadLetterOnMax: true,
	})

	if err := adapter.NackForAttempt(ctx, core.QueueNackOptions{
		Delay:   30 * time.Second,
		Requeue: true,
		Reason:  "transient",
	}, 1); err != nil {
		t.Fatalf("nack attempt 1: %v", err)
	}
	if rawDelivery.nackOpts.Delay != 10*time.Second {
		t.Fatalf("expected delay to be bounded, got %s", rawDelivery.nackOpts.Delay)
	}
	if !rawDelivery.nackOpts.Requeue {
		t.Fatalf("expected message to be requeued before max attempts")
	}

	if err := adapter.NackForAttempt(ctx, core.QueueNackOptions{
		Delay:   time.Second,
		Requeue: true,
		Reason:  "still failing",
	}, 3); err != nil {
		t.Fatalf("nack max attempt: %v", err)
	}
	if rawDelivery.nackOpts.Requeue {
		t.Fatalf("expected no requeue once max attempts is reached")
	}
	if !rawDelivery.nackOpts.DeadLetter {
		t.Fatalf("expected dead letter on max attempts")
	}
}

func TestMetricsHookRecordsLifecycle(t *testing.T) {
	recorder := &capturingRecorder{}
	hook := NewMetricsHook(recorder)

	evt := worker.Event{
		Message: ToExecutionMessage(&core.QueueMessage{
			ItemKey: "777",
			Tier:    string(core.TierCold),
		}),
		Attempt:  2,
		Duration: 250 * time.Millisecond,
	}

	hook.OnSuccess(context.Background(), evt)
	if len(recorder.counters) != 1 {
		t.Fatalf("expected one counter, got %d", len(recorder.counters))
	}
	counter := recorder.counters[0]
	if counter.name != "collection_sync.queue_worker.succeeded" {
		t.Fatalf("unexpected counter name %q", counter.name)
	}
	if counter.tags["item_key"] != "777" || counter.tags["tier"] != string(core.TierCold) {
		t.Fatalf("expected message tags, got %+v", counter.tags)
	}
	if counter.tags["attempt"] != "2" {
		t.Fatalf("expected attempt tag, got %+v", counter.tags)
	}
	if len(recorder.histograms) != 1 || recorder.histograms[0].value != 250 {
		t.Fatalf("expected duration histogram in milliseconds, got %+v", recorder.histograms)
	}

	hook.OnStart(context.Background(), evt)
	if len(recorder.histograms) != 1 {
		t.Fatalf("expected no duration sample for start events")
	}
}

type stubQueueEnqueuer struct {
	last *job.ExecutionMessage
}

func (s *stubQueueEnqueuer) Enqueue(_ context.Context, msg *job.ExecutionMessage) error {
	s.last = msg
	return nil
}

type stubQueueDequeuer struct {
	delivery queue.Delivery
}

func (s *stubQueueDequeuer) Dequeue(context.Context) (queue.Delivery, error) {
	return s.delivery, nil
}

type stubQueueDelivery struct {
	msg      *job.ExecutionMessage
	acked    bool
	nackOpts queue.NackOptions
}

func (s *stubQueueDelivery) Message() *job.ExecutionMessage {
	return s.msg
}

func (s *stubQueueDelivery) Ack(context.Context) error {
	s.acked = true
	return nil
}

func (s *stubQueueDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	s.nackOpts = opts
	return nil
}

type counterSample struct {
	name  string
	value int64
	tags  map[string]string
}

type histogramSample struct {
	name  string
	value float64
	tags  map[string]string
}

type capturingRecorder struct {
	counters   []counterSample
	histograms []histogramSample
}

func (r *capturingRecorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	r.counters = append(r.counters, counterSample{name: name, value: value, tags: tags})
}

func (r *capturingRecorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	r.histograms = append(r.histograms, histogramSample{name: name, value: value, tags: tags})
}

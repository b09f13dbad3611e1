package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-collection-sync/core"
	"github.com/goliatone/go-collection-sync/ratelimit"
)

type stubExecutor struct {
	mu       sync.Mutex
	order    []string
	outcomes map[string]core.ScrapeOutcome
}

func (e *stubExecutor) Execute(ctx context.Context, key string) core.ScrapeOutcome {
	e.mu.Lock()
	e.order = append(e.order, key)
	outcome, ok := e.outcomes[key]
	e.mu.Unlock()
	if ok {
		outcome.ItemKey = key
		return outcome
	}
	return core.ScrapeOutcome{ItemKey: key, Result: map[string]any{"key": key}}
}

func (e *stubExecutor) executionOrder() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.order...)
}

type stubPacer struct {
	mu       sync.Mutex
	waits    int
	outcomes []bool
}

func (p *stubPacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	p.waits++
	p.mu.Unlock()
	return ctx.Err()
}

func (p *stubPacer) RecordOutcome(blocked bool) {
	p.mu.Lock()
	p.outcomes = append(p.outcomes, blocked)
	p.mu.Unlock()
}

func (p *stubPacer) Snapshot() core.RateSnapshot {
	return core.RateSnapshot{}
}

type inlineLauncher struct{}

func (inlineLauncher) Launch(name string, task func(ctx context.Context)) bool {
	task(context.Background())
	return true
}

type captureNotifier struct {
	mu       sync.Mutex
	payloads []core.ItemCompletePayload
	notified chan struct{}
}

func newCaptureNotifier() *captureNotifier {
	return &captureNotifier{notified: make(chan struct{}, 16)}
}

func (n *captureNotifier) Register(session core.WebhookSession) {}
func (n *captureNotifier) Unregister(sessionID string)          {}

func (n *captureNotifier) NotifyItemComplete(ctx context.Context, payload core.ItemCompletePayload) bool {
	n.mu.Lock()
	n.payloads = append(n.payloads, payload)
	n.mu.Unlock()
	n.notified <- struct{}{}
	return true
}

func (n *captureNotifier) NotifyPhaseChange(ctx context.Context, payload core.PhaseChangePayload) bool {
	return true
}

type memoryActivity struct {
	mu      sync.Mutex
	entries []core.ScrapeActivity
}

func (a *memoryActivity) Append(ctx context.Context, activity core.ScrapeActivity) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, activity)
	return nil
}

func (a *memoryActivity) ListBySession(ctx context.Context, sessionID string, limit int) ([]core.ScrapeActivity, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]core.ScrapeActivity(nil), a.entries...), nil
}

func waitOutcome(t *testing.T, completion *core.Completion) core.ScrapeOutcome {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	outcome, err := completion.Wait(ctx)
	if err != nil {
		t.Fatalf("completion did not resolve: %v", err)
	}
	return outcome
}

func TestScheduler_EnqueueRejectsNonNumericKey(t *testing.T) {
	s := New(&stubExecutor{}, &stubPacer{})

	if _, err := s.Enqueue("not-a-key", core.TierWarm); err == nil {
		t.Fatalf("expected rejection for non-numeric item key")
	}
	if _, err := s.Enqueue("   ", core.TierWarm); err == nil {
		t.Fatalf("expected rejection for blank item key")
	}
}

func TestScheduler_DedupJoinsInFlightJob(t *testing.T) {
	s := New(&stubExecutor{}, &stubPacer{})

	first, err := s.Enqueue("12345", core.TierHot)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if first.Deduplicated {
		t.Fatalf("first admission must not be a duplicate")
	}
	if first.Position != 0 {
		t.Fatalf("expected first admission at position 0, got %d", first.Position)
	}

	second, err := s.Enqueue("12345", core.TierCold)
	if err != nil {
		t.Fatalf("enqueue duplicate: %v", err)
	}
	if !second.Deduplicated {
		t.Fatalf("expected duplicate admission to join existing job")
	}
	if second.JobID != first.JobID {
		t.Fatalf("expected same job id, got %s vs %s", first.JobID, second.JobID)
	}
	if second.Position != first.Position {
		t.Fatalf("expected duplicate to keep position %d, got %d", first.Position, second.Position)
	}
	if second.Completion != first.Completion {
		t.Fatalf("expected duplicate to share the completion handle")
	}

	stats := s.Stats()
	if stats.Hot != 1 || stats.Cold != 0 || stats.Pending != 1 {
		t.Fatalf("expected one hot pending job, got %+v", stats)
	}
}

func TestScheduler_PositionRanksAcrossTiers(t *testing.T) {
	s := New(&stubExecutor{}, &stubPacer{})

	firstHot, _ := s.Enqueue("100", core.TierHot)
	secondHot, _ := s.Enqueue("200", core.TierHot)
	cold, _ := s.Enqueue("300", core.TierCold)
	warm, _ := s.Enqueue("400", core.TierWarm)

	if firstHot.Position != 0 || secondHot.Position != 1 {
		t.Fatalf("expected hot positions 0 and 1, got %d and %d", firstHot.Position, secondHot.Position)
	}
	if cold.Position != 2 {
		t.Fatalf("expected cold admission behind two hot jobs at position 2, got %d", cold.Position)
	}
	if warm.Position != 2 {
		t.Fatalf("expected warm admission ahead of cold at position 2, got %d", warm.Position)
	}
}

func TestScheduler_DedupReturnsAdmissionPositionWhileProcessing(t *testing.T) {
	executor := &gateExecutor{started: make(chan struct{}), release: make(chan struct{})}
	s := New(executor, &stubPacer{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first, err := s.Enqueue("12345", core.TierHot)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if first.Position != 0 {
		t.Fatalf("expected admission at position 0, got %d", first.Position)
	}

	s.Start(ctx)
	select {
	case <-executor.started:
	case <-time.After(5 * time.Second):
		t.Fatalf("expected the job to begin processing")
	}

	second, err := s.Enqueue("12345", core.TierCold)
	if err != nil {
		t.Fatalf("enqueue duplicate: %v", err)
	}
	if !second.Deduplicated {
		t.Fatalf("expected duplicate admission to join the processing job")
	}
	if second.Position != first.Position {
		t.Fatalf("expected processing dedup to keep position %d, got %d", first.Position, second.Position)
	}

	close(executor.release)
	waitOutcome(t, first.Completion)
}

type gateExecutor struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (e *gateExecutor) Execute(ctx context.Context, key string) core.ScrapeOutcome {
	e.once.Do(func() { close(e.started) })
	<-e.release
	return core.ScrapeOutcome{ItemKey: key}
}

func TestScheduler_TerminalJobAllowsReadmission(t *testing.T) {
	s := New(&stubExecutor{}, &stubPacer{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	first, err := s.Enqueue("12345", core.TierWarm)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	waitOutcome(t, first.Completion)

	second, err := s.Enqueue("12345", core.TierWarm)
	if err != nil {
		t.Fatalf("re-enqueue after terminal: %v", err)
	}
	if second.Deduplicated {
		t.Fatalf("expected fresh job after the first reached a terminal state")
	}
	if second.JobID == first.JobID {
		t.Fatalf("expected a new job id after re-admission")
	}
	waitOutcome(t, second.Completion)
}

func TestScheduler_DrainsTiersInPriorityOrder(t *testing.T) {
	executor := &stubExecutor{}
	s := New(executor, &stubPacer{})

	var last *core.Completion
	for _, admission := range []struct {
		key  string
		tier core.Tier
	}{
		{"500", core.TierCold},
		{"300", core.TierWarm},
		{"100", core.TierHot},
		{"200", core.TierHot},
		{"400", core.TierWarm},
	} {
		result, err := s.Enqueue(admission.key, admission.tier)
		if err != nil {
			t.Fatalf("enqueue %s: %v", admission.key, err)
		}
		if admission.key == "500" {
			last = result.Completion
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	waitOutcome(t, last)

	want := []string{"100", "200", "300", "400", "500"}
	got := executor.executionOrder()
	if len(got) != len(want) {
		t.Fatalf("expected %d executions, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("execution order: expected %v, got %v", want, got)
		}
	}
}

func TestScheduler_PacerGatesEveryExecution(t *testing.T) {
	executor := &stubExecutor{outcomes: map[string]core.ScrapeOutcome{
		"222": {Blocked: true, Error: "rate limited"},
	}}
	pacer := &stubPacer{}
	s := New(executor, pacer)

	s.Enqueue("111", core.TierWarm)
	blocked, _ := s.Enqueue("222", core.TierWarm)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	waitOutcome(t, blocked.Completion)

	pacer.mu.Lock()
	defer pacer.mu.Unlock()
	if pacer.waits != 2 {
		t.Fatalf("expected pacer wait before each execution, got %d waits", pacer.waits)
	}
	if len(pacer.outcomes) != 2 || pacer.outcomes[0] || !pacer.outcomes[1] {
		t.Fatalf("expected outcomes [clean, blocked], got %v", pacer.outcomes)
	}
}

func TestScheduler_FailedOutcomeCountsAsFailed(t *testing.T) {
	executor := &stubExecutor{outcomes: map[string]core.ScrapeOutcome{
		"666": {Error: "item page returned 404"},
	}}
	s := New(executor, &stubPacer{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	ok, _ := s.Enqueue("111", core.TierWarm)
	bad, _ := s.Enqueue("666", core.TierWarm)

	okOutcome := waitOutcome(t, ok.Completion)
	badOutcome := waitOutcome(t, bad.Completion)

	if okOutcome.State() != core.JobStateCompleted {
		t.Fatalf("expected completed state, got %s", okOutcome.State())
	}
	if badOutcome.State() != core.JobStateFailed {
		t.Fatalf("expected failed state, got %s", badOutcome.State())
	}

	stats := s.Stats()
	if stats.Completed != 1 || stats.Failed != 1 {
		t.Fatalf("expected 1 completed and 1 failed, got %+v", stats)
	}
	if stats.Pending != 0 || stats.Processing != 0 {
		t.Fatalf("expected drained queue, got %+v", stats)
	}
}

func TestScheduler_ExecutorPanicBecomesFailedJob(t *testing.T) {
	s := New(panicExecutor{}, &stubPacer{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	result, err := s.Enqueue("999", core.TierWarm)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	outcome := waitOutcome(t, result.Completion)
	if outcome.State() != core.JobStateFailed {
		t.Fatalf("expected failed outcome after executor panic, got %s", outcome.State())
	}
	if outcome.Error == "" {
		t.Fatalf("expected panic to surface in the outcome error")
	}

	follower, err := s.Enqueue("111", core.TierWarm)
	if err != nil {
		t.Fatalf("enqueue after panic: %v", err)
	}
	waitOutcome(t, follower.Completion)
}

type panicExecutor struct{}

func (panicExecutor) Execute(ctx context.Context, key string) core.ScrapeOutcome {
	if key == "999" {
		panic("scrape parser exploded")
	}
	return core.ScrapeOutcome{ItemKey: key}
}

func TestScheduler_NotifiesOwningSessionOnCompletion(t *testing.T) {
	notifier := newCaptureNotifier()
	s := New(&stubExecutor{}, &stubPacer{})
	s.Notifier = notifier
	s.Launcher = inlineLauncher{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	result, err := s.EnqueueForSession(core.EnqueueRequest{
		SessionID: "session-1",
		ItemKey:   "12345",
		Tier:      core.TierHot,
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	waitOutcome(t, result.Completion)

	select {
	case <-notifier.notified:
	case <-time.After(5 * time.Second):
		t.Fatalf("expected item-complete notification")
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	payload := notifier.payloads[0]
	if payload.SessionID != "session-1" || payload.ItemKey != "12345" {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if payload.State != core.JobStateCompleted {
		t.Fatalf("expected completed state in payload, got %s", payload.State)
	}
	if payload.JobID != result.JobID {
		t.Fatalf("expected job id %s, got %s", result.JobID, payload.JobID)
	}
}

func TestScheduler_SessionlessJobSkipsNotification(t *testing.T) {
	notifier := newCaptureNotifier()
	s := New(&stubExecutor{}, &stubPacer{})
	s.Notifier = notifier
	s.Launcher = inlineLauncher{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	result, _ := s.Enqueue("12345", core.TierWarm)
	waitOutcome(t, result.Completion)

	select {
	case <-notifier.notified:
		t.Fatalf("expected no notification without an owning session")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestScheduler_RecordsActivityPerTerminalJob(t *testing.T) {
	activity := &memoryActivity{}
	s := New(&stubExecutor{}, &stubPacer{})
	s.Activity = activity
	s.Now = func() time.Time { return time.Unix(1_700_000_000, 0).UTC() }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	result, _ := s.EnqueueForSession(core.EnqueueRequest{
		SessionID: "session-1",
		ItemKey:   "12345",
		Tier:      core.TierCold,
	})
	waitOutcome(t, result.Completion)

	deadline := time.Now().Add(5 * time.Second)
	for {
		entries, _ := activity.ListBySession(context.Background(), "session-1", 10)
		if len(entries) == 1 {
			entry := entries[0]
			if entry.ItemKey != "12345" || entry.Tier != core.TierCold {
				t.Fatalf("unexpected activity %+v", entry)
			}
			if entry.State != core.JobStateCompleted {
				t.Fatalf("expected completed activity, got %s", entry.State)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected one activity record, got %d", len(entries))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestScheduler_GovernorPacesConsecutiveExecutions(t *testing.T) {
	governor := ratelimit.NewGovernor(core.RateConfig{
		BaseDelayMS:       40,
		MaxDelayMS:        1_000,
		DecayFactor:       0.75,
		RecoveryThreshold: 3,
	})
	s := New(&stubExecutor{}, governor)

	s.Enqueue("111", core.TierWarm)
	second, _ := s.Enqueue("222", core.TierWarm)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	start := time.Now()
	s.Start(ctx)
	waitOutcome(t, second.Completion)

	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Fatalf("expected at least one base delay between executions, finished in %s", elapsed)
	}
}

func TestScheduler_WorkerStopsOnContextCancel(t *testing.T) {
	s := New(&stubExecutor{}, &stubPacer{})
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	cancel()
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("expected worker loop to exit on cancellation")
	}
}

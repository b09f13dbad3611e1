// Package scheduler owns the scrape queue: tiered admission, single-flight
// deduplication per item key, and the paced worker loop that drives scrape
// executions through the rate governor.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-collection-sync/core"
	"github.com/goliatone/go-collection-sync/ratelimit"
	"github.com/google/uuid"
)

// Pacer is the scheduling view of the rate governor.
type Pacer interface {
	Wait(ctx context.Context) error
	RecordOutcome(blocked bool)
	Snapshot() core.RateSnapshot
}

type job struct {
	id         string
	key        string
	tier       core.Tier
	sessionID  string
	state      core.JobState
	completion *core.Completion
	position   int
	enqueuedAt time.Time
	startedAt  time.Time
}

// Scheduler implements core.ItemScheduler. Tiers drain in strict priority
// order and each tier is FIFO. A non-terminal job per item key is unique;
// admitting a key that is already queued or processing joins the existing job
// regardless of the requested tier.
type Scheduler struct {
	Executor core.ScrapeExecutor
	Pacer    Pacer
	Notifier core.WebhookNotifier
	Launcher core.TaskLauncher
	Activity core.ActivityStore
	Logger   core.Logger
	Now      func() time.Time

	mu         sync.Mutex
	queues     map[core.Tier][]*job
	index      map[string]*job
	processing int
	completed  int
	failed     int
	wake       chan struct{}
	started    bool
	done       chan struct{}
}

func New(executor core.ScrapeExecutor, pacer Pacer) *Scheduler {
	if pacer == nil {
		pacer = ratelimit.NewGovernor(core.RateConfig{})
	}
	queues := make(map[core.Tier][]*job, len(core.Tiers))
	for _, tier := range core.Tiers {
		queues[tier] = nil
	}
	return &Scheduler{
		Executor: executor,
		Pacer:    pacer,
		Now:      func() time.Time { return time.Now().UTC() },
		queues:   queues,
		index:    make(map[string]*job),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Enqueue admits an item under the given tier with no owning session.
func (s *Scheduler) Enqueue(key string, tier core.Tier) (core.EnqueueResult, error) {
	return s.EnqueueForSession(core.EnqueueRequest{ItemKey: key, Tier: tier})
}

// EnqueueForSession admits an item and remembers the session that asked for
// it so terminal notifications can be routed back.
func (s *Scheduler) EnqueueForSession(req core.EnqueueRequest) (core.EnqueueResult, error) {
	if s == nil {
		return core.EnqueueResult{}, fmt.Errorf("scheduler: scheduler is not configured")
	}
	key := strings.TrimSpace(req.ItemKey)
	if !core.ValidItemKey(key) {
		return core.EnqueueResult{}, fmt.Errorf("scheduler: item key %q is not a numeric catalog id", req.ItemKey)
	}
	tier := req.Tier
	if !tier.Valid() {
		tier = core.NormalizeTier(string(req.Tier))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.index[key]; ok {
		if existing.state.Terminal() {
			panic(fmt.Sprintf("scheduler: terminal job %s for item %s still indexed", existing.id, key))
		}
		return core.EnqueueResult{
			JobID:        existing.id,
			Deduplicated: true,
			Position:     existing.position,
			Completion:   existing.completion,
		}, nil
	}

	entry := &job{
		id:         uuid.NewString(),
		key:        key,
		tier:       tier,
		sessionID:  strings.TrimSpace(req.SessionID),
		state:      core.JobStateQueued,
		completion: core.NewCompletion(),
		position:   s.admissionRankLocked(tier),
		enqueuedAt: s.now(),
	}
	s.queues[tier] = append(s.queues[tier], entry)
	s.index[key] = entry
	s.signalLocked()

	return core.EnqueueResult{
		JobID:      entry.id,
		Position:   entry.position,
		Completion: entry.completion,
	}, nil
}

// Stats reports queue depths, lifecycle counters, and the pacing snapshot.
func (s *Scheduler) Stats() core.QueueStats {
	if s == nil {
		return core.QueueStats{}
	}
	s.mu.Lock()
	stats := core.QueueStats{
		Hot:        len(s.queues[core.TierHot]),
		Warm:       len(s.queues[core.TierWarm]),
		Cold:       len(s.queues[core.TierCold]),
		Processing: s.processing,
		Completed:  s.completed,
		Failed:     s.failed,
	}
	stats.Pending = stats.Hot + stats.Warm + stats.Cold
	s.mu.Unlock()

	if s.Pacer != nil {
		stats.Rate = s.Pacer.Snapshot()
	}
	return stats
}

// Start launches the single worker goroutine. It returns immediately; the
// worker stops when ctx is cancelled. Start is idempotent.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go s.run(ctx)
}

// Done closes once the worker loop has exited.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)
	for {
		entry, ok := s.next()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-s.wake:
				continue
			}
		}
		if err := s.Pacer.Wait(ctx); err != nil {
			s.requeueFront(entry)
			return
		}
		s.execute(ctx, entry)
	}
}

// next pops the head of the highest non-empty tier.
func (s *Scheduler) next() (*job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tier := range core.Tiers {
		queue := s.queues[tier]
		if len(queue) == 0 {
			continue
		}
		entry := queue[0]
		s.queues[tier] = queue[1:]
		if indexed, ok := s.index[entry.key]; !ok || indexed != entry {
			panic(fmt.Sprintf("scheduler: queue entry for item %s is not the indexed job", entry.key))
		}
		if entry.state != core.JobStateQueued {
			panic(fmt.Sprintf("scheduler: job %s left the queue in state %s", entry.id, entry.state))
		}
		entry.state = core.JobStateProcessing
		entry.startedAt = s.now()
		s.processing++
		return entry, true
	}
	return nil, false
}

func (s *Scheduler) requeueFront(entry *job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.state != core.JobStateProcessing {
		panic(fmt.Sprintf("scheduler: cannot requeue job %s in state %s", entry.id, entry.state))
	}
	entry.state = core.JobStateQueued
	s.processing--
	s.queues[entry.tier] = append([]*job{entry}, s.queues[entry.tier]...)
}

func (s *Scheduler) execute(ctx context.Context, entry *job) {
	outcome := s.runExecutor(ctx, entry)
	s.Pacer.RecordOutcome(outcome.Blocked)
	finishedAt := s.now()

	s.mu.Lock()
	if entry.state != core.JobStateProcessing {
		s.mu.Unlock()
		panic(fmt.Sprintf("scheduler: job %s finished in state %s", entry.id, entry.state))
	}
	entry.state = outcome.State()
	s.processing--
	if entry.state == core.JobStateCompleted {
		s.completed++
	} else {
		s.failed++
	}
	delete(s.index, entry.key)
	s.mu.Unlock()

	entry.completion.Resolve(outcome)
	s.recordActivity(ctx, entry, outcome, finishedAt)
	s.notifyItemComplete(entry, outcome, finishedAt)
}

// runExecutor isolates executor panics so one bad scrape cannot take down the
// worker loop; a panic converts to a failed outcome.
func (s *Scheduler) runExecutor(ctx context.Context, entry *job) (outcome core.ScrapeOutcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = core.ScrapeOutcome{
				ItemKey: entry.key,
				Error:   fmt.Sprintf("executor panic: %v", r),
			}
		}
	}()
	if s.Executor == nil {
		return core.ScrapeOutcome{ItemKey: entry.key, Error: "no scrape executor configured"}
	}
	outcome = s.Executor.Execute(ctx, entry.key)
	if strings.TrimSpace(outcome.ItemKey) == "" {
		outcome.ItemKey = entry.key
	}
	return outcome
}

func (s *Scheduler) recordActivity(ctx context.Context, entry *job, outcome core.ScrapeOutcome, finishedAt time.Time) {
	if s.Activity == nil {
		return
	}
	activity := core.ScrapeActivity{
		ID:        uuid.NewString(),
		SessionID: entry.sessionID,
		ItemKey:   entry.key,
		Tier:      entry.tier,
		State:     entry.state,
		Error:     outcome.Error,
		Duration:  finishedAt.Sub(entry.startedAt),
		CreatedAt: finishedAt,
	}
	if err := s.Activity.Append(ctx, activity); err != nil {
		s.logWarn("scrape activity append failed", "item_key", entry.key, "error", err.Error())
	}
}

// notifyItemComplete hands the delivery to the launcher so webhook retries
// never stall the worker between items.
func (s *Scheduler) notifyItemComplete(entry *job, outcome core.ScrapeOutcome, finishedAt time.Time) {
	if s.Notifier == nil || entry.sessionID == "" {
		return
	}
	payload := core.ItemCompletePayload{
		SessionID:   entry.sessionID,
		JobID:       entry.id,
		ItemKey:     entry.key,
		State:       entry.state,
		Result:      outcome.Result,
		Error:       outcome.Error,
		CompletedAt: finishedAt,
	}
	task := func(taskCtx context.Context) {
		s.Notifier.NotifyItemComplete(taskCtx, payload)
	}
	if s.Launcher != nil {
		if !s.Launcher.Launch("webhook.item-complete", task) {
			s.logWarn("item-complete notification dropped", "item_key", entry.key, "session_id", entry.sessionID)
		}
		return
	}
	go task(context.Background())
}

// admissionRankLocked counts the non-terminal jobs a new admission to tier
// would wait behind: everything already processing plus the queued jobs in
// tiers from hot down through the admission's own tier. The rank is captured
// once at admission and never re-evaluated, so a deduplicated admission sees
// the original value.
func (s *Scheduler) admissionRankLocked(tier core.Tier) int {
	rank := s.processing
	for _, t := range core.Tiers {
		rank += len(s.queues[t])
		if t == tier {
			break
		}
	}
	return rank
}

func (s *Scheduler) signalLocked() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Scheduler) logWarn(message string, args ...any) {
	if s == nil || s.Logger == nil {
		return
	}
	s.Logger.Warn(message, args...)
}

var _ core.ItemScheduler = (*Scheduler)(nil)

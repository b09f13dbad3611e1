// Package sync drives a collection session end to end: credential check,
// export fetch, parse, queue admission, and completion tracking, with a
// phase-change notification at every transition.
package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-collection-sync/core"
	"github.com/google/uuid"
)

const (
	SessionStatusRunning   = "running"
	SessionStatusCompleted = "completed"
	SessionStatusFailed    = "failed"
)

// Admitter is the slice of the scheduler the orchestrator needs.
type Admitter interface {
	EnqueueForSession(req core.EnqueueRequest) (core.EnqueueResult, error)
	Stats() core.QueueStats
}

// Request starts one collection sync. The webhook secret stays in memory for
// the lifetime of the session; the endpoint override is audit-only.
type Request struct {
	Credentials      map[string]string
	WebhookSecret    string
	EndpointOverride string
}

// Session is the terminal report of one sync run.
type Session struct {
	ID           string
	Status       string
	Items        int
	Enqueued     int
	Deduplicated int
	Completed    int
	Failed       int
	Error        string
	StartedAt    time.Time
	FinishedAt   time.Time
}

type Orchestrator struct {
	Validator core.SessionValidator
	Fetcher   core.ExportFetcher
	Parser    core.ExportParser
	Admitter  Admitter
	Notifier  core.WebhookNotifier
	Logger    core.Logger
	Now       func() time.Time
}

func NewOrchestrator(validator core.SessionValidator, fetcher core.ExportFetcher, parser core.ExportParser, admitter Admitter) *Orchestrator {
	return &Orchestrator{
		Validator: validator,
		Fetcher:   fetcher,
		Parser:    parser,
		Admitter:  admitter,
		Now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run executes every phase in order and blocks until each admitted item
// reaches a terminal state. It returns the failed session alongside the
// error so callers always get the terminal report.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Session, error) {
	if o == nil || o.Admitter == nil {
		return Session{}, fmt.Errorf("sync: orchestrator is not configured")
	}

	session := Session{
		ID:        uuid.NewString(),
		Status:    SessionStatusRunning,
		StartedAt: o.now(),
	}

	if o.Notifier != nil && strings.TrimSpace(req.WebhookSecret) != "" {
		o.Notifier.Register(core.WebhookSession{
			SessionID:        session.ID,
			Secret:           req.WebhookSecret,
			EndpointOverride: strings.TrimSpace(req.EndpointOverride),
		})
		defer o.Notifier.Unregister(session.ID)
	}

	if err := o.validate(ctx, &session, req); err != nil {
		return o.fail(ctx, session, core.PhaseValidate, err)
	}

	raw, err := o.fetchExport(ctx, &session)
	if err != nil {
		return o.fail(ctx, session, core.PhaseExport, err)
	}

	items, err := o.parse(ctx, &session, raw)
	if err != nil {
		return o.fail(ctx, session, core.PhaseParse, err)
	}
	session.Items = len(items)

	completions, err := o.enqueue(ctx, &session, items)
	if err != nil {
		return o.fail(ctx, session, core.PhaseQueue, err)
	}

	if err := o.awaitCompletions(ctx, &session, completions); err != nil {
		return o.fail(ctx, session, core.PhaseEnrich, err)
	}

	session.Status = SessionStatusCompleted
	session.FinishedAt = o.now()
	o.emitPhase(ctx, session.ID, core.PhaseComplete, core.PhaseStatusCompleted,
		fmt.Sprintf("%d items, %d completed, %d failed", session.Items, session.Completed, session.Failed))
	return session, nil
}

func (o *Orchestrator) validate(ctx context.Context, session *Session, req Request) error {
	o.emitPhase(ctx, session.ID, core.PhaseValidate, core.PhaseStatusStarted, "")
	if o.Validator == nil {
		return fmt.Errorf("sync: no session validator configured")
	}
	check, err := o.Validator.Validate(ctx, req.Credentials)
	if err != nil {
		return fmt.Errorf("sync: validate credentials: %w", err)
	}
	if !check.Valid {
		reason := strings.TrimSpace(check.Reason)
		if reason == "" {
			reason = "credentials rejected"
		}
		return fmt.Errorf("sync: validate credentials: %s", reason)
	}
	o.emitPhase(ctx, session.ID, core.PhaseValidate, core.PhaseStatusCompleted, "")
	return nil
}

func (o *Orchestrator) fetchExport(ctx context.Context, session *Session) ([]byte, error) {
	o.emitPhase(ctx, session.ID, core.PhaseExport, core.PhaseStatusStarted, "")
	if o.Fetcher == nil {
		return nil, fmt.Errorf("sync: no export fetcher configured")
	}
	raw, err := o.Fetcher.Fetch(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("sync: fetch export: %w", err)
	}
	o.emitPhase(ctx, session.ID, core.PhaseExport, core.PhaseStatusCompleted, "")
	return raw, nil
}

func (o *Orchestrator) parse(ctx context.Context, session *Session, raw []byte) ([]core.CatalogItem, error) {
	o.emitPhase(ctx, session.ID, core.PhaseParse, core.PhaseStatusStarted, "")
	if o.Parser == nil {
		return nil, fmt.Errorf("sync: no export parser configured")
	}
	items, err := o.Parser.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("sync: parse export: %w", err)
	}
	o.emitPhase(ctx, session.ID, core.PhaseParse, core.PhaseStatusCompleted,
		fmt.Sprintf("%d items", len(items)))
	return items, nil
}

// enqueue admits every parsed item under its tier hint. Duplicate keys join
// the in-flight job and are counted, not treated as failures.
func (o *Orchestrator) enqueue(ctx context.Context, session *Session, items []core.CatalogItem) ([]*core.Completion, error) {
	o.emitPhase(ctx, session.ID, core.PhaseQueue, core.PhaseStatusStarted, "")

	completions := make([]*core.Completion, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if seen[item.Key] {
			session.Deduplicated++
			continue
		}
		seen[item.Key] = true

		result, err := o.Admitter.EnqueueForSession(core.EnqueueRequest{
			SessionID: session.ID,
			ItemKey:   item.Key,
			Tier:      item.TierHint,
		})
		if err != nil {
			return nil, fmt.Errorf("sync: enqueue item %s: %w", item.Key, err)
		}
		if result.Deduplicated {
			session.Deduplicated++
		} else {
			session.Enqueued++
		}
		completions = append(completions, result.Completion)
	}

	o.emitPhase(ctx, session.ID, core.PhaseQueue, core.PhaseStatusCompleted,
		fmt.Sprintf("%d enqueued, %d deduplicated", session.Enqueued, session.Deduplicated))
	return completions, nil
}

func (o *Orchestrator) awaitCompletions(ctx context.Context, session *Session, completions []*core.Completion) error {
	o.emitPhase(ctx, session.ID, core.PhaseEnrich, core.PhaseStatusStarted, "")
	for _, completion := range completions {
		outcome, err := completion.Wait(ctx)
		if err != nil {
			return fmt.Errorf("sync: await completions: %w", err)
		}
		if outcome.Failed() {
			session.Failed++
		} else {
			session.Completed++
		}
	}
	o.emitPhase(ctx, session.ID, core.PhaseEnrich, core.PhaseStatusCompleted,
		fmt.Sprintf("%d completed, %d failed", session.Completed, session.Failed))
	return nil
}

// fail marks the session failed, emits the failing phase and the terminal
// complete phase, and returns both the report and the error.
func (o *Orchestrator) fail(ctx context.Context, session Session, phase core.SyncPhase, err error) (Session, error) {
	session.Status = SessionStatusFailed
	session.Error = err.Error()
	session.FinishedAt = o.now()
	o.logWarn("collection sync failed", "session_id", session.ID, "phase", string(phase), "error", err.Error())
	o.emitPhase(ctx, session.ID, phase, core.PhaseStatusFailed, err.Error())
	o.emitPhase(ctx, session.ID, core.PhaseComplete, core.PhaseStatusFailed, err.Error())
	return session, err
}

func (o *Orchestrator) emitPhase(ctx context.Context, sessionID string, phase core.SyncPhase, status string, detail string) {
	if o.Notifier == nil {
		return
	}
	payload := core.PhaseChangePayload{
		SessionID: sessionID,
		Phase:     phase,
		Status:    status,
		Detail:    detail,
		ChangedAt: o.now(),
	}
	if o.Admitter != nil {
		stats := o.Admitter.Stats()
		payload.Stats = &stats
	}
	o.Notifier.NotifyPhaseChange(ctx, payload)
}

func (o *Orchestrator) now() time.Time {
	if o != nil && o.Now != nil {
		return o.Now().UTC()
	}
	return time.Now().UTC()
}

func (o *Orchestrator) logWarn(message string, args ...any) {
	if o == nil || o.Logger == nil {
		return
	}
	o.Logger.Warn(message, args...)
}

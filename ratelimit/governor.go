package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-collection-sync/core"
)

const (
	defaultBaseDelay         = 500 * time.Millisecond
	defaultMaxDelay          = 30 * time.Second
	defaultDecayFactor       = 0.75
	defaultRecoveryThreshold = 3
)

// Governor enforces minimum spacing between outbound scrape attempts and
// adapts that spacing to blocked signals from the target. It is the single
// pacing authority: every worker serializes through one shared instance, so
// the effective request rate is invariant under pool size.
//
// Policy bias is deliberate: backoff doubles immediately on a block, recovery
// decays gradually and only clears the throttled flag after a run of clean
// outcomes.
type Governor struct {
	mu sync.Mutex

	base              time.Duration
	max               time.Duration
	decay             float64
	recoveryThreshold int

	current       time.Duration
	throttled     bool
	cleanStreak   int
	lastAttemptAt time.Time

	Now func() time.Time
}

func NewGovernor(cfg core.RateConfig) *Governor {
	base := cfg.BaseDelay()
	if base <= 0 {
		base = defaultBaseDelay
	}
	max := cfg.MaxDelay()
	if max < base {
		max = defaultMaxDelay
	}
	decay := cfg.DecayFactor
	if decay <= 0 || decay >= 1 {
		decay = defaultDecayFactor
	}
	threshold := cfg.RecoveryThreshold
	if threshold <= 0 {
		threshold = defaultRecoveryThreshold
	}
	return &Governor{
		base:              base,
		max:               max,
		decay:             decay,
		recoveryThreshold: threshold,
		current:           base,
		Now:               func() time.Time { return time.Now().UTC() },
	}
}

// Delay returns the time remaining until the next request may fire; zero when
// already eligible. It never mutates state.
func (g *Governor) Delay() time.Duration {
	if g == nil {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.lastAttemptAt.IsZero() {
		return 0
	}
	eligibleAt := g.lastAttemptAt.Add(g.current)
	now := g.now()
	if !now.Before(eligibleAt) {
		return 0
	}
	return eligibleAt.Sub(now)
}

// Wait blocks until the governor's delay elapses or ctx is cancelled.
func (g *Governor) Wait(ctx context.Context) error {
	if g == nil {
		return nil
	}
	for {
		remaining := g.Delay()
		if remaining <= 0 {
			return nil
		}
		timer := time.NewTimer(remaining)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// RecordOutcome folds one execution attempt into the pacing state. Spacing is
// measured between attempts, not successes, so the attempt timestamp advances
// on every call.
func (g *Governor) RecordOutcome(blocked bool) {
	if g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if blocked {
		next := g.current * 2
		if next > g.max {
			next = g.max
		}
		g.current = next
		g.throttled = true
		g.cleanStreak = 0
	} else {
		next := time.Duration(float64(g.current) * g.decay)
		if next < g.base {
			next = g.base
		}
		g.current = next
		g.cleanStreak++
		if g.throttled && g.cleanStreak >= g.recoveryThreshold {
			g.throttled = false
		}
	}

	g.lastAttemptAt = g.now()
}

// Snapshot returns the current pacing view for stats reporting.
func (g *Governor) Snapshot() core.RateSnapshot {
	if g == nil {
		return core.RateSnapshot{}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return core.RateSnapshot{
		CurrentDelay: g.current,
		Throttled:    g.throttled,
	}
}

func (g *Governor) now() time.Time {
	if g != nil && g.Now != nil {
		return g.Now().UTC()
	}
	return time.Now().UTC()
}

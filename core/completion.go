package core

import (
	"context"
	"sync"
)

// Completion is the single-assignment handle the admitting caller can await.
// Resolve fires exactly once; later calls are ignored so a terminal transition
// can never be replayed onto an observer.
type Completion struct {
	once    sync.Once
	done    chan struct{}
	outcome ScrapeOutcome
}

func NewCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

func (c *Completion) Resolve(outcome ScrapeOutcome) {
	if c == nil {
		return
	}
	c.once.Do(func() {
		c.outcome = outcome
		close(c.done)
	})
}

// Done returns a channel closed when the job reaches a terminal state.
func (c *Completion) Done() <-chan struct{} {
	if c == nil {
		return nil
	}
	return c.done
}

// Outcome returns the resolved outcome; ok is false while still in flight.
func (c *Completion) Outcome() (ScrapeOutcome, bool) {
	if c == nil {
		return ScrapeOutcome{}, false
	}
	select {
	case <-c.done:
		return c.outcome, true
	default:
		return ScrapeOutcome{}, false
	}
}

// Wait blocks until the job resolves or ctx is cancelled.
func (c *Completion) Wait(ctx context.Context) (ScrapeOutcome, error) {
	if c == nil {
		return ScrapeOutcome{}, context.Canceled
	}
	select {
	case <-c.done:
		return c.outcome, nil
	case <-ctx.Done():
		return ScrapeOutcome{}, ctx.Err()
	}
}

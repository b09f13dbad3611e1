package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const defaultLauncherCapacity = 64

// BoundedLauncher runs detached tasks on their own goroutines, bounded so a
// burst of notifications cannot grow without limit. Launch never blocks the
// caller; at capacity the task is dropped and false is returned.
type BoundedLauncher struct {
	mu       sync.Mutex
	wg       sync.WaitGroup
	slots    chan struct{}
	closed   bool
	baseCtx  context.Context
	cancel   context.CancelFunc
	logger   Logger
	OnDrop   func(name string)
	TaskTTL  time.Duration
}

func NewBoundedLauncher(capacity int, logger Logger) *BoundedLauncher {
	if capacity <= 0 {
		capacity = defaultLauncherCapacity
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &BoundedLauncher{
		slots:   make(chan struct{}, capacity),
		baseCtx: ctx,
		cancel:  cancel,
		logger:  logger,
	}
}

func (l *BoundedLauncher) Launch(name string, task func(ctx context.Context)) bool {
	if l == nil || task == nil {
		return false
	}
	name = strings.TrimSpace(name)

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	select {
	case l.slots <- struct{}{}:
	default:
		l.mu.Unlock()
		if l.OnDrop != nil {
			l.OnDrop(name)
		}
		if l.logger != nil {
			l.logger.Warn("detached task dropped at capacity", "task", name)
		}
		return false
	}
	l.wg.Add(1)
	l.mu.Unlock()

	go func() {
		defer func() {
			if recovered := recover(); recovered != nil && l.logger != nil {
				l.logger.Error("detached task panicked", "task", name, "panic", fmt.Sprint(recovered))
			}
			<-l.slots
			l.wg.Done()
		}()

		ctx := l.baseCtx
		if l.TaskTTL > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, l.TaskTTL)
			defer cancel()
		}
		task(ctx)
	}()
	return true
}

// Close stops accepting tasks and waits for in-flight ones until ctx expires.
// Cancellation of still-running deliveries is best effort.
func (l *BoundedLauncher) Close(ctx context.Context) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		l.cancel()
		return ctx.Err()
	}
}

var _ TaskLauncher = (*BoundedLauncher)(nil)

package sqlstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-collection-sync/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

type stubDeliveryAuditStore struct {
	mu          sync.Mutex
	entries     []core.DeliveryAttempt
	listCalls   int
	appendCalls int
}

func (s *stubDeliveryAuditStore) Append(ctx context.Context, attempt core.DeliveryAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendCalls++
	s.entries = append(s.entries, attempt)
	return nil
}

func (s *stubDeliveryAuditStore) ListBySession(ctx context.Context, sessionID string, limit int) ([]core.DeliveryAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	out := make([]core.DeliveryAttempt, 0, len(s.entries))
	for _, entry := range s.entries {
		if entry.SessionID == sessionID {
			out = append(out, entry)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func newTestAuditCacheService(t *testing.T) repositorycache.CacheService {
	t.Helper()
	config := repositorycache.DefaultConfig()
	config.TTL = time.Minute
	service, err := repositorycache.NewCacheService(config)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}
	return service
}

func sampleAttempt(sessionID string, attempt int) core.DeliveryAttempt {
	return core.DeliveryAttempt{
		SessionID:  sessionID,
		CallType:   "item-complete",
		Attempt:    attempt,
		StatusCode: 200,
		OK:         true,
		CreatedAt:  time.Unix(1_700_000_000, 0).UTC(),
	}
}

func TestCachedDeliveryAuditStore_ListMissFetchThenHit(t *testing.T) {
	base := &stubDeliveryAuditStore{}
	base.entries = append(base.entries, sampleAttempt("session-1", 1))

	store, err := NewCachedDeliveryAuditStore(base, newTestAuditCacheService(t))
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}

	if _, err := store.ListBySession(context.Background(), "session-1", 10); err != nil {
		t.Fatalf("first list: %v", err)
	}
	if base.listCalls != 1 {
		t.Fatalf("expected first list to fetch from base, got %d calls", base.listCalls)
	}

	if _, err := store.ListBySession(context.Background(), "session-1", 10); err != nil {
		t.Fatalf("second list: %v", err)
	}
	if base.listCalls != 1 {
		t.Fatalf("expected second list to be a cache hit, base calls=%d", base.listCalls)
	}
}

func TestCachedDeliveryAuditStore_AppendInvalidatesSession(t *testing.T) {
	base := &stubDeliveryAuditStore{}
	store, err := NewCachedDeliveryAuditStore(base, newTestAuditCacheService(t))
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}
	ctx := context.Background()

	if err := store.Append(ctx, sampleAttempt("session-1", 1)); err != nil {
		t.Fatalf("append: %v", err)
	}
	first, err := store.ListBySession(ctx, "session-1", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected 1 attempt, got %d", len(first))
	}

	if err := store.Append(ctx, sampleAttempt("session-1", 2)); err != nil {
		t.Fatalf("append second: %v", err)
	}
	second, err := store.ListBySession(ctx, "session-1", 10)
	if err != nil {
		t.Fatalf("list after append: %v", err)
	}
	if len(second) != 2 {
		t.Fatalf("expected append to invalidate the cached list, got %d attempts", len(second))
	}
}

func TestCachedDeliveryAuditStore_LimitAppliedToCachedList(t *testing.T) {
	base := &stubDeliveryAuditStore{}
	for attempt := 1; attempt <= 4; attempt++ {
		base.entries = append(base.entries, sampleAttempt("session-1", attempt))
	}

	store, err := NewCachedDeliveryAuditStore(base, newTestAuditCacheService(t))
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}

	limited, err := store.ListBySession(context.Background(), "session-1", 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("expected limit to apply, got %d attempts", len(limited))
	}

	full, err := store.ListBySession(context.Background(), "session-1", 0)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(full) != 4 {
		t.Fatalf("expected full list from cache, got %d attempts", len(full))
	}
	if base.listCalls != 1 {
		t.Fatalf("expected one base fetch across both reads, got %d", base.listCalls)
	}
}

func TestDeliveryAuditCacheKey(t *testing.T) {
	key, err := DeliveryAuditCacheKey("session 1")
	if err != nil {
		t.Fatalf("cache key: %v", err)
	}
	if key != "go-collection-sync::delivery_audit::v1::session%201" {
		t.Fatalf("unexpected cache key %q", key)
	}
	if _, err := DeliveryAuditCacheKey("  "); err == nil {
		t.Fatalf("expected error for blank session id")
	}
}

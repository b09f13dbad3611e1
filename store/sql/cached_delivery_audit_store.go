package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-collection-sync/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const deliveryAuditCacheKeyPrefix = "go-collection-sync::delivery_audit::v1"

// CachedDeliveryAuditStore caches the full per-session attempt list and
// invalidates on every append, so audit reads during a live session stay
// cheap without serving stale rows.
type CachedDeliveryAuditStore struct {
	base  core.DeliveryAuditStore
	cache repositorycache.CacheService
}

func NewCachedDeliveryAuditStore(
	base core.DeliveryAuditStore,
	cacheService repositorycache.CacheService,
) (*CachedDeliveryAuditStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base delivery audit store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: delivery audit cache service is required")
	}
	return &CachedDeliveryAuditStore{base: base, cache: cacheService}, nil
}

// DeliveryAuditCacheKey returns the cache key contract for a session's
// attempt list: go-collection-sync::delivery_audit::v1::<session_id> with the
// session segment URL-path escaped.
func DeliveryAuditCacheKey(sessionID string) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return "", fmt.Errorf("sqlstore: session id is required")
	}
	return deliveryAuditCacheKeyPrefix + "::" + url.PathEscape(sessionID), nil
}

func (s *CachedDeliveryAuditStore) Append(ctx context.Context, attempt core.DeliveryAttempt) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached delivery audit store is not configured")
	}
	if err := s.base.Append(ctx, attempt); err != nil {
		return err
	}
	cacheKey, err := DeliveryAuditCacheKey(attempt.SessionID)
	if err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, cacheKey); err != nil {
		return err
	}
	return nil
}

func (s *CachedDeliveryAuditStore) ListBySession(ctx context.Context, sessionID string, limit int) ([]core.DeliveryAttempt, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached delivery audit store is not configured")
	}
	cacheKey, err := DeliveryAuditCacheKey(sessionID)
	if err != nil {
		return nil, err
	}

	attempts, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) ([]core.DeliveryAttempt, error) {
		return s.base.ListBySession(ctx, sessionID, 0)
	})
	if err != nil {
		return nil, err
	}

	cloned := append([]core.DeliveryAttempt(nil), attempts...)
	if limit > 0 && len(cloned) > limit {
		cloned = cloned[:limit]
	}
	return cloned, nil
}

var _ core.DeliveryAuditStore = (*CachedDeliveryAuditStore)(nil)

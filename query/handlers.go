package query

import (
	"context"

	"github.com/goliatone/go-collection-sync/core"
)

type StatsReader interface {
	QueueStats(ctx context.Context) (core.QueueStats, error)
}

type DeliveryAuditReader interface {
	ListDeliveryAudit(ctx context.Context, sessionID string, limit int) ([]core.DeliveryAttempt, error)
}

type ActivityReader interface {
	ListScrapeActivity(ctx context.Context, sessionID string, limit int) ([]core.ScrapeActivity, error)
}

type GetQueueStatsQuery struct {
	reader StatsReader
}

func NewGetQueueStatsQuery(reader StatsReader) *GetQueueStatsQuery {
	return &GetQueueStatsQuery{reader: reader}
}

func (q *GetQueueStatsQuery) Query(ctx context.Context, msg GetQueueStatsMessage) (core.QueueStats, error) {
	if q == nil || q.reader == nil {
		return core.QueueStats{}, queryDependencyError("query: stats reader is required")
	}
	return q.reader.QueueStats(ctx)
}

type ListDeliveryAuditQuery struct {
	reader DeliveryAuditReader
}

func NewListDeliveryAuditQuery(reader DeliveryAuditReader) *ListDeliveryAuditQuery {
	return &ListDeliveryAuditQuery{reader: reader}
}

func (q *ListDeliveryAuditQuery) Query(ctx context.Context, msg ListDeliveryAuditMessage) ([]core.DeliveryAttempt, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: delivery audit reader is required")
	}
	return q.reader.ListDeliveryAudit(ctx, msg.SessionID, msg.Limit)
}

type ListScrapeActivityQuery struct {
	reader ActivityReader
}

func NewListScrapeActivityQuery(reader ActivityReader) *ListScrapeActivityQuery {
	return &ListScrapeActivityQuery{reader: reader}
}

func (q *ListScrapeActivityQuery) Query(ctx context.Context, msg ListScrapeActivityMessage) ([]core.ScrapeActivity, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: activity reader is required")
	}
	return q.reader.ListScrapeActivity(ctx, msg.SessionID, msg.Limit)
}

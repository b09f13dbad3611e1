package query

import (
	"strings"
)

const (
	TypeGetQueueStats      = "collection_sync.query.queue.stats"
	TypeListDeliveryAudit  = "collection_sync.query.webhook.audit"
	TypeListScrapeActivity = "collection_sync.query.scrape.activity"
)

type GetQueueStatsMessage struct{}

func (GetQueueStatsMessage) Type() string { return TypeGetQueueStats }

func (GetQueueStatsMessage) Validate() error { return nil }

type ListDeliveryAuditMessage struct {
	SessionID string
	Limit     int
}

func (ListDeliveryAuditMessage) Type() string { return TypeListDeliveryAudit }

func (m ListDeliveryAuditMessage) Validate() error {
	if strings.TrimSpace(m.SessionID) == "" {
		return queryValidationError("session_id", "session id is required")
	}
	if m.Limit < 0 {
		return queryValidationError("limit", "limit must not be negative")
	}
	return nil
}

type ListScrapeActivityMessage struct {
	SessionID string
	Limit     int
}

func (ListScrapeActivityMessage) Type() string { return TypeListScrapeActivity }

func (m ListScrapeActivityMessage) Validate() error {
	if strings.TrimSpace(m.SessionID) == "" {
		return queryValidationError("session_id", "session id is required")
	}
	if m.Limit < 0 {
		return queryValidationError("limit", "limit must not be negative")
	}
	return nil
}

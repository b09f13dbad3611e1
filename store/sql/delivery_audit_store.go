package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-collection-sync/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type DeliveryAuditStore struct {
	db   *bun.DB
	repo repository.Repository[*deliveryAttemptRecord]
}

func NewDeliveryAuditStore(db *bun.DB) (*DeliveryAuditStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*deliveryAttemptRecord](db, deliveryAttemptHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid delivery audit repository wiring: %w", err)
		}
	}
	return &DeliveryAuditStore{db: db, repo: repo}, nil
}

func (s *DeliveryAuditStore) Append(ctx context.Context, attempt core.DeliveryAttempt) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: delivery audit store is not configured")
	}
	sessionID := strings.TrimSpace(attempt.SessionID)
	if sessionID == "" {
		return fmt.Errorf("sqlstore: delivery attempt session id is required")
	}
	record := &deliveryAttemptRecord{
		ID:               strings.TrimSpace(attempt.ID),
		SessionID:        sessionID,
		CallType:         strings.TrimSpace(attempt.CallType),
		Attempt:          attempt.Attempt,
		StatusCode:       attempt.StatusCode,
		OK:               attempt.OK,
		EndpointOverride: strings.TrimSpace(attempt.EndpointOverride),
		Error:            attempt.Error,
		CreatedAt:        attempt.CreatedAt.UTC(),
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return fmt.Errorf("sqlstore: append delivery attempt: %w", err)
	}
	return nil
}

// ListBySession returns attempts in chronological order. A limit of zero or
// less returns every row for the session.
func (s *DeliveryAuditStore) ListBySession(ctx context.Context, sessionID string, limit int) ([]core.DeliveryAttempt, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: delivery audit store is not configured")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("sqlstore: session id is required")
	}

	var records []*deliveryAttemptRecord
	query := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.session_id = ?", sessionID).
		Order("created_at ASC", "attempt ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, fmt.Errorf("sqlstore: list delivery attempts: %w", err)
	}

	attempts := make([]core.DeliveryAttempt, 0, len(records))
	for _, record := range records {
		attempts = append(attempts, deliveryAttemptToDomain(record))
	}
	return attempts, nil
}

func deliveryAttemptToDomain(record *deliveryAttemptRecord) core.DeliveryAttempt {
	if record == nil {
		return core.DeliveryAttempt{}
	}
	return core.DeliveryAttempt{
		ID:               record.ID,
		SessionID:        record.SessionID,
		CallType:         record.CallType,
		Attempt:          record.Attempt,
		StatusCode:       record.StatusCode,
		OK:               record.OK,
		EndpointOverride: record.EndpointOverride,
		Error:            record.Error,
		CreatedAt:        record.CreatedAt.UTC(),
	}
}

var _ core.DeliveryAuditStore = (*DeliveryAuditStore)(nil)

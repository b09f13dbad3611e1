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

type ActivityStore struct {
	db   *bun.DB
	repo repository.Repository[*scrapeActivityRecord]
}

func NewActivityStore(db *bun.DB) (*ActivityStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*scrapeActivityRecord](db, scrapeActivityHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid scrape activity repository wiring: %w", err)
		}
	}
	return &ActivityStore{db: db, repo: repo}, nil
}

func (s *ActivityStore) Append(ctx context.Context, activity core.ScrapeActivity) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: activity store is not configured")
	}
	itemKey := strings.TrimSpace(activity.ItemKey)
	if itemKey == "" {
		return fmt.Errorf("sqlstore: activity item key is required")
	}
	record := &scrapeActivityRecord{
		ID:         strings.TrimSpace(activity.ID),
		SessionID:  strings.TrimSpace(activity.SessionID),
		ItemKey:    itemKey,
		Tier:       string(activity.Tier),
		State:      string(activity.State),
		Error:      activity.Error,
		DurationMS: activity.Duration.Milliseconds(),
		CreatedAt:  activity.CreatedAt.UTC(),
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return fmt.Errorf("sqlstore: append scrape activity: %w", err)
	}
	return nil
}

func (s *ActivityStore) ListBySession(ctx context.Context, sessionID string, limit int) ([]core.ScrapeActivity, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: activity store is not configured")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("sqlstore: session id is required")
	}

	var records []*scrapeActivityRecord
	query := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.session_id = ?", sessionID).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, fmt.Errorf("sqlstore: list scrape activity: %w", err)
	}

	activities := make([]core.ScrapeActivity, 0, len(records))
	for _, record := range records {
		activities = append(activities, scrapeActivityToDomain(record))
	}
	return activities, nil
}

func scrapeActivityToDomain(record *scrapeActivityRecord) core.ScrapeActivity {
	if record == nil {
		return core.ScrapeActivity{}
	}
	return core.ScrapeActivity{
		ID:        record.ID,
		SessionID: record.SessionID,
		ItemKey:   record.ItemKey,
		Tier:      core.Tier(record.Tier),
		State:     core.JobState(record.State),
		Error:     record.Error,
		Duration:  time.Duration(record.DurationMS) * time.Millisecond,
		CreatedAt: record.CreatedAt.UTC(),
	}
}

var _ core.ActivityStore = (*ActivityStore)(nil)

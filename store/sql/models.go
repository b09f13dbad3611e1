package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type deliveryAttemptRecord struct {
	bun.BaseModel `bun:"table:webhook_delivery_attempts,alias:wda"`

	ID               string    `bun:"id,pk"`
	SessionID        string    `bun:"session_id,notnull"`
	CallType         string    `bun:"call_type,notnull"`
	Attempt          int       `bun:"attempt,notnull"`
	StatusCode       int       `bun:"status_code,notnull"`
	OK               bool      `bun:"ok,notnull"`
	EndpointOverride string    `bun:"endpoint_override"`
	Error            string    `bun:"error"`
	CreatedAt        time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type scrapeActivityRecord struct {
	bun.BaseModel `bun:"table:scrape_activity_entries,alias:sa"`

	ID         string    `bun:"id,pk"`
	SessionID  string    `bun:"session_id"`
	ItemKey    string    `bun:"item_key,notnull"`
	Tier       string    `bun:"tier,notnull"`
	State      string    `bun:"state,notnull"`
	Error      string    `bun:"error"`
	DurationMS int64     `bun:"duration_ms,notnull"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

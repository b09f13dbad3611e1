package core

import (
	"strings"
	"time"
)

type Tier string

const (
	TierHot  Tier = "hot"
	TierWarm Tier = "warm"
	TierCold Tier = "cold"
)

// Tiers lists every tier in worker selection order.
var Tiers = []Tier{TierHot, TierWarm, TierCold}

func (t Tier) Valid() bool {
	switch t {
	case TierHot, TierWarm, TierCold:
		return true
	}
	return false
}

// NormalizeTier maps free-form tier hints onto a known tier, defaulting to warm.
func NormalizeTier(value string) Tier {
	tier := Tier(strings.TrimSpace(strings.ToLower(value)))
	if tier.Valid() {
		return tier
	}
	return TierWarm
}

type JobState string

const (
	JobStateQueued     JobState = "queued"
	JobStateProcessing JobState = "processing"
	JobStateCompleted  JobState = "completed"
	JobStateFailed     JobState = "failed"
)

func (s JobState) Terminal() bool {
	return s == JobStateCompleted || s == JobStateFailed
}

// ScrapeOutcome is the terminal result of one scrape execution. Blocked marks
// a rate-limit or anti-bot rejection from the catalog site; it still counts as
// a failed job but additionally feeds the rate governor.
type ScrapeOutcome struct {
	ItemKey string
	Result  map[string]any
	Error   string
	Blocked bool
}

func (o ScrapeOutcome) Failed() bool {
	return o.Blocked || strings.TrimSpace(o.Error) != ""
}

func (o ScrapeOutcome) State() JobState {
	if o.Failed() {
		return JobStateFailed
	}
	return JobStateCompleted
}

type EnqueueRequest struct {
	SessionID string
	ItemKey   string
	Tier      Tier
}

type EnqueueResult struct {
	JobID        string
	Deduplicated bool
	Position     int
	Completion   *Completion
}

type RateSnapshot struct {
	CurrentDelay time.Duration
	Throttled    bool
}

type QueueStats struct {
	Hot        int
	Warm       int
	Cold       int
	Pending    int
	Processing int
	Completed  int
	Failed     int
	Rate       RateSnapshot
}

// WebhookSession holds the per-session delivery secret. It lives only in
// memory; the EndpointOverride is recorded for audit and never dispatched to.
type WebhookSession struct {
	SessionID        string
	EndpointOverride string
	Secret           string
}

type SyncPhase string

const (
	PhaseValidate SyncPhase = "validate"
	PhaseExport   SyncPhase = "export"
	PhaseParse    SyncPhase = "parse"
	PhaseQueue    SyncPhase = "queue"
	PhaseEnrich   SyncPhase = "enrich"
	PhaseComplete SyncPhase = "complete"
)

const (
	PhaseStatusStarted   = "started"
	PhaseStatusCompleted = "completed"
	PhaseStatusFailed    = "failed"
)

type ItemCompletePayload struct {
	SessionID   string         `json:"session_id"`
	JobID       string         `json:"job_id"`
	ItemKey     string         `json:"item_key"`
	State       JobState       `json:"state"`
	Result      map[string]any `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	CompletedAt time.Time      `json:"completed_at"`
}

type PhaseChangePayload struct {
	SessionID string      `json:"session_id"`
	Phase     SyncPhase   `json:"phase"`
	Status    string      `json:"status"`
	Detail    string      `json:"detail,omitempty"`
	Stats     *QueueStats `json:"stats,omitempty"`
	ChangedAt time.Time   `json:"changed_at"`
}

// CatalogItem is one row of a parsed collection export.
type CatalogItem struct {
	Key         string
	Name        string
	Category    string
	Status      string
	NSFW        bool
	ReleaseDate *time.Time
	Price       *float64
	TierHint    Tier
}

type SessionCheck struct {
	Valid  bool
	Reason string
}

// DeliveryAttempt is one outbound webhook HTTP attempt, recorded for audit.
type DeliveryAttempt struct {
	ID               string
	SessionID        string
	CallType         string
	Attempt          int
	StatusCode       int
	OK               bool
	EndpointOverride string
	Error            string
	CreatedAt        time.Time
}

// ScrapeActivity is the terminal record of one scrape job.
type ScrapeActivity struct {
	ID        string
	SessionID string
	ItemKey   string
	Tier      Tier
	State     JobState
	Error     string
	Duration  time.Duration
	CreatedAt time.Time
}

// ValidItemKey reports whether key is a non-empty numeric catalog identifier.
func ValidItemKey(key string) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		return false
	}
	for _, r := range key {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

package webhooks

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-collection-sync/core"
	"github.com/google/uuid"
)

const (
	CallTypeItemComplete = "item-complete"
	CallTypePhaseChange  = "phase-change"

	defaultMaxRetries = 3
	defaultBaseDelay  = time.Second
)

// Dispatcher signs and delivers lifecycle notifications with bounded retry.
// The dispatch target is derived exclusively from the server-configured
// trusted base; the endpoint recorded on a session config is audit-only and
// never used to route traffic. That asymmetry is the SSRF boundary: an
// attacker who controls session registration cannot redirect deliveries.
type Dispatcher struct {
	Registry   *SessionRegistry
	Transport  Transport
	Base       string
	MaxRetries int
	BaseDelay  time.Duration
	Logger     core.Logger
	Audit      core.DeliveryAuditStore
	Now        func() time.Time
	Sleep      func(ctx context.Context, d time.Duration) error
}

func NewDispatcher(registry *SessionRegistry, transport Transport, trustedBase string) *Dispatcher {
	return &Dispatcher{
		Registry:   registry,
		Transport:  transport,
		Base:       strings.TrimRight(strings.TrimSpace(trustedBase), "/"),
		MaxRetries: defaultMaxRetries,
		BaseDelay:  defaultBaseDelay,
		Now:        func() time.Time { return time.Now().UTC() },
		Sleep:      sleepContext,
	}
}

func (d *Dispatcher) Register(session core.WebhookSession) {
	if d == nil || d.Registry == nil {
		return
	}
	d.Registry.Register(session)
}

func (d *Dispatcher) Unregister(sessionID string) {
	if d == nil || d.Registry == nil {
		return
	}
	d.Registry.Unregister(sessionID)
}

func (d *Dispatcher) NotifyItemComplete(ctx context.Context, payload core.ItemCompletePayload) bool {
	return d.notify(ctx, payload.SessionID, CallTypeItemComplete, payload)
}

func (d *Dispatcher) NotifyPhaseChange(ctx context.Context, payload core.PhaseChangePayload) bool {
	return d.notify(ctx, payload.SessionID, CallTypePhaseChange, payload)
}

// notify runs the full retry budget for one notification. It returns true
// only when an attempt was confirmed delivered; it never panics and never
// propagates an error, since delivery is best-effort telemetry.
func (d *Dispatcher) notify(ctx context.Context, sessionID string, callType string, payload any) bool {
	if d == nil || d.Transport == nil || d.Registry == nil {
		return false
	}
	session, ok := d.Registry.Lookup(sessionID)
	if !ok {
		// Normal for ad-hoc single-item work with no backend session.
		return false
	}
	if strings.TrimSpace(d.Base) == "" {
		d.logWarn("webhook base endpoint is not configured", "session_id", sessionID, "call_type", callType)
		return false
	}

	body, err := json.Marshal(payload)
	if err != nil {
		d.logWarn("webhook payload marshal failed", "session_id", sessionID, "call_type", callType, "error", err.Error())
		return false
	}
	signature := Sign(body, session.Secret)
	url := d.Base + "/" + callType

	maxRetries := d.MaxRetries
	if maxRetries < 0 {
		maxRetries = defaultMaxRetries
	}

	for attempt := 0; attempt <= maxRetries; attempt++ {
		delivery, deliverErr := d.Transport.Deliver(ctx, url, body, signature)
		d.recordAttempt(ctx, session, callType, attempt+1, delivery, deliverErr)

		if deliverErr == nil && delivery.OK {
			return true
		}

		retryable := deliverErr != nil ||
			delivery.StatusCode == http.StatusTooManyRequests ||
			delivery.StatusCode >= http.StatusInternalServerError
		if !retryable {
			d.logWarn("webhook delivery rejected",
				"session_id", sessionID,
				"call_type", callType,
				"status", delivery.StatusCode,
			)
			return false
		}
		if attempt == maxRetries {
			break
		}

		delay := d.backoffDelay(attempt)
		if delivery.StatusCode == http.StatusTooManyRequests && delivery.RetryAfter != nil {
			delay = *delivery.RetryAfter
		}
		if err := d.sleep(ctx, delay); err != nil {
			d.logWarn("webhook retry cancelled", "session_id", sessionID, "call_type", callType)
			return false
		}
	}

	d.logWarn("webhook delivery exhausted retries",
		"session_id", sessionID,
		"call_type", callType,
		"attempts", maxRetries+1,
	)
	return false
}

func (d *Dispatcher) recordAttempt(
	ctx context.Context,
	session core.WebhookSession,
	callType string,
	attempt int,
	delivery Delivery,
	deliverErr error,
) {
	if d == nil || d.Audit == nil {
		return
	}
	entry := core.DeliveryAttempt{
		ID:               uuid.NewString(),
		SessionID:        session.SessionID,
		CallType:         callType,
		Attempt:          attempt,
		StatusCode:       delivery.StatusCode,
		OK:               deliverErr == nil && delivery.OK,
		EndpointOverride: session.EndpointOverride,
		CreatedAt:        d.now(),
	}
	if deliverErr != nil {
		entry.Error = deliverErr.Error()
	}
	if err := d.Audit.Append(ctx, entry); err != nil {
		d.logWarn("webhook audit append failed", "session_id", session.SessionID, "error", err.Error())
	}
}

func (d *Dispatcher) backoffDelay(attempt int) time.Duration {
	base := d.BaseDelay
	if base <= 0 {
		base = defaultBaseDelay
	}
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

func (d *Dispatcher) sleep(ctx context.Context, delay time.Duration) error {
	if d != nil && d.Sleep != nil {
		return d.Sleep(ctx, delay)
	}
	return sleepContext(ctx, delay)
}

func (d *Dispatcher) now() time.Time {
	if d != nil && d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

func (d *Dispatcher) logWarn(message string, args ...any) {
	if d == nil || d.Logger == nil {
		return
	}
	d.Logger.Warn(message, args...)
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ core.WebhookNotifier = (*Dispatcher)(nil)

package webhooks

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const defaultAttemptTimeout = 10 * time.Second

// Delivery is the classified result of one HTTP attempt. RetryAfter surfaces
// the response's retry-after directive when present; the dispatcher decides
// what to do with it.
type Delivery struct {
	OK         bool
	StatusCode int
	RetryAfter *time.Duration
}

// Transport performs one signed delivery attempt. It never retries.
type Transport interface {
	Deliver(ctx context.Context, url string, body []byte, signature string) (Delivery, error)
}

type HTTPTransport struct {
	Client         *http.Client
	AttemptTimeout time.Duration
	Now            func() time.Time
}

func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	if timeout <= 0 {
		timeout = defaultAttemptTimeout
	}
	return &HTTPTransport{
		Client:         &http.Client{},
		AttemptTimeout: timeout,
		Now:            func() time.Time { return time.Now().UTC() },
	}
}

func (t *HTTPTransport) Deliver(ctx context.Context, url string, body []byte, signature string) (Delivery, error) {
	if t == nil || t.Client == nil {
		return Delivery{}, fmt.Errorf("webhooks: http transport is not configured")
	}
	url = strings.TrimSpace(url)
	if url == "" {
		return Delivery{}, fmt.Errorf("webhooks: delivery url is required")
	}

	timeout := t.AttemptTimeout
	if timeout <= 0 {
		timeout = defaultAttemptTimeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Delivery{}, fmt.Errorf("webhooks: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, signature)

	res, err := t.Client.Do(req)
	if err != nil {
		return Delivery{}, fmt.Errorf("webhooks: deliver: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}()

	delivery := Delivery{
		OK:         res.StatusCode >= 200 && res.StatusCode < 300,
		StatusCode: res.StatusCode,
	}
	if retryAfter, ok := parseRetryAfter(res.Header.Get("Retry-After"), t.now()); ok {
		delivery.RetryAfter = &retryAfter
	}
	return delivery, nil
}

func (t *HTTPTransport) now() time.Time {
	if t != nil && t.Now != nil {
		return t.Now().UTC()
	}
	return time.Now().UTC()
}

func parseRetryAfter(raw string, now time.Time) (time.Duration, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		if seconds <= 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if retryAt, err := httpDate(raw); err == nil {
		if retryAt.After(now) {
			return retryAt.Sub(now), true
		}
	}
	return 0, false
}

func httpDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("webhooks: empty date")
	}
	if parsed, err := time.Parse(time.RFC1123, value); err == nil {
		return parsed.UTC(), nil
	}
	if parsed, err := time.Parse(time.RFC1123Z, value); err == nil {
		return parsed.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("webhooks: invalid http date")
}

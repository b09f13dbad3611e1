package webhooks

import (
	"strings"
	"sync"

	"github.com/goliatone/go-collection-sync/core"
)

// SessionRegistry owns the session → {secret, endpoint override} mapping.
// Configs live only in memory for the duration of the owning sync session;
// the secret is deliberately never written to durable storage.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]core.WebhookSession
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]core.WebhookSession)}
}

// Register inserts or overwrites the config for the session.
func (r *SessionRegistry) Register(session core.WebhookSession) {
	if r == nil {
		return
	}
	id := strings.TrimSpace(session.SessionID)
	if id == "" {
		return
	}
	session.SessionID = id
	r.mu.Lock()
	r.sessions[id] = session
	r.mu.Unlock()
}

// Unregister removes the session config; unknown sessions are a no-op.
func (r *SessionRegistry) Unregister(sessionID string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	delete(r.sessions, strings.TrimSpace(sessionID))
	r.mu.Unlock()
}

func (r *SessionRegistry) Lookup(sessionID string) (core.WebhookSession, bool) {
	if r == nil {
		return core.WebhookSession{}, false
	}
	id := strings.TrimSpace(sessionID)
	if id == "" {
		return core.WebhookSession{}, false
	}
	r.mu.RLock()
	session, ok := r.sessions[id]
	r.mu.RUnlock()
	return session, ok
}

func (r *SessionRegistry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

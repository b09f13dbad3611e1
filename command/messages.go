package command

import (
	"strings"

	"github.com/goliatone/go-collection-sync/core"
	syncrun "github.com/goliatone/go-collection-sync/sync"
)

const (
	TypeEnqueueItem              = "collection_sync.command.item.enqueue"
	TypeRegisterWebhookSession   = "collection_sync.command.webhook.register"
	TypeUnregisterWebhookSession = "collection_sync.command.webhook.unregister"
	TypeStartCollectionSync      = "collection_sync.command.session.start"
)

type EnqueueItemMessage struct {
	Request core.EnqueueRequest
}

func (EnqueueItemMessage) Type() string { return TypeEnqueueItem }

func (m EnqueueItemMessage) Validate() error {
	if !core.ValidItemKey(m.Request.ItemKey) {
		return commandValidationError("item_key", "item key must be a non-empty numeric catalog id")
	}
	return nil
}

type RegisterWebhookSessionMessage struct {
	Session core.WebhookSession
}

func (RegisterWebhookSessionMessage) Type() string { return TypeRegisterWebhookSession }

func (m RegisterWebhookSessionMessage) Validate() error {
	if strings.TrimSpace(m.Session.SessionID) == "" {
		return commandValidationError("session_id", "session id is required")
	}
	if strings.TrimSpace(m.Session.Secret) == "" {
		return commandValidationError("secret", "webhook secret is required")
	}
	return nil
}

type UnregisterWebhookSessionMessage struct {
	SessionID string
}

func (UnregisterWebhookSessionMessage) Type() string { return TypeUnregisterWebhookSession }

func (m UnregisterWebhookSessionMessage) Validate() error {
	if strings.TrimSpace(m.SessionID) == "" {
		return commandValidationError("session_id", "session id is required")
	}
	return nil
}

type StartCollectionSyncMessage struct {
	Request syncrun.Request
}

func (StartCollectionSyncMessage) Type() string { return TypeStartCollectionSync }

func (m StartCollectionSyncMessage) Validate() error {
	if len(m.Request.Credentials) == 0 {
		return commandValidationError("credentials", "session credentials are required")
	}
	return nil
}

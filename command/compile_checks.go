package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[EnqueueItemMessage]              = (*EnqueueItemCommand)(nil)
	_ gocmd.Commander[RegisterWebhookSessionMessage]   = (*RegisterWebhookSessionCommand)(nil)
	_ gocmd.Commander[UnregisterWebhookSessionMessage] = (*UnregisterWebhookSessionCommand)(nil)
	_ gocmd.Commander[StartCollectionSyncMessage]      = (*StartCollectionSyncCommand)(nil)
)

package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-collection-sync/core"
	syncrun "github.com/goliatone/go-collection-sync/sync"
)

type MutatingService interface {
	EnqueueItem(ctx context.Context, req core.EnqueueRequest) (core.EnqueueResult, error)
	RegisterWebhookSession(ctx context.Context, session core.WebhookSession) error
	UnregisterWebhookSession(ctx context.Context, sessionID string) error
}

type SyncRunner interface {
	Run(ctx context.Context, req syncrun.Request) (syncrun.Session, error)
}

type EnqueueItemCommand struct {
	service MutatingService
}

func NewEnqueueItemCommand(service MutatingService) *EnqueueItemCommand {
	return &EnqueueItemCommand{service: service}
}

func (c *EnqueueItemCommand) Execute(ctx context.Context, msg EnqueueItemMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: enqueue service is required")
	}
	out, err := c.service.EnqueueItem(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RegisterWebhookSessionCommand struct {
	service MutatingService
}

func NewRegisterWebhookSessionCommand(service MutatingService) *RegisterWebhookSessionCommand {
	return &RegisterWebhookSessionCommand{service: service}
}

func (c *RegisterWebhookSessionCommand) Execute(ctx context.Context, msg RegisterWebhookSessionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: webhook session service is required")
	}
	return c.service.RegisterWebhookSession(ctx, msg.Session)
}

type UnregisterWebhookSessionCommand struct {
	service MutatingService
}

func NewUnregisterWebhookSessionCommand(service MutatingService) *UnregisterWebhookSessionCommand {
	return &UnregisterWebhookSessionCommand{service: service}
}

func (c *UnregisterWebhookSessionCommand) Execute(ctx context.Context, msg UnregisterWebhookSessionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: webhook session service is required")
	}
	return c.service.UnregisterWebhookSession(ctx, msg.SessionID)
}

type StartCollectionSyncCommand struct {
	runner SyncRunner
}

func NewStartCollectionSyncCommand(runner SyncRunner) *StartCollectionSyncCommand {
	return &StartCollectionSyncCommand{runner: runner}
}

func (c *StartCollectionSyncCommand) Execute(ctx context.Context, msg StartCollectionSyncMessage) error {
	if c == nil || c.runner == nil {
		return commandDependencyError("command: sync runner is required")
	}
	out, err := c.runner.Run(ctx, msg.Request)
	if err != nil {
		// The terminal session report still flows to the caller.
		storeResult(ctx, out)
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}

// Package gocommand wires the collection sync command and query handlers into
// the go-command registry and dispatcher so callers can drive the service
// through typed messages.
package gocommand

import (
	"context"
	"fmt"
	"strings"

	gocmd "github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"

	synccommand "github.com/goliatone/go-collection-sync/command"
	"github.com/goliatone/go-collection-sync/query"
)

// ValidateMessageContract enforces the Type() plus optional Validate()
// contract that all collection sync messages implement.
func ValidateMessageContract(msg any) error {
	if err := gocmd.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(gocmd.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

type RegistryAdapter struct {
	registry *gocmd.Registry
}

func NewRegistryAdapter(registry *gocmd.Registry) *RegistryAdapter {
	if registry == nil {
		registry = gocmd.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) Registry() *gocmd.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

func (a *RegistryAdapter) RegisterCommand(cmd any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(cmd)
}

func (a *RegistryAdapter) RegisterQuery(qry any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(qry)
}

func (a *RegistryAdapter) AddResolver(key string, resolver gocmd.Resolver) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.AddResolver(strings.TrimSpace(key), resolver)
}

// AddQueueResolver mirrors registered commands into a go-job queue registry so
// sync commands can also be fed from an external queue.
func (a *RegistryAdapter) AddQueueResolver(key string, queueRegistry *jobqueuecommand.Registry) error {
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	return a.AddResolver(key, jobqueuecommand.QueueResolver(queueRegistry))
}

func (a *RegistryAdapter) HasResolver(key string) bool {
	if a == nil || a.registry == nil {
		return false
	}
	return a.registry.HasResolver(strings.TrimSpace(key))
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.Initialize()
}

// Handlers collects every collection sync handler a deployment exposes over
// the dispatcher. Nil entries are skipped.
type Handlers struct {
	EnqueueItem       *synccommand.EnqueueItemCommand
	RegisterWebhook   *synccommand.RegisterWebhookSessionCommand
	UnregisterWebhook *synccommand.UnregisterWebhookSessionCommand
	StartSync         *synccommand.StartCollectionSyncCommand

	QueueStats     *query.GetQueueStatsQuery
	DeliveryAudit  *query.ListDeliveryAuditQuery
	ScrapeActivity *query.ListScrapeActivityQuery
}

// SubscribeHandlers registers the provided handlers with the registry and
// subscribes them to the dispatcher. Already-created subscriptions are torn
// down if a later registration fails.
func SubscribeHandlers(adapter *RegistryAdapter, handlers Handlers, runnerOpts ...runner.Option) ([]commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}

	var subscriptions []commanddispatcher.Subscription
	unsubscribeAll := func() {
		for _, subscription := range subscriptions {
			if subscription != nil {
				subscription.Unsubscribe()
			}
		}
	}

	subscribeCommand := func(cmd any, subscribe func() commanddispatcher.Subscription) error {
		subscription := subscribe()
		if err := adapter.RegisterCommand(cmd); err != nil {
			if subscription != nil {
				subscription.Unsubscribe()
			}
			return err
		}
		subscriptions = append(subscriptions, subscription)
		return nil
	}

	if handlers.EnqueueItem != nil {
		if err := subscribeCommand(handlers.EnqueueItem, func() commanddispatcher.Subscription {
			return commanddispatcher.SubscribeCommand[synccommand.EnqueueItemMessage](handlers.EnqueueItem, runnerOpts...)
		}); err != nil {
			unsubscribeAll()
			return nil, err
		}
	}
	if handlers.RegisterWebhook != nil {
		if err := subscribeCommand(handlers.RegisterWebhook, func() commanddispatcher.Subscription {
			return commanddispatcher.SubscribeCommand[synccommand.RegisterWebhookSessionMessage](handlers.RegisterWebhook, runnerOpts...)
		}); err != nil {
			unsubscribeAll()
			return nil, err
		}
	}
	if handlers.UnregisterWebhook != nil {
		if err := subscribeCommand(handlers.UnregisterWebhook, func() commanddispatcher.Subscription {
			return commanddispatcher.SubscribeCommand[synccommand.UnregisterWebhookSessionMessage](handlers.UnregisterWebhook, runnerOpts...)
		}); err != nil {
			unsubscribeAll()
			return nil, err
		}
	}
	if handlers.StartSync != nil {
		if err := subscribeCommand(handlers.StartSync, func() commanddispatcher.Subscription {
			return commanddispatcher.SubscribeCommand[synccommand.StartCollectionSyncMessage](handlers.StartSync, runnerOpts...)
		}); err != nil {
			unsubscribeAll()
			return nil, err
		}
	}
	if handlers.QueueStats != nil {
		if err := subscribeCommand(handlers.QueueStats, func() commanddispatcher.Subscription {
			return commanddispatcher.SubscribeQuery(handlers.QueueStats, runnerOpts...)
		}); err != nil {
			unsubscribeAll()
			return nil, err
		}
	}
	if handlers.DeliveryAudit != nil {
		if err := subscribeCommand(handlers.DeliveryAudit, func() commanddispatcher.Subscription {
			return commanddispatcher.SubscribeQuery(handlers.DeliveryAudit, runnerOpts...)
		}); err != nil {
			unsubscribeAll()
			return nil, err
		}
	}
	if handlers.ScrapeActivity != nil {
		if err := subscribeCommand(handlers.ScrapeActivity, func() commanddispatcher.Subscription {
			return commanddispatcher.SubscribeQuery(handlers.ScrapeActivity, runnerOpts...)
		}); err != nil {
			unsubscribeAll()
			return nil, err
		}
	}

	return subscriptions, nil
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	return commanddispatcher.Query[T, R](ctx, msg)
}

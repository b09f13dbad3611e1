package collectionsync

import (
	"fmt"

	synccommand "github.com/goliatone/go-collection-sync/command"
	syncquery "github.com/goliatone/go-collection-sync/query"
)

// CommandQueryService is the slice of the service the command and query
// handlers need. *core.Service satisfies it.
type CommandQueryService interface {
	synccommand.MutatingService
	syncquery.StatsReader
	syncquery.DeliveryAuditReader
	syncquery.ActivityReader
}

type Commands struct {
	EnqueueItem       *synccommand.EnqueueItemCommand
	RegisterWebhook   *synccommand.RegisterWebhookSessionCommand
	UnregisterWebhook *synccommand.UnregisterWebhookSessionCommand
	StartSync         *synccommand.StartCollectionSyncCommand
}

type Queries struct {
	QueueStats     *syncquery.GetQueueStatsQuery
	DeliveryAudit  *syncquery.ListDeliveryAuditQuery
	ScrapeActivity *syncquery.ListScrapeActivityQuery
}

// Facade bundles ready-to-dispatch handlers over one service instance.
type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	runner synccommand.SyncRunner
}

// WithSyncRunner enables the start-sync command. Without it the facade still
// serves the enqueue, webhook, and query surfaces.
func WithSyncRunner(runner synccommand.SyncRunner) FacadeOption {
	return func(options *facadeOptions) {
		options.runner = runner
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("collectionsync: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		EnqueueItem:       synccommand.NewEnqueueItemCommand(service),
		RegisterWebhook:   synccommand.NewRegisterWebhookSessionCommand(service),
		UnregisterWebhook: synccommand.NewUnregisterWebhookSessionCommand(service),
	}
	if cfg.runner != nil {
		facade.commands.StartSync = synccommand.NewStartCollectionSyncCommand(cfg.runner)
	}
	facade.queries = Queries{
		QueueStats:     syncquery.NewGetQueueStatsQuery(service),
		DeliveryAudit:  syncquery.NewListDeliveryAuditQuery(service),
		ScrapeActivity: syncquery.NewListScrapeActivityQuery(service),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

package collectionsync

import (
	"context"
	"fmt"

	"github.com/goliatone/go-collection-sync/core"
	"github.com/goliatone/go-collection-sync/export"
	"github.com/goliatone/go-collection-sync/ratelimit"
	"github.com/goliatone/go-collection-sync/scheduler"
	syncrun "github.com/goliatone/go-collection-sync/sync"
	"github.com/goliatone/go-collection-sync/webhooks"
)

// SetupDependencies carries the site-specific collaborators Setup cannot
// build itself. Executor is required; the rest default to sensible in-process
// implementations or stay nil when the capability is not used.
type SetupDependencies struct {
	Executor  core.ScrapeExecutor
	Validator core.SessionValidator
	Fetcher   core.ExportFetcher
	Parser    core.ExportParser
	Transport webhooks.Transport
	Audit     core.DeliveryAuditStore
	Activity  core.ActivityStore
	Logger    core.Logger
}

// Runtime is the fully wired collection sync pipeline.
type Runtime struct {
	Service      *core.Service
	Scheduler    *scheduler.Scheduler
	Dispatcher   *webhooks.Dispatcher
	Orchestrator *syncrun.Orchestrator
	Governor     *ratelimit.Governor
}

// Setup builds the scheduler, rate governor, webhook dispatcher, and service
// from one resolved configuration. The orchestrator is only wired when both a
// session validator and an export fetcher are supplied.
func Setup(cfg Config, deps SetupDependencies, options ...Option) (*Runtime, error) {
	if deps.Executor == nil {
		return nil, fmt.Errorf("collectionsync: scrape executor is required")
	}

	resolved, err := (core.GoOptionsResolver{}).Resolve(core.DefaultConfig(), core.DefaultConfig(), cfg)
	if err != nil {
		return nil, err
	}

	governor := ratelimit.NewGovernor(resolved.Rate)

	transport := deps.Transport
	if transport == nil {
		transport = webhooks.NewHTTPTransport(resolved.Webhook.AttemptTimeout())
	}
	dispatcher := webhooks.NewDispatcher(webhooks.NewSessionRegistry(), transport, resolved.Webhook.TrustedBase)
	dispatcher.MaxRetries = resolved.Webhook.MaxRetries
	dispatcher.BaseDelay = resolved.Webhook.BaseDelay()
	dispatcher.Audit = deps.Audit
	dispatcher.Logger = deps.Logger

	sched := scheduler.New(deps.Executor, governor)
	sched.Notifier = dispatcher
	sched.Activity = deps.Activity
	sched.Logger = deps.Logger

	serviceOptions := []Option{
		WithScheduler(sched),
		WithWebhookNotifier(dispatcher),
	}
	if deps.Audit != nil {
		serviceOptions = append(serviceOptions, WithDeliveryAuditStore(deps.Audit))
	}
	if deps.Activity != nil {
		serviceOptions = append(serviceOptions, WithActivityStore(deps.Activity))
	}
	if deps.Validator != nil {
		serviceOptions = append(serviceOptions, WithSessionValidator(deps.Validator))
	}
	if deps.Logger != nil {
		serviceOptions = append(serviceOptions, WithLogger(deps.Logger))
	}
	serviceOptions = append(serviceOptions, options...)

	service, err := core.NewService(resolved, serviceOptions...)
	if err != nil {
		return nil, err
	}

	if sched.Logger == nil {
		sched.Logger = service.Logger()
	}
	if dispatcher.Logger == nil {
		dispatcher.Logger = service.Logger()
	}
	sched.Launcher = service.Launcher()

	runtime := &Runtime{
		Service:    service,
		Scheduler:  sched,
		Dispatcher: dispatcher,
		Governor:   governor,
	}

	if deps.Validator != nil && deps.Fetcher != nil {
		parser := deps.Parser
		if parser == nil {
			parser = export.NewCSVParser()
		}
		orchestrator := syncrun.NewOrchestrator(deps.Validator, deps.Fetcher, parser, sched)
		orchestrator.Notifier = dispatcher
		orchestrator.Logger = service.Logger()
		runtime.Orchestrator = orchestrator
	}

	return runtime, nil
}

// Start launches the scheduler worker. It returns once the loop is running;
// cancel the context to stop it.
func (r *Runtime) Start(ctx context.Context) error {
	if r == nil || r.Scheduler == nil {
		return fmt.Errorf("collectionsync: runtime is not configured")
	}
	r.Scheduler.Start(ctx)
	return nil
}

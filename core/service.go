package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// Service is the dependency-injected front door over the scrape scheduler and
// the webhook notifier. All collaborator state is owned by the instance so
// tests can build isolated services per case.
type Service struct {
	config           Config
	logger           Logger
	loggerProvider   LoggerProvider
	metricsRecorder  MetricsRecorder
	errorFactory     ErrorFactory
	errorMapper      ErrorMapper
	scheduler        ItemScheduler
	notifier         WebhookNotifier
	launcher         TaskLauncher
	deliveryAudit    DeliveryAuditStore
	activityStore    ActivityStore
	sessionValidator SessionValidator
}

func NewService(cfg Config, options ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("collection-sync", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("collection-sync"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if (builder.deliveryAudit == nil || builder.activityStore == nil) && builder.repositoryFactory != nil {
		if storeFactory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			storeProvider, buildErr := storeFactory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			if storeProvider != nil {
				if builder.deliveryAudit == nil {
					builder.deliveryAudit = storeProvider.DeliveryAuditStore()
				}
				if builder.activityStore == nil {
					builder.activityStore = storeProvider.ActivityStore()
				}
			}
		}
	}

	if builder.launcher == nil {
		builder.launcher = NewBoundedLauncher(0, logger)
	}

	return &Service{
		config:           finalConfig,
		logger:           logger,
		loggerProvider:   provider,
		metricsRecorder:  builder.metricsRecorder,
		errorFactory:     builder.errorFactory,
		errorMapper:      builder.errorMapper,
		scheduler:        builder.scheduler,
		notifier:         builder.notifier,
		launcher:         builder.launcher,
		deliveryAudit:    builder.deliveryAudit,
		activityStore:    builder.activityStore,
		sessionValidator: builder.sessionValidator,
	}, nil
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Logger() Logger {
	if s == nil {
		return nil
	}
	return s.logger
}

func (s *Service) Launcher() TaskLauncher {
	if s == nil {
		return nil
	}
	return s.launcher
}

func (s *Service) Notifier() WebhookNotifier {
	if s == nil {
		return nil
	}
	return s.notifier
}

// EnqueueItem admits one catalog item into the scrape queue. The key must be
// a numeric catalog identifier; malformed keys are rejected before any job
// state is created.
func (s *Service) EnqueueItem(ctx context.Context, req EnqueueRequest) (EnqueueResult, error) {
	startedAt := time.Now()
	result, err := s.enqueueItem(req)
	s.observeOperation(ctx, startedAt, "enqueue", err, map[string]any{
		"session_id": req.SessionID,
		"item_key":   req.ItemKey,
		"tier":       string(req.Tier),
	})
	if err != nil {
		return EnqueueResult{}, s.mapError(err)
	}
	return result, nil
}

func (s *Service) enqueueItem(req EnqueueRequest) (EnqueueResult, error) {
	if s == nil || s.scheduler == nil {
		return EnqueueResult{}, fmt.Errorf("core: item scheduler is required")
	}
	key := strings.TrimSpace(req.ItemKey)
	if !ValidItemKey(key) {
		return EnqueueResult{}, fmt.Errorf("core: invalid item key %q, a non-empty numeric string is required", req.ItemKey)
	}
	tier := req.Tier
	if !tier.Valid() {
		tier = NormalizeTier(string(tier))
	}
	return s.scheduler.Enqueue(key, tier)
}

// QueueStats returns a point-in-time snapshot; it never blocks on the worker.
func (s *Service) QueueStats(context.Context) (QueueStats, error) {
	if s == nil || s.scheduler == nil {
		return QueueStats{}, s.mapError(fmt.Errorf("core: item scheduler is required"))
	}
	return s.scheduler.Stats(), nil
}

func (s *Service) RegisterWebhookSession(ctx context.Context, session WebhookSession) error {
	if s == nil || s.notifier == nil {
		return s.mapError(fmt.Errorf("core: webhook notifier is required"))
	}
	if strings.TrimSpace(session.SessionID) == "" {
		return s.mapError(fmt.Errorf("core: session id is required"))
	}
	if strings.TrimSpace(session.Secret) == "" {
		return s.mapError(fmt.Errorf("core: webhook secret is required"))
	}
	s.notifier.Register(session)
	s.logInfo(ctx, "webhook session registered", map[string]any{
		"session_id": session.SessionID,
	})
	return nil
}

// UnregisterWebhookSession is a no-op for unknown sessions.
func (s *Service) UnregisterWebhookSession(ctx context.Context, sessionID string) error {
	if s == nil || s.notifier == nil {
		return s.mapError(fmt.Errorf("core: webhook notifier is required"))
	}
	s.notifier.Unregister(strings.TrimSpace(sessionID))
	s.logInfo(ctx, "webhook session unregistered", map[string]any{
		"session_id": sessionID,
	})
	return nil
}

func (s *Service) NotifyItemComplete(ctx context.Context, payload ItemCompletePayload) (bool, error) {
	if s == nil || s.notifier == nil {
		return false, s.mapError(fmt.Errorf("core: webhook notifier is required"))
	}
	return s.notifier.NotifyItemComplete(ctx, payload), nil
}

func (s *Service) NotifyPhaseChange(ctx context.Context, payload PhaseChangePayload) (bool, error) {
	if s == nil || s.notifier == nil {
		return false, s.mapError(fmt.Errorf("core: webhook notifier is required"))
	}
	return s.notifier.NotifyPhaseChange(ctx, payload), nil
}

func (s *Service) ValidateSession(ctx context.Context, credentials map[string]string) (SessionCheck, error) {
	if s == nil || s.sessionValidator == nil {
		return SessionCheck{}, s.mapError(fmt.Errorf("core: session validator is required"))
	}
	check, err := s.sessionValidator.Validate(ctx, credentials)
	if err != nil {
		return SessionCheck{}, s.mapError(err)
	}
	return check, nil
}

func (s *Service) RecordActivity(ctx context.Context, activity ScrapeActivity) error {
	if s == nil || s.activityStore == nil {
		return nil
	}
	if err := s.activityStore.Append(ctx, activity); err != nil {
		return s.mapError(err)
	}
	return nil
}

func (s *Service) ListScrapeActivity(ctx context.Context, sessionID string, limit int) ([]ScrapeActivity, error) {
	if s == nil || s.activityStore == nil {
		return nil, s.mapError(fmt.Errorf("core: activity store is required"))
	}
	entries, err := s.activityStore.ListBySession(ctx, strings.TrimSpace(sessionID), limit)
	if err != nil {
		return nil, s.mapError(err)
	}
	return entries, nil
}

func (s *Service) ListDeliveryAudit(ctx context.Context, sessionID string, limit int) ([]DeliveryAttempt, error) {
	if s == nil || s.deliveryAudit == nil {
		return nil, s.mapError(fmt.Errorf("core: delivery audit store is required"))
	}
	entries, err := s.deliveryAudit.ListBySession(ctx, strings.TrimSpace(sessionID), limit)
	if err != nil {
		return nil, s.mapError(err)
	}
	return entries, nil
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return syncErrorMapper(err)
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return nil
	}
	return mapped
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return syncErrorMapper(err)
	}
	mapped := mapper(err)
	if mapped == nil {
		return nil
	}
	return mapped
}

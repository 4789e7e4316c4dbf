package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"injectionfilter/internal/config"
	"injectionfilter/internal/constants"
	"injectionfilter/internal/logger"
	"injectionfilter/internal/management"
	"injectionfilter/pkg/bootstrap"
	pkgerrors "injectionfilter/pkg/errors"
	"injectionfilter/pkg/health"
	"injectionfilter/pkg/logging"
	"injectionfilter/pkg/metrics"
	"injectionfilter/pkg/tracing"
)

type App struct {
	config      *config.Config
	logger      logger.Logger
	base        *bootstrap.Base
	dbConnector *bootstrap.DatabaseConnector
	store       *bootstrap.OpenedStore
	service     management.Service
	registry    *prometheus.Registry
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		config:      cfg,
		logger:      log,
		base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	tp, err := tracing.Init(ctx, a.config.Tracing)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.base.OnShutdown("tracer", tp.Shutdown)

	a.registry = prometheus.NewRegistry()
	if err := metrics.Register(a.registry); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	opened, err := a.dbConnector.OpenStore(ctx)
	if err != nil {
		return pkgerrors.ErrStoreUnavailable.WithCause(err).WithMessage("failed to open %s store", a.config.Store.Type)
	}
	a.store = opened
	a.base.OnShutdown("store", func(ctx context.Context) error {
		return errors.Join(a.dbConnector.ShutdownDatabases(ctx, opened.Connections)...)
	})

	if err := a.base.InitBroker(); err != nil {
		a.logger.WarnwCtx(ctx, "Failed to create change event producer, change events will be disabled", "error", err)
	}

	a.service = a.newService()
	return nil
}

func (a *App) newService() management.Service {
	mcfg := a.config.Management
	repo := management.NewRepository(a.store.Store, mcfg.KeyPrefix, a.logger)

	opts := []management.ServiceOption{
		management.WithLogger(a.logger),
		management.WithValidator(management.NewValidator(mcfg.Validation)),
		management.WithRetryPolicy(management.RetryPolicyFromConfig(mcfg.Retry)),
	}
	if a.base.Producer != nil {
		kcfg := a.config.Broker.Kafka
		opts = append(opts, management.WithEventPublisher(
			management.NewChangeEventProducer(a.base.Producer, kcfg.Topic, mcfg.KeyPrefix),
		))
		a.logger.Debugw("Change event producer initialized", "topic", kcfg.Topic)
	}
	return management.NewService(repo, opts...)
}

func (a *App) Service() management.Service {
	return a.service
}

// Exec runs fn with the store timeout applied and user recorded as the
// author of any change. A panic in fn is returned as an internal error.
func (a *App) Exec(ctx context.Context, user string, fn func(ctx context.Context) error) error {
	if user != "" {
		ctx = logging.WithUser(ctx, user)
	}
	if timeout := a.config.Store.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	err := pkgerrors.Guard(ctx, fn)
	var appErr *pkgerrors.Error
	if errors.As(err, &appErr) && appErr.Code == pkgerrors.ErrInternal.Code {
		a.logger.ErrorwCtx(ctx, "Command failed", append([]interface{}{"error", appErr.Error()}, appErr.LogFields()...)...)
	}
	return err
}

// Health checks the store end to end, every backend connection and, when
// change events are enabled, the Kafka brokers. Kafka is optional.
func (a *App) Health(ctx context.Context) health.Health {
	registry := health.NewCheckerRegistry(a.config.Store.Timeout)
	registry.Register(a.dbConnector.HealthCheckers(a.store)...)
	if kcfg := a.config.Broker.Kafka; kcfg.Enabled && len(kcfg.Brokers) > 0 {
		registry.RegisterOptional(health.Kafka(kcfg.Brokers))
	}
	return registry.Check(ctx)
}

func (a *App) pushMetrics(ctx context.Context) error {
	url := a.config.Metrics.PushgatewayURL
	if url == "" || a.registry == nil {
		return nil
	}

	job := a.config.Metrics.JobName
	if job == "" {
		job = constants.ServiceName
	}

	pusher := push.New(url, job).
		Gatherer(a.registry).
		Grouping("store_type", a.config.Store.Type)
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}

// Shutdown pushes metrics before the producer, store and tracer are
// released, so the push still sees every command's counters.
func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()

	pushErr := a.pushMetrics(shutdownCtx)
	if err := errors.Join(pushErr, a.base.Shutdown(shutdownCtx)); err != nil {
		return err
	}

	a.logger.DebugwCtx(ctx, "Shutdown complete")
	return nil
}

package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"injectionfilter/internal/broker"
	"injectionfilter/internal/config"
	"injectionfilter/internal/logger"
)

// Base holds what every filterctl command shares: config, logger, the
// optional change-event producer and the resources to release on exit.
type Base struct {
	Config   *config.Config
	Logger   logger.Logger
	Producer broker.Producer

	hooks []shutdownHook
}

type shutdownHook struct {
	name string
	fn   func(ctx context.Context) error
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{Config: cfg, Logger: log}
}

// InitBroker creates the change-event producer. Producer stays nil when
// notifications are disabled.
func (b *Base) InitBroker() error {
	producer, err := broker.NewProducer(b.Config.Broker, b.Logger)
	if err != nil {
		return fmt.Errorf("failed to create producer: %w", err)
	}
	b.Producer = producer
	return nil
}

// OnShutdown registers fn to run during Shutdown. Hooks run in reverse
// registration order, after the producer has flushed.
func (b *Base) OnShutdown(name string, fn func(ctx context.Context) error) {
	b.hooks = append(b.hooks, shutdownHook{name: name, fn: fn})
}

// Shutdown closes the producer and runs every hook, even when earlier
// ones fail. Hooks are cleared so a second call is a no-op.
func (b *Base) Shutdown(ctx context.Context) error {
	var errs []error

	if b.Producer != nil {
		if err := b.Producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("producer: %w", err))
		}
		b.Producer = nil
	}

	for i := len(b.hooks) - 1; i >= 0; i-- {
		h := b.hooks[i]
		if err := h.fn(ctx); err != nil {
			b.Logger.WarnwCtx(ctx, "Shutdown hook failed", "hook", h.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
		}
	}
	b.hooks = nil

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	return nil
}

package runner

import (
	"context"
	"fmt"
	"time"
)

// Runner starts a set of services in order and stops them in reverse
// order on shutdown. It owns signal handling so the cmd mains stay
// trivial.
type Runner struct {
	services        []Service
	logger          Logger
	shutdownTimeout time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger for the runner.
func WithLogger(logger Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithShutdownTimeout sets the graceful-shutdown deadline. Default 30s.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(r *Runner) {
		r.shutdownTimeout = timeout
	}
}

// New creates a Runner for the given services.
func New(services []Service, opts ...Option) *Runner {
	r := &Runner{
		services:        services,
		logger:          noopLogger{},
		shutdownTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run starts every service and blocks until the context is cancelled
// or a shutdown signal arrives, then stops the started services.
func (r *Runner) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		WaitForShutdownSignal()
		r.logger.Info("shutdown signal received")
		cancel()
	}()

	started := make([]Service, 0, len(r.services))
	for _, svc := range r.services {
		r.logger.Info("starting service", "service", svc.Name())
		if err := svc.Start(ctx); err != nil {
			r.logger.Error("failed to start service", "service", svc.Name(), "error", err)
			r.stopServices(started)
			return fmt.Errorf("start service %s: %w", svc.Name(), err)
		}
		started = append(started, svc)
	}
	r.logger.Info("all services started", "count", len(started))

	<-ctx.Done()

	return r.stopServices(started)
}

// stopServices stops services in reverse start order under the
// shutdown deadline. The first error is returned; later services are
// still stopped.
func (r *Runner) stopServices(services []Service) error {
	if len(services) == 0 {
		return nil
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), r.shutdownTimeout)
	defer cancel()

	var firstErr error
	for i := len(services) - 1; i >= 0; i-- {
		svc := services[i]
		r.logger.Info("stopping service", "service", svc.Name())
		if err := svc.Stop(stopCtx); err != nil {
			r.logger.Error("error stopping service", "service", svc.Name(), "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("stop %s: %w", svc.Name(), err)
			}
			continue
		}
		r.logger.Info("service stopped", "service", svc.Name())
	}
	return firstErr
}

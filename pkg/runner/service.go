package runner

import "context"

// Service is a long-running component with explicit startup and
// shutdown semantics, managed by the Runner.
type Service interface {
	// Name returns a unique identifier, used in logs and errors.
	Name() string

	// Start initializes the service. It must return once the service
	// is ready, leaving background work to its own goroutines, and
	// must respect context cancellation.
	Start(ctx context.Context) error

	// Stop shuts the service down gracefully within the context
	// deadline.
	Stop(ctx context.Context) error
}

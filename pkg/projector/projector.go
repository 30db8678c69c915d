// Package projector drains the account stream through a consumer
// group and folds events idempotently into the view store. Crash
// recovery rides on the group's pending list: whatever a dead consumer
// left unacknowledged is reclaimed by the periodic sweep.
package projector

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/plaenen/accountledger/pkg/domain"
	"github.com/plaenen/accountledger/pkg/eventlog"
	"github.com/plaenen/accountledger/pkg/observability"
	"github.com/plaenen/accountledger/pkg/runner"
)

// EventLog is the slice of the log client the read side depends on.
type EventLog interface {
	Subscribe(ctx context.Context, stream, consumer string, handler eventlog.BatchHandler) error
	Ack(ctx context.Context, stream, timestamp string) (int64, error)
	Pending(ctx context.Context, stream, consumer string, maxElapsed time.Duration) ([]domain.Event, error)
	Close() error
}

// ViewStore applies one event's funds delta under the timestamp
// idempotency condition.
type ViewStore interface {
	Apply(ctx context.Context, id, timestamp string, delta int64) error
}

// ConsumerName derives this process's identity within the consumer
// group from host and pid, so concurrent projector processes receive
// disjoint deliveries.
func ConsumerName() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("accountProjector:%s_%d", host, os.Getpid())
}

// Projector is a long-running consumer. All collaborators are
// injected; it holds no package-level state.
type Projector struct {
	log      EventLog
	views    ViewStore
	stream   string
	consumer string
	interval time.Duration
	logger   runner.Logger
	metrics  *observability.Metrics

	quit     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Option configures a Projector.
type Option func(*Projector)

// WithStream overrides the stream name. Default "accountStream".
func WithStream(stream string) Option {
	return func(p *Projector) { p.stream = stream }
}

// WithConsumerName overrides the derived consumer name.
func WithConsumerName(name string) Option {
	return func(p *Projector) { p.consumer = name }
}

// WithPendingInterval sets the sweep cadence, which doubles as the
// idle threshold for reclaiming abandoned entries. Default 30s.
func WithPendingInterval(interval time.Duration) Option {
	return func(p *Projector) { p.interval = interval }
}

// WithLogger sets the projector logger.
func WithLogger(logger runner.Logger) Option {
	return func(p *Projector) { p.logger = logger }
}

// WithMetrics attaches metric instruments.
func WithMetrics(m *observability.Metrics) Option {
	return func(p *Projector) { p.metrics = m }
}

// New creates a projector over the given log client and view store.
func New(log EventLog, views ViewStore, opts ...Option) *Projector {
	p := &Projector{
		log:      log,
		views:    views,
		stream:   "accountStream",
		consumer: ConsumerName(),
		interval: 30 * time.Second,
		logger:   runner.NewNoopLogger(),
		quit:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements runner.Service.
func (p *Projector) Name() string {
	return "accountProjector"
}

// Start subscribes to the stream and starts the pending sweep.
func (p *Projector) Start(ctx context.Context) error {
	if err := p.log.Subscribe(ctx, p.stream, p.consumer, p.HandleBatch); err != nil {
		return fmt.Errorf("subscribe %s: %w", p.stream, err)
	}

	p.wg.Add(1)
	go p.sweepLoop(ctx)

	p.logger.Info("projector connected", "stream", p.stream, "consumer", p.consumer)
	return nil
}

// Stop cancels the sweep and closes the log client. Safe to call more
// than once.
func (p *Projector) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() { close(p.quit) })
	p.wg.Wait()
	return p.log.Close()
}

// HandleBatch applies one delivery to the view store. Events are
// processed concurrently; each is acknowledged only after its
// conditional update succeeded, so a failed event stays pending and
// returns via the sweep without disturbing its siblings.
func (p *Projector) HandleBatch(ctx context.Context, events []domain.Event) {
	var wg sync.WaitGroup
	for _, evt := range events {
		wg.Add(1)
		go func(evt domain.Event) {
			defer wg.Done()
			p.apply(ctx, evt)
		}(evt)
	}
	wg.Wait()
}

func (p *Projector) apply(ctx context.Context, evt domain.Event) {
	if err := p.views.Apply(ctx, evt.ID, evt.Timestamp, evt.Delta()); err != nil {
		p.metrics.RecordProjectionError(ctx)
		p.logger.Error("view update failed", "id", evt.ID, "timestamp", evt.Timestamp, "error", err)
		return
	}
	p.metrics.RecordProjected(ctx, string(evt.Type))

	if _, err := p.log.Ack(ctx, p.stream, evt.Timestamp); err != nil {
		// The entry stays pending and will be reclaimed; the view
		// record's timestamp set absorbs the redelivery.
		p.logger.Error("ack failed", "timestamp", evt.Timestamp, "error", err)
	}
}

// sweepLoop periodically claims entries other consumers left idle for
// at least one interval and feeds them through the batch handler.
func (p *Projector) sweepLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.quit:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			events, err := p.log.Pending(ctx, p.stream, p.consumer, p.interval)
			if err != nil {
				p.logger.Error("pending sweep failed", "stream", p.stream, "error", err)
				continue
			}
			if len(events) == 0 {
				continue
			}
			p.metrics.RecordReclaims(ctx, int64(len(events)))
			p.logger.Info("reclaimed pending entries", "count", len(events))
			p.HandleBatch(ctx, events)
		}
	}
}

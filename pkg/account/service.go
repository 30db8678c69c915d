// Package account implements the write side of the ledger: command
// validation against a rehydrated aggregate, event publication under
// optimistic concurrency, and a warm in-process aggregate cache.
package account

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/plaenen/accountledger/pkg/domain"
	"github.com/plaenen/accountledger/pkg/eventlog"
	"github.com/plaenen/accountledger/pkg/observability"
	"github.com/plaenen/accountledger/pkg/runner"
)

// idRegistry is the set of issued account ids on the log's key-value
// side, checked before the first event of a new account is appended.
const idRegistry = "accountId"

// EventLog is the slice of the log client the write side depends on.
type EventLog interface {
	AddID(ctx context.Context, namespace, id string) (bool, error)
	Publish(ctx context.Context, stream string, evt domain.Event) (int64, string, error)
	Events(ctx context.Context, stream, id, sinceTimestamp string) ([]domain.Event, error)
	Close() error
}

// Service is the command handler for accounts. Command handling is
// serialized per account id in-process; across processes the log's
// optimistic concurrency arbitrates.
type Service struct {
	log     EventLog
	stream  string
	logger  runner.Logger
	metrics *observability.Metrics

	mu    sync.Mutex
	cache map[string]*entry
}

// entry guards one cached aggregate. Its lock is held across the
// load-mutate-publish-compensate window so exactly one mutation sits
// between a load and its publish.
type entry struct {
	mu   sync.Mutex
	acct *domain.Account
}

// Option configures a Service.
type Option func(*Service)

// WithStream overrides the stream name. Default "accountStream".
func WithStream(stream string) Option {
	return func(s *Service) { s.stream = stream }
}

// WithLogger sets the service logger.
func WithLogger(logger runner.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics attaches metric instruments.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a command service on top of the given log client.
func NewService(log EventLog, opts ...Option) *Service {
	s := &Service{
		log:    log,
		stream: "accountStream",
		logger: runner.NewNoopLogger(),
		cache:  make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a new account id and publishes its create event.
// A previously issued id, or a lost race on the very first publish,
// yields domain.ErrConflict.
func (s *Service) Create(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { s.metrics.RecordCommand(ctx, "create", start, err) }()

	added, err := s.log.AddID(ctx, idRegistry, id)
	if err != nil {
		return fmt.Errorf("register account id: %w", err)
	}
	if !added {
		return domain.ErrConflict
	}

	e := s.entry(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	version, timestamp, err := s.log.Publish(ctx, s.stream, domain.Event{
		ID:   id,
		Type: domain.EventCreate,
	})
	if errors.Is(err, eventlog.ErrConcurrencyConflict) {
		s.metrics.RecordConflict(ctx, "create")
		return domain.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("publish create: %w", err)
	}
	s.metrics.RecordPublished(ctx, string(domain.EventCreate))

	acct := domain.NewAccount(id)
	acct.Version = version
	acct.Timestamp = timestamp
	e.acct = acct

	s.logger.Info("account created", "id", id, "version", version)
	return nil
}

// Deposit adds funds to an account.
func (s *Service) Deposit(ctx context.Context, id string, amount int64) (err error) {
	start := time.Now()
	defer func() { s.metrics.RecordCommand(ctx, "deposit", start, err) }()
	return s.mutate(ctx, "deposit", id, amount)
}

// Withdraw removes funds from an account.
func (s *Service) Withdraw(ctx context.Context, id string, amount int64) (err error) {
	start := time.Now()
	defer func() { s.metrics.RecordCommand(ctx, "withdraw", start, err) }()
	return s.mutate(ctx, "withdraw", id, amount)
}

// mutate runs the shared deposit/withdraw skeleton: load, apply the
// mutation in memory, publish under optimistic concurrency, and on a
// lost race reverse the single mutation before surfacing the conflict.
func (s *Service) mutate(ctx context.Context, command, id string, amount int64) error {
	e := s.entry(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	acct, err := s.loadLocked(ctx, e, id)
	if err != nil {
		return err
	}

	var eventType domain.EventType
	switch command {
	case "deposit":
		eventType = domain.EventDeposit
		err = acct.Deposit(amount)
	case "withdraw":
		eventType = domain.EventWithdraw
		err = acct.Withdraw(amount)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
	if err != nil {
		return err
	}

	version, timestamp, err := s.log.Publish(ctx, s.stream, domain.Event{
		ID:      id,
		Version: acct.Version,
		Type:    eventType,
		Amount:  amount,
	})
	if errors.Is(err, eventlog.ErrConcurrencyConflict) {
		s.compensate(acct, eventType, amount)
		s.metrics.RecordConflict(ctx, command)
		s.logger.Info("command lost optimistic race", "command", command, "id", id, "version", acct.Version)
		return domain.ErrConflict
	}
	if err != nil {
		s.compensate(acct, eventType, amount)
		return fmt.Errorf("publish %s: %w", command, err)
	}
	s.metrics.RecordPublished(ctx, string(eventType))

	acct.Version = version
	acct.Timestamp = timestamp
	e.acct = acct
	return nil
}

// compensate reverses the single in-memory mutation of a failed
// publish so the cached aggregate again matches the log.
func (s *Service) compensate(acct *domain.Account, eventType domain.EventType, amount int64) {
	switch eventType {
	case domain.EventDeposit:
		acct.Funds -= amount
	case domain.EventWithdraw:
		acct.Funds += amount
	}
}

// Fetch rehydrates an account and returns its snapshot.
func (s *Service) Fetch(ctx context.Context, id string) (domain.Snapshot, error) {
	e := s.entry(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	acct, err := s.loadLocked(ctx, e, id)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return acct.Snapshot(), nil
}

// Close shuts down the log client.
func (s *Service) Close() error {
	return s.log.Close()
}

// entry returns (creating if needed) the cache slot for an id.
func (s *Service) entry(id string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.cache[id]
	if !ok {
		e = &entry{}
		s.cache[id] = e
	}
	return e
}

// loadLocked rehydrates the aggregate held by e, which must be locked.
// A cached aggregate is advanced only by events strictly newer than
// its last-seen timestamp; an uncached id with no events at all does
// not exist.
func (s *Service) loadLocked(ctx context.Context, e *entry, id string) (*domain.Account, error) {
	acct := e.acct
	cached := acct != nil
	if !cached {
		acct = domain.NewAccount(id)
	}

	events, err := s.log.Events(ctx, s.stream, id, acct.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	if !cached && len(events) == 0 {
		return nil, domain.ErrNotFound
	}

	acct.Rehydrate(events)
	e.acct = acct
	return acct, nil
}

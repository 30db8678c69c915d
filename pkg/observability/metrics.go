// Package observability holds the OpenTelemetry metric instruments for
// the ledger's write and read sides.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics bundles every instrument the pipeline records.
type Metrics struct {
	// Write side
	CommandDuration  metric.Float64Histogram
	CommandTotal     metric.Int64Counter
	CommandConflicts metric.Int64Counter
	EventsPublished  metric.Int64Counter

	// Read side
	EventsProjected  metric.Int64Counter
	ProjectionErrors metric.Int64Counter
	PendingReclaims  metric.Int64Counter
}

// NewMetrics creates all instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.CommandDuration, err = meter.Float64Histogram(
		"ledger.command.duration",
		metric.WithDescription("Command execution duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating command.duration: %w", err)
	}

	m.CommandTotal, err = meter.Int64Counter(
		"ledger.command.total",
		metric.WithDescription("Total commands executed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating command.total: %w", err)
	}

	m.CommandConflicts, err = meter.Int64Counter(
		"ledger.command.conflicts",
		metric.WithDescription("Commands lost to optimistic concurrency"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating command.conflicts: %w", err)
	}

	m.EventsPublished, err = meter.Int64Counter(
		"ledger.events.published",
		metric.WithDescription("Events appended to the log"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating events.published: %w", err)
	}

	m.EventsProjected, err = meter.Int64Counter(
		"ledger.events.projected",
		metric.WithDescription("Events applied to the view store"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating events.projected: %w", err)
	}

	m.ProjectionErrors, err = meter.Int64Counter(
		"ledger.projection.errors",
		metric.WithDescription("View-store applications that failed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating projection.errors: %w", err)
	}

	m.PendingReclaims, err = meter.Int64Counter(
		"ledger.pending.reclaims",
		metric.WithDescription("Entries reclaimed from the pending list"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pending.reclaims: %w", err)
	}

	return m, nil
}

// The Record helpers below are nil-safe so callers can run without a
// meter configured (tests, tooling).

// RecordCommand records one command outcome with its duration.
func (m *Metrics) RecordCommand(ctx context.Context, command string, start time.Time, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("command", command),
		attribute.Bool("success", err == nil),
	)
	m.CommandTotal.Add(ctx, 1, attrs)
	m.CommandDuration.Record(ctx, time.Since(start).Seconds(), attrs)
}

// RecordConflict counts an optimistic-concurrency loss.
func (m *Metrics) RecordConflict(ctx context.Context, command string) {
	if m == nil {
		return
	}
	m.CommandConflicts.Add(ctx, 1, metric.WithAttributes(attribute.String("command", command)))
}

// RecordPublished counts an event appended to the log.
func (m *Metrics) RecordPublished(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	m.EventsPublished.Add(ctx, 1, metric.WithAttributes(attribute.String("type", eventType)))
}

// RecordProjected counts an event applied to the view store.
func (m *Metrics) RecordProjected(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	m.EventsProjected.Add(ctx, 1, metric.WithAttributes(attribute.String("type", eventType)))
}

// RecordProjectionError counts a failed view-store application.
func (m *Metrics) RecordProjectionError(ctx context.Context) {
	if m == nil {
		return
	}
	m.ProjectionErrors.Add(ctx, 1)
}

// RecordReclaims counts entries claimed back from the pending list.
func (m *Metrics) RecordReclaims(ctx context.Context, n int64) {
	if m == nil || n == 0 {
		return
	}
	m.PendingReclaims.Add(ctx, n)
}

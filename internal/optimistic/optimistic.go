// Package optimistic applies in-memory mutations before the backing store
// confirms them and reverts them when the store rejects the write.
package optimistic

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/xenking/stitchbag/internal/optimistic"

// Mutation is one optimistic change. Apply and Revert touch only in-memory
// state and must not fail; either may be nil when there is none. Persist
// talks to the store.
type Mutation struct {
	Name    string
	Apply   func()
	Persist func(ctx context.Context) error
	Revert  func()
}

// Runner executes mutations and records rollbacks.
type Runner struct {
	tracer    trace.Tracer
	rollbacks metric.Int64Counter
}

// NewRunner creates a Runner. Nil providers fall back to no-op telemetry.
func NewRunner(tp trace.TracerProvider, mp metric.MeterProvider) (*Runner, error) {
	if tp == nil {
		tp = tracenoop.NewTracerProvider()
	}
	if mp == nil {
		mp = metricnoop.NewMeterProvider()
	}
	rollbacks, err := mp.Meter(instrumentationName).Int64Counter("optimistic.rollbacks",
		metric.WithDescription("Optimistic mutations reverted after a failed write"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create rollback counter")
	}
	return &Runner{
		tracer:    tp.Tracer(instrumentationName),
		rollbacks: rollbacks,
	}, nil
}

// Run applies m, persists it and reverts it if persisting fails. The
// persist error is returned unchanged after the revert.
func (r *Runner) Run(ctx context.Context, m Mutation) error {
	ctx, span := r.tracer.Start(ctx, "optimistic."+m.Name)
	defer span.End()

	if m.Apply != nil {
		m.Apply()
	}
	if err := m.Persist(ctx); err != nil {
		if m.Revert != nil {
			m.Revert()
		}

		r.rollbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("mutation", m.Name)))
		span.RecordError(err)
		span.SetStatus(codes.Error, "rolled back")
		zctx.From(ctx).Warn("Optimistic mutation rolled back",
			zap.String("mutation", m.Name),
			zap.Error(err),
		)
		return err
	}
	return nil
}

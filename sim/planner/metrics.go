package planner

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/wricardo/parkingsim/sim/planner"

type instruments struct {
	searches   metric.Int64Counter
	expansions metric.Int64Counter
	failures   metric.Int64Counter
	duration   metric.Float64Histogram
}

var (
	instrumentsOnce sync.Once
	planInstruments *instruments
)

// meters returns the package instruments, created on the global OTel
// provider the first time a search runs (no-op if not configured).
func meters() *instruments {
	instrumentsOnce.Do(func() {
		inst, err := newInstruments(otel.Meter(instrumentationName))
		if err != nil {
			inst, _ = newInstruments(noop.NewMeterProvider().Meter(instrumentationName))
		}
		planInstruments = inst
	})
	return planInstruments
}

func newInstruments(m metric.Meter) (*instruments, error) {
	inst := &instruments{}
	var err error

	inst.searches, err = m.Int64Counter(
		"planner.searches",
		metric.WithDescription("Total path searches run"),
	)
	if err != nil {
		return nil, err
	}

	inst.expansions, err = m.Int64Counter(
		"planner.expansions",
		metric.WithDescription("Total nodes expanded across searches"),
	)
	if err != nil {
		return nil, err
	}

	inst.failures, err = m.Int64Counter(
		"planner.failures",
		metric.WithDescription("Searches that ended without reaching the target"),
	)
	if err != nil {
		return nil, err
	}

	inst.duration, err = m.Float64Histogram(
		"planner.duration",
		metric.WithDescription("Search wall time"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return inst, nil
}

func (i *instruments) record(ctx context.Context, strategy Strategy, expansions int, elapsed time.Duration, err error) {
	outcome := "found"
	switch {
	case errors.Is(err, ErrPathNotFound):
		outcome = "not_found"
	case err != nil:
		outcome = "aborted"
	}
	attrs := metric.WithAttributes(
		attribute.String("strategy", string(strategy)),
		attribute.String("outcome", outcome),
	)

	// Record with a detached context so cancelled searches are still counted
	ctx = context.WithoutCancel(ctx)
	i.searches.Add(ctx, 1, attrs)
	i.expansions.Add(ctx, int64(expansions), attrs)
	if err != nil {
		i.failures.Add(ctx, 1, attrs)
	}
	i.duration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
}

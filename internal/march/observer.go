package march

import (
	"context"
	"time"

	"github.com/san-kum/gridmarch/internal/grid"
	"github.com/san-kum/gridmarch/internal/metrics"
	"github.com/san-kum/gridmarch/internal/store"
)

type SliceReport struct {
	T        int
	Duration time.Duration
	Counters Counters
}

type Summary struct {
	From, To int
	Slices   int
	Duration time.Duration
	Totals   Counters
}

// Observer is told about every completed slice. An error stops the run.
type Observer interface {
	OnSlice(ctx context.Context, r SliceReport) error
}

type ObserverFunc func(ctx context.Context, r SliceReport) error

func (f ObserverFunc) OnSlice(ctx context.Context, r SliceReport) error { return f(ctx, r) }

// MetricObserver reads each completed slice back from the store and feeds
// it to a set of metrics.
type MetricObserver struct {
	Store   store.Store
	Shape   grid.Shape
	Metrics []metrics.Metric
}

func (m *MetricObserver) OnSlice(ctx context.Context, r SliceReport) error {
	values, err := store.ReadSlice(ctx, m.Store, m.Shape, r.T)
	if err != nil {
		return err
	}
	cell := 1.0
	for a := 1; a < m.Shape.Rank(); a++ {
		cell *= m.Shape.Step(a)
	}
	for _, metric := range m.Metrics {
		metric.Observe(r.T, values, cell)
	}
	return nil
}

// Values returns the current value of every metric by name.
func (m *MetricObserver) Values() map[string]float64 {
	out := make(map[string]float64, len(m.Metrics))
	for _, metric := range m.Metrics {
		out[metric.Name()] = metric.Value()
	}
	return out
}

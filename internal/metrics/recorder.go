package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder exports driver and solver counters. A nil *Recorder discards
// everything.
type Recorder struct {
	slices     prometheus.Counter
	points     *prometheus.CounterVec
	refills    *prometheus.CounterVec
	statuses   *prometheus.CounterVec
	backtracks prometheus.Counter
	clamps     prometheus.Counter
	sliceTime  prometheus.Histogram
	residual   prometheus.Histogram
}

// NewRecorder registers the gridmarch collectors with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		slices: f.NewCounter(prometheus.CounterOpts{
			Name: "gridmarch_slices_total",
			Help: "Time slices completed",
		}),
		points: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gridmarch_points_total",
			Help: "Grid points processed, by kind",
		}, []string{"kind"}),
		refills: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gridmarch_window_refills_total",
			Help: "Sliding window refills, by kind",
		}, []string{"kind"}),
		statuses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gridmarch_solver_status_total",
			Help: "Per-point solver outcomes",
		}, []string{"status"}),
		backtracks: f.NewCounter(prometheus.CounterOpts{
			Name: "gridmarch_solver_backtracks_total",
			Help: "Step halvings in the solver line search",
		}),
		clamps: f.NewCounter(prometheus.CounterOpts{
			Name: "gridmarch_solver_viscosity_clamps_total",
			Help: "Sample parts limited by the viscosity clamp",
		}),
		sliceTime: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "gridmarch_slice_duration_seconds",
			Help:    "Wall time per time slice",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		residual: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "gridmarch_solver_residual",
			Help:    "Residual magnitude after each solve",
			Buckets: prometheus.ExponentialBuckets(1e-14, 100, 9),
		}),
	}
}

func (r *Recorder) Slice(d time.Duration) {
	if r == nil {
		return
	}
	r.slices.Inc()
	r.sliceTime.Observe(d.Seconds())
}

func (r *Recorder) Point(kind string) {
	if r == nil {
		return
	}
	r.points.WithLabelValues(kind).Inc()
}

func (r *Recorder) Refill(kind string) {
	if r == nil {
		return
	}
	r.refills.WithLabelValues(kind).Inc()
}

func (r *Recorder) Solve(status string, residual float64, backtracks, clamps int) {
	if r == nil {
		return
	}
	r.statuses.WithLabelValues(status).Inc()
	r.residual.Observe(residual)
	r.backtracks.Add(float64(backtracks))
	r.clamps.Add(float64(clamps))
}

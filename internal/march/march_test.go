package march_test

import (
	"context"
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/san-kum/gridmarch/internal/expr"
	"github.com/san-kum/gridmarch/internal/field"
	"github.com/san-kum/gridmarch/internal/grid"
	"github.com/san-kum/gridmarch/internal/march"
	"github.com/san-kum/gridmarch/internal/metrics"
	"github.com/san-kum/gridmarch/internal/solver"
	"github.com/san-kum/gridmarch/internal/store"
	"github.com/san-kum/gridmarch/internal/window"
)

// diffusion compiles u_t - u_xx = 0 (or its higher-rank Laplacian form).
func diffusion(shape grid.Shape) *expr.Equation {
	u := expr.Field(0)
	var lap []expr.Node
	for a := 1; a < shape.Rank(); a++ {
		lap = append(lap, expr.Partial(a, 2, u))
	}
	eq, err := expr.Compile([]expr.Node{
		expr.Sub(expr.Partial(grid.Time, 1, u), expr.Sum(lap...)),
	}, shape, expr.Options{})
	Expect(err).NotTo(HaveOccurred())
	return eq
}

func quickSolver() solver.Config {
	cfg := solver.DefaultConfig()
	cfg.MaxBacktrack = 8
	return cfg
}

func sliceValues(ctx context.Context, st store.Store, shape grid.Shape, t int) []float64 {
	values, err := store.ReadSlice(ctx, st, shape, t)
	Expect(err).NotTo(HaveOccurred())
	out := make([]float64, len(values))
	for i, v := range values {
		Expect(v).NotTo(BeNil(), "slice %d point %d missing", t, i)
		out[i] = real(v[0])
	}
	return out
}

var _ = Describe("Driver", func() {
	var (
		ctx context.Context
		st  *store.Memory
	)

	BeforeEach(func() {
		ctx = context.Background()
		st = store.NewMemory()
	})

	Describe("one-dimensional diffusion on 12 points", func() {
		var shape grid.Shape

		BeforeEach(func() {
			shape = grid.Shape{Extents: []int{8, 12}, Steps: []float64{0.1, 1}}
		})

		It("keeps a zero field at zero", func() {
			d, err := march.New(march.Config{Workers: 2, Solver: quickSolver()}, diffusion(shape), shape, st, window.Constant(field.New(1)), nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Depth()).To(Equal(2))

			Expect(d.Seed(ctx, d.Depth(), func(grid.Coord) field.Sample { return field.New(1) })).To(Succeed())
			sum, err := d.Run(ctx, d.Depth(), shape.Extents[grid.Time])
			Expect(err).NotTo(HaveOccurred())
			Expect(sum.Slices).To(Equal(6))
			Expect(sum.Totals.Points).To(Equal(6 * 12))

			for t := 0; t < shape.Extents[grid.Time]; t++ {
				for _, v := range sliceValues(ctx, st, shape, t) {
					Expect(v).To(BeZero())
				}
			}
		})

		It("keeps a flat periodic field flat", func() {
			shape.Periodic = []bool{false, true}
			d, err := march.New(march.Config{Workers: 3, Solver: quickSolver()}, diffusion(shape), shape, st, nil, nil)
			Expect(err).NotTo(HaveOccurred())

			Expect(d.Seed(ctx, 2, func(grid.Coord) field.Sample { return field.Real(3.5) })).To(Succeed())
			_, err = d.Run(ctx, 2, 8)
			Expect(err).NotTo(HaveOccurred())

			for _, v := range sliceValues(ctx, st, shape, 7) {
				Expect(v).To(BeNumerically("~", 3.5, 1e-12))
			}
		})

		It("keeps a flat field flat when the boundary matches it", func() {
			d, err := march.New(march.Config{Workers: 2, Solver: quickSolver()}, diffusion(shape), shape, st, window.Constant(field.Real(-2)), nil)
			Expect(err).NotTo(HaveOccurred())

			Expect(d.Seed(ctx, 2, func(grid.Coord) field.Sample { return field.Real(-2) })).To(Succeed())
			_, err = d.Run(ctx, 2, 8)
			Expect(err).NotTo(HaveOccurred())

			for _, v := range sliceValues(ctx, st, shape, 7) {
				Expect(v).To(BeNumerically("~", -2, 1e-12))
			}
		})

		It("leaves a flat field untouched beyond the reach of a zero boundary", func() {
			d, err := march.New(march.Config{Workers: 3, Solver: quickSolver()}, diffusion(shape), shape, st, nil, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Seed(ctx, 2, func(grid.Coord) field.Sample { return field.Real(1) })).To(Succeed())

			_, err = d.Run(ctx, 2, shape.Extents[grid.Time])
			Expect(err).NotTo(HaveOccurred())

			// Slice t reads slice t-2, so the boundary creeps in one cell
			// per two slices from each edge.
			for t := 2; t < shape.Extents[grid.Time]; t++ {
				reach := t / 2
				for x, v := range sliceValues(ctx, st, shape, t) {
					if x >= reach && x < 12-reach {
						Expect(v).To(BeNumerically("~", 1, 1e-12), "t=%d x=%d", t, x)
					} else {
						Expect(v).To(BeNumerically("<", 1), "t=%d x=%d", t, x)
						Expect(v).To(BeNumerically(">", 0), "t=%d x=%d", t, x)
					}
				}
			}
		})

		It("matches the explicit update and decays towards the zero boundary", func() {
			bump := func(c grid.Coord) field.Sample {
				return field.Real(math.Sin(math.Pi * float64(c[1]+1) / 13))
			}
			d, err := march.New(march.Config{Workers: 4, Solver: quickSolver()}, diffusion(shape), shape, st, nil, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Seed(ctx, 2, bump)).To(Succeed())

			_, err = d.RunTimeSlice(ctx, 2)
			Expect(err).NotTo(HaveOccurred())

			prev := sliceValues(ctx, st, shape, 0)
			got := sliceValues(ctx, st, shape, 2)
			at := func(x int) float64 {
				if x < 0 || x >= len(prev) {
					return 0
				}
				return prev[x]
			}
			for x := range got {
				want := prev[x] + 0.2*(at(x-1)-2*prev[x]+at(x+1))
				Expect(got[x]).To(BeNumerically("~", want, 1e-9), "x=%d", x)
			}

			_, err = d.Run(ctx, 3, 8)
			Expect(err).NotTo(HaveOccurred())
			peak := func(t int) float64 {
				m := 0.0
				for _, v := range sliceValues(ctx, st, shape, t) {
					m = math.Max(m, math.Abs(v))
				}
				return m
			}
			Expect(peak(7)).To(BeNumerically("<", peak(5)))
			Expect(peak(5)).To(BeNumerically("<", peak(1)))
		})

		It("commits pinned cells without solving them", func() {
			bound := window.WithPins{
				Boundary: window.Constant(field.New(1)),
				Fixed: func(at grid.Coord) (field.Sample, bool) {
					if at[1] == 0 {
						return field.Real(5), true
					}
					return nil, false
				},
			}
			d, err := march.New(march.Config{Workers: 1, Solver: quickSolver()}, diffusion(shape), shape, st, bound, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Seed(ctx, 2, func(grid.Coord) field.Sample { return field.New(1) })).To(Succeed())

			report, err := d.RunTimeSlice(ctx, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Counters.Pinned).To(Equal(1))
			Expect(report.Counters.Solves).To(Equal(11))
			Expect(sliceValues(ctx, st, shape, 2)[0]).To(Equal(5.0))
		})
	})

	Describe("coverage", func() {
		It("writes every point of a slice exactly once", func() {
			shape := grid.Shape{
				Extents:  []int{4, 7, 5, 3},
				Periodic: []bool{false, true, false, true},
				Steps:    []float64{0.01, 1, 1, 1},
			}
			counting := store.NewCounting(st)
			d, err := march.New(march.Config{
				Workers:    3,
				SwatchSize: grid.Offset{0, 2, 3, 0},
				Solver:     quickSolver(),
			}, diffusion(shape), shape, counting, nil, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Seed(ctx, 2, func(grid.Coord) field.Sample { return field.Real(1) })).To(Succeed())

			counting.Reset()
			report, err := d.RunTimeSlice(ctx, 2)
			Expect(err).NotTo(HaveOccurred())

			_, sets := counting.Counts()
			Expect(sets).To(Equal(shape.SpatialPoints()))
			Expect(report.Counters.Points).To(Equal(shape.SpatialPoints()))
			Expect(report.Counters.FullRefills).To(Equal(len(d.Swatches())))
			Expect(report.Counters.ShiftRefills).To(Equal(shape.SpatialPoints() - len(d.Swatches())))
			Expect(st.Len()).To(Equal(3 * shape.SpatialPoints()))
		})

		It("splits the outermost axis across workers by default", func() {
			shape := grid.Shape{Extents: []int{3, 10, 4}, Steps: []float64{1, 1, 1}}
			d, err := march.New(march.Config{Workers: 4}, diffusion(shape), shape, st, nil, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Swatches()).To(HaveLen(4))
			Expect(d.Workspaces()).To(HaveLen(4))
		})
	})

	Describe("failures", func() {
		var shape grid.Shape

		BeforeEach(func() {
			shape = grid.Shape{Extents: []int{4, 6}, Steps: []float64{1, 1}}
		})

		It("rejects a slice outside the grid", func() {
			d, err := march.New(march.Config{Workers: 1}, diffusion(shape), shape, st, nil, nil)
			Expect(err).NotTo(HaveOccurred())
			_, err = d.RunTimeSlice(ctx, 4)
			Expect(err).To(MatchError(march.ErrSlice))
			_, err = d.RunTimeSlice(ctx, -1)
			Expect(err).To(MatchError(march.ErrSlice))
		})

		It("rejects a stencil wider than a periodic axis", func() {
			shape.Extents[1] = 2
			shape.Periodic = []bool{false, true}
			_, err := march.New(march.Config{}, diffusion(shape), shape, st, nil, nil)
			Expect(err).To(MatchError(march.ErrRadius))
		})

		It("rejects history deeper than the grid", func() {
			shape.Extents[0] = 2
			_, err := march.New(march.Config{}, diffusion(shape), shape, st, nil, nil)
			Expect(err).To(MatchError(march.ErrRadius))
		})

		It("reports a singular point with its coordinate", func() {
			u := expr.Field(0)
			eq, err := expr.Compile([]expr.Node{expr.Add(expr.Mul(u, u), expr.Real(1))}, shape, expr.Options{})
			Expect(err).NotTo(HaveOccurred())

			d, err := march.New(march.Config{Workers: 2}, eq, shape, st, nil, nil)
			Expect(err).NotTo(HaveOccurred())
			_, err = d.RunTimeSlice(ctx, 1)

			var se *march.SliceError
			Expect(errors.As(err, &se)).To(BeTrue())
			Expect(se.T).To(Equal(1))
			Expect(se.Status).To(Equal(solver.StatusSingular))
			Expect(err).To(MatchError(solver.ErrSingular))
		})

		It("stops on a cancelled context", func() {
			d, err := march.New(march.Config{Workers: 2}, diffusion(shape), shape, st, nil, nil)
			Expect(err).NotTo(HaveOccurred())
			cancelled, cancel := context.WithCancel(ctx)
			cancel()
			_, err = d.Run(cancelled, 2, 4)
			Expect(err).To(MatchError(context.Canceled))
		})

		It("surfaces unbound parameters", func() {
			u := expr.Field(0)
			eq, err := expr.Compile([]expr.Node{
				expr.Sub(expr.Partial(grid.Time, 1, u), expr.Mul(expr.Var("nu"), expr.Partial(1, 2, u))),
			}, shape, expr.Options{})
			Expect(err).NotTo(HaveOccurred())

			d, err := march.New(march.Config{Workers: 1}, eq, shape, st, nil, nil)
			Expect(err).NotTo(HaveOccurred())
			_, err = d.RunTimeSlice(ctx, 2)
			Expect(err).To(MatchError(expr.ErrUnboundVariable))

			d, err = march.New(march.Config{Workers: 1}, eq, shape, st, nil, expr.MapParams{"nu": 0.25})
			Expect(err).NotTo(HaveOccurred())
			_, err = d.RunTimeSlice(ctx, 2)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("single point solve", func() {
		It("solves without committing", func() {
			shape := grid.Shape{Extents: []int{4, 6}, Steps: []float64{0.1, 1}}
			d, err := march.New(march.Config{Workers: 1, Solver: quickSolver()}, diffusion(shape), shape, st, nil, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Seed(ctx, 2, func(grid.Coord) field.Sample { return field.Real(1) })).To(Succeed())
			before := st.Len()

			res, err := d.Solve(ctx, grid.Coord{2, 3})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Status).To(Equal(solver.StatusOK))
			Expect(real(res.Value[0])).To(BeNumerically("~", 1, 1e-12))
			Expect(st.Len()).To(Equal(before))
		})
	})

	Describe("observers", func() {
		It("feeds every slice to the metrics and the recorder", func() {
			shape := grid.Shape{Extents: []int{5, 6}, Periodic: []bool{false, true}, Steps: []float64{0.1, 0.5}}
			mass := metrics.NewMass()
			obs := &march.MetricObserver{Store: st, Shape: shape, Metrics: []metrics.Metric{mass, metrics.NewChange()}}
			reg := prometheus.NewRegistry()
			var seen []int

			d, err := march.New(march.Config{
				Workers:  2,
				Solver:   quickSolver(),
				Recorder: metrics.NewRecorder(reg),
				Observers: []march.Observer{obs, march.ObserverFunc(func(_ context.Context, r march.SliceReport) error {
					seen = append(seen, r.T)
					return nil
				})},
			}, diffusion(shape), shape, st, nil, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Seed(ctx, 2, func(grid.Coord) field.Sample { return field.Real(2) })).To(Succeed())

			_, err = d.Run(ctx, 2, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(seen).To(Equal([]int{2, 3, 4}))
			Expect(obs.Values()).To(HaveKeyWithValue("mass", BeNumerically("~", 6.0, 1e-9)))

			n, err := testutil.GatherAndCount(reg)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(BeNumerically(">", 0))
		})

		It("stops the run when an observer fails", func() {
			shape := grid.Shape{Extents: []int{5, 6}, Steps: []float64{0.1, 1}}
			boom := errors.New("boom")
			d, err := march.New(march.Config{
				Workers: 1,
				Observers: []march.Observer{march.ObserverFunc(func(context.Context, march.SliceReport) error {
					return boom
				})},
			}, diffusion(shape), shape, st, nil, nil)
			Expect(err).NotTo(HaveOccurred())
			sum, err := d.Run(ctx, 2, 5)
			Expect(err).To(MatchError(boom))
			Expect(sum.Slices).To(BeZero())
		})
	})
})

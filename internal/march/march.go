// Package march advances a compiled equation through time, one slice at a
// time, across a fixed pool of workers.
//
// Each slice is partitioned into swatches dealt round-robin to the workers.
// A worker walks its swatches point by point, refilling its window, solving
// for the unknown and committing the result. RunTimeSlice returns only after
// every worker has finished, so slice t+1 always sees all of slice t.
package march

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/gridmarch/internal/expr"
	"github.com/san-kum/gridmarch/internal/field"
	"github.com/san-kum/gridmarch/internal/grid"
	"github.com/san-kum/gridmarch/internal/logging"
	"github.com/san-kum/gridmarch/internal/metrics"
	"github.com/san-kum/gridmarch/internal/solver"
	"github.com/san-kum/gridmarch/internal/store"
	"github.com/san-kum/gridmarch/internal/traverse"
	"github.com/san-kum/gridmarch/internal/window"
)

type Config struct {
	// Workers defaults to runtime.NumCPU().
	Workers int
	// SwatchSize per spatial axis. Zero on every axis splits the outermost
	// spatial axis evenly across the workers.
	SwatchSize grid.Offset
	Solver     solver.Config
	Logger     *logrus.Logger
	Recorder   *metrics.Recorder
	Observers  []Observer
}

type Driver struct {
	cfg      Config
	shape    grid.Shape
	eq       *expr.Equation
	store    store.Store
	bound    window.Boundary
	params   expr.ParamSource
	radius   grid.Offset
	swatches []traverse.Swatch
	spaces   []*Workspace
	log      *logrus.Entry

	// single guards the workspace used by Solve.
	single   sync.Mutex
	singleWS *Workspace
}

func New(cfg Config, eq *expr.Equation, shape grid.Shape, st store.Store, boundary window.Boundary, params expr.ParamSource) (*Driver, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if st == nil {
		return nil, fmt.Errorf("%w: nil store", ErrConfig)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}

	radius, err := windowRadius(eq, shape, cfg.Solver.PredictorCorrector)
	if err != nil {
		return nil, err
	}

	d := &Driver{
		cfg:    cfg,
		shape:  shape,
		eq:     eq,
		store:  st,
		bound:  boundary,
		params: params,
		radius: radius,
		log:    cfg.Logger.WithField("component", "march"),
	}

	size := cfg.SwatchSize
	if size.IsZero() {
		size = defaultSwatch(shape, cfg.Workers)
	}
	d.swatches = traverse.Partition(shape, size)

	for w := 0; w < cfg.Workers; w++ {
		ws, err := d.newWorkspace(w)
		if err != nil {
			return nil, err
		}
		ws.Swatches = traverse.Assign(d.swatches, w, cfg.Workers)
		d.spaces = append(d.spaces, ws)
	}

	d.log.WithFields(logrus.Fields{
		"workers":  cfg.Workers,
		"swatches": len(d.swatches),
		"radius":   radius.Format(shape.Rank()),
	}).Debug("driver ready")
	return d, nil
}

// windowRadius checks the equation against the grid and returns the window
// radius: the equation radius, with at least one history slice and two
// when predictor-corrector is on.
func windowRadius(eq *expr.Equation, shape grid.Shape, pc bool) (grid.Offset, error) {
	r := eq.Radius
	rank := shape.Rank()
	for a := rank; a < grid.MaxAxes; a++ {
		if r[a] != 0 {
			return r, fmt.Errorf("%w: derivative along axis %d of a rank %d grid", ErrRadius, a, rank)
		}
	}
	for a := 1; a < rank; a++ {
		if shape.IsPeriodic(a) && 2*r[a]+1 > shape.Extents[a] {
			return r, fmt.Errorf("%w: periodic axis %d has extent %d, stencil needs %d", ErrRadius, a, shape.Extents[a], 2*r[a]+1)
		}
	}
	r[grid.Time] = max(r[grid.Time], 1)
	if pc {
		r[grid.Time] = max(r[grid.Time], 2)
	}
	if r[grid.Time] >= shape.Extents[grid.Time] {
		return r, fmt.Errorf("%w: history depth %d needs more than %d slices", ErrRadius, r[grid.Time], shape.Extents[grid.Time])
	}
	return r, nil
}

func defaultSwatch(shape grid.Shape, workers int) grid.Offset {
	var size grid.Offset
	outer := shape.Extents[1]
	size[1] = max(1, (outer+workers-1)/workers)
	return size
}

func (d *Driver) newWorkspace(id int) (*Workspace, error) {
	w, err := window.New(window.Config{
		Shape:      d.shape,
		Radius:     d.radius,
		Components: d.eq.Components(),
		Store:      d.store,
		Boundary:   d.bound,
		Params:     d.params,
	})
	if err != nil {
		return nil, err
	}
	return &Workspace{
		ID:     id,
		Window: w,
		Cursor: traverse.NewCursor(d.shape.Rank()),
		Solver: solver.New(d.eq, d.cfg.Solver),
	}, nil
}

// Depth is the number of history slices each solve reads. Slices
// 0..Depth-1 must be seeded before the first RunTimeSlice.
func (d *Driver) Depth() int { return d.radius[grid.Time] }

func (d *Driver) Shape() grid.Shape { return d.shape }

func (d *Driver) Swatches() []traverse.Swatch { return d.swatches }

func (d *Driver) Workspaces() []*Workspace { return d.spaces }

// Seed writes slices 0..slices-1 from init.
func (d *Driver) Seed(ctx context.Context, slices int, init func(grid.Coord) field.Sample) error {
	if slices > d.shape.Extents[grid.Time] {
		return fmt.Errorf("%w: seeding %d slices of %d", ErrSlice, slices, d.shape.Extents[grid.Time])
	}
	for t := 0; t < slices; t++ {
		var err error
		d.shape.SliceCoords(t, func(c grid.Coord) {
			if err != nil {
				return
			}
			if err = ctx.Err(); err != nil {
				return
			}
			err = d.store.Set(ctx, c, init(c))
		})
		if err != nil {
			return fmt.Errorf("march: seed slice %d: %w", t, err)
		}
	}
	d.log.WithField("slices", slices).Debug("initial slices written")
	return nil
}

// RunTimeSlice solves every point of slice t and returns once all workers
// are done. The first failure cancels the remaining workers.
func (d *Driver) RunTimeSlice(ctx context.Context, t int) (SliceReport, error) {
	if t < 0 || t >= d.shape.Extents[grid.Time] {
		return SliceReport{}, fmt.Errorf("%w: %d not in [0, %d)", ErrSlice, t, d.shape.Extents[grid.Time])
	}
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for _, ws := range d.spaces {
		ws.Counters = Counters{}
		g.Go(func() error {
			return d.walk(gctx, ws, t)
		})
	}
	err := g.Wait()

	report := SliceReport{T: t, Duration: time.Since(start)}
	for _, ws := range d.spaces {
		report.Counters.add(ws.Counters)
	}
	if err != nil {
		d.log.WithError(err).WithField("slice", t).Error("slice failed")
		return report, err
	}

	d.cfg.Recorder.Slice(report.Duration)
	d.log.WithFields(logrus.Fields{
		"slice":    t,
		"points":   report.Counters.Points,
		"shifts":   report.Counters.ShiftRefills,
		"residual": report.Counters.MaxResidual,
		"elapsed":  report.Duration,
	}).Debug("slice done")

	for _, o := range d.cfg.Observers {
		if err := o.OnSlice(ctx, report); err != nil {
			return report, fmt.Errorf("march: observer after slice %d: %w", t, err)
		}
	}
	return report, nil
}

func (d *Driver) walk(ctx context.Context, ws *Workspace, t int) error {
	rank := d.shape.Rank()
	ws.Cursor.Reset(t, ws.Swatches)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		at, m, ok := ws.Cursor.Next()
		if !ok {
			return nil
		}
		ws.Counters.Points++

		var err error
		if m.Kind == traverse.Jump {
			sw := ws.Cursor.Swatch()
			d.log.WithFields(logrus.Fields{"slice": t, "lo": sw.Lo.Format(rank), "hi": sw.Hi.Format(rank)}).Trace("swatch")
			ws.Counters.FullRefills++
			d.cfg.Recorder.Refill("full")
			err = ws.Window.FullRefill(ctx, at)
		} else {
			ws.Counters.ShiftRefills++
			d.cfg.Recorder.Refill("shift")
			err = ws.Window.ShiftRefill(ctx, m.Axis, m.Dir)
		}
		if err != nil {
			return &SliceError{T: t, At: at, Rank: rank, Err: err}
		}

		if v, pinned := ws.Window.PinnedCenter(); pinned {
			ws.Counters.Pinned++
			d.cfg.Recorder.Point("pinned")
			if err := ws.Window.Commit(ctx, v); err != nil {
				return &SliceError{T: t, At: at, Rank: rank, Err: err}
			}
			continue
		}

		res := ws.Solver.Solve(ws.Window)
		ws.Counters.record(res)
		d.cfg.Recorder.Point("solved")
		d.cfg.Recorder.Solve(res.Status.String(), res.Residual, res.Backtracks, res.Clamped)
		if res.Status != solver.StatusOK {
			return &SliceError{T: t, At: at, Rank: rank, Status: res.Status, Err: res.Err()}
		}
		if res.Clamped > 0 {
			d.log.WithFields(logrus.Fields{"slice": t, "at": at.Format(rank), "parts": res.Clamped}).Trace("viscosity clamp")
		}

		if err := ws.Window.Commit(ctx, res.Value); err != nil {
			return &SliceError{T: t, At: at, Rank: rank, Err: err}
		}
	}
}

// Run advances slices from..to-1 in order, with a barrier between slices.
func (d *Driver) Run(ctx context.Context, from, to int) (Summary, error) {
	sum := Summary{From: from, To: from}
	start := time.Now()
	d.log.WithFields(logrus.Fields{"from": from, "to": to}).Info("march started")

	for t := from; t < to; t++ {
		report, err := d.RunTimeSlice(ctx, t)
		sum.Totals.add(report.Counters)
		if err != nil {
			sum.Duration = time.Since(start)
			return sum, err
		}
		sum.To = t + 1
		sum.Slices++
	}

	sum.Duration = time.Since(start)
	d.log.WithFields(logrus.Fields{
		"slices":   sum.Slices,
		"points":   sum.Totals.Points,
		"clamps":   sum.Totals.Clamps,
		"residual": sum.Totals.MaxResidual,
		"elapsed":  sum.Duration,
	}).Info("march finished")
	return sum, nil
}

// Solve runs the solver at a single coordinate without committing. The
// result reflects the current store contents.
func (d *Driver) Solve(ctx context.Context, c grid.Coord) (solver.Result, error) {
	d.single.Lock()
	defer d.single.Unlock()

	if d.singleWS == nil {
		ws, err := d.newWorkspace(-1)
		if err != nil {
			return solver.Result{}, err
		}
		d.singleWS = ws
	}
	if err := d.singleWS.Window.FullRefill(ctx, c); err != nil {
		return solver.Result{}, err
	}
	if v, ok := d.singleWS.Window.PinnedCenter(); ok {
		return solver.Result{Status: solver.StatusOK, Value: v}, nil
	}
	return d.singleWS.Solver.Solve(d.singleWS.Window), nil
}

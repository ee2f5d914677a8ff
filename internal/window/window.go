// Package window keeps the bounded neighbourhood of grid samples around the
// point being solved.
//
// The window spans time offsets -Depth..0 and -r..r on every spatial axis.
// Layer 0 holds the slice being solved; it starts as a copy of layer -1 and
// is never read from the store. Spatial axes are ring buffers, so moving the
// center by one cell only fetches the face that enters the window.
package window

import (
	"context"
	"errors"
	"fmt"

	"github.com/san-kum/gridmarch/internal/expr"
	"github.com/san-kum/gridmarch/internal/field"
	"github.com/san-kum/gridmarch/internal/grid"
	"github.com/san-kum/gridmarch/internal/store"
)

var (
	ErrConfig   = errors.New("window: invalid configuration")
	ErrNotReady = errors.New("window: shift before full refill")
)

type Config struct {
	Shape grid.Shape
	// Radius per axis. Radius[grid.Time] is the history depth.
	Radius     grid.Offset
	Components int
	Store      store.Store
	Boundary   Boundary
	Params     expr.ParamSource
}

// Window is owned by a single worker.
type Window struct {
	shape  grid.Shape
	rank   int
	radius grid.Offset
	comps  int
	store  store.Store
	bound  Boundary
	pinner Pinner
	params expr.ParamSource

	size   [grid.MaxAxes]int
	stride [grid.MaxAxes]int
	origin [grid.MaxAxes]int
	cells  []complex128

	center   grid.Coord
	ready    bool
	estimate field.Sample
	gen      uint64
	fetches  int
}

func New(cfg Config) (*Window, error) {
	if err := cfg.Shape.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if cfg.Components <= 0 {
		return nil, fmt.Errorf("%w: %d components", ErrConfig, cfg.Components)
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("%w: nil store", ErrConfig)
	}
	if cfg.Radius[grid.Time] < 1 {
		return nil, fmt.Errorf("%w: history depth must be at least 1", ErrConfig)
	}
	rank := cfg.Shape.Rank()
	for a := 0; a < grid.MaxAxes; a++ {
		if cfg.Radius[a] < 0 || (a >= rank && cfg.Radius[a] != 0) {
			return nil, fmt.Errorf("%w: radius %d on axis %d", ErrConfig, cfg.Radius[a], a)
		}
	}

	w := &Window{
		shape:  cfg.Shape,
		rank:   rank,
		radius: cfg.Radius,
		comps:  cfg.Components,
		store:  cfg.Store,
		bound:  cfg.Boundary,
		params: cfg.Params,
	}
	if w.bound == nil {
		w.bound = Constant(field.New(cfg.Components))
	}
	if p, ok := w.bound.(Pinner); ok {
		w.pinner = p
	}

	cells := 1
	for a := rank - 1; a >= 0; a-- {
		if a == grid.Time {
			w.size[a] = cfg.Radius[a] + 1
		} else {
			w.size[a] = 2*cfg.Radius[a] + 1
		}
		w.stride[a] = cells
		cells *= w.size[a]
	}
	w.cells = make([]complex128, cells*cfg.Components)
	w.estimate = field.New(cfg.Components)
	return w, nil
}

func (w *Window) Depth() int          { return w.radius[grid.Time] }
func (w *Window) Radius() grid.Offset { return w.radius }
func (w *Window) Center() grid.Coord  { return w.center }
func (w *Window) Components() int     { return w.comps }

// Fetches counts samples resolved since construction.
func (w *Window) Fetches() int { return w.fetches }

func (w *Window) index(o grid.Offset) int {
	i := (o[grid.Time] + w.radius[grid.Time]) * w.stride[grid.Time]
	for a := 1; a < w.rank; a++ {
		n := w.size[a]
		p := (w.origin[a] + o[a] + w.radius[a]) % n
		if p < 0 {
			p += n
		}
		i += p * w.stride[a]
	}
	return i * w.comps
}

func (w *Window) cell(o grid.Offset) []complex128 {
	i := w.index(o)
	return w.cells[i : i+w.comps]
}

func (w *Window) inside(o grid.Offset) bool {
	if o[grid.Time] > 0 || o[grid.Time] < -w.radius[grid.Time] {
		return false
	}
	for a := 1; a < grid.MaxAxes; a++ {
		if o[a] < -w.radius[a] || o[a] > w.radius[a] {
			return false
		}
	}
	return true
}

// forEach visits every offset of the window with time offsets in
// [tFrom, tTo], holding axis fixed at fixed when axis > 0.
func (w *Window) forEach(tFrom, tTo, axis, fixed int, fn func(grid.Offset) error) error {
	var o grid.Offset
	var walk func(a int) error
	walk = func(a int) error {
		if a == w.rank {
			return fn(o)
		}
		lo, hi := -w.radius[a], w.radius[a]
		if a == grid.Time {
			lo, hi = tFrom, tTo
		}
		if a == axis && a != grid.Time {
			lo, hi = fixed, fixed
		}
		for v := lo; v <= hi; v++ {
			o[a] = v
			if err := walk(a + 1); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(0)
}

// resolve returns the sample at an absolute coordinate: out-of-range
// non-periodic coordinates seed, periodic ones wrap, pinned cells win over
// the store and absent store entries seed.
func (w *Window) resolve(ctx context.Context, c grid.Coord) (field.Sample, error) {
	w.fetches++
	rc, ok := w.shape.Resolve(c)
	if !ok {
		return w.seed(c), nil
	}
	if w.pinner != nil {
		if v, ok := w.pinner.Pinned(rc); ok {
			return v, nil
		}
	}
	v, ok, err := w.store.Get(ctx, rc)
	if err != nil {
		return nil, fmt.Errorf("window: fetch %s: %w", rc.Format(w.rank), err)
	}
	if !ok {
		return w.seed(rc), nil
	}
	return v, nil
}

func (w *Window) seed(c grid.Coord) field.Sample {
	s := w.bound.Seed(c)
	if len(s) != w.comps {
		out := field.New(w.comps)
		copy(out, s)
		return out
	}
	return s
}

func (w *Window) load(ctx context.Context, o grid.Offset) error {
	v, err := w.resolve(ctx, w.center.Add(o))
	if err != nil {
		return err
	}
	copy(w.cell(o), v)
	return nil
}

// overlay fills a layer-0 cell with its initial guess: the pinned value, the
// boundary seed outside the grid, otherwise the layer -1 value.
func (w *Window) overlay(o grid.Offset) {
	dst := w.cell(o)
	abs := w.center.Add(o)
	rc, ok := w.shape.Resolve(abs)
	if !ok {
		copy(dst, w.seed(abs))
		return
	}
	if w.pinner != nil {
		if v, ok := w.pinner.Pinned(rc); ok {
			copy(dst, v)
			return
		}
	}
	copy(dst, w.cell(o.Shift(grid.Time, -1)))
}

// FullRefill loads the entire window around center. center[grid.Time] is
// the slice being solved.
func (w *Window) FullRefill(ctx context.Context, center grid.Coord) error {
	w.center = center
	w.origin = [grid.MaxAxes]int{}
	w.ready = false
	err := w.forEach(-w.Depth(), -1, -1, 0, func(o grid.Offset) error {
		return w.load(ctx, o)
	})
	if err != nil {
		return err
	}
	_ = w.forEach(0, 0, -1, 0, func(o grid.Offset) error {
		w.overlay(o)
		return nil
	})
	w.resetEstimate()
	w.ready = true
	return nil
}

// ShiftRefill moves the center one cell along a spatial axis and loads only
// the entering face. The caller guarantees the move is a unit step.
func (w *Window) ShiftRefill(ctx context.Context, axis, dir int) error {
	if !w.ready {
		return ErrNotReady
	}
	if axis <= grid.Time || axis >= w.rank || (dir != 1 && dir != -1) {
		panic(fmt.Sprintf("window: invalid shift axis %d dir %d", axis, dir))
	}
	n := w.size[axis]
	w.center = w.center.Shift(axis, dir)
	w.origin[axis] = ((w.origin[axis]+dir)%n + n) % n

	face := dir * w.radius[axis]
	w.ready = false
	err := w.forEach(-w.Depth(), -1, axis, face, func(o grid.Offset) error {
		return w.load(ctx, o)
	})
	if err != nil {
		return err
	}
	_ = w.forEach(0, 0, axis, face, func(o grid.Offset) error {
		w.overlay(o)
		return nil
	})
	w.resetEstimate()
	w.ready = true
	return nil
}

func (w *Window) resetEstimate() {
	copy(w.estimate, w.cell(grid.Offset{}))
	w.gen++
}

// Commit writes value into the store at the current center.
func (w *Window) Commit(ctx context.Context, value field.Sample) error {
	if err := w.store.Set(ctx, w.center, value); err != nil {
		return fmt.Errorf("window: commit %s: %w", w.center.Format(w.rank), err)
	}
	return nil
}

// PinnedCenter reports whether the current center is a pinned cell.
func (w *Window) PinnedCenter() (field.Sample, bool) {
	if w.pinner == nil {
		return nil, false
	}
	return w.pinner.Pinned(w.center)
}

// Estimate returns a copy of the unknown's current value.
func (w *Window) Estimate() field.Sample { return w.estimate.Clone() }

func (w *Window) SetEstimate(s field.Sample) {
	copy(w.estimate, s)
	w.gen++
}

// History returns the center sample back slices before the unknown.
func (w *Window) History(back int) field.Sample {
	return field.Sample(w.cell(grid.Offset{-back})).Clone()
}

func (w *Window) SetHistory(back int, s field.Sample) {
	copy(w.cell(grid.Offset{-back}), s)
	w.gen++
}

// Sample implements expr.Bindings. Offset zero is the unknown.
func (w *Window) Sample(r expr.Ref) complex128 {
	if r.Offset.IsZero() {
		return w.estimate[r.Component]
	}
	if !w.inside(r.Offset) {
		panic(fmt.Sprintf("window: offset %s outside radius %s", r.Offset.Format(w.rank), w.radius.Format(w.rank)))
	}
	return w.cell(r.Offset)[r.Component]
}

func (w *Window) Param(name string) (complex128, bool) {
	if w.params == nil {
		return 0, false
	}
	return w.params.Param(name, w.center)
}

func (w *Window) Snapshot() uint64 { return w.gen }

// Contents lists every cell in logical row-major order, with the unknown
// reported as its layer-0 seed rather than the current estimate.
func (w *Window) Contents() []field.Sample {
	out := make([]field.Sample, 0, len(w.cells)/w.comps)
	_ = w.forEach(-w.Depth(), 0, -1, 0, func(o grid.Offset) error {
		out = append(out, field.Sample(w.cell(o)).Clone())
		return nil
	})
	return out
}

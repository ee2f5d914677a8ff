package march

import (
	"github.com/san-kum/gridmarch/internal/solver"
	"github.com/san-kum/gridmarch/internal/traverse"
	"github.com/san-kum/gridmarch/internal/window"
)

// Counters are per-workspace debug tallies. They are reset at the start of
// every slice.
type Counters struct {
	Points       int
	FullRefills  int
	ShiftRefills int
	Solves       int
	Pinned       int
	Singular     int
	Identity     int
	Restored     int
	Clamps       int
	Backtracks   int
	Evaluations  int
	MaxResidual  float64
}

func (c *Counters) add(o Counters) {
	c.Points += o.Points
	c.FullRefills += o.FullRefills
	c.ShiftRefills += o.ShiftRefills
	c.Solves += o.Solves
	c.Pinned += o.Pinned
	c.Singular += o.Singular
	c.Identity += o.Identity
	c.Restored += o.Restored
	c.Clamps += o.Clamps
	c.Backtracks += o.Backtracks
	c.Evaluations += o.Evaluations
	if o.MaxResidual > c.MaxResidual {
		c.MaxResidual = o.MaxResidual
	}
}

func (c *Counters) record(r solver.Result) {
	c.Solves++
	c.Identity += r.Identity
	c.Restored += r.Restored
	c.Clamps += r.Clamped
	c.Backtracks += r.Backtracks
	c.Evaluations += r.Evaluations
	if r.Status == solver.StatusSingular {
		c.Singular++
	}
	if r.Residual > c.MaxResidual {
		c.MaxResidual = r.Residual
	}
}

// Workspace is everything one worker owns. It is built once and reused for
// every slice; nothing in it is shared.
type Workspace struct {
	ID       int
	Window   *window.Window
	Cursor   *traverse.Cursor
	Solver   *solver.Solver
	Swatches []traverse.Swatch
	Counters Counters
}

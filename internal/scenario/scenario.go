// Package scenario bundles ready-made equations with their grids, initial
// conditions, boundaries and parameters.
package scenario

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/gridmarch/internal/expr"
	"github.com/san-kum/gridmarch/internal/field"
	"github.com/san-kum/gridmarch/internal/grid"
	"github.com/san-kum/gridmarch/internal/metrics"
	"github.com/san-kum/gridmarch/internal/window"
)

type Scenario struct {
	Name        string
	Description string
	Components  int
	// Shape is the default grid; callers may override extents and steps.
	Shape  grid.Shape
	Params expr.MapParams
	// Equations builds one residual per component. F = 0 is solved at every
	// point.
	Equations func(shape grid.Shape) []expr.Node
	Initial   func(shape grid.Shape, p expr.ParamSource) func(grid.Coord) field.Sample
	Boundary  func(shape grid.Shape, p expr.ParamSource) window.Boundary
	// Local, when set, supplies coordinate-dependent parameters. base
	// resolves the constant ones.
	Local   func(shape grid.Shape, base expr.ParamSource) expr.ParamSource
	Options expr.Options
}

// Compile discretizes the scenario on shape.
func (s *Scenario) Compile(shape grid.Shape) (*expr.Equation, error) {
	eq, err := expr.Compile(s.Equations(shape), shape, s.Options)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}
	return eq, nil
}

// ParamSource layers overrides over the scenario defaults, plus any
// coordinate-dependent parameters the scenario defines.
func (s *Scenario) ParamSource(shape grid.Shape, overrides map[string]float64) expr.ParamSource {
	over := make(expr.MapParams, len(overrides))
	for k, v := range overrides {
		over[k] = complex(v, 0)
	}
	base := expr.Layered{over, s.Params}
	if s.Local == nil {
		return base
	}
	return expr.Layered{over, s.Local(shape, base), s.Params}
}

func (s *Scenario) Metrics() []metrics.Metric {
	return []metrics.Metric{
		metrics.NewEnergy(),
		metrics.NewEnergyDrift(),
		metrics.NewMass(),
		metrics.NewStability(1e6),
		metrics.NewChange(),
	}
}

// WithShape returns the default shape with any non-zero override applied.
func (s *Scenario) WithShape(extents []int, steps []float64, periodic []bool) grid.Shape {
	shape := grid.Shape{
		Extents:  append([]int(nil), s.Shape.Extents...),
		Steps:    append([]float64(nil), s.Shape.Steps...),
		Periodic: append([]bool(nil), s.Shape.Periodic...),
	}
	if len(extents) > 0 {
		shape.Extents = append([]int(nil), extents...)
	}
	if len(steps) > 0 {
		shape.Steps = append([]float64(nil), steps...)
	}
	if len(periodic) > 0 {
		shape.Periodic = append([]bool(nil), periodic...)
	}
	return shape
}

// axisPositions returns the physical position of every cell along each
// spatial axis, centered on zero.
func axisPositions(shape grid.Shape) [][]float64 {
	pos := make([][]float64, shape.Rank())
	for a := 1; a < shape.Rank(); a++ {
		n := shape.Extents[a]
		half := float64(n-1) * shape.Step(a) / 2
		pos[a] = make([]float64, n)
		if n == 1 {
			continue
		}
		floats.Span(pos[a], -half, half)
	}
	return pos
}

// param reads a real parameter at the origin of slice 0, falling back to
// def when it is unbound.
func param(p expr.ParamSource, name string, def float64) float64 {
	if p == nil {
		return def
	}
	v, ok := p.Param(name, grid.Coord{})
	if !ok {
		return def
	}
	return real(v)
}

func radius2(pos [][]float64, c grid.Coord, rank int) float64 {
	r2 := 0.0
	for a := 1; a < rank; a++ {
		x := pos[a][c[a]]
		r2 += x * x
	}
	return r2
}

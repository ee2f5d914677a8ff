package window

import (
	"github.com/san-kum/gridmarch/internal/field"
	"github.com/san-kum/gridmarch/internal/grid"
)

// Boundary supplies the sample used for coordinates outside a non-periodic
// axis and for in-range coordinates the store has never seen.
type Boundary interface {
	Seed(at grid.Coord) field.Sample
}

// Pinner is an optional Boundary capability: pinned coordinates always read
// as the returned value and are never solved.
type Pinner interface {
	Pinned(at grid.Coord) (field.Sample, bool)
}

// Constant seeds every coordinate with the same sample.
type Constant field.Sample

func (c Constant) Seed(grid.Coord) field.Sample { return field.Sample(c).Clone() }

// SeedFunc adapts a function to Boundary.
type SeedFunc func(at grid.Coord) field.Sample

func (f SeedFunc) Seed(at grid.Coord) field.Sample { return f(at) }

// WithPins combines a Boundary with a set of fixed-value cells.
type WithPins struct {
	Boundary
	Fixed func(at grid.Coord) (field.Sample, bool)
}

func (p WithPins) Pinned(at grid.Coord) (field.Sample, bool) {
	if p.Fixed == nil {
		return nil, false
	}
	return p.Fixed(at)
}

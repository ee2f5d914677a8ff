// Package grid defines the coordinate types shared by every layer of the
// time-marching core.
//
// Axis 0 is always time. Axes 1..Rank-1 are spatial. Coordinates and
// offsets are fixed-size arrays so they compare with == and can be used
// directly as map keys.
package grid

import (
	"errors"
	"fmt"
	"strings"
)

// MaxAxes bounds the rank of a grid: time plus up to four spatial axes.
const MaxAxes = 5

// Time is the index of the time axis.
const Time = 0

var (
	ErrRank     = errors.New("grid: rank must be between 2 and MaxAxes")
	ErrExtent   = errors.New("grid: every extent must be positive")
	ErrStep     = errors.New("grid: every step must be positive")
	ErrPeriodic = errors.New("grid: the time axis cannot be periodic")
)

// Coord is an absolute grid coordinate. Components past the grid rank are zero.
type Coord [MaxAxes]int

// Offset is a displacement between two coordinates.
type Offset [MaxAxes]int

func (c Coord) Add(o Offset) Coord {
	for i := range c {
		c[i] += o[i]
	}
	return c
}

func (c Coord) Sub(other Coord) Offset {
	var o Offset
	for i := range c {
		o[i] = c[i] - other[i]
	}
	return o
}

// Shift returns c moved by delta along a single axis.
func (c Coord) Shift(axis, delta int) Coord {
	c[axis] += delta
	return c
}

func (c Coord) Format(rank int) string {
	parts := make([]string, rank)
	for i := 0; i < rank; i++ {
		parts[i] = fmt.Sprintf("%d", c[i])
	}
	return "(" + strings.Join(parts, ",") + ")"
}

func (o Offset) Add(other Offset) Offset {
	for i := range o {
		o[i] += other[i]
	}
	return o
}

func (o Offset) Shift(axis, delta int) Offset {
	o[axis] += delta
	return o
}

// Unit is the offset of one step along axis in direction dir (+1 or -1).
func Unit(axis, dir int) Offset {
	var o Offset
	o[axis] = dir
	return o
}

func (o Offset) IsZero() bool {
	return o == Offset{}
}

// Less orders offsets lexicographically, axis 0 first.
func (o Offset) Less(other Offset) bool {
	for i := range o {
		if o[i] != other[i] {
			return o[i] < other[i]
		}
	}
	return false
}

func (o Offset) Format(rank int) string {
	return Coord(o).Format(rank)
}

// Shape describes the extent, periodicity and step size of each axis.
type Shape struct {
	Extents  []int
	Periodic []bool
	Steps    []float64
}

func (s Shape) Rank() int { return len(s.Extents) }

func (s Shape) Validate() error {
	if len(s.Extents) < 2 || len(s.Extents) > MaxAxes {
		return fmt.Errorf("%w: got %d", ErrRank, len(s.Extents))
	}
	for i, e := range s.Extents {
		if e <= 0 {
			return fmt.Errorf("%w: axis %d has extent %d", ErrExtent, i, e)
		}
	}
	if len(s.Steps) != len(s.Extents) {
		return fmt.Errorf("%w: %d steps for %d axes", ErrStep, len(s.Steps), len(s.Extents))
	}
	for i, h := range s.Steps {
		if h <= 0 {
			return fmt.Errorf("%w: axis %d has step %g", ErrStep, i, h)
		}
	}
	if len(s.Periodic) > 0 && s.Periodic[Time] {
		return ErrPeriodic
	}
	return nil
}

func (s Shape) IsPeriodic(axis int) bool {
	return axis < len(s.Periodic) && s.Periodic[axis]
}

// Step returns the discretization step of axis.
func (s Shape) Step(axis int) float64 {
	return s.Steps[axis]
}

// Resolve maps c onto the grid. Periodic axes wrap modulo their extent.
// ok is false when a non-periodic component falls outside [0, extent).
func (s Shape) Resolve(c Coord) (Coord, bool) {
	for a := 0; a < s.Rank(); a++ {
		e := s.Extents[a]
		if s.IsPeriodic(a) {
			c[a] = ((c[a] % e) + e) % e
			continue
		}
		if c[a] < 0 || c[a] >= e {
			return c, false
		}
	}
	return c, true
}

// SpatialPoints is the number of coordinates in one time slice.
func (s Shape) SpatialPoints() int {
	n := 1
	for a := 1; a < s.Rank(); a++ {
		n *= s.Extents[a]
	}
	return n
}

// SliceCoords calls fn for every coordinate of slice t in row-major order.
func (s Shape) SliceCoords(t int, fn func(Coord)) {
	var c Coord
	c[Time] = t
	var walk func(axis int)
	walk = func(axis int) {
		if axis == s.Rank() {
			fn(c)
			return
		}
		for i := 0; i < s.Extents[axis]; i++ {
			c[axis] = i
			walk(axis + 1)
		}
	}
	walk(1)
}

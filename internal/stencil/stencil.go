// Package stencil expands partial derivatives into weighted sums of grid
// samples.
//
// An [Expansion] maps an offset from the evaluation point to the rational
// coefficient applied to the sample found there. Expansions are built once
// per equation and reused for every coordinate; only the center moves.
package stencil

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/san-kum/gridmarch/internal/grid"
)

// Coeff is a coefficient kept as a numerator/denominator pair so that terms
// landing on the same offset can be merged over a common denominator.
type Coeff struct {
	Num float64
	Den float64
}

func (c Coeff) Value() float64 { return c.Num / c.Den }

func (c Coeff) mul(o Coeff) Coeff {
	return Coeff{Num: c.Num * o.Num, Den: c.Den * o.Den}
}

// add merges two coefficients. Equal denominators add numerators; otherwise
// the pair is cross-multiplied.
func (c Coeff) add(o Coeff) Coeff {
	if c.Den == o.Den {
		return Coeff{Num: c.Num + o.Num, Den: c.Den}
	}
	return Coeff{Num: o.Den*c.Num + c.Den*o.Num, Den: c.Den * o.Den}
}

// Expansion maps offsets to coefficients. Keys are unique by construction.
type Expansion map[grid.Offset]Coeff

// Identity is the expansion of the zeroth derivative: the sample itself.
func Identity() Expansion {
	return Expansion{{}: {Num: 1, Den: 1}}
}

// Axis selects the axis a derivative is taken along.
type Axis struct {
	Index int
	// Time marks the time axis, whose first derivative uses the one-sided
	// pair (offset, offset+2).
	Time bool
	// SecondOrderScale multiplies the h² divisor of the second derivative.
	// Zero means 1.
	SecondOrderScale float64
}

type term struct {
	delta int
	coeff Coeff
}

func kernel(ax Axis, n int, h float64) []term {
	switch n {
	case 1:
		if ax.Time {
			return []term{
				{0, Coeff{-1, 2 * h}},
				{2, Coeff{1, 2 * h}},
			}
		}
		return []term{
			{1, Coeff{1, 2 * h}},
			{-1, Coeff{-1, 2 * h}},
		}
	case 2:
		s := ax.SecondOrderScale
		if s == 0 {
			s = 1
		}
		den := s * h * h
		return []term{
			{1, Coeff{1, den}},
			{0, Coeff{-2, den}},
			{-1, Coeff{1, den}},
		}
	case 3:
		h3 := h * h * h
		return []term{
			{2, Coeff{1, 2 * h3}},
			{1, Coeff{-1, h3}},
			{-1, Coeff{1, h3}},
			{-2, Coeff{-1, 2 * h3}},
		}
	}
	panic(fmt.Sprintf("stencil: no kernel for order %d", n))
}

// Expand applies the n-th derivative along ax with step h to every term of
// prior. The input map is never modified. Orders above three are expanded
// by three first and then by the remainder.
//
// Expand panics on a zero step, a negative order or an axis index outside
// the grid.
func Expand(prior Expansion, ax Axis, n int, h float64) Expansion {
	if h == 0 {
		panic("stencil: zero step")
	}
	if n < 0 {
		panic(fmt.Sprintf("stencil: negative order %d", n))
	}
	if ax.Index < 0 || ax.Index >= grid.MaxAxes {
		panic(fmt.Sprintf("stencil: axis %d out of range", ax.Index))
	}

	if n == 0 {
		return prior.Clone()
	}
	if n > 3 {
		return Expand(Expand(prior, ax, 3, h), ax, n-3, h)
	}

	k := kernel(ax, n, h)
	out := make(Expansion, len(prior)*len(k))
	for off, c := range prior {
		for _, t := range k {
			out.applyAdd(off.Shift(ax.Index, t.delta), c.mul(t.coeff))
		}
	}
	return out
}

func (e Expansion) applyAdd(off grid.Offset, c Coeff) {
	if prev, ok := e[off]; ok {
		e[off] = prev.add(c)
		return
	}
	e[off] = c
}

func (e Expansion) Clone() Expansion {
	out := make(Expansion, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Keys returns the offsets in lexicographic order.
func (e Expansion) Keys() []grid.Offset {
	keys := make([]grid.Offset, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// Radius returns the largest absolute displacement per axis.
func (e Expansion) Radius() grid.Offset {
	var r grid.Offset
	for off := range e {
		for a, d := range off {
			if d < 0 {
				d = -d
			}
			if d > r[a] {
				r[a] = d
			}
		}
	}
	return r
}

// Equal compares coefficient values with absolute tolerance tol. An offset
// missing from one side counts as a zero coefficient.
func (e Expansion) Equal(other Expansion, tol float64) bool {
	for k, c := range e {
		v := 0.0
		if oc, ok := other[k]; ok {
			v = oc.Value()
		}
		if math.Abs(c.Value()-v) > tol {
			return false
		}
	}
	for k, c := range other {
		if _, ok := e[k]; !ok && math.Abs(c.Value()) > tol {
			return false
		}
	}
	return true
}

// Describe renders one line per term, sorted by offset, printing the first
// rank axes of each offset.
func (e Expansion) Describe(rank int) string {
	var b strings.Builder
	for _, k := range e.Keys() {
		c := e[k]
		fmt.Fprintf(&b, "%s %g/%g = %g\n", k.Format(rank), c.Num, c.Den, c.Value())
	}
	return b.String()
}

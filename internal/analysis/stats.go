package analysis

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/gridmarch/internal/field"
	"github.com/san-kum/gridmarch/internal/grid"
)

// Part selects which scalar of a complex component is analysed.
type Part int

const (
	Re Part = iota
	Im
	Abs
)

func ParsePart(s string) (Part, bool) {
	switch s {
	case "re", "real", "":
		return Re, true
	case "im", "imag":
		return Im, true
	case "abs", "mod":
		return Abs, true
	}
	return Re, false
}

func (p Part) of(z complex128) float64 {
	switch p {
	case Im:
		return imag(z)
	case Abs:
		return cmplx.Abs(z)
	}
	return real(z)
}

type Stats struct {
	Min, Max     float64
	Mean, StdDev float64
	// L2 is the discrete norm sqrt(Σ x² · cell).
	L2 float64
	// Missing counts points with no stored value.
	Missing int
}

// Scalars extracts one scalar per point. Missing points are skipped.
func Scalars(values []field.Sample, component int, part Part) ([]float64, int) {
	out := make([]float64, 0, len(values))
	missing := 0
	for _, v := range values {
		if component >= len(v) {
			missing++
			continue
		}
		out = append(out, part.of(v[component]))
	}
	return out, missing
}

func SliceStats(values []field.Sample, component int, part Part, cell float64) Stats {
	xs, missing := Scalars(values, component, part)
	st := Stats{Missing: missing}
	if len(xs) == 0 {
		return st
	}
	st.Min = floats.Min(xs)
	st.Max = floats.Max(xs)
	st.Mean, st.StdDev = stat.MeanStdDev(xs, nil)
	if len(xs) == 1 {
		st.StdDev = 0
	}
	st.L2 = floats.Norm(xs, 2) * math.Sqrt(cell)
	return st
}

// Line extracts the samples of one component along a spatial axis through
// at. values is a slice in row-major order.
func Line(values []field.Sample, shape grid.Shape, axis int, at grid.Coord, component int) []complex128 {
	if axis < 1 || axis >= shape.Rank() {
		return nil
	}
	out := make([]complex128, shape.Extents[axis])
	c := at
	for i := range out {
		c[axis] = i
		idx := 0
		for a := 1; a < shape.Rank(); a++ {
			idx = idx*shape.Extents[a] + c[a]
		}
		if idx < len(values) && component < len(values[idx]) {
			out[i] = values[idx][component]
		}
	}
	return out
}

// Parts maps a complex line to one scalar per point.
func Parts(line []complex128, part Part) []float64 {
	out := make([]float64, len(line))
	for i, z := range line {
		out[i] = part.of(z)
	}
	return out
}

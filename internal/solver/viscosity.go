package solver

import (
	"math"

	"github.com/san-kum/gridmarch/internal/field"
)

// Clamp limits the change from prev to next, separately on every real and
// imaginary part. A change Δ with |Δ| >= Cutoff becomes
// sign(Δ)/sqrt(1/Δ² + 1/MaxChange²), whose magnitude stays below MaxChange.
// It returns the clamped sample and the number of parts that were clamped.
func Clamp(prev, next field.Sample, v Viscosity) (field.Sample, int) {
	out := next.Clone()
	clamped := 0
	for i := range out {
		var p complex128
		if i < len(prev) {
			p = prev[i]
		}
		re, okRe := clampPart(real(p), real(out[i]), v)
		im, okIm := clampPart(imag(p), imag(out[i]), v)
		if okRe {
			clamped++
		}
		if okIm {
			clamped++
		}
		out[i] = complex(re, im)
	}
	return out, clamped
}

func clampPart(prev, next float64, v Viscosity) (float64, bool) {
	delta := next - prev
	if math.Abs(delta) < v.Cutoff {
		return next, false
	}
	m := v.MaxChange
	change := 1 / math.Sqrt(1/(delta*delta)+1/(m*m))
	return prev + math.Copysign(change, delta), true
}

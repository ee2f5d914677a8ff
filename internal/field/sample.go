package field

import (
	"math"
	"math/cmplx"
)

// Sample is the value stored at one grid coordinate: one complex entry per
// component. Real fields leave the imaginary parts at zero.
type Sample []complex128

func New(components int) Sample {
	return make(Sample, components)
}

func Real(values ...float64) Sample {
	s := make(Sample, len(values))
	for i, v := range values {
		s[i] = complex(v, 0)
	}
	return s
}

func (s Sample) Clone() Sample {
	c := make(Sample, len(s))
	copy(c, s)
	return c
}

// CopyFrom overwrites s with src. Lengths must match.
func (s Sample) CopyFrom(src Sample) {
	copy(s, src)
}

func (s Sample) IsValid() bool {
	for _, v := range s {
		if cmplx.IsNaN(v) || cmplx.IsInf(v) {
			return false
		}
	}
	return true
}

// Norm2 is the squared magnitude summed over all components.
func (s Sample) Norm2() float64 {
	sum := 0.0
	for _, v := range s {
		sum += real(v)*real(v) + imag(v)*imag(v)
	}
	return sum
}

func (s Sample) Norm() float64 {
	return math.Sqrt(s.Norm2())
}

func (s Sample) Add(other Sample) Sample {
	result := make(Sample, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] + other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

func (s Sample) Sub(other Sample) Sample {
	result := make(Sample, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] - other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

func (s Sample) Scale(factor complex128) Sample {
	result := make(Sample, len(s))
	for i := range s {
		result[i] = s[i] * factor
	}
	return result
}

// Equal reports whether every component of s and other differs by at most tol.
func (s Sample) Equal(other Sample, tol float64) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if cmplx.Abs(s[i]-other[i]) > tol {
			return false
		}
	}
	return true
}

// RealParts returns the real part of each component.
func (s Sample) RealParts() []float64 {
	out := make([]float64, len(s))
	for i, v := range s {
		out[i] = real(v)
	}
	return out
}

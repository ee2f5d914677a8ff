package metrics

import (
	"math/cmplx"

	"github.com/san-kum/gridmarch/internal/field"
)

// Stability is the fraction of observed slices in which every component
// stays finite and within threshold.
type Stability struct {
	name       string
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{
		name:      "stability",
		threshold: threshold,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(_ int, values []field.Sample, _ float64) {
	s.samples++
	for _, v := range values {
		if !v.IsValid() || exceeds(v, s.threshold) {
			s.violations++
			return
		}
	}
}

func exceeds(v field.Sample, threshold float64) bool {
	for _, c := range v {
		if cmplx.Abs(c) > threshold {
			return true
		}
	}
	return false
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}

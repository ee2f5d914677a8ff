package solver

import "github.com/san-kum/gridmarch/internal/field"

type SingularPolicy int

const (
	// Abort returns StatusSingular as soon as the derivative cannot be
	// inverted.
	Abort SingularPolicy = iota
	// Identity substitutes the identity for the inverse and keeps going.
	Identity
)

func (p SingularPolicy) String() string {
	if p == Identity {
		return "identity"
	}
	return "abort"
}

// ParsePolicy accepts "abort" or "identity".
func ParsePolicy(s string) (SingularPolicy, bool) {
	switch s {
	case "abort", "":
		return Abort, true
	case "identity":
		return Identity, true
	}
	return Abort, false
}

type Viscosity struct {
	Enabled bool
	// Cutoff is the change, per real or imaginary part, at which the clamp
	// starts to apply.
	Cutoff float64
	// MaxChange bounds the magnitude of any clamped change.
	MaxChange float64
}

// ImprovedFunc decides whether a trial residual beats the current one.
type ImprovedFunc func(before, after field.Sample) bool

// SquaredMagnitudeDecreased is the default improvement test.
func SquaredMagnitudeDecreased(before, after field.Sample) bool {
	return after.Norm2() < before.Norm2()
}

type Config struct {
	MaxIterations      int
	MaxBacktrack       int
	Improved           ImprovedFunc
	Viscosity          Viscosity
	SingularPolicy     SingularPolicy
	PredictorCorrector bool
}

func DefaultConfig() Config {
	return Config{
		MaxIterations: 20,
		MaxBacktrack:  400,
		Improved:      SquaredMagnitudeDecreased,
		Viscosity: Viscosity{
			Cutoff:    20,
			MaxChange: 10000,
		},
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxIterations <= 0 {
		c.MaxIterations = d.MaxIterations
	}
	if c.MaxBacktrack < 0 {
		c.MaxBacktrack = 0
	}
	if c.Improved == nil {
		c.Improved = d.Improved
	}
	if c.Viscosity.Cutoff <= 0 {
		c.Viscosity.Cutoff = d.Viscosity.Cutoff
	}
	if c.Viscosity.MaxChange <= 0 {
		c.Viscosity.MaxChange = d.Viscosity.MaxChange
	}
	return c
}

package solver

import (
	"errors"
	"fmt"

	"github.com/san-kum/gridmarch/internal/expr"
	"github.com/san-kum/gridmarch/internal/field"
)

var (
	ErrSingular = errors.New("solver: singular derivative")
	ErrFailed   = errors.New("solver: evaluation failed")
)

type Status int

const (
	StatusOK Status = iota
	StatusSingular
	StatusNotInvertible
	StatusDistributionRequired
	// StatusFailed covers any other evaluation error, such as an unbound
	// parameter.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusSingular:
		return "singular"
	case StatusNotInvertible:
		return "not-invertible"
	case StatusDistributionRequired:
		return "distribution-required"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

type Result struct {
	Status Status
	Value  field.Sample
	// Residual is |F| at Value.
	Residual   float64
	Iterations int
	// Evaluations counts residual evaluations at trial points.
	Evaluations int
	Backtracks  int
	// Restored counts iterations where no trial was accepted.
	Restored int
	Clamped  int
	// Identity counts iterations that fell back to the identity update.
	Identity int
	Cause    error
}

// Err maps a non-OK status to a sentinel error.
func (r Result) Err() error {
	switch r.Status {
	case StatusOK:
		return nil
	case StatusSingular:
		return ErrSingular
	case StatusNotInvertible, StatusDistributionRequired:
		return r.Cause
	}
	if r.Cause != nil {
		return fmt.Errorf("%w: %w", ErrFailed, r.Cause)
	}
	return ErrFailed
}

func statusOf(err error) Status {
	switch {
	case errors.Is(err, expr.ErrNotInvertible):
		return StatusNotInvertible
	case errors.Is(err, expr.ErrDistributionRequired):
		return StatusDistributionRequired
	}
	return StatusFailed
}

package march

import (
	"errors"
	"fmt"

	"github.com/san-kum/gridmarch/internal/grid"
	"github.com/san-kum/gridmarch/internal/solver"
)

var (
	ErrRadius = errors.New("march: equation radius does not fit the grid")
	ErrSlice  = errors.New("march: time slice out of range")
	ErrConfig = errors.New("march: invalid configuration")
)

// SliceError reports the point at which a time slice failed.
type SliceError struct {
	T      int
	At     grid.Coord
	Rank   int
	Status solver.Status
	Err    error
}

func (e *SliceError) Error() string {
	if e.Status != solver.StatusOK {
		return fmt.Sprintf("march: slice %d at %s: solver %s: %v", e.T, e.At.Format(e.Rank), e.Status, e.Err)
	}
	return fmt.Sprintf("march: slice %d at %s: %v", e.T, e.At.Format(e.Rank), e.Err)
}

func (e *SliceError) Unwrap() error {
	return e.Err
}

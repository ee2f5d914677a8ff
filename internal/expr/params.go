package expr

import (
	"sort"

	"github.com/san-kum/gridmarch/internal/grid"
)

// ParamSource resolves named parameters, possibly varying over the grid.
type ParamSource interface {
	Param(name string, at grid.Coord) (complex128, bool)
}

// MapParams is a ParamSource of constants.
type MapParams map[string]complex128

func (m MapParams) Param(name string, _ grid.Coord) (complex128, bool) {
	v, ok := m[name]
	return v, ok
}

// Names lists the parameters in sorted order.
func (m MapParams) Names() []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ParamFunc adapts a function to ParamSource.
type ParamFunc func(name string, at grid.Coord) (complex128, bool)

func (f ParamFunc) Param(name string, at grid.Coord) (complex128, bool) {
	return f(name, at)
}

// Layered consults each source in turn and returns the first hit.
type Layered []ParamSource

func (l Layered) Param(name string, at grid.Coord) (complex128, bool) {
	for _, s := range l {
		if s == nil {
			continue
		}
		if v, ok := s.Param(name, at); ok {
			return v, true
		}
	}
	return 0, false
}

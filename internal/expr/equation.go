package expr

import (
	"fmt"
	"strings"

	"github.com/san-kum/gridmarch/internal/grid"
)

// Equation is a discretized system F(u) = 0 anchored so that the unknown
// sits at offset zero on every axis. All other samples lie at time offsets
// -Depth..0.
type Equation struct {
	// F holds one residual per component.
	F []Node
	// J[i][j] is ∂F_i/∂u_j at the unknown.
	J      [][]Node
	Radius grid.Offset
	Depth  int
	Refs   []Ref
}

func (e *Equation) Components() int { return len(e.F) }

// Unknown is the reference of component i of the sample being solved for.
func Unknown(component int) Ref { return Ref{Component: component} }

// Compile discretizes each component, shifts time offsets so the latest
// referenced slice becomes offset zero, and derives the Jacobian.
func Compile(components []Node, shape grid.Shape, opts Options) (*Equation, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if len(components) == 0 {
		return nil, fmt.Errorf("%w: no components", ErrComponents)
	}

	disc := make([]Node, len(components))
	maxT := 0
	first := true
	for i, c := range components {
		d, err := Discretize(c, shape, opts)
		if err != nil {
			return nil, fmt.Errorf("component %d: %w", i, err)
		}
		disc[i] = d
		for _, r := range Refs(d) {
			if r.Component < 0 || r.Component >= len(components) {
				return nil, fmt.Errorf("%w: u%d in a %d-component system", ErrComponents, r.Component, len(components))
			}
			if first || r.Offset[grid.Time] > maxT {
				maxT = r.Offset[grid.Time]
				first = false
			}
		}
	}
	if first {
		return nil, ErrNoUnknown
	}

	eq := &Equation{F: make([]Node, len(disc))}
	seen := make(map[Ref]struct{})
	for i, d := range disc {
		eq.F[i] = shiftTime(d, -maxT)
		for _, r := range Refs(eq.F[i]) {
			seen[r] = struct{}{}
		}
	}
	eq.Refs = sortedRefs(seen)

	for _, r := range eq.Refs {
		for a, d := range r.Offset {
			if d < 0 {
				d = -d
			}
			if d > eq.Radius[a] {
				eq.Radius[a] = d
			}
		}
	}
	eq.Depth = eq.Radius[grid.Time]

	eq.J = make([][]Node, len(eq.F))
	for i, f := range eq.F {
		eq.J[i] = make([]Node, len(eq.F))
		for j := range eq.F {
			eq.J[i][j] = f.Differentiate(Unknown(j))
		}
	}
	return eq, nil
}

func (e *Equation) Describe() string {
	var b strings.Builder
	for i, f := range e.F {
		fmt.Fprintf(&b, "F%d = %s\n", i, f.Describe())
	}
	return b.String()
}

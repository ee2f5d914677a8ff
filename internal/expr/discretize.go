package expr

import (
	"fmt"
	"sort"

	"github.com/san-kum/gridmarch/internal/grid"
	"github.com/san-kum/gridmarch/internal/stencil"
)

// Options tunes discretization.
type Options struct {
	// SecondOrderScale multiplies the h² divisor of second derivatives,
	// indexed by axis. Missing or zero entries mean 1.
	SecondOrderScale []float64
}

func (o Options) axis(shape grid.Shape, a int) stencil.Axis {
	ax := stencil.Axis{Index: a, Time: a == grid.Time}
	if a < len(o.SecondOrderScale) {
		ax.SecondOrderScale = o.SecondOrderScale[a]
	}
	return ax
}

// Discretize replaces every PartialDerivative in n with a weighted sum of
// DiscretizedSamples. Nested derivatives are rewritten innermost first. The
// operand of each derivative must be linear in field samples with constant
// coefficients; anything else yields ErrDistributionRequired.
func Discretize(n Node, shape grid.Shape, opts Options) (Node, error) {
	switch v := n.(type) {
	case *BinaryOp:
		l, err := Discretize(v.Left, shape, opts)
		if err != nil {
			return nil, err
		}
		r, err := Discretize(v.Right, shape, opts)
		if err != nil {
			return nil, err
		}
		return rebuild(v.Op, l, r), nil

	case *PartialDerivative:
		if v.Axis < 0 || v.Axis >= shape.Rank() {
			return nil, fmt.Errorf("expr: derivative along axis %d of a rank %d grid", v.Axis, shape.Rank())
		}
		if v.Order < 0 {
			return nil, fmt.Errorf("expr: negative derivative order %d", v.Order)
		}
		inner, err := Discretize(v.Operand, shape, opts)
		if err != nil {
			return nil, err
		}
		terms, ok := linearForm(inner)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrDistributionRequired, v.Describe())
		}
		exp := stencil.Expand(stencil.Identity(), opts.axis(shape, v.Axis), v.Order, shape.Step(v.Axis))

		out := make(map[Ref]complex128)
		for ref, w := range terms {
			for off, c := range exp {
				shifted := Ref{Offset: ref.Offset.Add(off), Component: ref.Component}
				out[shifted] += w * complex(c.Value(), 0)
			}
		}
		return weightedSum(out), nil
	}
	return n, nil
}

func rebuild(op Op, l, r Node) Node {
	switch op {
	case OpAdd:
		return Add(l, r)
	case OpSub:
		return Sub(l, r)
	case OpMul:
		return Mul(l, r)
	}
	return Div(l, r)
}

// linearForm expresses n as Σ w·sample. Constant terms vanish under any
// derivative of order ≥ 1 and are dropped.
func linearForm(n Node) (map[Ref]complex128, bool) {
	switch v := n.(type) {
	case *Constant:
		return map[Ref]complex128{}, true
	case *DiscretizedSample:
		return map[Ref]complex128{v.Ref: 1}, true
	case *BinaryOp:
		switch v.Op {
		case OpAdd, OpSub:
			l, ok := linearForm(v.Left)
			if !ok {
				return nil, false
			}
			r, ok := linearForm(v.Right)
			if !ok {
				return nil, false
			}
			sign := complex128(1)
			if v.Op == OpSub {
				sign = -1
			}
			for ref, w := range r {
				l[ref] += sign * w
			}
			return l, true
		case OpMul:
			if c, ok := v.Left.(*Constant); ok {
				return scaled(v.Right, c.Value)
			}
			if c, ok := v.Right.(*Constant); ok {
				return scaled(v.Left, c.Value)
			}
		case OpDiv:
			if c, ok := v.Right.(*Constant); ok && c.Value != 0 {
				return scaled(v.Left, 1/c.Value)
			}
		}
	}
	return nil, false
}

func scaled(n Node, k complex128) (map[Ref]complex128, bool) {
	terms, ok := linearForm(n)
	if !ok {
		return nil, false
	}
	for ref := range terms {
		terms[ref] *= k
	}
	return terms, true
}

// weightedSum builds Σ w·sample in a deterministic order, skipping zero
// weights.
func weightedSum(terms map[Ref]complex128) Node {
	refs := sortedRefs(terms)
	var acc Node = Real(0)
	for _, r := range refs {
		w := terms[r]
		if w == 0 {
			continue
		}
		acc = Add(acc, Mul(Const(w), Sample(r)))
	}
	return acc
}

func sortedRefs[V any](m map[Ref]V) []Ref {
	refs := make([]Ref, 0, len(m))
	for r := range m {
		refs = append(refs, r)
	}
	sort.Slice(refs, func(i, j int) bool { return refLess(refs[i], refs[j]) })
	return refs
}

func refLess(a, b Ref) bool {
	if a.Offset != b.Offset {
		return a.Offset.Less(b.Offset)
	}
	return a.Component < b.Component
}

// Refs collects every field sample referenced by n.
func Refs(n Node) []Ref {
	seen := make(map[Ref]struct{})
	var walk func(Node)
	walk = func(n Node) {
		switch v := n.(type) {
		case *DiscretizedSample:
			seen[v.Ref] = struct{}{}
		case *BinaryOp:
			walk(v.Left)
			walk(v.Right)
		case *PartialDerivative:
			walk(v.Operand)
		}
	}
	walk(n)
	return sortedRefs(seen)
}

// shiftTime moves every sample in n by delta along the time axis.
func shiftTime(n Node, delta int) Node {
	switch v := n.(type) {
	case *DiscretizedSample:
		return Sample(Ref{Offset: v.Ref.Offset.Shift(grid.Time, delta), Component: v.Ref.Component})
	case *BinaryOp:
		return rebuild(v.Op, shiftTime(v.Left, delta), shiftTime(v.Right, delta))
	case *PartialDerivative:
		return Partial(v.Axis, v.Order, shiftTime(v.Operand, delta))
	}
	return n
}

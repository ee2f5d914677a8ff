// Package expr is a small closed expression language for differential
// constraints.
//
// Trees are immutable after construction and may be shared by any number of
// goroutines. Evaluation state lives in a [Memo] owned by the caller.
package expr

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/san-kum/gridmarch/internal/grid"
)

// Ref names one component of the field sample at an offset from the
// evaluation point.
type Ref struct {
	Offset    grid.Offset
	Component int
}

// Bindings supplies concrete values during evaluation.
type Bindings interface {
	Sample(r Ref) complex128
	Param(name string) (complex128, bool)
	// Snapshot changes whenever any value Sample or Param would return changes.
	Snapshot() uint64
}

type Node interface {
	ID() uint64
	Evaluate(b Bindings, m *Memo) (complex128, error)
	// Differentiate returns the symbolic derivative with respect to one
	// field sample.
	Differentiate(wrt Ref) Node
	Describe() string
}

var lastID atomic.Uint64

func newID() uint64 { return lastID.Add(1) }

type Op int

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
)

func (o Op) String() string {
	switch o {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	}
	return "?"
}

type Constant struct {
	id    uint64
	Value complex128
}

func Const(v complex128) *Constant { return &Constant{id: newID(), Value: v} }

func Real(v float64) *Constant { return Const(complex(v, 0)) }

func (c *Constant) ID() uint64 { return c.id }

func (c *Constant) Evaluate(Bindings, *Memo) (complex128, error) { return c.Value, nil }

func (c *Constant) Differentiate(Ref) Node { return Real(0) }

func (c *Constant) Describe() string { return formatComplex(c.Value) }

// Variable is a named parameter resolved through Bindings.Param.
type Variable struct {
	id   uint64
	Name string
}

func Var(name string) *Variable { return &Variable{id: newID(), Name: name} }

func (v *Variable) ID() uint64 { return v.id }

func (v *Variable) Evaluate(b Bindings, _ *Memo) (complex128, error) {
	val, ok := b.Param(v.Name)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnboundVariable, v.Name)
	}
	return val, nil
}

func (v *Variable) Differentiate(Ref) Node { return Real(0) }

func (v *Variable) Describe() string { return v.Name }

type BinaryOp struct {
	id          uint64
	Op          Op
	Left, Right Node
}

func (n *BinaryOp) ID() uint64 { return n.id }

func (n *BinaryOp) Evaluate(b Bindings, m *Memo) (complex128, error) {
	if v, ok := m.lookup(n.id, b.Snapshot()); ok {
		return v, nil
	}
	l, err := n.Left.Evaluate(b, m)
	if err != nil {
		return 0, err
	}
	r, err := n.Right.Evaluate(b, m)
	if err != nil {
		return 0, err
	}

	var v complex128
	switch n.Op {
	case OpAdd:
		v = l + r
	case OpSub:
		v = l - r
	case OpMul:
		v = l * r
	case OpDiv:
		if r == 0 {
			return 0, fmt.Errorf("%w: %s", ErrNotInvertible, n.Right.Describe())
		}
		v = l / r
	}
	m.store(n.id, v)
	return v, nil
}

func (n *BinaryOp) Differentiate(wrt Ref) Node {
	dl := n.Left.Differentiate(wrt)
	dr := n.Right.Differentiate(wrt)
	switch n.Op {
	case OpAdd:
		return Add(dl, dr)
	case OpSub:
		return Sub(dl, dr)
	case OpMul:
		return Add(Mul(dl, n.Right), Mul(n.Left, dr))
	default:
		// (l/r)' = (l'r - lr') / r²
		return Div(Sub(Mul(dl, n.Right), Mul(n.Left, dr)), Mul(n.Right, n.Right))
	}
}

func (n *BinaryOp) Describe() string {
	return "(" + n.Left.Describe() + " " + n.Op.String() + " " + n.Right.Describe() + ")"
}

// PartialDerivative is an undiscretized derivative. It cannot be evaluated;
// Discretize replaces it with a weighted sum of samples.
type PartialDerivative struct {
	id      uint64
	Axis    int
	Order   int
	Operand Node
}

func Partial(axis, order int, operand Node) Node {
	if order == 0 {
		return operand
	}
	if isZero(operand) {
		return operand
	}
	return &PartialDerivative{id: newID(), Axis: axis, Order: order, Operand: operand}
}

func (p *PartialDerivative) ID() uint64 { return p.id }

func (p *PartialDerivative) Evaluate(Bindings, *Memo) (complex128, error) {
	return 0, fmt.Errorf("%w: %s", ErrDistributionRequired, p.Describe())
}

func (p *PartialDerivative) Differentiate(wrt Ref) Node {
	return Partial(p.Axis, p.Order, p.Operand.Differentiate(wrt))
}

func (p *PartialDerivative) Describe() string {
	return fmt.Sprintf("D%d^%d[%s]", p.Axis, p.Order, p.Operand.Describe())
}

// DiscretizedSample reads one component of the field at a fixed offset.
type DiscretizedSample struct {
	id  uint64
	Ref Ref
}

func Sample(r Ref) *DiscretizedSample { return &DiscretizedSample{id: newID(), Ref: r} }

// Field is the sample of component at the evaluation point itself.
func Field(component int) *DiscretizedSample {
	return Sample(Ref{Component: component})
}

func (s *DiscretizedSample) ID() uint64 { return s.id }

func (s *DiscretizedSample) Evaluate(b Bindings, _ *Memo) (complex128, error) {
	return b.Sample(s.Ref), nil
}

func (s *DiscretizedSample) Differentiate(wrt Ref) Node {
	if s.Ref == wrt {
		return Real(1)
	}
	return Real(0)
}

func (s *DiscretizedSample) Describe() string {
	return "u" + strconv.Itoa(s.Ref.Component) + formatOffset(s.Ref.Offset)
}

func Add(a, b Node) Node {
	switch {
	case isZero(a):
		return b
	case isZero(b):
		return a
	}
	if ca, cb, ok := bothConst(a, b); ok {
		return Const(ca + cb)
	}
	return &BinaryOp{id: newID(), Op: OpAdd, Left: a, Right: b}
}

func Sub(a, b Node) Node {
	if isZero(b) {
		return a
	}
	if ca, cb, ok := bothConst(a, b); ok {
		return Const(ca - cb)
	}
	return &BinaryOp{id: newID(), Op: OpSub, Left: a, Right: b}
}

func Mul(a, b Node) Node {
	switch {
	case isZero(a) || isZero(b):
		return Real(0)
	case isOne(a):
		return b
	case isOne(b):
		return a
	}
	if ca, cb, ok := bothConst(a, b); ok {
		return Const(ca * cb)
	}
	return &BinaryOp{id: newID(), Op: OpMul, Left: a, Right: b}
}

// Div folds constants only when the divisor is non-zero, so division by a
// literal zero still surfaces ErrNotInvertible at evaluation.
func Div(a, b Node) Node {
	if isOne(b) {
		return a
	}
	if isZero(a) && !isZero(b) {
		return Real(0)
	}
	if ca, cb, ok := bothConst(a, b); ok && cb != 0 {
		return Const(ca / cb)
	}
	return &BinaryOp{id: newID(), Op: OpDiv, Left: a, Right: b}
}

// Neg is shorthand for 0 - n.
func Neg(n Node) Node {
	if c, ok := n.(*Constant); ok {
		return Const(-c.Value)
	}
	return Mul(Real(-1), n)
}

// Sum adds all terms left to right.
func Sum(terms ...Node) Node {
	var acc Node = Real(0)
	for _, t := range terms {
		acc = Add(acc, t)
	}
	return acc
}

func isZero(n Node) bool {
	c, ok := n.(*Constant)
	return ok && c.Value == 0
}

func isOne(n Node) bool {
	c, ok := n.(*Constant)
	return ok && c.Value == 1
}

func bothConst(a, b Node) (complex128, complex128, bool) {
	ca, ok := a.(*Constant)
	if !ok {
		return 0, 0, false
	}
	cb, ok := b.(*Constant)
	if !ok {
		return 0, 0, false
	}
	return ca.Value, cb.Value, true
}

func formatComplex(v complex128) string {
	if imag(v) == 0 {
		return strconv.FormatFloat(real(v), 'g', -1, 64)
	}
	if real(v) == 0 {
		return strconv.FormatFloat(imag(v), 'g', -1, 64) + "i"
	}
	return fmt.Sprintf("(%g%+gi)", real(v), imag(v))
}

func formatOffset(o grid.Offset) string {
	last := 1
	for a := range o {
		if o[a] != 0 && a > last {
			last = a
		}
	}
	parts := make([]string, last+1)
	for a := 0; a <= last; a++ {
		parts[a] = strconv.Itoa(o[a])
	}
	return "[" + strings.Join(parts, ",") + "]"
}

package scenario

import (
	"fmt"
	"math"
	"math/cmplx"
	"sort"

	"github.com/san-kum/gridmarch/internal/expr"
	"github.com/san-kum/gridmarch/internal/field"
	"github.com/san-kum/gridmarch/internal/grid"
	"github.com/san-kum/gridmarch/internal/window"
)

type Registry struct {
	scenarios map[string]func() *Scenario
}

func NewRegistry() *Registry {
	r := &Registry{scenarios: make(map[string]func() *Scenario)}

	r.Register("diffusion", Diffusion)
	r.Register("heat-source", HeatSource)
	r.Register("burgers", Burgers)
	r.Register("schrodinger", Schrodinger)
	r.Register("brusselator", Brusselator)

	return r
}

func (r *Registry) Register(name string, fn func() *Scenario) {
	r.scenarios[name] = fn
}

func (r *Registry) Get(name string) (*Scenario, error) {
	fn, ok := r.scenarios[name]
	if !ok {
		return nil, fmt.Errorf("unknown scenario: %s", name)
	}
	return fn(), nil
}

func (r *Registry) List() []string {
	names := make([]string, 0, len(r.scenarios))
	for name := range r.scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func laplacian(shape grid.Shape, u expr.Node) expr.Node {
	var terms []expr.Node
	for a := 1; a < shape.Rank(); a++ {
		terms = append(terms, expr.Partial(a, 2, u))
	}
	return expr.Sum(terms...)
}

func center(shape grid.Shape) grid.Coord {
	var mid grid.Coord
	for a := 1; a < shape.Rank(); a++ {
		mid[a] = shape.Extents[a] / 2
	}
	return mid
}

func zeroBoundary(components int) func(grid.Shape, expr.ParamSource) window.Boundary {
	return func(grid.Shape, expr.ParamSource) window.Boundary {
		return window.Constant(field.New(components))
	}
}

// Diffusion is u_t = nu ∇²u with a Gaussian bump and a zero boundary.
func Diffusion() *Scenario {
	return &Scenario{
		Name:        "diffusion",
		Description: "heat equation, Gaussian bump, zero boundary",
		Components:  1,
		Shape:       grid.Shape{Extents: []int{64, 32}, Steps: []float64{0.1, 1}},
		Params:      expr.MapParams{"nu": 1},
		Equations: func(shape grid.Shape) []expr.Node {
			u := expr.Field(0)
			return []expr.Node{
				expr.Sub(expr.Partial(grid.Time, 1, u), expr.Mul(expr.Var("nu"), laplacian(shape, u))),
			}
		},
		Initial: func(shape grid.Shape, _ expr.ParamSource) func(grid.Coord) field.Sample {
			pos := axisPositions(shape)
			width := float64(shape.Extents[1]) * shape.Step(1) / 8
			return func(c grid.Coord) field.Sample {
				return field.Real(math.Exp(-radius2(pos, c, shape.Rank()) / (2 * width * width)))
			}
		},
		Boundary: zeroBoundary(1),
	}
}

// HeatSource is diffusion from a zero field with the central cell pinned
// at a constant temperature.
func HeatSource() *Scenario {
	s := Diffusion()
	s.Name = "heat-source"
	s.Description = "heat equation, pinned hot cell at the center"
	s.Params["source"] = 1
	s.Initial = func(grid.Shape, expr.ParamSource) func(grid.Coord) field.Sample {
		return func(grid.Coord) field.Sample { return field.New(1) }
	}
	s.Boundary = func(shape grid.Shape, p expr.ParamSource) window.Boundary {
		mid := center(shape)
		hot := field.Real(param(p, "source", 1))
		return window.WithPins{
			Boundary: window.Constant(field.New(1)),
			Fixed: func(at grid.Coord) (field.Sample, bool) {
				at[grid.Time] = 0
				if at == mid {
					return hot.Clone(), true
				}
				return nil, false
			},
		}
	}
	return s
}

// Burgers is the viscous Burgers equation V u_xx - u u_x - u_t = 0 started
// from a single spike.
func Burgers() *Scenario {
	return &Scenario{
		Name:        "burgers",
		Description: "viscous Burgers equation, single spike",
		Components:  1,
		Shape:       grid.Shape{Extents: []int{400, 25}, Steps: []float64{0.0025, 0.01}},
		Params:      expr.MapParams{"V": 1e-8},
		Equations: func(shape grid.Shape) []expr.Node {
			u := expr.Field(0)
			var adv []expr.Node
			for a := 1; a < shape.Rank(); a++ {
				adv = append(adv, expr.Mul(u, expr.Partial(a, 1, u)))
			}
			return []expr.Node{
				expr.Sub(
					expr.Sub(expr.Mul(expr.Var("V"), laplacian(shape, u)), expr.Sum(adv...)),
					expr.Partial(grid.Time, 1, u),
				),
			}
		},
		Initial: func(shape grid.Shape, _ expr.ParamSource) func(grid.Coord) field.Sample {
			mid := center(shape)
			h := shape.Step(1)
			return func(c grid.Coord) field.Sample {
				c[grid.Time] = 0
				if c == mid {
					return field.Real(10000 * h * h)
				}
				return field.New(1)
			}
		},
		Boundary: zeroBoundary(1),
	}
}

// Schrodinger is i u_t + ½∇²u - V(x) u = 0 with ħ = m = 1, a Gaussian wave
// packet and a harmonic potential V = V0 |x|²/2.
func Schrodinger() *Scenario {
	return &Scenario{
		Name:        "schrodinger",
		Description: "free or harmonic Schrodinger wave packet, periodic",
		Components:  1,
		Shape: grid.Shape{
			Extents:  []int{200, 64},
			Periodic: []bool{false, true},
			Steps:    []float64{0.001, 0.1},
		},
		Params: expr.MapParams{"V0": 0, "k0": 2, "sigma": 0.5},
		Equations: func(shape grid.Shape) []expr.Node {
			u := expr.Field(0)
			return []expr.Node{
				expr.Sum(
					expr.Mul(expr.Const(1i), expr.Partial(grid.Time, 1, u)),
					expr.Mul(expr.Real(0.5), laplacian(shape, u)),
					expr.Neg(expr.Mul(expr.Var("V"), u)),
				),
			}
		},
		Initial: func(shape grid.Shape, p expr.ParamSource) func(grid.Coord) field.Sample {
			pos := axisPositions(shape)
			k0, sigma := param(p, "k0", 2), param(p, "sigma", 0.5)
			return func(c grid.Coord) field.Sample {
				r2 := radius2(pos, c, shape.Rank())
				phase := k0 * pos[1][c[1]]
				amp := math.Exp(-r2 / (4 * sigma * sigma))
				return field.Sample{complex(amp, 0) * cmplx.Exp(complex(0, phase))}
			}
		},
		Boundary: zeroBoundary(1),
		Local: func(shape grid.Shape, base expr.ParamSource) expr.ParamSource {
			pos := axisPositions(shape)
			return expr.ParamFunc(func(name string, at grid.Coord) (complex128, bool) {
				if name != "V" {
					return 0, false
				}
				v0, ok := base.Param("V0", at)
				if !ok {
					return 0, false
				}
				return v0 * complex(radius2(pos, at, shape.Rank())/2, 0), true
			})
		},
	}
}

// Brusselator is the two-component reaction-diffusion system
//
//	u_t = a - (b+1)u + u²v + Du ∇²u
//	v_t = b u - u²v + Dv ∇²v
func Brusselator() *Scenario {
	return &Scenario{
		Name:        "brusselator",
		Description: "two-component Brusselator reaction-diffusion, periodic",
		Components:  2,
		Shape: grid.Shape{
			Extents:  []int{200, 32},
			Periodic: []bool{false, true},
			Steps:    []float64{0.01, 0.5},
		},
		Params: expr.MapParams{"a": 1, "b": 3, "Du": 1, "Dv": 0.5},
		Equations: func(shape grid.Shape) []expr.Node {
			u, v := expr.Field(0), expr.Field(1)
			a, b := expr.Var("a"), expr.Var("b")
			u2v := expr.Mul(expr.Mul(u, u), v)
			return []expr.Node{
				expr.Sub(expr.Partial(grid.Time, 1, u), expr.Sum(
					a,
					expr.Neg(expr.Mul(expr.Add(b, expr.Real(1)), u)),
					u2v,
					expr.Mul(expr.Var("Du"), laplacian(shape, u)),
				)),
				expr.Sub(expr.Partial(grid.Time, 1, v), expr.Sum(
					expr.Mul(b, u),
					expr.Neg(u2v),
					expr.Mul(expr.Var("Dv"), laplacian(shape, v)),
				)),
			}
		},
		Initial: func(shape grid.Shape, p expr.ParamSource) func(grid.Coord) field.Sample {
			pos := axisPositions(shape)
			length := float64(shape.Extents[1]) * shape.Step(1)
			a, b := param(p, "a", 1), param(p, "b", 3)
			return func(c grid.Coord) field.Sample {
				x := pos[1][c[1]]
				return field.Real(a*(1+0.1*math.Sin(2*math.Pi*x/length)), b/a)
			}
		},
		Boundary: func(_ grid.Shape, p expr.ParamSource) window.Boundary {
			a, b := param(p, "a", 1), param(p, "b", 3)
			return window.Constant(field.Real(a, b/a))
		},
	}
}

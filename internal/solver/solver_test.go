package solver

import (
	"errors"
	"math"
	"math/cmplx"
	"testing"

	"github.com/san-kum/gridmarch/internal/expr"
	"github.com/san-kum/gridmarch/internal/field"
	"github.com/san-kum/gridmarch/internal/grid"
)

type fakeTarget struct {
	est  field.Sample
	hist []field.Sample
	gen  uint64
}

func newTarget(est field.Sample, hist ...field.Sample) *fakeTarget {
	return &fakeTarget{est: est.Clone(), hist: hist}
}

func (f *fakeTarget) Sample(r expr.Ref) complex128 {
	if r.Offset.IsZero() {
		return f.est[r.Component]
	}
	back := -r.Offset[grid.Time]
	return f.hist[back-1][r.Component]
}

func (f *fakeTarget) Param(string) (complex128, bool) { return 0, false }
func (f *fakeTarget) Snapshot() uint64                { return f.gen }
func (f *fakeTarget) Estimate() field.Sample          { return f.est.Clone() }
func (f *fakeTarget) Depth() int                      { return len(f.hist) }

func (f *fakeTarget) SetEstimate(s field.Sample) {
	copy(f.est, s)
	f.gen++
}

func (f *fakeTarget) History(back int) field.Sample {
	if back > len(f.hist) {
		return field.New(len(f.est))
	}
	return f.hist[back-1].Clone()
}

func (f *fakeTarget) SetHistory(back int, s field.Sample) {
	f.hist[back-1] = s.Clone()
	f.gen++
}

func compile(t *testing.T, components ...expr.Node) *expr.Equation {
	t.Helper()
	shape := grid.Shape{Extents: []int{4, 4}, Steps: []float64{1, 1}}
	eq, err := expr.Compile(components, shape, expr.Options{})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return eq
}

func u(i int) expr.Node { return expr.Field(i) }

func prev(back int) expr.Node {
	return expr.Sample(expr.Ref{Offset: grid.Offset{-back}})
}

func TestSolve_TrivialConvergenceInOneIteration(t *testing.T) {
	eq := compile(t, expr.Sub(u(0), expr.Real(3.5)))
	s := New(eq, Config{MaxIterations: 1, MaxBacktrack: 0})

	tg := newTarget(field.Real(-7))
	res := s.Solve(tg)

	if res.Status != StatusOK {
		t.Fatalf("status = %v", res.Status)
	}
	if res.Iterations != 1 {
		t.Errorf("Iterations = %d, want 1", res.Iterations)
	}
	if cmplx.Abs(res.Value[0]-3.5) > 1e-12 {
		t.Errorf("Value = %v, want 3.5", res.Value)
	}
}

func TestSolve_RunsFullIterationCap(t *testing.T) {
	eq := compile(t, expr.Sub(u(0), expr.Real(3.5)))
	s := New(eq, DefaultConfig())

	res := s.Solve(newTarget(field.Real(0)))
	if res.Iterations != 20 {
		t.Errorf("Iterations = %d, want 20", res.Iterations)
	}
	if res.Evaluations != 1 {
		t.Errorf("Evaluations = %d, want 1 once the residual is exactly zero", res.Evaluations)
	}
	if res.Residual != 0 {
		t.Errorf("Residual = %g", res.Residual)
	}
}

func TestSolve_ComplexNewton(t *testing.T) {
	// u² + 4 = 0 from 1+i converges to 2i.
	eq := compile(t, expr.Add(expr.Mul(u(0), u(0)), expr.Real(4)))
	s := New(eq, DefaultConfig())

	res := s.Solve(newTarget(field.Sample{1 + 1i}))
	if res.Status != StatusOK {
		t.Fatalf("status = %v", res.Status)
	}
	if cmplx.Abs(res.Value[0]-2i) > 1e-9 {
		t.Errorf("Value = %v, want 2i", res.Value[0])
	}
}

func TestSolve_BoundedTermination(t *testing.T) {
	tests := []struct {
		name  string
		iters int
		bt    int
		pc    bool
	}{
		{"defaults", 20, 400, false},
		{"no backtracking", 5, 0, false},
		{"single iteration", 1, 7, false},
		{"predictor-corrector", 5, 3, true},
		{"predictor-corrector single iteration", 1, 3, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eq := compile(t, expr.Sub(expr.Mul(u(0), u(0)), expr.Real(2)))
			s := New(eq, Config{
				MaxIterations:      tt.iters,
				MaxBacktrack:       tt.bt,
				Improved:           func(_, _ field.Sample) bool { return false },
				PredictorCorrector: tt.pc,
			})

			start := field.Real(5)
			res := s.Solve(newTarget(start, field.Real(4), field.Real(3)))

			if limit := tt.iters * (1 + tt.bt); res.Evaluations > limit {
				t.Errorf("Evaluations = %d, exceeds %d", res.Evaluations, limit)
			}
			if res.Iterations != tt.iters {
				t.Errorf("Iterations = %d, want %d", res.Iterations, tt.iters)
			}
			if res.Restored != tt.iters {
				t.Errorf("Restored = %d, want %d", res.Restored, tt.iters)
			}
			if !res.Value.Equal(start, 0) {
				t.Errorf("Value = %v, want the cached %v", res.Value, start)
			}
		})
	}
}

func TestSolve_SingularPolicy(t *testing.T) {
	// F = u² - 1 has zero derivative at u = 0.
	eq := compile(t, expr.Sub(expr.Mul(u(0), u(0)), expr.Real(1)))

	abort := New(eq, Config{MaxIterations: 20, MaxBacktrack: 10, SingularPolicy: Abort})
	res := abort.Solve(newTarget(field.Real(0)))
	if res.Status != StatusSingular || !errors.Is(res.Err(), ErrSingular) {
		t.Errorf("abort: status %v err %v", res.Status, res.Err())
	}

	ident := New(eq, Config{MaxIterations: 20, MaxBacktrack: 10, SingularPolicy: Identity})
	res = ident.Solve(newTarget(field.Real(0)))
	if res.Status != StatusOK {
		t.Fatalf("identity: status %v", res.Status)
	}
	if res.Identity == 0 {
		t.Error("identity fallback was not used")
	}
	if math.Abs(real(res.Value[0])-1) > 1e-9 {
		t.Errorf("identity: Value = %v, want 1", res.Value)
	}
}

func TestSolve_NotInvertible(t *testing.T) {
	eq := compile(t, expr.Sub(expr.Div(expr.Real(1), u(0)), expr.Real(2)))
	s := New(eq, DefaultConfig())

	res := s.Solve(newTarget(field.Real(0)))
	if res.Status != StatusNotInvertible {
		t.Fatalf("status = %v", res.Status)
	}
	if !errors.Is(res.Err(), expr.ErrNotInvertible) {
		t.Errorf("Err() = %v", res.Err())
	}
}

func TestSolve_UnboundParameter(t *testing.T) {
	eq := compile(t, expr.Sub(u(0), expr.Var("k")))
	res := New(eq, DefaultConfig()).Solve(newTarget(field.Real(0)))

	if res.Status != StatusFailed || !errors.Is(res.Err(), expr.ErrUnboundVariable) {
		t.Errorf("status %v err %v", res.Status, res.Err())
	}
}

func TestSolve_System(t *testing.T) {
	// u0·u1 = 2, u0 - u1 = 1
	eq := compile(t,
		expr.Sub(expr.Mul(u(0), u(1)), expr.Real(2)),
		expr.Sub(expr.Sub(u(0), u(1)), expr.Real(1)),
	)
	s := New(eq, DefaultConfig())

	res := s.Solve(newTarget(field.Real(3, 0.5)))
	if res.Status != StatusOK {
		t.Fatalf("status = %v (%v)", res.Status, res.Cause)
	}
	if !res.Value.Equal(field.Real(2, 1), 1e-9) {
		t.Errorf("Value = %v, want (2, 1)", res.Value)
	}
}

func TestSolve_ComplexSystem(t *testing.T) {
	// u0 - i·u1 = 1, u1 + u0 = 1+i
	eq := compile(t,
		expr.Sub(expr.Sub(u(0), expr.Mul(expr.Const(1i), u(1))), expr.Real(1)),
		expr.Sub(expr.Add(u(1), u(0)), expr.Const(1+1i)),
	)
	s := New(eq, Config{MaxIterations: 3, MaxBacktrack: 4})

	res := s.Solve(newTarget(field.New(2)))
	if res.Status != StatusOK {
		t.Fatalf("status = %v", res.Status)
	}
	f0 := res.Value[0] - 1i*res.Value[1] - 1
	f1 := res.Value[1] + res.Value[0] - (1 + 1i)
	if cmplx.Abs(f0) > 1e-9 || cmplx.Abs(f1) > 1e-9 {
		t.Errorf("residuals %v %v at %v", f0, f1, res.Value)
	}
}

func TestSolve_SingularSystem(t *testing.T) {
	eq := compile(t,
		expr.Add(u(0), u(1)),
		expr.Add(expr.Mul(expr.Real(2), u(0)), expr.Mul(expr.Real(2), u(1))),
	)
	res := New(eq, Config{MaxIterations: 5, MaxBacktrack: 2}).Solve(newTarget(field.Real(1, 1)))
	if res.Status != StatusSingular {
		t.Errorf("status = %v, want singular", res.Status)
	}
}

func TestSolve_ViscosityLimitsJump(t *testing.T) {
	eq := compile(t, expr.Sub(u(0), expr.Real(1000)))
	cfg := DefaultConfig()
	cfg.Viscosity.Enabled = true
	s := New(eq, cfg)

	res := s.Solve(newTarget(field.Real(0), field.Real(0)))
	want := 1 / math.Sqrt(1/1e6+1/1e8)
	if res.Clamped != 1 {
		t.Errorf("Clamped = %d, want 1", res.Clamped)
	}
	if math.Abs(real(res.Value[0])-want) > 1e-9 {
		t.Errorf("Value = %v, want %g", res.Value, want)
	}
}

func TestSolve_PredictorCorrector(t *testing.T) {
	// u_t = u_{t-1} + 1
	eq := compile(t, expr.Sub(expr.Sub(u(0), prev(1)), expr.Real(1)))
	cfg := DefaultConfig()
	cfg.MaxIterations = 3
	cfg.PredictorCorrector = true
	s := New(eq, cfg)

	tg := newTarget(field.Real(0), field.Real(1), field.Real(0.5))
	res := s.Solve(tg)

	// slope = ((1 - 0.5) + (2 - 1)) / 2, corrected u_{t-1} = 1.25
	if math.Abs(real(res.Value[0])-2.25) > 1e-12 {
		t.Errorf("Value = %v, want 2.25", res.Value)
	}
	if !tg.History(1).Equal(field.Real(1), 0) {
		t.Errorf("slice t-1 not restored: %v", tg.History(1))
	}
	if res.Iterations != 3 {
		t.Errorf("Iterations = %d, want 3 shared between both passes", res.Iterations)
	}
}

func TestClamp_Boundary(t *testing.T) {
	v := Viscosity{Enabled: true, Cutoff: 20, MaxChange: 10000}

	below := []float64{0, 1, -19.999, 19.5}
	for _, d := range below {
		out, n := Clamp(field.Real(3), field.Real(3+d), v)
		if n != 0 || out[0] != complex(3+d, 0) {
			t.Errorf("Δ=%g: got %v (clamped %d), want unchanged", d, out, n)
		}
	}

	above := []float64{20, -20, 500, -1e4, 1e6, -1e5}
	for _, d := range above {
		out, n := Clamp(field.Real(0), field.Real(d), v)
		got := real(out[0])
		if n != 1 {
			t.Errorf("Δ=%g: clamped %d parts, want 1", d, n)
		}
		if math.Abs(got) >= v.MaxChange {
			t.Errorf("Δ=%g: |%g| not below MaxChange", d, got)
		}
		if math.Signbit(got) != math.Signbit(d) {
			t.Errorf("Δ=%g: sign flipped to %g", d, got)
		}
	}
}

func TestClamp_ContinuousAtCutoff(t *testing.T) {
	v := Viscosity{Enabled: true, Cutoff: 20, MaxChange: 10000}
	justBelow, _ := Clamp(field.Real(0), field.Real(20-1e-9), v)
	at, _ := Clamp(field.Real(0), field.Real(20), v)

	if d := math.Abs(real(at[0]) - real(justBelow[0])); d > 1e-4 {
		t.Errorf("jump of %g at the cutoff", d)
	}
}

func TestClamp_PartsIndependently(t *testing.T) {
	v := Viscosity{Enabled: true, Cutoff: 20, MaxChange: 100}
	out, n := Clamp(field.Sample{0}, field.Sample{complex(5, 1000)}, v)

	if n != 1 {
		t.Errorf("clamped %d parts, want 1", n)
	}
	if real(out[0]) != 5 {
		t.Errorf("real part changed to %g", real(out[0]))
	}
	if imag(out[0]) >= 100 || imag(out[0]) <= 0 {
		t.Errorf("imag part = %g", imag(out[0]))
	}
}

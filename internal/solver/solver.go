// Package solver finds the unknown sample that zeroes a discretized
// equation, one grid point at a time.
//
// A single-component equation uses complex Newton-Raphson. A system of n
// components solves J·d = -F on the real 2n×2n embedding of the complex
// Jacobian. Every solve runs the configured number of iterations; there is
// no convergence test.
package solver

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/gridmarch/internal/expr"
	"github.com/san-kum/gridmarch/internal/field"
)

// Target is the view of a sliding window the solver needs. The unknown is
// read through Sample at offset zero and written with SetEstimate.
type Target interface {
	expr.Bindings
	Estimate() field.Sample
	SetEstimate(field.Sample)
	History(back int) field.Sample
	SetHistory(back int, s field.Sample)
	Depth() int
}

// Solver owns the memo table and linear-algebra scratch for one worker.
type Solver struct {
	cfg  Config
	eq   *expr.Equation
	memo *expr.Memo
	n    int

	a  *mat.Dense
	b  *mat.VecDense
	x  *mat.VecDense
	lu mat.LU
}

func New(eq *expr.Equation, cfg Config) *Solver {
	n := eq.Components()
	s := &Solver{
		cfg:  cfg.withDefaults(),
		eq:   eq,
		memo: expr.NewMemo(),
		n:    n,
	}
	if n > 1 {
		s.a = mat.NewDense(2*n, 2*n, nil)
		s.b = mat.NewVecDense(2*n, nil)
		s.x = mat.NewVecDense(2*n, nil)
	}
	return s
}

func (s *Solver) Config() Config { return s.cfg }

// Solve iterates on tg's unknown and leaves the final value in the
// estimate. Non-OK statuses leave the estimate at its last accepted value.
//
// With the predictor-corrector on, MaxIterations is shared between the two
// passes, the corrector taking the smaller half, so one Solve never runs
// more than MaxIterations × (1 + MaxBacktrack) trial evaluations.
func (s *Solver) Solve(tg Target) Result {
	prev := tg.History(1)
	res := Result{Status: StatusOK}

	predictIters, correctIters := s.cfg.MaxIterations, 0
	if s.cfg.PredictorCorrector && tg.Depth() >= 2 {
		correctIters = s.cfg.MaxIterations / 2
		predictIters -= correctIters
	}

	s.iterate(tg, predictIters, &res)
	if res.Status != StatusOK {
		res.Value = tg.Estimate()
		return res
	}
	s.viscosity(tg, prev, &res)

	if correctIters > 0 {
		s.correct(tg, prev, correctIters, &res)
		if res.Status != StatusOK {
			res.Value = tg.Estimate()
			return res
		}
	}

	res.Value = tg.Estimate()
	if f, err := s.residual(tg); err == nil {
		res.Residual = f.Norm()
	}
	return res
}

func (s *Solver) iterate(tg Target, n int, res *Result) {
	for it := 0; it < n; it++ {
		res.Iterations++

		u := tg.Estimate()
		f, err := s.residual(tg)
		if err != nil {
			res.Status, res.Cause = statusOf(err), err
			return
		}
		if f.Norm2() == 0 {
			continue
		}

		d, err := s.direction(tg, f)
		if errors.Is(err, ErrSingular) {
			if s.cfg.SingularPolicy == Abort {
				res.Status, res.Cause = StatusSingular, err
				return
			}
			res.Identity++
			d = f.Scale(-1)
		} else if err != nil {
			res.Status, res.Cause = statusOf(err), err
			return
		}

		if !s.linesearch(tg, u, d, f, res) {
			res.Restored++
			tg.SetEstimate(u)
		}
	}
}

// linesearch tries u+d, halving the step after each rejection, for at most
// 1+MaxBacktrack trials. It reports whether a trial was accepted.
func (s *Solver) linesearch(tg Target, u, d, f field.Sample, res *Result) bool {
	step := complex(1, 0)
	for bt := 0; bt <= s.cfg.MaxBacktrack; bt++ {
		if bt > 0 {
			res.Backtracks++
			step /= 2
		}
		tg.SetEstimate(u.Add(d.Scale(step)))
		res.Evaluations++

		trial, err := s.residual(tg)
		if err != nil {
			continue
		}
		if s.cfg.Improved(f, trial) {
			return true
		}
	}
	return false
}

func (s *Solver) residual(tg Target) (field.Sample, error) {
	f := make(field.Sample, s.n)
	for i, node := range s.eq.F {
		v, err := node.Evaluate(tg, s.memo)
		if err != nil {
			return nil, err
		}
		f[i] = v
	}
	return f, nil
}

func (s *Solver) direction(tg Target, f field.Sample) (field.Sample, error) {
	if s.n == 1 {
		j, err := s.eq.J[0][0].Evaluate(tg, s.memo)
		if err != nil {
			return nil, err
		}
		if j == 0 {
			return nil, ErrSingular
		}
		return field.Sample{-f[0] / j}, nil
	}

	// [Re J  -Im J] [Re d]   [-Re F]
	// [Im J   Re J] [Im d] = [-Im F]
	n := s.n
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v, err := s.eq.J[i][j].Evaluate(tg, s.memo)
			if err != nil {
				return nil, err
			}
			s.a.Set(i, j, real(v))
			s.a.Set(i, j+n, -imag(v))
			s.a.Set(i+n, j, imag(v))
			s.a.Set(i+n, j+n, real(v))
		}
		s.b.SetVec(i, -real(f[i]))
		s.b.SetVec(i+n, -imag(f[i]))
	}

	s.lu.Factorize(s.a)
	if c := s.lu.Cond(); math.IsInf(c, 1) || math.IsNaN(c) {
		return nil, ErrSingular
	}
	if err := s.lu.SolveVecTo(s.x, false, s.b); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return nil, ErrSingular
		}
	}

	d := make(field.Sample, n)
	for i := 0; i < n; i++ {
		d[i] = complex(s.x.AtVec(i), s.x.AtVec(i+n))
	}
	if !d.IsValid() {
		return nil, ErrSingular
	}
	return d, nil
}

func (s *Solver) viscosity(tg Target, prev field.Sample, res *Result) {
	if !s.cfg.Viscosity.Enabled {
		return
	}
	out, n := Clamp(prev, tg.Estimate(), s.cfg.Viscosity)
	if n > 0 {
		res.Clamped += n
		tg.SetEstimate(out)
	}
}

// correct replaces the t-1 center with the slope-averaged prediction from
// slices t-2, t-1 and the fresh estimate, solves again, then puts the t-1
// sample back.
func (s *Solver) correct(tg Target, prev field.Sample, iters int, res *Result) {
	u2 := tg.History(2)
	u0 := tg.Estimate()
	slope := prev.Sub(u2).Add(u0.Sub(prev)).Scale(0.5)

	tg.SetHistory(1, u2.Add(slope))
	defer tg.SetHistory(1, prev)

	s.iterate(tg, iters, res)
	if res.Status != StatusOK {
		return
	}
	s.viscosity(tg, prev, res)
}

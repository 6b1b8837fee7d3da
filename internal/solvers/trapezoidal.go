package solvers

import (
	"fmt"

	"github.com/ahoven/gridyn/internal/dae"
)

// Trapezoidal is the A-stable implicit trapezoidal stepper. Algebraic
// rows are enforced at the step end point; differential rows use the
// average of the endpoint derivatives.
type Trapezoidal struct {
	Tol     float64
	MaxIter int

	nw *newton
	f0 []float64 // residual at the step start, reused
}

// NewTrapezoidal returns a stepper with the given Newton settings.
func NewTrapezoidal(tol float64, maxIter int) *Trapezoidal {
	return &Trapezoidal{Tol: tol, MaxIter: maxIter}
}

func (s *Trapezoidal) Name() string { return "trapezoidal" }

func (s *Trapezoidal) ensure(n int) {
	if s.nw == nil || len(s.f0) != n {
		s.nw = newNewton(n)
		s.f0 = make([]float64, n)
	}
}

func (s *Trapezoidal) Step(p *dae.Problem, x dae.State, t, dt float64) (dae.State, int, error) {
	n := len(x)
	s.ensure(n)

	p.Residual(s.f0, x, t)

	g := func(out, z []float64) {
		p.Residual(out, z, t+dt)
		for i := 0; i < n; i++ {
			if p.Differential[i] {
				out[i] = z[i] - x[i] - dt*0.5*(s.f0[i]+out[i])
			}
		}
	}

	z := x.Clone()
	its, err := s.nw.solve(g, z, s.Tol, s.MaxIter)
	if err != nil {
		return nil, its, fmt.Errorf("trapezoidal step at t=%g dt=%g: %w", t, dt, err)
	}
	return z, its, nil
}

// BackwardEuler is the first-order fully implicit stepper; heavier
// damping than trapezoidal, useful right after a discontinuity.
type BackwardEuler struct {
	Tol     float64
	MaxIter int

	nw *newton
}

// NewBackwardEuler returns a stepper with the given Newton settings.
func NewBackwardEuler(tol float64, maxIter int) *BackwardEuler {
	return &BackwardEuler{Tol: tol, MaxIter: maxIter}
}

func (s *BackwardEuler) Name() string { return "backward_euler" }

func (s *BackwardEuler) Step(p *dae.Problem, x dae.State, t, dt float64) (dae.State, int, error) {
	n := len(x)
	if s.nw == nil {
		s.nw = newNewton(n)
	}

	g := func(out, z []float64) {
		p.Residual(out, z, t+dt)
		for i := 0; i < n; i++ {
			if p.Differential[i] {
				out[i] = z[i] - x[i] - dt*out[i]
			}
		}
	}

	z := x.Clone()
	its, err := s.nw.solve(g, z, s.Tol, s.MaxIter)
	if err != nil {
		return nil, its, fmt.Errorf("backward euler step at t=%g dt=%g: %w", t, dt, err)
	}
	return z, its, nil
}

// Package solvers provides the implicit DAE steppers and the driver
// loop that coordinates them with mandatory stop times and discrete
// perturbation triggers.
package solvers

import (
	"errors"

	"github.com/ahoven/gridyn/internal/dae"
)

var (
	// ErrNoConvergence indicates the Newton iteration exhausted its
	// budget without meeting the tolerance.
	ErrNoConvergence = errors.New("solvers: newton iteration did not converge")

	// ErrSingularJacobian indicates the iteration matrix could not be
	// factorized.
	ErrSingularJacobian = errors.New("solvers: singular iteration matrix")

	// ErrInvalidState indicates NaN or Inf appeared in the state.
	ErrInvalidState = errors.New("solvers: invalid state (NaN or Inf)")

	// ErrStepTooSmall indicates the step size shrank below the
	// minimum while trying to land on a stop time.
	ErrStepTooSmall = errors.New("solvers: step size below minimum")
)

// Stepper advances a DAE problem by one step, reporting the Newton
// iterations the step consumed.
type Stepper interface {
	Name() string
	Step(p *dae.Problem, x dae.State, t, dt float64) (dae.State, int, error)
}

// Options configure the driver loop.
type Options struct {
	Dt        float64 // nominal step size
	MinDt     float64
	Tol       float64 // Newton convergence tolerance
	MaxNewton int
}

// DefaultOptions returns the driver defaults.
func DefaultOptions() Options {
	return Options{
		Dt:        0.005,
		MinDt:     1e-10,
		Tol:       1e-8,
		MaxNewton: 20,
	}
}

// Trajectory is a time-indexed solution with solver statistics.
type Trajectory struct {
	Times  []float64
	States []dae.State

	StepsTaken  int
	NewtonIters int
	EventsFired int
}

// At returns the index of the closest recorded time.
func (tr *Trajectory) At(t float64) int {
	best, bd := 0, -1.0
	for i, ti := range tr.Times {
		d := ti - t
		if d < 0 {
			d = -d
		}
		if bd < 0 || d < bd {
			best, bd = i, d
		}
	}
	return best
}

// Series extracts the time series of one state slot.
func (tr *Trajectory) Series(slot int) []float64 {
	out := make([]float64, len(tr.States))
	for i, s := range tr.States {
		out[i] = s[slot]
	}
	return out
}

// Final returns the last recorded state.
func (tr *Trajectory) Final() dae.State {
	if len(tr.States) == 0 {
		return nil
	}
	return tr.States[len(tr.States)-1]
}

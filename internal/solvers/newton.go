package solvers

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

// newton solves F(x) = 0 by damped Newton iteration. The Jacobian is
// obtained by finite differencing F as a pure function of x. The
// scratch matrices are owned by the caller and reused across calls.
type newton struct {
	jac   *mat.Dense
	fvec  []float64
	delta *mat.VecDense
}

func newNewton(n int) *newton {
	return &newton{
		jac:   mat.NewDense(n, n, nil),
		fvec:  make([]float64, n),
		delta: mat.NewVecDense(n, nil),
	}
}

// solve returns the number of Newton corrections applied along with
// the convergence verdict, so callers can account solver effort.
func (nw *newton) solve(f func(out, x []float64), x []float64, tol float64, maxIter int) (int, error) {
	n := len(x)
	for iter := 0; iter < maxIter; iter++ {
		f(nw.fvec, x)
		if norm(nw.fvec) < tol {
			return iter, nil
		}

		fd.Jacobian(nw.jac, f, x, nil)

		var lu mat.LU
		lu.Factorize(nw.jac)
		rhs := mat.NewVecDense(n, nil)
		for i := 0; i < n; i++ {
			rhs.SetVec(i, -nw.fvec[i])
		}
		if err := lu.SolveVecTo(nw.delta, false, rhs); err != nil {
			return iter, fmt.Errorf("%w: %v", ErrSingularJacobian, err)
		}

		step := 1.0
		if dn := mat.Norm(nw.delta, 2); dn > 1.0 {
			// Crude damping keeps the first iterations from
			// overshooting a distant guess.
			step = 1.0 / math.Sqrt(dn)
		}
		for i := 0; i < n; i++ {
			x[i] += step * nw.delta.AtVec(i)
		}
		if !valid(x) {
			return iter + 1, ErrInvalidState
		}
		if mat.Norm(nw.delta, 2)*step < tol {
			return iter + 1, nil
		}
	}
	f(nw.fvec, x)
	if norm(nw.fvec) < tol {
		return maxIter, nil
	}
	return maxIter, ErrNoConvergence
}

func norm(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x * x
	}
	return math.Sqrt(s)
}

func valid(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// SolveAlgebraic finds x with F(x) = 0 for an arbitrary residual,
// starting from guess. Used for consistent initialization: at an
// equilibrium every differential row is also zero, so the full
// residual doubles as the initialization system.
func SolveAlgebraic(res func(out, x []float64), guess []float64, tol float64, maxIter int) ([]float64, error) {
	x := make([]float64, len(guess))
	copy(x, guess)
	nw := newNewton(len(x))
	if _, err := nw.solve(res, x, tol, maxIter); err != nil {
		return nil, err
	}
	return x, nil
}

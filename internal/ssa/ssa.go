// Package ssa linearizes the assembled residual around an operating
// point and classifies small-signal stability from the eigenvalues of
// the Schur-complement reduced Jacobian.
package ssa

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

// RealPartTol is the tolerance on eigenvalue real parts: a reference
// angle mode sits numerically at zero and must not fail the verdict.
const RealPartTol = 1e-8

var (
	// ErrNoDifferentialStates indicates the state partition left
	// nothing to reduce onto.
	ErrNoDifferentialStates = errors.New("ssa: no differential states")

	// ErrSingularAlgebraicBlock indicates gy could not be eliminated.
	ErrSingularAlgebraicBlock = errors.New("ssa: algebraic block gy is singular")
)

// Report is the analysis result.
type Report struct {
	Reduced        *mat.Dense
	Eigenvalues    []complex128
	Eigenvectors   *mat.CDense
	Stable         bool
	Advisory       string
	OperatingPoint []float64
	Time           float64
	NDiff, NAlg    int
}

// Analyze computes the Jacobian of res with respect to state at the
// operating point (time held fixed, derivative vector at zero),
// partitions it into the fx, fy, gx, gy blocks, reduces out the
// algebraic sensitivities, and eigen-decomposes the result.
//
// The system is stable iff every eigenvalue real part is at most
// RealPartTol. When hasReference is false the report carries an
// advisory: without an ideal voltage source only the strict sign
// check was performed.
func Analyze(res func(out, x []float64, t float64), x0 []float64, t float64,
	differential []bool, hasReference bool) (*Report, error) {

	n := len(x0)
	if len(differential) != n {
		return nil, fmt.Errorf("ssa: flag vector length %d does not match state length %d",
			len(differential), n)
	}

	var diffIdx, algIdx []int
	for i, d := range differential {
		if d {
			diffIdx = append(diffIdx, i)
		} else {
			algIdx = append(algIdx, i)
		}
	}
	if len(diffIdx) == 0 {
		return nil, ErrNoDifferentialStates
	}

	jac := mat.NewDense(n, n, nil)
	f := func(y, x []float64) { res(y, x, t) }
	fd.Jacobian(jac, f, x0, nil)

	nd, na := len(diffIdx), len(algIdx)
	fx := block(jac, diffIdx, diffIdx)
	reduced := fx

	if na > 0 {
		fy := block(jac, diffIdx, algIdx)
		gx := block(jac, algIdx, diffIdx)
		gy := block(jac, algIdx, algIdx)

		// gy^{-1} gx via a single solve; a singular algebraic block
		// must surface as an explicit failure.
		var sol mat.Dense
		if err := sol.Solve(gy, gx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSingularAlgebraicBlock, err)
		}
		var corr mat.Dense
		corr.Mul(fy, &sol)
		reduced = mat.NewDense(nd, nd, nil)
		reduced.Sub(fx, &corr)
	}

	var eig mat.Eigen
	if ok := eig.Factorize(reduced, mat.EigenRight); !ok {
		return nil, fmt.Errorf("ssa: eigendecomposition failed")
	}
	values := eig.Values(nil)
	vectors := mat.NewCDense(nd, nd, nil)
	eig.VectorsTo(vectors)

	stable := true
	for _, ev := range values {
		if real(ev) > RealPartTol {
			stable = false
			break
		}
	}

	r := &Report{
		Reduced:        reduced,
		Eigenvalues:    values,
		Eigenvectors:   vectors,
		Stable:         stable,
		OperatingPoint: append([]float64(nil), x0...),
		Time:           t,
		NDiff:          nd,
		NAlg:           na,
	}
	if !hasReference {
		r.Advisory = "no ideal voltage source present: only the strict " +
			"all-real-parts-non-positive check was performed"
	}
	return r, nil
}

func block(j *mat.Dense, rows, cols []int) *mat.Dense {
	b := mat.NewDense(len(rows), len(cols), nil)
	for i, r := range rows {
		for k, c := range cols {
			b.Set(i, k, j.At(r, c))
		}
	}
	return b
}

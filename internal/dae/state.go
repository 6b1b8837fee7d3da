package dae

import "math"

// State is one flat ordered vector of real numbers: the leading
// 2*n_bus slots are bus voltage real/imaginary pairs, the rest are the
// device differential states in layout order.
type State []float64

// Clone returns a deep copy.
func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

// IsValid reports whether the vector is free of NaN and Inf.
func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Norm returns the Euclidean norm.
func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// Problem bundles everything a DAE stepper consumes: the residual
// function, the initial state, the simulated time span, and the
// per-slot differential/algebraic flags.
type Problem struct {
	Residual     func(out, x []float64, t float64)
	X0           State
	TSpan        [2]float64
	Differential []bool
}

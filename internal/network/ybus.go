// Package network assembles the bus admittance matrix from the static
// branch set and keeps the bus row/column ordering used by the
// residual evaluator.
package network

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/ahoven/gridyn/internal/grid"
)

// Ybus is the complex bus admittance matrix together with the bus
// name index consistent with its row/column ordering.
type Ybus struct {
	n     int
	m     *mat.CDense
	index map[string]int
}

// Build assembles the admittance matrix from every in-service static
// branch, then subtracts every dynamic branch's contribution: a
// dynamic branch models its own current explicitly and must not be
// double counted in the algebraic network. The subtraction needs
// something to cancel, so a dynamic branch whose bus pair carries no
// static branch at all is rejected; when every static branch on the
// pair is out of service the correction is skipped with them. With no
// static branches the matrix starts all zero, sized to the bus count.
func Build(net *grid.Network) (*Ybus, error) {
	n := len(net.Buses)
	if n == 0 {
		return nil, fmt.Errorf("network: no buses")
	}
	y := &Ybus{
		n:     n,
		m:     mat.NewCDense(n, n, nil),
		index: make(map[string]int, n),
	}
	for i, b := range net.Buses {
		y.index[b.Name] = i
	}

	declared := make(map[[2]int]bool)
	live := make(map[[2]int]bool)
	for _, br := range net.Branches {
		i, j, err := y.endpoints(br)
		if err != nil {
			return nil, err
		}
		k := corridor(i, j)
		declared[k] = true
		if !br.InService {
			continue
		}
		live[k] = true
		y.stamp(br, i, j, 1)
	}
	for _, br := range net.DynamicBranches {
		i, j, err := y.endpoints(&br.Branch)
		if err != nil {
			return nil, err
		}
		k := corridor(i, j)
		if !declared[k] {
			return nil, fmt.Errorf("network: dynamic branch %q has no static branch between %q and %q to correct",
				br.Name, br.From, br.To)
		}
		if !live[k] {
			continue
		}
		y.stamp(&br.Branch, i, j, -1)
	}
	return y, nil
}

func (y *Ybus) endpoints(br *grid.Branch) (int, int, error) {
	i, ok := y.index[br.From]
	if !ok {
		return 0, 0, fmt.Errorf("network: branch %q from unknown bus %q", br.Name, br.From)
	}
	j, ok := y.index[br.To]
	if !ok {
		return 0, 0, fmt.Errorf("network: branch %q to unknown bus %q", br.Name, br.To)
	}
	return i, j, nil
}

func corridor(i, j int) [2]int {
	if j < i {
		i, j = j, i
	}
	return [2]int{i, j}
}

func (y *Ybus) stamp(br *grid.Branch, i, j int, sign float64) {
	ys := br.Admittance()
	sh := complex(0, br.B/2)
	s := complex(sign, 0)

	y.m.Set(i, i, y.m.At(i, i)+s*(ys+sh))
	y.m.Set(j, j, y.m.At(j, j)+s*(ys+sh))
	y.m.Set(i, j, y.m.At(i, j)-s*ys)
	y.m.Set(j, i, y.m.At(j, i)-s*ys)
}

// N returns the bus count.
func (y *Ybus) N() int { return y.n }

// At returns the admittance entry for a bus pair.
func (y *Ybus) At(i, j int) complex128 { return y.m.At(i, j) }

// Index returns the row/column of a bus name.
func (y *Ybus) Index(name string) (int, bool) {
	i, ok := y.index[name]
	return i, ok
}

// MulVoltages computes the network-implied current at every bus,
// I = Ybus * V, writing real and imaginary parts into ir and ii.
// The accumulators must be sized to the bus count.
func (y *Ybus) MulVoltages(vr, vi, ir, ii []float64) {
	for i := 0; i < y.n; i++ {
		var re, im float64
		for j := 0; j < y.n; j++ {
			g := real(y.m.At(i, j))
			b := imag(y.m.At(i, j))
			re += g*vr[j] - b*vi[j]
			im += g*vi[j] + b*vr[j]
		}
		ir[i] = re
		ii[i] = im
	}
}

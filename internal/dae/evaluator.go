// Package dae holds the assembled DAE problem and the per-step
// residual evaluator the stepper invokes on every stage.
package dae

import (
	"math"

	"github.com/ahoven/gridyn/internal/device"
	"github.com/ahoven/gridyn/internal/grid"
	"github.com/ahoven/gridyn/internal/network"
	"github.com/ahoven/gridyn/internal/wiring"
)

// Evaluator computes the combined algebraic/differential residual for
// the whole network. Its auxiliary buffers are reused across calls and
// are not safe for concurrent evaluation; small-signal analysis must
// work on its own Fork.
type Evaluator struct {
	net    *grid.Network
	layout *wiring.Layout
	ybus   *network.Ybus

	chains [][]device.Submodel

	// reused accumulation buffers, private to this evaluator
	injR, injI []float64 // accumulated bus current injections
	netR, netI []float64 // Ybus * V
	loadY      []complex128
	srcIdx     []int
	scratch    [][]float64 // per-device working inner variables
}

// NewEvaluator wires the evaluator against the domain snapshot and
// the prebuilt layout, instantiating every device's sub-model chain.
func NewEvaluator(net *grid.Network, layout *wiring.Layout) (*Evaluator, error) {
	yb, err := network.Build(net)
	if err != nil {
		return nil, err
	}
	e := &Evaluator{
		net:    net,
		layout: layout,
		ybus:   yb,
		injR:   make([]float64, layout.NBus),
		injI:   make([]float64, layout.NBus),
		netR:   make([]float64, layout.NBus),
		netI:   make([]float64, layout.NBus),
		loadY:  make([]complex128, layout.NBus),
	}
	for _, inj := range net.Injections {
		chain, err := device.Chain(inj)
		if err != nil {
			return nil, err
		}
		e.chains = append(e.chains, chain)
	}
	for _, d := range layout.Devices {
		e.scratch = append(e.scratch, make([]float64, len(d.Inner)))
	}
	e.refreshStatic()
	return e, nil
}

// Fork returns an evaluator over the same domain snapshot and layout
// but with its own accumulation and inner-variable buffers, so an
// on-demand analysis path never aliases the live integration buffers.
func (e *Evaluator) Fork() (*Evaluator, error) {
	return NewEvaluator(e.net, e.layout)
}

// refreshStatic recomputes everything derived from the mutable domain
// snapshot: constant-impedance load admittances and source bus indices.
func (e *Evaluator) refreshStatic() {
	for i := range e.loadY {
		e.loadY[i] = 0
	}
	for _, l := range e.net.Loads {
		b, ok := e.ybus.Index(l.Bus)
		if !ok {
			continue
		}
		bus := e.net.Bus(l.Bus)
		v2 := bus.Vm * bus.Vm
		if v2 == 0 {
			v2 = 1
		}
		e.loadY[b] += complex(l.P/v2, -l.Q/v2)
	}
	e.srcIdx = e.srcIdx[:0]
	for _, s := range e.net.Sources {
		if b, ok := e.ybus.Index(s.Bus); ok {
			e.srcIdx = append(e.srcIdx, b)
		}
	}
}

// MarkDirty tells the evaluator the domain snapshot changed under it:
// the admittance matrix and the derived static tables are rebuilt
// immediately. When the rebuild fails the previous matrix stays in
// place and the error is returned to the caller.
func (e *Evaluator) MarkDirty() error {
	yb, err := network.Build(e.net)
	if err != nil {
		return err
	}
	e.ybus = yb
	e.refreshStatic()
	return nil
}

// Layout returns the global indexing scheme.
func (e *Evaluator) Layout() *wiring.Layout { return e.layout }

// Ybus returns the current admittance matrix.
func (e *Evaluator) Ybus() *network.Ybus { return e.ybus }

// HasReferenceSource reports whether any ideal voltage source is
// present, which anchors the angle reference for small-signal
// interpretation.
func (e *Evaluator) HasReferenceSource() bool { return len(e.net.Sources) > 0 }

// Eval computes the residual without committing inner variables: pure
// with respect to the persistent buffers, suitable for Newton stages
// and Jacobian evaluation.
func (e *Evaluator) Eval(out, x []float64, t float64) {
	e.eval(out, x, t)
}

// Advance evaluates at an accepted step and commits the freshly
// computed inner variables, so the next call seeds from this step's
// results. Deep copy semantics: the snapshot never aliases the scratch.
func (e *Evaluator) Advance(out, x []float64, t float64) {
	e.eval(out, x, t)
	for di, d := range e.layout.Devices {
		d.Commit(e.scratch[di])
	}
}

func (e *Evaluator) eval(out, x []float64, t float64) {
	n := e.layout.NBus
	for i := 0; i < n; i++ {
		e.injR[i] = 0
		e.injI[i] = 0
	}
	for i := range out {
		out[i] = 0
	}

	// Constant-impedance loads draw current proportional to the bus
	// voltage.
	for b := 0; b < n; b++ {
		if e.loadY[b] == 0 {
			continue
		}
		vr, vi := x[b], x[n+b]
		g, s := real(e.loadY[b]), imag(e.loadY[b])
		e.injR[b] -= g*vr - s*vi
		e.injI[b] -= g*vi + s*vr
	}

	// Thevenin sources inject (E - V) / Z.
	for k, s := range e.net.Sources {
		b := e.srcIdx[k]
		er, ei := polar(s.Vm, s.Va)
		dvr, dvi := er-x[b], ei-x[n+b]
		d := s.R*s.R + s.X*s.X
		e.injR[b] += (s.R*dvr + s.X*dvi) / d
		e.injI[b] += (s.R*dvi - s.X*dvr) / d
	}

	// Dynamic branches: explicit current states, KVL derivative rows,
	// current leaving the from bus and entering the to bus.
	for bi, bw := range e.layout.Branches {
		br := e.net.DynamicBranches[bi]
		ilr, ili := x[bw.Range.Start], x[bw.Range.Start+1]
		dvr := x[bw.From] - x[bw.To]
		dvi := x[n+bw.From] - x[n+bw.To]
		wb := e.net.OmegaBase()

		out[bw.Range.Start] = (wb/br.X)*(dvr-br.R*ilr) + wb*ili
		out[bw.Range.Start+1] = (wb/br.X)*(dvi-br.R*ili) - wb*ilr

		e.injR[bw.From] -= ilr
		e.injI[bw.From] -= ili
		e.injR[bw.To] += ilr
		e.injI[bw.To] += ili
	}

	// Dynamic injections: run each device's ordered sub-model chain.
	for di, d := range e.layout.Devices {
		inj := e.net.Injections[di]
		if !inj.Connected {
			// Tripped device: states frozen (rows stay zero), no
			// injection.
			continue
		}
		scratch := e.scratch[di]
		copy(scratch, d.Inner) // seed reads from the committed snapshot
		vr, vi := x[d.Bus], x[n+d.Bus]
		scratch[0] = vr // terminal voltage slots lead both layouts
		scratch[1] = vi

		env := device.Env{
			OmegaBase: e.net.OmegaBase(),
			BaseRatio: inj.BaseRatio(e.net.BaseMVA),
			Refs:      d.Refs,
			Vr:        vr,
			Vi:        vi,
			Inner:     scratch,
		}
		xloc := x[d.Range.Start:d.Range.End]
		dxloc := out[d.Range.Start:d.Range.End]
		chain := e.chains[di]
		order := inj.Category.Chain()
		for ci, sub := range chain {
			sub.Derivatives(&env, inj.Component(order[ci]), d, xloc, dxloc)
		}

		switch inj.Category {
		case grid.GeneratorCategory:
			e.injR[d.Bus] += scratch[device.GenIr]
			e.injI[d.Bus] += scratch[device.GenIi]
		case grid.InverterCategory:
			e.injR[d.Bus] += scratch[device.InvIr]
			e.injI[d.Bus] += scratch[device.InvIi]
		}
	}

	// Algebraic rows: injected current minus network current.
	e.ybus.MulVoltages(x[:n], x[n:2*n], e.netR, e.netI)
	for b := 0; b < n; b++ {
		out[b] = e.injR[b] - e.netR[b]
		out[n+b] = e.injI[b] - e.netI[b]
	}
}

func polar(m, a float64) (float64, float64) {
	s, c := math.Sincos(a)
	return m * c, m * s
}

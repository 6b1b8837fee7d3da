// Package device implements the closed set of dynamic-injection
// sub-models and the fixed evaluation chains that compose them.
//
// Every sub-model implements the same contract: given the device's
// local state slice, its resolved index tables, and the shared
// inner-variable scratch, write its derivative slice and any inner
// variables it produces for sub-models downstream in the chain.
// Chain order is the load-bearing invariant here: a sub-model may read
// an inner variable only after an upstream sub-model wrote it in the
// same call, otherwise it sees the previous evaluation's snapshot.
package device

import (
	"fmt"

	"github.com/ahoven/gridyn/internal/grid"
	"github.com/ahoven/gridyn/internal/wiring"
)

// Inner-variable slots for generator devices.
const (
	GenVr = iota // terminal voltage, real
	GenVi        // terminal voltage, imaginary
	GenTauM
	GenTauE
	GenVss
	GenVf
	GenIr // injected current, real
	GenIi // injected current, imaginary
)

// Inner-variable slots for inverter devices.
const (
	InvVr = iota
	InvVi
	InvVdc
	InvOmega // estimated grid frequency, pu
	InvVrefD // outer-loop voltage reference, d
	InvVrefQ
	InvMd // modulation command, d
	InvMq
	InvVcvD // converter terminal voltage, d
	InvVcvQ
	InvIr // injected current, real
	InvIi
	InvPElec
	InvQElec
)

// Env carries the per-call quantities every sub-model needs: the base
// angular frequency, the device-to-system base ratio, the control
// reference snapshot, the bus terminal voltage, and the working copy
// of the device's inner-variable vector for this evaluation.
type Env struct {
	OmegaBase float64
	BaseRatio float64
	Refs      wiring.Refs
	Vr, Vi    float64
	Inner     []float64
}

// Submodel computes one sub-component's derivatives.
//
// xloc and dxloc are the device's local slices of the global state and
// output vectors; c carries the leaf parameters; dev supplies the
// index tables and the inner-variable scratch.
type Submodel interface {
	Model() string
	Derivatives(env *Env, c *grid.Component, dev *wiring.Device, xloc, dxloc []float64)
}

type factory func() Submodel

var registry = map[string]factory{
	"tg_fixed":      func() Submodel { return &TGFixed{} },
	"tg_type_i":     func() Submodel { return &TGTypeI{} },
	"pss_fixed":     func() Submodel { return &PSSFixed{} },
	"avr_fixed":     func() Submodel { return &AVRFixed{} },
	"avr_type_i":    func() Submodel { return &AVRTypeI{} },
	"machine_1d1q":  func() Submodel { return &MachineOneDOneQ{} },
	"shaft_single":  func() Submodel { return &ShaftSingleMass{} },
	"dc_fixed":      func() Submodel { return &DCFixed{} },
	"kaura_pll":     func() Submodel { return &KauraPLL{} },
	"outer_droop":   func() Submodel { return &OuterDroop{} },
	"inner_current": func() Submodel { return &InnerCurrentControl{} },
	"converter_avg": func() Submodel { return &AverageConverter{} },
	"filter_lcl":    func() Submodel { return &FilterLCL{} },
}

// New returns the sub-model implementation for a leaf model name.
func New(model string) (Submodel, error) {
	fn, ok := registry[model]
	if !ok {
		return nil, fmt.Errorf("device: unknown model %q", model)
	}
	return fn(), nil
}

// Chain instantiates a device's full sub-model chain in its category's
// fixed evaluation order.
func Chain(inj *grid.DynamicInjection) ([]Submodel, error) {
	order := inj.Category.Chain()
	chain := make([]Submodel, 0, len(order))
	for _, kind := range order {
		c := inj.Component(kind)
		if c == nil {
			return nil, fmt.Errorf("device: %s %q missing %s slot",
				inj.Category, inj.Name, kind)
		}
		m, err := New(c.Model)
		if err != nil {
			return nil, err
		}
		chain = append(chain, m)
	}
	return chain, nil
}

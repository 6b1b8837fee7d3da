package device

import (
	"math"

	"github.com/ahoven/gridyn/internal/grid"
	"github.com/ahoven/gridyn/internal/wiring"
)

// DCFixed is a stiff DC side holding the DC-link voltage constant.
type DCFixed struct{}

func (*DCFixed) Model() string { return "dc_fixed" }

func (*DCFixed) Derivatives(env *Env, c *grid.Component, dev *wiring.Device, xloc, dxloc []float64) {
	env.Inner[InvVdc] = c.Param("vdc", 1.0)
}

// KauraPLL estimates the grid frequency from the terminal voltage
// q-component in its own tracking frame.
type KauraPLL struct{}

func (*KauraPLL) Model() string { return "kaura_pll" }

func (*KauraPLL) Derivatives(env *Env, c *grid.Component, dev *wiring.Device, xloc, dxloc []float64) {
	local := dev.LocalIndex(grid.KindFreqEstimator)
	vqPLL, eps, theta := xloc[local[0]], xloc[local[1]], xloc[local[2]]

	wlp := c.Param("omega_lp", 500.0)
	kp := c.Param("kp_pll", 0.084)
	ki := c.Param("ki_pll", 4.69)

	st, ct := math.Sin(theta), math.Cos(theta)
	vq := env.Vi*ct - env.Vr*st

	omega := 1 + kp*vqPLL + ki*eps

	dxloc[local[0]] = wlp * (vq - vqPLL)
	dxloc[local[1]] = vqPLL
	dxloc[local[2]] = env.OmegaBase * (omega - 1)

	env.Inner[InvOmega] = omega
}

// OuterDroop is the active/reactive power droop outer loop. It reads
// the electric power measurements the filter wrote at the end of the
// previous evaluation (the one deliberate back edge in the chain) and
// produces the inner loop's voltage reference.
type OuterDroop struct{}

func (*OuterDroop) Model() string { return "outer_droop" }

func (*OuterDroop) Derivatives(env *Env, c *grid.Component, dev *wiring.Device, xloc, dxloc []float64) {
	local := dev.LocalIndex(grid.KindOuterControl)
	pFlt, qFlt := xloc[local[1]], xloc[local[2]]

	rp := c.Param("rp", 0.05)
	rq := c.Param("rq", 0.05)
	wf := c.Param("omega_f", 62.83)

	pe := env.Inner[InvPElec]
	qe := env.Inner[InvQElec]
	omegaSys := env.Inner[InvOmega]

	pref := env.Refs.P / env.BaseRatio
	qref := env.Refs.Q / env.BaseRatio
	omegaOLC := env.Refs.Omega + rp*(pref-pFlt)

	dxloc[local[0]] = env.OmegaBase * (omegaOLC - omegaSys)
	dxloc[local[1]] = wf * (pe - pFlt)
	dxloc[local[2]] = wf * (qe - qFlt)

	env.Inner[InvVrefD] = env.Refs.V + rq*(qref-qFlt)
	env.Inner[InvVrefQ] = 0
	env.Inner[InvOmega] = omegaOLC
}

// InnerCurrentControl is the cascaded voltage/current PI controller
// producing the converter modulation command in the outer-loop frame.
type InnerCurrentControl struct{}

func (*InnerCurrentControl) Model() string { return "inner_current" }

func (*InnerCurrentControl) Derivatives(env *Env, c *grid.Component, dev *wiring.Device, xloc, dxloc []float64) {
	local := dev.LocalIndex(grid.KindInnerControl)
	ports := dev.PortIndex(grid.KindInnerControl) // [icv_d icv_q vo_d vo_q]
	xiD, xiQ := xloc[local[0]], xloc[local[1]]
	gamD, gamQ := xloc[local[2]], xloc[local[3]]
	icvD, icvQ := xloc[ports[0]], xloc[ports[1]]
	voD, voQ := xloc[ports[2]], xloc[ports[3]]

	kpv := c.Param("kpv", 0.59)
	kiv := c.Param("kiv", 736.0)
	kpc := c.Param("kpc", 1.27)
	kic := c.Param("kic", 14.3)
	cf := c.Param("cf", 0.074)
	lf := c.Param("lf", 0.08)

	vrefD := env.Inner[InvVrefD]
	vrefQ := env.Inner[InvVrefQ]
	omega := env.Inner[InvOmega]
	vdc := env.Inner[InvVdc]

	irefD := kpv*(vrefD-voD) + kiv*xiD - omega*cf*voQ
	irefQ := kpv*(vrefQ-voQ) + kiv*xiQ + omega*cf*voD

	dxloc[local[0]] = vrefD - voD
	dxloc[local[1]] = vrefQ - voQ
	dxloc[local[2]] = irefD - icvD
	dxloc[local[3]] = irefQ - icvQ

	vcmdD := kpc*(irefD-icvD) + kic*gamD + voD - omega*lf*icvQ
	vcmdQ := kpc*(irefQ-icvQ) + kic*gamQ + voQ + omega*lf*icvD

	env.Inner[InvMd] = vcmdD / vdc
	env.Inner[InvMq] = vcmdQ / vdc
}

// AverageConverter is the switching-averaged bridge: the terminal
// voltage is the modulation command scaled by the DC-link voltage.
type AverageConverter struct{}

func (*AverageConverter) Model() string { return "converter_avg" }

func (*AverageConverter) Derivatives(env *Env, c *grid.Component, dev *wiring.Device, xloc, dxloc []float64) {
	vdc := env.Inner[InvVdc]
	env.Inner[InvVcvD] = env.Inner[InvMd] * vdc
	env.Inner[InvVcvQ] = env.Inner[InvMq] * vdc
}

// FilterLCL is the six-state LCL output filter in the outer-loop
// rotating frame; it couples the converter to the network and writes
// the power measurements the outer loop reads next call.
type FilterLCL struct{}

func (*FilterLCL) Model() string { return "filter_lcl" }

func (*FilterLCL) Derivatives(env *Env, c *grid.Component, dev *wiring.Device, xloc, dxloc []float64) {
	local := dev.LocalIndex(grid.KindFilter)
	ports := dev.PortIndex(grid.KindFilter) // [theta_olc]
	icvD, icvQ := xloc[local[0]], xloc[local[1]]
	voD, voQ := xloc[local[2]], xloc[local[3]]
	igD, igQ := xloc[local[4]], xloc[local[5]]
	theta := xloc[ports[0]]

	lf := c.Param("lf", 0.08)
	rf := c.Param("rf", 0.003)
	cf := c.Param("cf", 0.074)
	lg := c.Param("lg", 0.2)
	rg := c.Param("rg", 0.01)

	wb := env.OmegaBase
	omega := env.Inner[InvOmega]
	vcvD := env.Inner[InvVcvD]
	vcvQ := env.Inner[InvVcvQ]

	st, ct := math.Sin(theta), math.Cos(theta)
	vtD := env.Vr*ct + env.Vi*st
	vtQ := -env.Vr*st + env.Vi*ct

	dxloc[local[0]] = (wb/lf)*(vcvD-voD-rf*icvD) + wb*omega*icvQ
	dxloc[local[1]] = (wb/lf)*(vcvQ-voQ-rf*icvQ) - wb*omega*icvD
	dxloc[local[2]] = (wb/cf)*(icvD-igD) + wb*omega*voQ
	dxloc[local[3]] = (wb/cf)*(icvQ-igQ) - wb*omega*voD
	dxloc[local[4]] = (wb/lg)*(voD-vtD-rg*igD) + wb*omega*igQ
	dxloc[local[5]] = (wb/lg)*(voQ-vtQ-rg*igQ) - wb*omega*igD

	env.Inner[InvIr] = (igD*ct - igQ*st) * env.BaseRatio
	env.Inner[InvIi] = (igD*st + igQ*ct) * env.BaseRatio

	env.Inner[InvPElec] = vtD*igD + vtQ*igQ
	env.Inner[InvQElec] = vtQ*igD - vtD*igQ
}

package device

import (
	"math"

	"github.com/ahoven/gridyn/internal/grid"
	"github.com/ahoven/gridyn/internal/wiring"
)

// TGFixed is a constant mechanical-torque prime mover: no states,
// τm = η · P_ref.
type TGFixed struct{}

func (*TGFixed) Model() string { return "tg_fixed" }

func (*TGFixed) Derivatives(env *Env, c *grid.Component, dev *wiring.Device, xloc, dxloc []float64) {
	eta := c.Param("efficiency", 1.0)
	env.Inner[GenTauM] = eta * env.Refs.P / env.BaseRatio
}

// TGTypeI is a three-state steam turbine governor: droop-regulated
// governor, servo, and reheat stages.
type TGTypeI struct{}

func (*TGTypeI) Model() string { return "tg_type_i" }

func (*TGTypeI) Derivatives(env *Env, c *grid.Component, dev *wiring.Device, xloc, dxloc []float64) {
	local := dev.LocalIndex(grid.KindTurbineGov)
	ports := dev.PortIndex(grid.KindTurbineGov) // [omega]
	xg1, xg2, xg3 := xloc[local[0]], xloc[local[1]], xloc[local[2]]
	omega := xloc[ports[0]]

	droop := c.Param("droop", 0.05)
	ts := c.Param("ts", 0.1)
	tc := c.Param("tc", 0.45)
	t3 := c.Param("t3", 0.0)
	t4 := c.Param("t4", 12.0)
	t5 := c.Param("t5", 50.0)

	pref := env.Refs.P / env.BaseRatio
	pin := pref + (env.Refs.Omega-omega)/droop

	dxloc[local[0]] = (pin - xg1) / ts
	dxloc[local[1]] = (xg1*(1-t3/tc) - xg2) / tc
	dxloc[local[2]] = ((xg2+xg1*t3/tc)*(1-t4/t5) - xg3) / t5

	env.Inner[GenTauM] = xg3 + (t4/t5)*(xg2+xg1*t3/tc)
}

// PSSFixed is a stabilizer placeholder contributing a constant output.
type PSSFixed struct{}

func (*PSSFixed) Model() string { return "pss_fixed" }

func (*PSSFixed) Derivatives(env *Env, c *grid.Component, dev *wiring.Device, xloc, dxloc []float64) {
	env.Inner[GenVss] = c.Param("v_ss", 0.0)
}

// AVRFixed holds the field voltage at a constant value.
type AVRFixed struct{}

func (*AVRFixed) Model() string { return "avr_fixed" }

func (*AVRFixed) Derivatives(env *Env, c *grid.Component, dev *wiring.Device, xloc, dxloc []float64) {
	env.Inner[GenVf] = c.Param("vf", 1.0)
}

// AVRTypeI is the four-state IEEE Type I excitation system: measured
// voltage filter, regulator, rate feedback, and exciter.
type AVRTypeI struct{}

func (*AVRTypeI) Model() string { return "avr_type_i" }

func (*AVRTypeI) Derivatives(env *Env, c *grid.Component, dev *wiring.Device, xloc, dxloc []float64) {
	local := dev.LocalIndex(grid.KindAVR)
	vf, vr1, vr2, vm := xloc[local[0]], xloc[local[1]], xloc[local[2]], xloc[local[3]]

	ka := c.Param("ka", 20.0)
	ta := c.Param("ta", 0.2)
	ke := c.Param("ke", 1.0)
	te := c.Param("te", 0.314)
	kf := c.Param("kf", 0.063)
	tf := c.Param("tf", 0.35)
	tr := c.Param("tr", 0.05)
	ae := c.Param("ae", 0.0039)
	be := c.Param("be", 1.555)

	vt := math.Hypot(env.Vr, env.Vi)
	vss := env.Inner[GenVss] // written by the stabilizer upstream

	se := ae * math.Exp(be*math.Abs(vf))

	dxloc[local[0]] = -(vf*(ke+se) - vr1) / te
	dxloc[local[1]] = (ka*(env.Refs.V-vm-vr2-(kf/tf)*vf+vss) - vr1) / ta
	dxloc[local[2]] = -((kf/tf)*vf + vr2) / tf
	dxloc[local[3]] = (vt - vm) / tr

	env.Inner[GenVf] = vf
}

// MachineOneDOneQ is the one-d-one-q transient machine model: two EMF
// states behind transient reactances, stator currents solved
// algebraically from the terminal voltage.
type MachineOneDOneQ struct{}

func (*MachineOneDOneQ) Model() string { return "machine_1d1q" }

func (*MachineOneDOneQ) Derivatives(env *Env, c *grid.Component, dev *wiring.Device, xloc, dxloc []float64) {
	local := dev.LocalIndex(grid.KindMachine)
	ports := dev.PortIndex(grid.KindMachine) // [delta, omega]
	eqp, edp := xloc[local[0]], xloc[local[1]]
	delta := xloc[ports[0]]

	ra := c.Param("ra", 0.0)
	xd := c.Param("xd", 1.8)
	xq := c.Param("xq", 1.7)
	xdp := c.Param("xd_p", 0.3)
	xqp := c.Param("xq_p", 0.55)
	td0p := c.Param("td0_p", 8.0)
	tq0p := c.Param("tq0_p", 0.4)

	sd, cd := math.Sin(delta), math.Cos(delta)
	vd := env.Vr*sd - env.Vi*cd
	vq := env.Vr*cd + env.Vi*sd

	// Stator algebra: [ra -xqp; xdp ra] [id iq]' = [edp-vd eqp-vq]'
	det := ra*ra + xdp*xqp
	id := (ra*(edp-vd) + xqp*(eqp-vq)) / det
	iq := (-xdp*(edp-vd) + ra*(eqp-vq)) / det

	vf := env.Inner[GenVf]

	dxloc[local[0]] = (-eqp - (xd-xdp)*id + vf) / td0p
	dxloc[local[1]] = (-edp + (xq-xqp)*iq) / tq0p

	env.Inner[GenTauE] = edp*id + eqp*iq + (xqp-xdp)*id*iq

	// Rotate dq currents back to the network frame and scale to the
	// system base.
	env.Inner[GenIr] = (id*sd + iq*cd) * env.BaseRatio
	env.Inner[GenIi] = (-id*cd + iq*sd) * env.BaseRatio
}

// ShaftSingleMass is the single-mass swing equation: rotor angle and
// per-unit speed driven by the torque imbalance.
type ShaftSingleMass struct{}

func (*ShaftSingleMass) Model() string { return "shaft_single" }

func (*ShaftSingleMass) Derivatives(env *Env, c *grid.Component, dev *wiring.Device, xloc, dxloc []float64) {
	local := dev.LocalIndex(grid.KindShaft)
	omega := xloc[local[1]]

	h := c.Param("h", 3.5)
	d := c.Param("d", 2.0)

	tauM := env.Inner[GenTauM]
	tauE := env.Inner[GenTauE]

	dxloc[local[0]] = env.OmegaBase * (omega - 1)
	dxloc[local[1]] = (tauM - tauE - d*(omega-1)) / (2 * h)
}

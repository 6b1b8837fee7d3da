package config

import "github.com/ahoven/gridyn/internal/grid"

// SMIB is the single-machine-infinite-bus benchmark: one round-rotor
// generator behind a line against an ideal source.
func SMIB() *Case {
	c := &Case{
		Name:      "smib",
		BaseMVA:   100,
		Frequency: 60,
		Buses: []grid.Bus{
			{Name: "bus1", BaseKV: 230, Vm: 1.02},
			{Name: "bus2", BaseKV: 230, Vm: 1.0},
		},
		Branches: []BranchConfig{
			{Name: "line1-2", From: "bus1", To: "bus2", R: 0.01, X: 0.12},
		},
		Sources: []grid.Source{
			{Name: "infbus", Bus: "bus2", Vm: 1.0, Va: 0, R: 0.0, X: 1e-4},
		},
		Generators: []grid.GeneratorSpec{
			{
				Name: "gen1", Bus: "bus1", BaseMVA: 100,
				P: 0.4, Q: 0.1,
				Governor: grid.Model("tg_fixed", nil),
				PSS:      grid.Model("pss_fixed", nil),
				AVR:      grid.Model("avr_fixed", map[string]float64{"vf": 1.15}),
				Machine:  grid.Model("machine_1d1q", nil),
				Shaft:    grid.Model("shaft_single", map[string]float64{"h": 3.5, "d": 2.0}),
			},
		},
		Solver: SolverConfig{Method: "trapezoidal", Dt: 0.005, Span: [2]float64{0, 5}},
	}
	c.applyDefaults()
	return c
}

// ThreeBusInverter is a droop-controlled inverter feeding a load
// through a short network anchored by an ideal source.
func ThreeBusInverter() *Case {
	c := &Case{
		Name:      "three_bus_inverter",
		BaseMVA:   100,
		Frequency: 60,
		Buses: []grid.Bus{
			{Name: "bus1", BaseKV: 230, Vm: 1.0},
			{Name: "bus2", BaseKV: 230, Vm: 1.0},
			{Name: "bus3", BaseKV: 230, Vm: 1.0},
		},
		Branches: []BranchConfig{
			{Name: "line1-2", From: "bus1", To: "bus2", R: 0.01, X: 0.1},
			{Name: "line2-3", From: "bus2", To: "bus3", R: 0.01, X: 0.1},
		},
		Sources: []grid.Source{
			{Name: "infbus", Bus: "bus1", Vm: 1.0, Va: 0, R: 0.0, X: 1e-4},
		},
		Loads: []grid.Load{
			{Name: "load3", Bus: "bus3", P: 0.3, Q: 0.05},
		},
		Inverters: []grid.InverterSpec{
			{
				Name: "inv1", Bus: "bus2", BaseMVA: 100,
				P: 0.3, Q: 0.05,
				DCSide:    grid.Model("dc_fixed", map[string]float64{"vdc": 1.2}),
				FreqEst:   grid.Model("kaura_pll", nil),
				Outer:     grid.Model("outer_droop", nil),
				Inner:     grid.Model("inner_current", nil),
				Converter: grid.Model("converter_avg", nil),
				Filter:    grid.Model("filter_lcl", nil),
			},
		},
		Solver: SolverConfig{Method: "trapezoidal", Dt: 0.002, Span: [2]float64{0, 2}},
	}
	c.applyDefaults()
	return c
}

// Presets returns the bundled cases by name.
func Presets() map[string]func() *Case {
	return map[string]func() *Case{
		"smib":               SMIB,
		"three_bus_inverter": ThreeBusInverter,
	}
}

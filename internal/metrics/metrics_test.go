package metrics

import (
	"math"
	"testing"

	"github.com/ahoven/gridyn/internal/dae"
	"github.com/ahoven/gridyn/internal/grid"
	"github.com/ahoven/gridyn/internal/solvers"
	"github.com/ahoven/gridyn/internal/wiring"
)

func metricsSetup(t *testing.T) (*grid.Network, *wiring.Layout) {
	t.Helper()
	gen, err := grid.NewGenerator(grid.GeneratorSpec{
		Name: "gen1", Bus: "bus1", BaseMVA: 100, P: 0.4,
		Governor: grid.Model("tg_fixed", nil),
		PSS:      grid.Model("pss_fixed", nil),
		AVR:      grid.Model("avr_fixed", nil),
		Machine:  grid.Model("machine_1d1q", nil),
		Shaft:    grid.Model("shaft_single", nil),
	})
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	net := &grid.Network{
		Name: "t", BaseMVA: 100, Frequency: 60,
		Buses:      []*grid.Bus{{Name: "bus1"}},
		Injections: []*grid.DynamicInjection{gen},
	}
	l, err := wiring.Build(net)
	if err != nil {
		t.Fatalf("wiring.Build: %v", err)
	}
	return net, l
}

// state layout: [vr, vi, eq_p, ed_p, delta, omega]
func mkState(vr, vi, delta, omega float64) dae.State {
	return dae.State{vr, vi, 1.0, 0.0, delta, omega}
}

func TestFrequencyDeviation(t *testing.T) {
	net, l := metricsSetup(t)
	tr := &solvers.Trajectory{
		Times: []float64{0, 1, 2},
		States: []dae.State{
			mkState(1, 0, 0.1, 1.0),
			mkState(1, 0, 0.1, 1.03),
			mkState(1, 0, 0.1, 0.99),
		},
	}
	m := NewFrequencyDeviation(l, net)
	got := Evaluate(tr, m)["max_freq_deviation"]
	if math.Abs(got-0.03) > 1e-12 {
		t.Errorf("max deviation = %g, want 0.03", got)
	}
}

func TestVoltageNadir(t *testing.T) {
	_, l := metricsSetup(t)
	tr := &solvers.Trajectory{
		Times: []float64{0, 1, 2},
		States: []dae.State{
			mkState(1.0, 0, 0, 1),
			mkState(0.6, 0.8, 0, 1), // |V| = 1.0
			mkState(0.9, 0, 0, 1),
		},
	}
	got := Evaluate(tr, NewVoltageNadir(l))["voltage_nadir"]
	if math.Abs(got-0.9) > 1e-12 {
		t.Errorf("nadir = %g, want 0.9", got)
	}
}

func TestAngleSwing(t *testing.T) {
	net, l := metricsSetup(t)
	tr := &solvers.Trajectory{
		Times: []float64{0, 1, 2},
		States: []dae.State{
			mkState(1, 0, 0.1, 1),
			mkState(1, 0, 0.5, 1),
			mkState(1, 0, 0.3, 1),
		},
	}
	got := Evaluate(tr, NewAngleSwing(l, net))["max_angle_swing"]
	if math.Abs(got-0.4) > 1e-12 {
		t.Errorf("swing = %g, want 0.4", got)
	}
}

func TestDefaultSet(t *testing.T) {
	net, l := metricsSetup(t)
	ms := Default(l, net)
	if len(ms) != 3 {
		t.Fatalf("default set has %d metrics", len(ms))
	}
	tr := &solvers.Trajectory{
		Times:  []float64{0},
		States: []dae.State{mkState(1, 0, 0, 1)},
	}
	vals := Evaluate(tr, ms...)
	if vals["max_freq_deviation"] != 0 || vals["max_angle_swing"] != 0 {
		t.Errorf("steady trajectory metrics = %v", vals)
	}
	if math.Abs(vals["voltage_nadir"]-1.0) > 1e-12 {
		t.Errorf("nadir = %g, want 1", vals["voltage_nadir"])
	}
}

// Package metrics computes summary quantities over a finished
// trajectory: frequency excursions, voltage nadir, and settling of
// rotor swings.
package metrics

import (
	"math"

	"github.com/ahoven/gridyn/internal/grid"
	"github.com/ahoven/gridyn/internal/solvers"
	"github.com/ahoven/gridyn/internal/wiring"
)

// Metric observes each recorded step and reports a scalar afterwards.
type Metric interface {
	Name() string
	Observe(x []float64, t float64)
	Value() float64
	Reset()
}

// FrequencyDeviation tracks the largest |omega - 1| across the named
// state slots, in pu.
type FrequencyDeviation struct {
	slots []int
	worst float64
}

func NewFrequencyDeviation(layout *wiring.Layout, net *grid.Network) *FrequencyDeviation {
	m := &FrequencyDeviation{}
	for di, d := range layout.Devices {
		inj := net.Injections[di]
		for k, name := range inj.StateNames {
			if name == "omega" {
				m.slots = append(m.slots, d.Range.Start+k)
			}
		}
	}
	return m
}

func (m *FrequencyDeviation) Name() string { return "max_freq_deviation" }

func (m *FrequencyDeviation) Observe(x []float64, t float64) {
	for _, s := range m.slots {
		if d := math.Abs(x[s] - 1.0); d > m.worst {
			m.worst = d
		}
	}
}

func (m *FrequencyDeviation) Value() float64 { return m.worst }
func (m *FrequencyDeviation) Reset()         { m.worst = 0 }

// VoltageNadir tracks the lowest bus voltage magnitude seen.
type VoltageNadir struct {
	layout *wiring.Layout
	nadir  float64
	seen   bool
}

func NewVoltageNadir(layout *wiring.Layout) *VoltageNadir {
	return &VoltageNadir{layout: layout}
}

func (m *VoltageNadir) Name() string { return "voltage_nadir" }

func (m *VoltageNadir) Observe(x []float64, t float64) {
	for i := 0; i < m.layout.NBus; i++ {
		vm := math.Hypot(x[m.layout.VrIndex(i)], x[m.layout.ViIndex(i)])
		if !m.seen || vm < m.nadir {
			m.nadir = vm
			m.seen = true
		}
	}
}

func (m *VoltageNadir) Value() float64 {
	if !m.seen {
		return 0
	}
	return m.nadir
}

func (m *VoltageNadir) Reset() { m.seen = false; m.nadir = 0 }

// AngleSwing tracks the peak-to-peak excursion of rotor and converter
// angles (delta, theta_pll, theta_olc), in radians.
type AngleSwing struct {
	slots    []int
	min, max []float64
	seen     bool
}

func NewAngleSwing(layout *wiring.Layout, net *grid.Network) *AngleSwing {
	m := &AngleSwing{}
	for di, d := range layout.Devices {
		inj := net.Injections[di]
		for k, name := range inj.StateNames {
			switch name {
			case "delta", "theta_pll", "theta_olc":
				m.slots = append(m.slots, d.Range.Start+k)
			}
		}
	}
	m.min = make([]float64, len(m.slots))
	m.max = make([]float64, len(m.slots))
	return m
}

func (m *AngleSwing) Name() string { return "max_angle_swing" }

func (m *AngleSwing) Observe(x []float64, t float64) {
	for i, s := range m.slots {
		v := x[s]
		if !m.seen {
			m.min[i], m.max[i] = v, v
			continue
		}
		if v < m.min[i] {
			m.min[i] = v
		}
		if v > m.max[i] {
			m.max[i] = v
		}
	}
	m.seen = true
}

func (m *AngleSwing) Value() float64 {
	worst := 0.0
	for i := range m.slots {
		if d := m.max[i] - m.min[i]; d > worst {
			worst = d
		}
	}
	return worst
}

func (m *AngleSwing) Reset() {
	m.seen = false
	for i := range m.slots {
		m.min[i], m.max[i] = 0, 0
	}
}

// Evaluate runs every metric over a recorded trajectory.
func Evaluate(tr *solvers.Trajectory, ms ...Metric) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		m.Reset()
		for i := range tr.States {
			m.Observe(tr.States[i], tr.Times[i])
		}
		out[m.Name()] = m.Value()
	}
	return out
}

// Default returns the standard metric set for a wired case.
func Default(layout *wiring.Layout, net *grid.Network) []Metric {
	return []Metric{
		NewFrequencyDeviation(layout, net),
		NewVoltageNadir(layout),
		NewAngleSwing(layout, net),
	}
}

// Package perturb converts scheduled structural or parametric changes
// into discrete events coordinated with the stepper: every trigger
// time becomes a mandatory stop so the integrator lands on it exactly,
// and every effect fires exactly once.
package perturb

import (
	"fmt"
	"math"
	"sort"
)

// StopEps is the tolerance used to match the integrator's current
// time against a trigger time.
const StopEps = 1e-9

// Effect is a pure mutation of the domain model or a device's
// parameters. Effects must tolerate being invoked more than once at
// the same instant, although the engine fires them exactly once.
type Effect func() error

// Perturbation is a scheduled (trigger time, effect) pair.
type Perturbation struct {
	Name  string
	Time  float64
	Apply Effect
}

// Status is the per-trigger state machine: scheduled when declared,
// armed once its stop time is registered with the stepper, fired after
// the effect ran.
type Status int

const (
	Scheduled Status = iota
	Armed
	Fired
)

type trigger struct {
	p      Perturbation
	status Status
}

// Set is the materialized trigger collection handed to the stepper.
type Set struct {
	triggers []*trigger
	stops    []float64
}

// NewSet materializes a perturbation list. An empty list produces an
// empty trigger set and the single no-op sentinel stop time 0.0.
func NewSet(ps []Perturbation) *Set {
	s := &Set{}
	for _, p := range ps {
		s.triggers = append(s.triggers, &trigger{p: p})
	}
	if len(ps) == 0 {
		s.stops = []float64{0.0}
		return s
	}
	s.stops = make([]float64, 0, len(ps))
	for _, p := range ps {
		s.stops = append(s.stops, p.Time)
	}
	sort.Float64s(s.stops)
	return s
}

// StopTimes returns the sorted list of mandatory stop times.
func (s *Set) StopTimes() []float64 {
	out := make([]float64, len(s.stops))
	copy(out, s.stops)
	return out
}

// Arm marks every scheduled trigger armed, acknowledging that its
// stop time has been registered with the stepper.
func (s *Set) Arm() {
	for _, tr := range s.triggers {
		if tr.status == Scheduled {
			tr.status = Armed
		}
	}
}

// FireAt applies every armed effect whose trigger time matches t,
// transitioning it to fired. It returns the number of effects applied.
func (s *Set) FireAt(t float64) (int, error) {
	fired := 0
	for _, tr := range s.triggers {
		if tr.status != Armed {
			continue
		}
		if math.Abs(tr.p.Time-t) > StopEps {
			continue
		}
		if err := tr.p.Apply(); err != nil {
			return fired, fmt.Errorf("perturb: %q at t=%g: %w", tr.p.Name, t, err)
		}
		tr.status = Fired
		fired++
	}
	return fired, nil
}

// Pending reports whether any trigger has not fired yet.
func (s *Set) Pending() bool {
	for _, tr := range s.triggers {
		if tr.status != Fired {
			return true
		}
	}
	return false
}

// Len returns the trigger count.
func (s *Set) Len() int { return len(s.triggers) }

// Package sim owns the assembled DAE problem and orchestrates the
// simulation lifecycle: build, consistent initialization, integration,
// and re-entrant small-signal analysis.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/ahoven/gridyn/internal/dae"
	"github.com/ahoven/gridyn/internal/grid"
	"github.com/ahoven/gridyn/internal/perturb"
	"github.com/ahoven/gridyn/internal/solvers"
	"github.com/ahoven/gridyn/internal/ssa"
	"github.com/ahoven/gridyn/internal/wiring"
)

var (
	// ErrReset indicates the simulation was reset and refuses all
	// further operations.
	ErrReset = errors.New("sim: simulation has been reset")

	// ErrNoSolution indicates an operation needing a trajectory ran
	// before Run.
	ErrNoSolution = errors.New("sim: no solution, run the simulation first")
)

// PerturbationSpec declares one scheduled change in case terms; Build
// materializes it against the wired network.
type PerturbationSpec struct {
	Time   float64 `yaml:"time"`
	Type   string  `yaml:"type"` // branch_trip | reference_change | source_voltage
	Target string  `yaml:"target"`
	Field  string  `yaml:"field"`
	Value  float64 `yaml:"value"`
}

// Options configure a build.
type Options struct {
	TSpan     [2]float64
	Dt        float64
	Tol       float64
	MaxNewton int
	Stepper   string // trapezoidal | backward_euler

	// OnStep, when set, observes every accepted step after the inner
	// variables have been committed.
	OnStep func(x []float64, t float64)
}

// DefaultOptions returns the build defaults.
func DefaultOptions() Options {
	return Options{
		TSpan:     [2]float64{0, 5},
		Dt:        0.005,
		Tol:       1e-8,
		MaxNewton: 20,
		Stepper:   "trapezoidal",
	}
}

// Simulation is the assembled system. It is created by Build, fully
// constructed or not at all, and advances through the states
// built → initialized → integrated. Once Reset is called the instance
// refuses every further operation.
type Simulation struct {
	net    *grid.Network
	layout *wiring.Layout
	eval   *dae.Evaluator

	problem *dae.Problem
	perts   *perturb.Set
	stepper solvers.Stepper
	opts    Options

	initialized bool
	reset       bool
	result      *solvers.Trajectory
}

// Build wires the network, assembles the DAE problem and materializes
// the perturbation set. The returned simulation is flat-started: bus
// voltages seeded from the steady-state phasors (magnitude 1.0 when
// unset) and device states from category defaults.
func Build(net *grid.Network, specs []PerturbationSpec, opts Options) (*Simulation, error) {
	if err := net.Validate(); err != nil {
		return nil, err
	}
	layout, err := wiring.Build(net)
	if err != nil {
		return nil, err
	}
	eval, err := dae.NewEvaluator(net, layout)
	if err != nil {
		return nil, err
	}

	s := &Simulation{
		net:    net,
		layout: layout,
		eval:   eval,
		opts:   opts,
	}

	switch opts.Stepper {
	case "", "trapezoidal":
		s.stepper = solvers.NewTrapezoidal(opts.Tol, opts.MaxNewton)
	case "backward_euler":
		s.stepper = solvers.NewBackwardEuler(opts.Tol, opts.MaxNewton)
	default:
		return nil, fmt.Errorf("sim: unknown stepper %q", opts.Stepper)
	}

	ps := make([]perturb.Perturbation, 0, len(specs))
	for _, sp := range specs {
		p, err := s.materialize(sp)
		if err != nil {
			return nil, err
		}
		ps = append(ps, p)
	}
	s.perts = perturb.NewSet(ps)

	x0 := s.seedState()
	s.problem = &dae.Problem{
		Residual:     eval.Eval,
		X0:           x0,
		TSpan:        opts.TSpan,
		Differential: layout.DifferentialFlags(net),
	}
	return s, nil
}

func (s *Simulation) materialize(sp PerturbationSpec) (perturb.Perturbation, error) {
	switch sp.Type {
	case "branch_trip":
		return perturb.BranchTrip(s.net, s.eval, sp.Target, sp.Time), nil
	case "reference_change":
		return perturb.ReferenceChange(s.layout, sp.Target, sp.Field, sp.Value, sp.Time), nil
	case "source_voltage":
		return perturb.SourceVoltageChange(s.net, s.eval, sp.Target, sp.Value, sp.Time), nil
	default:
		return perturb.Perturbation{}, fmt.Errorf("sim: unknown perturbation type %q", sp.Type)
	}
}

// stateGuess maps device state names to flat-start values; anything
// unnamed starts at zero.
var stateGuess = map[string]float64{
	"omega": 1.0,
	"eq_p":  1.0,
	"vm":    1.0,
	"vf":    1.0,
	"vr1":   1.0,
	"vo_d":  1.0,
}

func (s *Simulation) seedState() dae.State {
	x := make(dae.State, s.layout.Total)
	for i, b := range s.net.Buses {
		vm := b.Vm
		if vm == 0 {
			vm = 1.0
		}
		x[s.layout.VrIndex(i)] = vm * math.Cos(b.Va)
		x[s.layout.ViIndex(i)] = vm * math.Sin(b.Va)
	}
	for di, d := range s.layout.Devices {
		inj := s.net.Injections[di]
		for k, name := range inj.StateNames {
			if v, ok := stateGuess[name]; ok {
				x[d.Range.Start+k] = v
			}
			// seed grid-side currents near the scheduled power
			if name == "ig_d" || name == "icv_d" {
				x[d.Range.Start+k] = d.Refs.P
			}
		}
	}
	return x
}

// Layout exposes the global indexing scheme.
func (s *Simulation) Layout() *wiring.Layout { return s.layout }

// Network exposes the live domain snapshot.
func (s *Simulation) Network() *grid.Network { return s.net }

// Problem exposes the assembled DAE problem.
func (s *Simulation) Problem() *dae.Problem { return s.problem }

// StopTimes returns the mandatory stop times handed to the stepper.
func (s *Simulation) StopTimes() []float64 { return s.perts.StopTimes() }

// Initialized reports whether consistent initialization succeeded.
func (s *Simulation) Initialized() bool { return s.initialized }

// Result returns the stored trajectory after Run.
func (s *Simulation) Result() (*solvers.Trajectory, error) {
	if s.result == nil {
		return nil, ErrNoSolution
	}
	return s.result, nil
}

// Initialize solves for a self-consistent algebraic+differential state
// at the start of the span, replacing the flat-start guess on success.
// Failure is a warning condition: the simulation stays usable with the
// seeded guess and the returned ok is false.
func (s *Simulation) Initialize() (bool, error) {
	if s.reset {
		return false, ErrReset
	}
	t0 := s.opts.TSpan[0]
	res := func(out, x []float64) { s.eval.Eval(out, x, t0) }
	x, err := solvers.SolveAlgebraic(res, s.problem.X0, s.opts.Tol, s.opts.MaxNewton)
	if err != nil {
		s.initialized = false
		return false, nil
	}
	s.problem.X0 = x
	s.initialized = true
	// Commit the equilibrium inner variables so the first step seeds
	// from consistent values.
	scratch := make([]float64, s.layout.Total)
	s.eval.Advance(scratch, x, t0)
	return true, nil
}

// Run integrates the assembled problem across its span, honoring every
// perturbation stop time, and stores the trajectory.
func (s *Simulation) Run(ctx context.Context) (*solvers.Trajectory, error) {
	if s.reset {
		return nil, ErrReset
	}
	opts := solvers.Options{
		Dt:        s.opts.Dt,
		MinDt:     1e-12,
		Tol:       s.opts.Tol,
		MaxNewton: s.opts.MaxNewton,
	}
	commitBuf := make([]float64, s.layout.Total)
	commit := func(x []float64, t float64) {
		s.eval.Advance(commitBuf, x, t)
		if s.opts.OnStep != nil {
			s.opts.OnStep(x, t)
		}
	}
	tr, err := solvers.Integrate(ctx, s.problem, s.stepper, s.perts, opts, commit)
	if err != nil {
		return nil, err
	}
	s.result = tr
	return tr, nil
}

// SmallSignal linearizes the system at the given operating point
// (defaulting to the initial condition) and classifies stability. The
// analysis runs on a forked evaluator so the live integration buffers
// are never touched. It does not mutate the stored solution.
func (s *Simulation) SmallSignal(op dae.State) (*ssa.Report, error) {
	if s.reset {
		return nil, ErrReset
	}
	if op == nil {
		op = s.problem.X0
	}
	forked, err := s.eval.Fork()
	if err != nil {
		return nil, err
	}
	return ssa.Analyze(forked.Eval, op, s.opts.TSpan[0],
		s.problem.Differential, s.eval.HasReferenceSource())
}

// Reset makes the instance permanently unusable; further operations
// report ErrReset.
func (s *Simulation) Reset() { s.reset = true }

package sim_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/ahoven/gridyn/internal/config"
	"github.com/ahoven/gridyn/internal/grid"
	"github.com/ahoven/gridyn/internal/sim"
)

// twoLineCase is an SMIB variant with parallel lines so a single trip
// leaves the machine connected.
func twoLineCase(t *testing.T) *grid.Network {
	t.Helper()
	c := config.SMIB()
	c.Branches = []config.BranchConfig{
		{Name: "line_a", From: "bus1", To: "bus2", R: 0.01, X: 0.24},
		{Name: "line_b", From: "bus1", To: "bus2", R: 0.01, X: 0.24},
	}
	net, err := c.Network()
	if err != nil {
		t.Fatalf("Network: %v", err)
	}
	return net
}

func TestBuildSMIB(t *testing.T) {
	c := config.SMIB()
	net, err := c.Network()
	if err != nil {
		t.Fatalf("Network: %v", err)
	}
	s, err := sim.Build(net, nil, c.SimOptions())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	l := s.Layout()
	// 2 buses and the 4-state generator.
	if l.NBus != 2 || l.Total != 2*2+4 {
		t.Errorf("layout = (%d buses, %d total), want (2, 8)", l.NBus, l.Total)
	}

	p := s.Problem()
	if len(p.X0) != l.Total || len(p.Differential) != l.Total {
		t.Fatalf("problem vectors sized %d/%d, want %d", len(p.X0), len(p.Differential), l.Total)
	}

	// Flat start: bus voltages from the steady-state phasors, omega
	// seeded at synchronous speed.
	if math.Abs(p.X0[l.VrIndex(0)]-1.02) > 1e-12 {
		t.Errorf("vr(bus1) = %g, want 1.02", p.X0[l.VrIndex(0)])
	}
	d := l.Devices[0]
	if p.X0[d.Range.End-1] != 1.0 {
		t.Errorf("omega seed = %g, want 1.0", p.X0[d.Range.End-1])
	}
}

func TestBuildUnknownStepper(t *testing.T) {
	net := twoLineCase(t)
	opts := sim.DefaultOptions()
	opts.Stepper = "rk4"
	if _, err := sim.Build(net, nil, opts); err == nil {
		t.Fatal("expected error for unknown stepper")
	}
}

func TestBuildUnknownPerturbationType(t *testing.T) {
	net := twoLineCase(t)
	specs := []sim.PerturbationSpec{{Time: 1, Type: "earthquake", Target: "bus1"}}
	if _, err := sim.Build(net, specs, sim.DefaultOptions()); err == nil {
		t.Fatal("expected error for unknown perturbation type")
	}
}

func TestStopTimesExposed(t *testing.T) {
	net := twoLineCase(t)
	specs := []sim.PerturbationSpec{
		{Time: 5.0, Type: "branch_trip", Target: "line_a"},
		{Time: 1.0, Type: "reference_change", Target: "gen1", Field: "p", Value: 0.5},
	}
	s, err := sim.Build(net, specs, sim.DefaultOptions())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	stops := s.StopTimes()
	if len(stops) != 2 || stops[0] != 1.0 || stops[1] != 5.0 {
		t.Errorf("StopTimes = %v, want [1 5]", stops)
	}
}

func TestNoPerturbationsSentinel(t *testing.T) {
	net := twoLineCase(t)
	s, err := sim.Build(net, nil, sim.DefaultOptions())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if stops := s.StopTimes(); len(stops) != 1 || stops[0] != 0.0 {
		t.Errorf("StopTimes = %v, want the [0] sentinel", stops)
	}
}

func TestResultBeforeRun(t *testing.T) {
	net := twoLineCase(t)
	s, err := sim.Build(net, nil, sim.DefaultOptions())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := s.Result(); !errors.Is(err, sim.ErrNoSolution) {
		t.Fatalf("err = %v, want ErrNoSolution", err)
	}
}

func TestResetRefusesEverything(t *testing.T) {
	net := twoLineCase(t)
	s, err := sim.Build(net, nil, sim.DefaultOptions())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	s.Reset()

	if _, err := s.Initialize(); !errors.Is(err, sim.ErrReset) {
		t.Errorf("Initialize err = %v, want ErrReset", err)
	}
	if _, err := s.Run(context.Background()); !errors.Is(err, sim.ErrReset) {
		t.Errorf("Run err = %v, want ErrReset", err)
	}
	if _, err := s.SmallSignal(nil); !errors.Is(err, sim.ErrReset) {
		t.Errorf("SmallSignal err = %v, want ErrReset", err)
	}
}

func TestRunShortTransient(t *testing.T) {
	net := twoLineCase(t)
	opts := sim.DefaultOptions()
	opts.TSpan = [2]float64{0, 0.05}
	opts.Dt = 0.005
	opts.Tol = 1e-6
	opts.MaxNewton = 40

	s, err := sim.Build(net, nil, opts)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := s.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	tr, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(tr.Times) == 0 {
		t.Fatal("empty trajectory")
	}
	if last := tr.Times[len(tr.Times)-1]; math.Abs(last-0.05) > 1e-9 {
		t.Errorf("final time = %g, want 0.05", last)
	}
	for i := 1; i < len(tr.Times); i++ {
		if tr.Times[i] <= tr.Times[i-1] {
			t.Fatalf("times not monotonic at %d: %v", i, tr.Times)
		}
	}
	if !tr.Final().IsValid() {
		t.Error("final state carries NaN or Inf")
	}

	stored, err := s.Result()
	if err != nil || stored != tr {
		t.Errorf("Result() = %v, %v", stored, err)
	}
}

func TestRunFiresBranchTrip(t *testing.T) {
	net := twoLineCase(t)
	opts := sim.DefaultOptions()
	opts.TSpan = [2]float64{0, 0.05}
	opts.Dt = 0.005
	opts.Tol = 1e-6
	opts.MaxNewton = 40

	specs := []sim.PerturbationSpec{
		{Time: 0.02, Type: "branch_trip", Target: "line_a"},
	}
	s, err := sim.Build(net, specs, opts)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := s.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	tr, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if tr.EventsFired != 1 {
		t.Errorf("EventsFired = %d, want 1", tr.EventsFired)
	}
	if net.BranchByName("line_a").InService {
		t.Error("tripped branch still in service")
	}
}

func TestInitializeHonorsNewtonBudget(t *testing.T) {
	net := twoLineCase(t)
	opts := sim.DefaultOptions()
	opts.MaxNewton = 0

	s, err := sim.Build(net, nil, opts)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	ok, err := s.Initialize()
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if ok || s.Initialized() {
		t.Error("a zero-iteration budget cannot reach the equilibrium")
	}
}

func TestRunWithDynamicBranch(t *testing.T) {
	c := config.SMIB()
	c.Branches = []config.BranchConfig{
		{Name: "line_a", From: "bus1", To: "bus2", R: 0.01, X: 0.24},
	}
	c.DynamicBranches = []config.BranchConfig{
		{Name: "line_b", From: "bus1", To: "bus2", R: 0.01, X: 0.24},
	}
	net, err := c.Network()
	if err != nil {
		t.Fatalf("Network: %v", err)
	}

	opts := sim.DefaultOptions()
	opts.TSpan = [2]float64{0, 0.05}
	opts.Dt = 0.005
	opts.Tol = 1e-6
	opts.MaxNewton = 40

	s, err := sim.Build(net, nil, opts)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	l := s.Layout()
	// 2 buses, the 4-state generator and the 2 line current states.
	if l.Total != 2*2+4+2 {
		t.Fatalf("Total = %d, want 10", l.Total)
	}
	r, ok := l.RangeOf("line_b")
	if !ok {
		t.Fatal("dynamic branch range not registered")
	}
	flags := s.Problem().Differential
	if !flags[r.Start] || !flags[r.Start+1] {
		t.Error("line current states must be differential")
	}

	if _, err := s.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	tr, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if last := tr.Times[len(tr.Times)-1]; math.Abs(last-0.05) > 1e-9 {
		t.Errorf("final time = %g, want 0.05", last)
	}
	if !tr.Final().IsValid() {
		t.Error("final state carries NaN or Inf")
	}
}

func TestSmallSignalShape(t *testing.T) {
	net := twoLineCase(t)
	s, err := sim.Build(net, nil, sim.DefaultOptions())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := s.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	rep, err := s.SmallSignal(nil)
	if err != nil {
		t.Fatalf("SmallSignal: %v", err)
	}
	// 4 machine/shaft states reduce against the 4 bus voltage slots.
	if rep.NDiff != 4 || rep.NAlg != 4 {
		t.Errorf("partition = (%d, %d), want (4, 4)", rep.NDiff, rep.NAlg)
	}
	if len(rep.Eigenvalues) != 4 {
		t.Errorf("eigenvalues = %d, want 4", len(rep.Eigenvalues))
	}
	if rep.Advisory != "" {
		t.Errorf("unexpected advisory with an ideal source present: %q", rep.Advisory)
	}
}

func TestSmallSignalStableBenchmark(t *testing.T) {
	c := config.SMIB()
	net, err := c.Network()
	if err != nil {
		t.Fatalf("Network: %v", err)
	}
	s, err := sim.Build(net, nil, c.SimOptions())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	ok, err := s.Initialize()
	if err != nil || !ok {
		t.Fatalf("Initialize = (%v, %v), want a consistent equilibrium", ok, err)
	}

	rep, err := s.SmallSignal(nil)
	if err != nil {
		t.Fatalf("SmallSignal: %v", err)
	}
	if !rep.Stable {
		t.Errorf("equilibrium reported unstable: %v", rep.Eigenvalues)
	}
	oscillatory := false
	for _, ev := range rep.Eigenvalues {
		if real(ev) >= 0 {
			t.Errorf("eigenvalue %v has a non-negative real part", ev)
		}
		if math.Abs(imag(ev)) > 1 {
			oscillatory = true
		}
	}
	// The damped electromechanical swing pair dominates the response.
	if !oscillatory {
		t.Errorf("no oscillatory swing mode found: %v", rep.Eigenvalues)
	}
}

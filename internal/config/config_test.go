package config

import (
	"path/filepath"
	"testing"
)

func TestPresetsBuild(t *testing.T) {
	for name, mk := range Presets() {
		c := mk()
		net, err := c.Network()
		if err != nil {
			t.Errorf("preset %s: %v", name, err)
			continue
		}
		if len(net.Buses) == 0 || len(net.Injections) == 0 {
			t.Errorf("preset %s: empty network", name)
		}
	}
}

func TestSMIBShape(t *testing.T) {
	c := SMIB()
	net, err := c.Network()
	if err != nil {
		t.Fatalf("Network: %v", err)
	}
	if len(net.Buses) != 2 || len(net.Sources) != 1 || len(net.Injections) != 1 {
		t.Errorf("smib = %d buses, %d sources, %d injections",
			len(net.Buses), len(net.Sources), len(net.Injections))
	}
	if net.Injections[0].Name != "gen1" || len(net.Injections[0].StateNames) != 4 {
		t.Errorf("gen1 states = %v", net.Injections[0].StateNames)
	}
}

func TestDynamicBranchCarriesStaticTwin(t *testing.T) {
	c := SMIB()
	c.DynamicBranches = []BranchConfig{
		{Name: "tie", From: "bus1", To: "bus2", R: 0.02, X: 0.3},
	}
	net, err := c.Network()
	if err != nil {
		t.Fatalf("Network: %v", err)
	}
	if len(net.DynamicBranches) != 1 {
		t.Fatalf("dynamic branches = %d, want 1", len(net.DynamicBranches))
	}
	// The corridor also enters the static set, so the admittance
	// correction has a stamp to cancel.
	twin := net.BranchByName("tie")
	if twin == nil {
		t.Fatal("no static twin for the dynamic line")
	}
	if !twin.InService || twin.X != 0.3 || twin.R != 0.02 {
		t.Errorf("twin = %+v", twin)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "case.yaml")
	c := ThreeBusInverter()
	if err := Save(path, c); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Name != c.Name || len(got.Buses) != len(c.Buses) {
		t.Errorf("loaded %q with %d buses", got.Name, len(got.Buses))
	}
	if len(got.Inverters) != 1 || got.Inverters[0].DCSide.Params["vdc"] != 1.2 {
		t.Errorf("inverter spec lost in round trip: %+v", got.Inverters)
	}
	if got.Solver.Dt != 0.002 {
		t.Errorf("solver dt = %g, want 0.002", got.Solver.Dt)
	}

	if _, err := got.Network(); err != nil {
		t.Errorf("loaded case does not build: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDefaultsApplied(t *testing.T) {
	c := &Case{Name: "bare"}
	c.applyDefaults()
	if c.BaseMVA != 100 || c.Frequency != 60 {
		t.Errorf("bases = %g MVA, %g Hz", c.BaseMVA, c.Frequency)
	}
	if c.Solver.Dt != 0.005 || c.Solver.Span != [2]float64{0, 5} {
		t.Errorf("solver defaults = %+v", c.Solver)
	}
	if c.Solver.Tol != 1e-8 || c.Solver.MaxNewton != 20 {
		t.Errorf("newton defaults = %+v", c.Solver)
	}
}

func TestSimOptionsMapping(t *testing.T) {
	c := SMIB()
	opts := c.SimOptions()
	if opts.Stepper != "trapezoidal" || opts.Dt != 0.005 {
		t.Errorf("opts = %+v", opts)
	}
	if opts.TSpan != [2]float64{0, 5} {
		t.Errorf("span = %v", opts.TSpan)
	}
}

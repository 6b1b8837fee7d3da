package network

import (
	"math/cmplx"
	"testing"

	"github.com/ahoven/gridyn/internal/grid"
)

func twoBus(branches []*grid.Branch, dyn []*grid.DynamicBranch) *grid.Network {
	return &grid.Network{
		Name: "test", BaseMVA: 100, Frequency: 60,
		Buses: []*grid.Bus{
			{Name: "bus1"},
			{Name: "bus2"},
		},
		Branches:        branches,
		DynamicBranches: dyn,
	}
}

func cEq(t *testing.T, got, want complex128, msg string) {
	t.Helper()
	if cmplx.Abs(got-want) > 1e-12 {
		t.Errorf("%s: got %v, want %v", msg, got, want)
	}
}

func TestBuildStampsSeriesBranch(t *testing.T) {
	br := &grid.Branch{Name: "line", From: "bus1", To: "bus2", R: 0.0, X: 0.5, InService: true}
	y, err := Build(twoBus([]*grid.Branch{br}, nil))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	ys := complex(1, 0) / complex(0, 0.5) // -2j
	cEq(t, y.At(0, 0), ys, "Y11")
	cEq(t, y.At(1, 1), ys, "Y22")
	cEq(t, y.At(0, 1), -ys, "Y12")
	cEq(t, y.At(1, 0), -ys, "Y21")
}

func TestBuildSplitsShuntEvenly(t *testing.T) {
	br := &grid.Branch{Name: "line", From: "bus1", To: "bus2", R: 0.01, X: 0.1, B: 0.04, InService: true}
	y, err := Build(twoBus([]*grid.Branch{br}, nil))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	ys := br.Admittance()
	cEq(t, y.At(0, 0), ys+complex(0, 0.02), "Y11 carries half the shunt")
	cEq(t, y.At(0, 1), -ys, "Y12 has no shunt term")
}

func TestOutOfServiceBranchNotStamped(t *testing.T) {
	br := &grid.Branch{Name: "line", From: "bus1", To: "bus2", R: 0.01, X: 0.1, InService: false}
	y, err := Build(twoBus([]*grid.Branch{br}, nil))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	cEq(t, y.At(0, 0), 0, "tripped branch must not contribute")
	cEq(t, y.At(0, 1), 0, "tripped branch must not contribute")
}

func TestDynamicBranchSubtracted(t *testing.T) {
	// The same line declared statically and dynamically cancels: its
	// current is carried by explicit states instead.
	br := grid.Branch{Name: "line", From: "bus1", To: "bus2", R: 0.01, X: 0.1, InService: true}
	y, err := Build(twoBus(
		[]*grid.Branch{{Name: "line_s", From: "bus1", To: "bus2", R: 0.01, X: 0.1, InService: true}},
		[]*grid.DynamicBranch{{Branch: br}},
	))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	cEq(t, y.At(0, 0), 0, "Y11")
	cEq(t, y.At(0, 1), 0, "Y12")
}

func TestDynamicBranchWithoutStaticCounterpartRejected(t *testing.T) {
	br := grid.Branch{Name: "line", From: "bus1", To: "bus2", R: 0.01, X: 0.1, InService: true}
	_, err := Build(twoBus(nil, []*grid.DynamicBranch{{Branch: br}}))
	if err == nil {
		t.Fatal("expected error for a dynamic branch with nothing to correct")
	}
}

func TestDynamicBranchSkippedWhenCorridorOut(t *testing.T) {
	// A tripped corridor contributes nothing either way.
	br := grid.Branch{Name: "line", From: "bus1", To: "bus2", R: 0.01, X: 0.1, InService: true}
	y, err := Build(twoBus(
		[]*grid.Branch{{Name: "line_s", From: "bus1", To: "bus2", R: 0.01, X: 0.1, InService: false}},
		[]*grid.DynamicBranch{{Branch: br}},
	))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	cEq(t, y.At(0, 0), 0, "Y11")
	cEq(t, y.At(0, 1), 0, "Y12")
}

func TestNoBranchesZeroMatrix(t *testing.T) {
	y, err := Build(twoBus(nil, nil))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if y.N() != 2 {
		t.Fatalf("N = %d, want 2", y.N())
	}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			cEq(t, y.At(i, j), 0, "empty network entry")
		}
	}
}

func TestMulVoltages(t *testing.T) {
	br := &grid.Branch{Name: "line", From: "bus1", To: "bus2", R: 0.0, X: 1.0, InService: true}
	y, err := Build(twoBus([]*grid.Branch{br}, nil))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	// V1 = 1, V2 = 0: the line drives I1 = -j, I2 = +j.
	vr := []float64{1, 0}
	vi := []float64{0, 0}
	ir := make([]float64, 2)
	ii := make([]float64, 2)
	y.MulVoltages(vr, vi, ir, ii)

	if ir[0] != 0 || ii[0] != -1 {
		t.Errorf("I1 = %g%+gi, want -1i", ir[0], ii[0])
	}
	if ir[1] != 0 || ii[1] != 1 {
		t.Errorf("I2 = %g%+gi, want +1i", ir[1], ii[1])
	}
}

func TestUnknownBusRejected(t *testing.T) {
	br := &grid.Branch{Name: "line", From: "bus1", To: "nowhere", R: 0.01, X: 0.1, InService: true}
	if _, err := Build(twoBus([]*grid.Branch{br}, nil)); err == nil {
		t.Fatal("expected error for branch to unknown bus")
	}
}

package grid

import (
	"math/cmplx"
	"testing"
)

func TestBranchAdmittance(t *testing.T) {
	b := &Branch{R: 0, X: 0.5}
	if got, want := b.Admittance(), complex(0, -2); cmplx.Abs(got-want) > 1e-12 {
		t.Errorf("Admittance = %v, want %v", got, want)
	}
}

func TestOmegaBase(t *testing.T) {
	n := &Network{Frequency: 60}
	if got := n.OmegaBase(); got < 376.9 || got > 377.0 {
		t.Errorf("OmegaBase = %g, want ~376.99", got)
	}
}

func TestValidate(t *testing.T) {
	n := &Network{
		Name:  "t",
		Buses: []*Bus{{Name: "bus1"}, {Name: "bus2"}},
		Branches: []*Branch{
			{Name: "line", From: "bus1", To: "bus2", X: 0.1, InService: true},
		},
	}
	if err := n.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	n.Branches[0].To = "ghost"
	if err := n.Validate(); err == nil {
		t.Error("expected error for branch to unknown bus")
	}

	dup := &Network{Buses: []*Bus{{Name: "a"}, {Name: "a"}}}
	if err := dup.Validate(); err == nil {
		t.Error("expected error for duplicate bus name")
	}

	if err := (&Network{Name: "empty"}).Validate(); err == nil {
		t.Error("expected error for empty network")
	}
}

func TestCategoryChains(t *testing.T) {
	g := GeneratorCategory.Chain()
	if len(g) != 5 || g[0] != KindTurbineGov || g[4] != KindShaft {
		t.Errorf("generator chain = %v", g)
	}
	i := InverterCategory.Chain()
	if len(i) != 6 || i[0] != KindDCSide || i[5] != KindFilter {
		t.Errorf("inverter chain = %v", i)
	}
}

func TestBaseRatio(t *testing.T) {
	d := &DynamicInjection{BasePower: 50}
	if got := d.BaseRatio(100); got != 0.5 {
		t.Errorf("BaseRatio = %g, want 0.5", got)
	}
	if got := d.BaseRatio(0); got != 1 {
		t.Errorf("BaseRatio(0) = %g, want 1", got)
	}
}

func TestGeneratorUnknownLeaf(t *testing.T) {
	_, err := NewGenerator(GeneratorSpec{
		Name: "g", Bus: "b",
		Governor: Model("tg_nonexistent", nil),
		PSS:      Model("pss_fixed", nil),
		AVR:      Model("avr_fixed", nil),
		Machine:  Model("machine_1d1q", nil),
		Shaft:    Model("shaft_single", nil),
	})
	if err == nil {
		t.Fatal("expected error for unknown leaf model")
	}
}

func TestDefaultRefs(t *testing.T) {
	d, err := NewGenerator(GeneratorSpec{
		Name: "g", Bus: "b", BaseMVA: 100,
		Governor: Model("tg_fixed", nil),
		PSS:      Model("pss_fixed", nil),
		AVR:      Model("avr_fixed", nil),
		Machine:  Model("machine_1d1q", nil),
		Shaft:    Model("shaft_single", nil),
	})
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	if d.VRef != 1.0 || d.OmegaRef != 1.0 {
		t.Errorf("refs = (%g, %g), want (1, 1)", d.VRef, d.OmegaRef)
	}
	if !d.Connected {
		t.Error("new device must be connected")
	}
}

package grid

import (
	"fmt"
	"math"
)

// Bus is a network node with a complex voltage phasor.
type Bus struct {
	Name   string  `yaml:"name"`
	BaseKV float64 `yaml:"base_kv"`
	Vm     float64 `yaml:"vm"` // steady-state magnitude guess, pu
	Va     float64 `yaml:"va"` // steady-state angle, rad

	// ControlledVoltage marks the bus voltage pair as differential
	// rather than algebraic (internal converter buses, for example).
	ControlledVoltage bool `yaml:"controlled_voltage"`
}

// Branch is a static series RX element with a total shunt susceptance B,
// split evenly between its endpoints.
type Branch struct {
	Name      string  `yaml:"name"`
	From      string  `yaml:"from"`
	To        string  `yaml:"to"`
	R         float64 `yaml:"r"`
	X         float64 `yaml:"x"`
	B         float64 `yaml:"b"`
	InService bool    `yaml:"in_service"`
}

// Admittance returns the series admittance of the branch.
func (b *Branch) Admittance() complex128 {
	z := complex(b.R, b.X)
	return 1 / z
}

// DynamicBranch is a series RL branch whose current is a pair of
// differential states instead of an algebraic consequence of the
// terminal voltages. Its admittance is removed from the static Ybus.
type DynamicBranch struct {
	Branch `yaml:",inline"`
}

// Load is a constant-impedance load. The equivalent admittance is
// computed from P, Q and the bus steady-state voltage at build time.
type Load struct {
	Name string  `yaml:"name"`
	Bus  string  `yaml:"bus"`
	P    float64 `yaml:"p"` // consumed active power, system-base pu
	Q    float64 `yaml:"q"` // consumed reactive power, system-base pu
}

// Source is an ideal voltage source behind an impedance (Thevenin
// equivalent, infinite bus). Its presence anchors the network angle
// reference for small-signal interpretation.
type Source struct {
	Name string  `yaml:"name"`
	Bus  string  `yaml:"bus"`
	Vm   float64 `yaml:"vm"`
	Va   float64 `yaml:"va"`
	R    float64 `yaml:"r"`
	X    float64 `yaml:"x"`
}

// Network is the read-mostly domain snapshot the simulation core is
// built from. Perturbation effects mutate it in place; the next
// residual evaluation observes the change.
type Network struct {
	Name      string
	BaseMVA   float64
	Frequency float64 // Hz

	Buses           []*Bus
	Branches        []*Branch
	DynamicBranches []*DynamicBranch
	Loads           []*Load
	Sources         []*Source
	Injections      []*DynamicInjection
}

// OmegaBase returns the base angular frequency in rad/s.
func (n *Network) OmegaBase() float64 {
	return 2 * math.Pi * n.Frequency
}

// Bus returns the named bus or nil.
func (n *Network) Bus(name string) *Bus {
	for _, b := range n.Buses {
		if b.Name == name {
			return b
		}
	}
	return nil
}

// BranchByName returns the named static branch or nil.
func (n *Network) BranchByName(name string) *Branch {
	for _, b := range n.Branches {
		if b.Name == name {
			return b
		}
	}
	return nil
}

// InjectionByName returns the named dynamic injection or nil.
func (n *Network) InjectionByName(name string) *DynamicInjection {
	for _, d := range n.Injections {
		if d.Name == name {
			return d
		}
	}
	return nil
}

// Validate checks referential integrity of the snapshot: every branch
// endpoint and device bus must name an existing bus.
func (n *Network) Validate() error {
	if len(n.Buses) == 0 {
		return fmt.Errorf("grid: network %q has no buses", n.Name)
	}
	seen := make(map[string]bool, len(n.Buses))
	for _, b := range n.Buses {
		if seen[b.Name] {
			return fmt.Errorf("grid: duplicate bus %q", b.Name)
		}
		seen[b.Name] = true
	}
	check := func(kind, bus string) error {
		if !seen[bus] {
			return fmt.Errorf("grid: %s references unknown bus %q", kind, bus)
		}
		return nil
	}
	for _, br := range n.Branches {
		if err := check("branch "+br.Name, br.From); err != nil {
			return err
		}
		if err := check("branch "+br.Name, br.To); err != nil {
			return err
		}
	}
	for _, br := range n.DynamicBranches {
		if err := check("dynamic branch "+br.Name, br.From); err != nil {
			return err
		}
		if err := check("dynamic branch "+br.Name, br.To); err != nil {
			return err
		}
	}
	for _, l := range n.Loads {
		if err := check("load "+l.Name, l.Bus); err != nil {
			return err
		}
	}
	for _, s := range n.Sources {
		if err := check("source "+s.Name, s.Bus); err != nil {
			return err
		}
	}
	for _, d := range n.Injections {
		if err := check("injection "+d.Name, d.Bus); err != nil {
			return err
		}
	}
	return nil
}

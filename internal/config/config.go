// Package config loads and saves simulation cases: the network, its
// dynamic devices, the scheduled perturbations, and solver settings.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ahoven/gridyn/internal/grid"
	"github.com/ahoven/gridyn/internal/sim"
)

// BranchConfig mirrors grid.Branch with an out-of-service flag so a
// case file only mentions the exceptional state.
type BranchConfig struct {
	Name         string  `yaml:"name"`
	From         string  `yaml:"from"`
	To           string  `yaml:"to"`
	R            float64 `yaml:"r"`
	X            float64 `yaml:"x"`
	B            float64 `yaml:"b"`
	OutOfService bool    `yaml:"out_of_service"`
}

// SolverConfig selects the stepper and its settings.
type SolverConfig struct {
	Method    string     `yaml:"method"`
	Dt        float64    `yaml:"dt"`
	Span      [2]float64 `yaml:"span"`
	Tol       float64    `yaml:"tol"`
	MaxNewton int        `yaml:"max_newton"`
}

// Case is one complete simulation description.
type Case struct {
	Name      string  `yaml:"name"`
	BaseMVA   float64 `yaml:"base_mva"`
	Frequency float64 `yaml:"frequency"`

	Buses           []grid.Bus             `yaml:"buses"`
	Branches        []BranchConfig         `yaml:"branches"`
	DynamicBranches []BranchConfig         `yaml:"dynamic_branches"`
	Loads           []grid.Load            `yaml:"loads"`
	Sources         []grid.Source          `yaml:"sources"`
	Generators      []grid.GeneratorSpec   `yaml:"generators"`
	Inverters       []grid.InverterSpec    `yaml:"inverters"`
	Perturbations   []sim.PerturbationSpec `yaml:"perturbations"`
	Solver          SolverConfig           `yaml:"solver"`
}

// Load reads a case file.
func Load(path string) (*Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := &Case{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	c.applyDefaults()
	return c, nil
}

// Save writes a case file.
func Save(path string, c *Case) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Case) applyDefaults() {
	if c.BaseMVA == 0 {
		c.BaseMVA = 100
	}
	if c.Frequency == 0 {
		c.Frequency = 60
	}
	if c.Solver.Dt == 0 {
		c.Solver.Dt = 0.005
	}
	if c.Solver.Span == [2]float64{} {
		c.Solver.Span = [2]float64{0, 5}
	}
	if c.Solver.Tol == 0 {
		c.Solver.Tol = 1e-8
	}
	if c.Solver.MaxNewton == 0 {
		c.Solver.MaxNewton = 20
	}
}

// Network assembles the domain snapshot from the case.
func (c *Case) Network() (*grid.Network, error) {
	net := &grid.Network{
		Name:      c.Name,
		BaseMVA:   c.BaseMVA,
		Frequency: c.Frequency,
	}
	for i := range c.Buses {
		b := c.Buses[i]
		net.Buses = append(net.Buses, &b)
	}
	for _, bc := range c.Branches {
		net.Branches = append(net.Branches, &grid.Branch{
			Name: bc.Name, From: bc.From, To: bc.To,
			R: bc.R, X: bc.X, B: bc.B,
			InService: !bc.OutOfService,
		})
	}
	for _, bc := range c.DynamicBranches {
		br := grid.Branch{
			Name: bc.Name, From: bc.From, To: bc.To,
			R: bc.R, X: bc.X, B: bc.B,
			InService: !bc.OutOfService,
		}
		// A case file declares a dynamic line once. The static stamp
		// its admittance correction cancels is established here.
		net.Branches = append(net.Branches, &br)
		net.DynamicBranches = append(net.DynamicBranches, &grid.DynamicBranch{Branch: br})
	}
	for i := range c.Loads {
		l := c.Loads[i]
		net.Loads = append(net.Loads, &l)
	}
	for i := range c.Sources {
		s := c.Sources[i]
		net.Sources = append(net.Sources, &s)
	}
	for _, gs := range c.Generators {
		d, err := grid.NewGenerator(gs)
		if err != nil {
			return nil, err
		}
		net.Injections = append(net.Injections, d)
	}
	for _, is := range c.Inverters {
		d, err := grid.NewInverter(is)
		if err != nil {
			return nil, err
		}
		net.Injections = append(net.Injections, d)
	}
	if err := net.Validate(); err != nil {
		return nil, err
	}
	return net, nil
}

// SimOptions converts the solver section into build options.
func (c *Case) SimOptions() sim.Options {
	return sim.Options{
		TSpan:     c.Solver.Span,
		Dt:        c.Solver.Dt,
		Tol:       c.Solver.Tol,
		MaxNewton: c.Solver.MaxNewton,
		Stepper:   c.Solver.Method,
	}
}

// Package wiring builds the static indexing scheme that composes
// independently defined device sub-models into one flat state vector.
//
// All name-based resolution happens here, once, at build time. The
// hot-path residual evaluator only ever touches the plain integer
// index slices produced by this package.
package wiring

import (
	"fmt"

	"github.com/ahoven/gridyn/internal/grid"
)

// Inner-variable vector sizes per device category. Generators and
// inverters have different coupling surfaces between their sub-models.
const (
	InnerSizeGenerator = 8
	InnerSizeInverter  = 14
)

// Range is a contiguous half-open slice [Start,End) of the global
// state vector.
type Range struct {
	Start, End int
}

// Len returns the number of slots in the range.
func (r Range) Len() int { return r.End - r.Start }

// Refs are the control-reference snapshots taken from the device at
// build time: voltage, frequency, active and reactive power setpoints.
type Refs struct {
	V, Omega, P, Q float64
}

// Device is the wired form of one dynamic injection: its global range,
// per-sub-component local state indices and port indices, the
// inner-variable buffers, and the control-reference snapshot.
type Device struct {
	Name     string
	Bus      int // bus index into the network ordering
	Category grid.Category
	Range    Range

	localIndex map[grid.ComponentKind][]int
	portIndex  map[grid.ComponentKind][]int

	// Inner holds the inner-variable snapshot from the last committed
	// evaluation. Evaluators work on their own scratch copies and
	// write back through Commit on accepted steps only.
	Inner []float64

	Refs Refs
}

// LocalIndex returns the device-local state indices of a sub-component.
// Looking up a kind that was never registered is a programming error
// and panics.
func (d *Device) LocalIndex(kind grid.ComponentKind) []int {
	ix, ok := d.localIndex[kind]
	if !ok {
		panic(fmt.Sprintf("wiring: device %q has no %s sub-component", d.Name, kind))
	}
	return ix
}

// PortIndex returns the device-local indices of a sub-component's
// resolved input ports, in declaration order. Looking up an
// unregistered kind panics.
func (d *Device) PortIndex(kind grid.ComponentKind) []int {
	ix, ok := d.portIndex[kind]
	if !ok {
		panic(fmt.Sprintf("wiring: device %q has no %s sub-component", d.Name, kind))
	}
	return ix
}

// Commit deep-copies freshly computed inner variables over the
// committed snapshot, so the next evaluation seeds from this one's
// results. scratch never aliases Inner.
func (d *Device) Commit(scratch []float64) {
	copy(d.Inner, scratch)
}

// BranchWiring is the wired form of one dynamic branch: its two bus
// indices and its two-state global range (current real, imaginary).
type BranchWiring struct {
	Name     string
	From, To int
	Range    Range
}

// Layout is the immutable global indexing scheme. Bus algebraic states
// (voltage real then imaginary parts) occupy the leading 2*NBus slots;
// device ranges follow in case order and partition the remainder.
type Layout struct {
	NBus     int
	Total    int
	Devices  []*Device
	Branches []*BranchWiring

	ranges map[string]Range
}

// RangeOf returns the global range registered under a device or
// dynamic branch name.
func (l *Layout) RangeOf(name string) (Range, bool) {
	r, ok := l.ranges[name]
	return r, ok
}

// VrIndex returns the global slot of a bus voltage real part.
func (l *Layout) VrIndex(bus int) int { return bus }

// ViIndex returns the global slot of a bus voltage imaginary part.
func (l *Layout) ViIndex(bus int) int { return l.NBus + bus }

// StateNames returns a name per global slot, for trajectory headers.
func (l *Layout) StateNames(net *grid.Network) []string {
	names := make([]string, l.Total)
	for i, b := range net.Buses {
		names[i] = b.Name + ".vr"
		names[l.NBus+i] = b.Name + ".vi"
	}
	for _, d := range net.Injections {
		r := l.ranges[d.Name]
		for i, s := range d.StateNames {
			names[r.Start+i] = d.Name + "." + s
		}
	}
	for _, bw := range l.Branches {
		names[bw.Range.Start] = bw.Name + ".il_r"
		names[bw.Range.Start+1] = bw.Name + ".il_i"
	}
	return names
}

// DifferentialFlags returns the per-slot differential (true) versus
// algebraic (false) marking. Bus voltage slots are algebraic unless
// the bus is flagged as a controlled-voltage bus.
func (l *Layout) DifferentialFlags(net *grid.Network) []bool {
	flags := make([]bool, l.Total)
	for i := 2 * l.NBus; i < l.Total; i++ {
		flags[i] = true
	}
	for i, b := range net.Buses {
		if b.ControlledVoltage {
			flags[l.VrIndex(i)] = true
			flags[l.ViIndex(i)] = true
		}
	}
	return flags
}

// Build wires every dynamic device and dynamic branch of the network
// into one global layout. It fails on any indexing integrity violation
// (unresolved or double-claimed states, unknown buses).
func Build(net *grid.Network) (*Layout, error) {
	busIndex := make(map[string]int, len(net.Buses))
	for i, b := range net.Buses {
		busIndex[b.Name] = i
	}

	l := &Layout{
		NBus:   len(net.Buses),
		ranges: make(map[string]Range),
	}
	next := 2 * l.NBus

	for _, inj := range net.Injections {
		d, err := wireDevice(inj, busIndex, next)
		if err != nil {
			return nil, err
		}
		next = d.Range.End
		l.Devices = append(l.Devices, d)
		l.ranges[inj.Name] = d.Range
	}

	for _, br := range net.DynamicBranches {
		from, ok := busIndex[br.From]
		if !ok {
			return nil, fmt.Errorf("%w: branch %q from %q", ErrUnknownBus, br.Name, br.From)
		}
		to, ok := busIndex[br.To]
		if !ok {
			return nil, fmt.Errorf("%w: branch %q to %q", ErrUnknownBus, br.Name, br.To)
		}
		r := Range{Start: next, End: next + 2}
		next = r.End
		l.Branches = append(l.Branches, &BranchWiring{
			Name: br.Name, From: from, To: to, Range: r,
		})
		l.ranges[br.Name] = r
	}

	l.Total = next
	return l, nil
}

func wireDevice(inj *grid.DynamicInjection, busIndex map[string]int, start int) (*Device, error) {
	bus, ok := busIndex[inj.Bus]
	if !ok {
		return nil, fmt.Errorf("%w: device %q bus %q", ErrUnknownBus, inj.Name, inj.Bus)
	}

	statePos := make(map[string]int, len(inj.StateNames))
	for i, s := range inj.StateNames {
		statePos[s] = i
	}

	d := &Device{
		Name:       inj.Name,
		Bus:        bus,
		Category:   inj.Category,
		Range:      Range{Start: start, End: start + len(inj.StateNames)},
		localIndex: make(map[grid.ComponentKind][]int, len(inj.Components)),
		portIndex:  make(map[grid.ComponentKind][]int, len(inj.Components)),
		Refs: Refs{
			V:     inj.VRef,
			Omega: inj.OmegaRef,
			P:     inj.P,
			Q:     inj.Q,
		},
	}

	claimed := make([]string, len(inj.StateNames)) // claiming model per slot
	for ci := range inj.Components {
		c := &inj.Components[ci]

		local := make([]int, 0, len(c.States))
		for _, name := range c.States {
			pos, ok := statePos[name]
			if !ok {
				return nil, fmt.Errorf("%w: device %q %s state %q",
					ErrUnresolvedState, inj.Name, c.Model, name)
			}
			if prev := claimed[pos]; prev != "" {
				return nil, fmt.Errorf("%w: device %q state %q claimed by %s and %s",
					ErrDuplicateClaim, inj.Name, name, prev, c.Model)
			}
			claimed[pos] = c.Model
			local = append(local, pos)
		}
		d.localIndex[c.Kind] = local

		// Ports are optional: a sub-model may declare more potential
		// inputs than this composition wires. Unmatched names are
		// skipped; declaration order is preserved for the matches.
		ports := make([]int, 0, len(c.Ports))
		for _, name := range c.Ports {
			if pos, ok := statePos[name]; ok {
				ports = append(ports, pos)
			}
		}
		d.portIndex[c.Kind] = ports
	}

	for pos, by := range claimed {
		if by == "" {
			return nil, fmt.Errorf("%w: device %q state %q",
				ErrUnclaimedState, inj.Name, inj.StateNames[pos])
		}
	}

	size := InnerSizeGenerator
	if inj.Category == grid.InverterCategory {
		size = InnerSizeInverter
	}
	d.Inner = make([]float64, size)

	return d, nil
}

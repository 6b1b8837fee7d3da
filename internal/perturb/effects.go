package perturb

import (
	"fmt"

	"github.com/ahoven/gridyn/internal/grid"
	"github.com/ahoven/gridyn/internal/wiring"
)

// Invalidator is notified when an effect changes something the
// residual evaluator derives statically (topology, load admittances).
// A failed invalidation aborts the effect.
type Invalidator interface {
	MarkDirty() error
}

// BranchTrip takes a static branch out of service at the trigger time.
func BranchTrip(net *grid.Network, inv Invalidator, branch string, t float64) Perturbation {
	return Perturbation{
		Name: fmt.Sprintf("trip %s", branch),
		Time: t,
		Apply: func() error {
			br := net.BranchByName(branch)
			if br == nil {
				return fmt.Errorf("unknown branch %q", branch)
			}
			br.InService = false
			return inv.MarkDirty()
		},
	}
}

// ReferenceChange steps a device control reference. The control
// references live on the wired device (they are build-time snapshots,
// not links back into the domain model), so the effect mutates the
// layout. Which reference is named by field: "p", "q", "v" or "omega".
func ReferenceChange(layout *wiring.Layout, dev, field string, value, t float64) Perturbation {
	return Perturbation{
		Name: fmt.Sprintf("%s %s_ref=%g", dev, field, value),
		Time: t,
		Apply: func() error {
			var target *wiring.Device
			for _, d := range layout.Devices {
				if d.Name == dev {
					target = d
					break
				}
			}
			if target == nil {
				return fmt.Errorf("unknown device %q", dev)
			}
			switch field {
			case "p":
				target.Refs.P = value
			case "q":
				target.Refs.Q = value
			case "v":
				target.Refs.V = value
			case "omega":
				target.Refs.Omega = value
			default:
				return fmt.Errorf("unknown reference field %q", field)
			}
			return nil
		},
	}
}

// SourceVoltageChange steps the internal voltage magnitude of an
// ideal source.
func SourceVoltageChange(net *grid.Network, inv Invalidator, source string, vm, t float64) Perturbation {
	return Perturbation{
		Name: fmt.Sprintf("%s vm=%g", source, vm),
		Time: t,
		Apply: func() error {
			for _, s := range net.Sources {
				if s.Name == source {
					s.Vm = vm
					return inv.MarkDirty()
				}
			}
			return fmt.Errorf("unknown source %q", source)
		},
	}
}

package grid

// Category selects the fixed sub-model chain of a dynamic injection.
type Category int

const (
	GeneratorCategory Category = iota
	InverterCategory
)

func (c Category) String() string {
	switch c {
	case GeneratorCategory:
		return "generator"
	case InverterCategory:
		return "inverter"
	default:
		return "unknown"
	}
}

// ComponentKind identifies one slot of a device's sub-model chain.
// The set is closed; evaluation order is fixed per category.
type ComponentKind int

const (
	KindTurbineGov ComponentKind = iota
	KindPSS
	KindAVR
	KindMachine
	KindShaft
	KindDCSide
	KindFreqEstimator
	KindOuterControl
	KindInnerControl
	KindConverter
	KindFilter
)

var kindNames = map[ComponentKind]string{
	KindTurbineGov:    "turbine_gov",
	KindPSS:           "pss",
	KindAVR:           "avr",
	KindMachine:       "machine",
	KindShaft:         "shaft",
	KindDCSide:        "dc_side",
	KindFreqEstimator: "freq_estimator",
	KindOuterControl:  "outer_control",
	KindInnerControl:  "inner_control",
	KindConverter:     "converter",
	KindFilter:        "filter",
}

func (k ComponentKind) String() string { return kindNames[k] }

// GeneratorChain is the mandatory evaluation order for generator
// devices: torque and control quantities flow downstream through the
// inner-variable buffer in exactly this order.
var GeneratorChain = []ComponentKind{
	KindTurbineGov, KindPSS, KindAVR, KindMachine, KindShaft,
}

// InverterChain is the mandatory evaluation order for inverter devices.
var InverterChain = []ComponentKind{
	KindDCSide, KindFreqEstimator, KindOuterControl,
	KindInnerControl, KindConverter, KindFilter,
}

// Chain returns the evaluation order for a category.
func (c Category) Chain() []ComponentKind {
	if c == InverterCategory {
		return InverterChain
	}
	return GeneratorChain
}

// Component declares one sub-model of a dynamic injection: its leaf
// model name, its own named states in order, the port names it reads
// from sibling components, and its numeric parameters.
type Component struct {
	Kind   ComponentKind
	Model  string
	States []string
	Ports  []string
	Params map[string]float64
}

// Param returns a named parameter, or def when absent.
func (c *Component) Param(name string, def float64) float64 {
	if v, ok := c.Params[name]; ok {
		return v
	}
	return def
}

// DynamicInjection is a composed dynamic device (generator or
// inverter). StateNames is the device's full ordered local state list;
// every component's states must resolve into it by exact name.
type DynamicInjection struct {
	Name       string
	Bus        string
	Category   Category
	BasePower  float64 // device MVA base
	P, Q       float64 // operating-point injection, system-base pu
	VRef       float64 // voltage setpoint, pu
	OmegaRef   float64 // frequency setpoint, pu
	Components []Component
	StateNames []string
	Connected  bool
}

// Component returns the sub-model declaration of the given kind, or
// nil when the chain slot is absent.
func (d *DynamicInjection) Component(kind ComponentKind) *Component {
	for i := range d.Components {
		if d.Components[i].Kind == kind {
			return &d.Components[i]
		}
	}
	return nil
}

// BaseRatio converts device-base quantities to the system base.
func (d *DynamicInjection) BaseRatio(systemMVA float64) float64 {
	if systemMVA == 0 {
		return 1
	}
	return d.BasePower / systemMVA
}

// declareStates rebuilds the device state-name list as the
// concatenation of its component states in chain order.
func (d *DynamicInjection) declareStates() {
	d.StateNames = d.StateNames[:0]
	for _, c := range d.Components {
		d.StateNames = append(d.StateNames, c.States...)
	}
}

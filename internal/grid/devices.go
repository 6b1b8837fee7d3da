package grid

import "fmt"

// ModelSpec selects a leaf sub-model by name plus its parameters.
type ModelSpec struct {
	Model  string             `yaml:"model"`
	Params map[string]float64 `yaml:"params"`
}

// Model is a ModelSpec literal helper for building cases in code.
func Model(name string, params map[string]float64) ModelSpec {
	return ModelSpec{Model: name, Params: params}
}

// GeneratorSpec groups the leaf choices of a synchronous generator.
type GeneratorSpec struct {
	Name      string    `yaml:"name"`
	Bus       string    `yaml:"bus"`
	BaseMVA   float64   `yaml:"base_mva"`
	P         float64   `yaml:"p"`
	Q         float64   `yaml:"q"`
	VRef      float64   `yaml:"v_ref"`
	OmegaRef  float64   `yaml:"omega_ref"`
	Governor  ModelSpec `yaml:"governor"`
	PSS       ModelSpec `yaml:"pss"`
	AVR       ModelSpec `yaml:"avr"`
	Machine   ModelSpec `yaml:"machine"`
	Shaft     ModelSpec `yaml:"shaft"`
}

// InverterSpec groups the leaf choices of a converter-interfaced device.
type InverterSpec struct {
	Name      string    `yaml:"name"`
	Bus       string    `yaml:"bus"`
	BaseMVA   float64   `yaml:"base_mva"`
	P         float64   `yaml:"p"`
	Q         float64   `yaml:"q"`
	VRef      float64   `yaml:"v_ref"`
	OmegaRef  float64   `yaml:"omega_ref"`
	DCSide    ModelSpec `yaml:"dc_side"`
	FreqEst   ModelSpec `yaml:"freq_estimator"`
	Outer     ModelSpec `yaml:"outer_control"`
	Inner     ModelSpec `yaml:"inner_control"`
	Converter ModelSpec `yaml:"converter"`
	Filter    ModelSpec `yaml:"filter"`
}

// leaf state and port declarations, keyed by model name. The builder
// fails on unknown models; ports that resolve to no device state are
// skipped at wiring time, so a leaf may declare more inputs than a
// given composition provides.
var leafStates = map[string][]string{
	"tg_fixed":      {},
	"tg_type_i":     {"x_g1", "x_g2", "x_g3"},
	"pss_fixed":     {},
	"avr_fixed":     {},
	"avr_type_i":    {"vf", "vr1", "vr2", "vm"},
	"machine_1d1q":  {"eq_p", "ed_p"},
	"shaft_single":  {"delta", "omega"},
	"dc_fixed":      {},
	"kaura_pll":     {"vq_pll", "eps_pll", "theta_pll"},
	"outer_droop":   {"theta_olc", "p_flt", "q_flt"},
	"inner_current": {"xi_d", "xi_q", "gamma_d", "gamma_q"},
	"converter_avg": {},
	"filter_lcl":    {"icv_d", "icv_q", "vo_d", "vo_q", "ig_d", "ig_q"},
}

var leafPorts = map[string][]string{
	"tg_fixed":      {},
	"tg_type_i":     {"omega"},
	"pss_fixed":     {"omega"},
	"avr_fixed":     {},
	"avr_type_i":    {"omega", "x_pss"},
	"machine_1d1q":  {"delta", "omega"},
	"shaft_single":  {},
	"dc_fixed":      {},
	"kaura_pll":     {},
	"outer_droop":   {"theta_pll"},
	"inner_current": {"icv_d", "icv_q", "vo_d", "vo_q"},
	"converter_avg": {},
	"filter_lcl":    {"theta_olc"},
}

func buildComponent(kind ComponentKind, spec ModelSpec) (Component, error) {
	states, ok := leafStates[spec.Model]
	if !ok {
		return Component{}, fmt.Errorf("grid: unknown %s model %q", kind, spec.Model)
	}
	return Component{
		Kind:   kind,
		Model:  spec.Model,
		States: states,
		Ports:  leafPorts[spec.Model],
		Params: spec.Params,
	}, nil
}

// NewGenerator composes a generator device from leaf specs, in the
// fixed generator chain order.
func NewGenerator(spec GeneratorSpec) (*DynamicInjection, error) {
	slots := []struct {
		kind ComponentKind
		spec ModelSpec
	}{
		{KindTurbineGov, spec.Governor},
		{KindPSS, spec.PSS},
		{KindAVR, spec.AVR},
		{KindMachine, spec.Machine},
		{KindShaft, spec.Shaft},
	}
	d := &DynamicInjection{
		Name:      spec.Name,
		Bus:       spec.Bus,
		Category:  GeneratorCategory,
		BasePower: spec.BaseMVA,
		P:         spec.P,
		Q:         spec.Q,
		VRef:      defaultRef(spec.VRef, 1.0),
		OmegaRef:  defaultRef(spec.OmegaRef, 1.0),
		Connected: true,
	}
	for _, s := range slots {
		c, err := buildComponent(s.kind, s.spec)
		if err != nil {
			return nil, fmt.Errorf("generator %q: %w", spec.Name, err)
		}
		d.Components = append(d.Components, c)
	}
	d.declareStates()
	return d, nil
}

// NewInverter composes an inverter device from leaf specs, in the
// fixed inverter chain order.
func NewInverter(spec InverterSpec) (*DynamicInjection, error) {
	slots := []struct {
		kind ComponentKind
		spec ModelSpec
	}{
		{KindDCSide, spec.DCSide},
		{KindFreqEstimator, spec.FreqEst},
		{KindOuterControl, spec.Outer},
		{KindInnerControl, spec.Inner},
		{KindConverter, spec.Converter},
		{KindFilter, spec.Filter},
	}
	d := &DynamicInjection{
		Name:      spec.Name,
		Bus:       spec.Bus,
		Category:  InverterCategory,
		BasePower: spec.BaseMVA,
		P:         spec.P,
		Q:         spec.Q,
		VRef:      defaultRef(spec.VRef, 1.0),
		OmegaRef:  defaultRef(spec.OmegaRef, 1.0),
		Connected: true,
	}
	for _, s := range slots {
		c, err := buildComponent(s.kind, s.spec)
		if err != nil {
			return nil, fmt.Errorf("inverter %q: %w", spec.Name, err)
		}
		d.Components = append(d.Components, c)
	}
	d.declareStates()
	return d, nil
}

func defaultRef(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

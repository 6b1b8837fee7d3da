package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/ahoven/gridyn/internal/config"
	"github.com/ahoven/gridyn/internal/metrics"
	"github.com/ahoven/gridyn/internal/sim"
	"github.com/ahoven/gridyn/internal/store"
	"github.com/ahoven/gridyn/internal/viz"
)

var (
	dataDir    string
	configFile string
	stepper    string
	dt         float64
	tfinal     float64
	outFile    string
	varNames   string
	maxPlots   int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "gridyn",
		Short: "power network transient dynamics simulator",
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".gridyn", "data directory")

	runCmd := &cobra.Command{
		Use:   "run [preset]",
		Short: "run a transient simulation",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runCase,
	}
	runCmd.Flags().StringVar(&configFile, "config", "", "case file path (yaml)")
	runCmd.Flags().StringVar(&stepper, "stepper", "", "integration method (trapezoidal, backward_euler)")
	runCmd.Flags().Float64Var(&dt, "dt", 0, "timestep override")
	runCmd.Flags().Float64Var(&tfinal, "time", 0, "end time override")

	watchCmd := &cobra.Command{
		Use:   "watch [preset]",
		Short: "run with live bus voltage view",
		Args:  cobra.MaximumNArgs(1),
		RunE:  watchCase,
	}
	watchCmd.Flags().StringVar(&configFile, "config", "", "case file path (yaml)")
	watchCmd.Flags().StringVar(&stepper, "stepper", "", "integration method")
	watchCmd.Flags().Float64Var(&dt, "dt", 0, "timestep override")
	watchCmd.Flags().Float64Var(&tfinal, "time", 0, "end time override")

	ssaCmd := &cobra.Command{
		Use:   "ssa [preset]",
		Short: "small-signal stability analysis at the operating point",
		Args:  cobra.MaximumNArgs(1),
		RunE:  analyzeCase,
	}
	ssaCmd.Flags().StringVar(&configFile, "config", "", "case file path (yaml)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot stored run series",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&varNames, "vars", "", "comma-separated state names to plot")
	plotCmd.Flags().IntVar(&maxPlots, "max", 4, "maximum number of plots")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVar(&outFile, "out", "", "output file (default stdout)")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list built-in cases",
		RunE:  listPresets,
	}

	rootCmd.AddCommand(runCmd, watchCmd, ssaCmd, listCmd, plotCmd, exportCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadCase resolves the case from --config or a preset name.
func loadCase(args []string) (*config.Case, error) {
	if configFile != "" {
		return config.Load(configFile)
	}
	name := "smib"
	if len(args) > 0 {
		name = args[0]
	}
	mk, ok := config.Presets()[name]
	if !ok {
		names := make([]string, 0)
		for k := range config.Presets() {
			names = append(names, k)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("unknown preset %q (available: %s)", name, strings.Join(names, ", "))
	}
	return mk(), nil
}

func buildCase(c *config.Case) (*sim.Simulation, sim.Options, error) {
	net, err := c.Network()
	if err != nil {
		return nil, sim.Options{}, err
	}
	opts := c.SimOptions()
	if stepper != "" {
		opts.Stepper = stepper
	}
	if dt > 0 {
		opts.Dt = dt
	}
	if tfinal > 0 {
		opts.TSpan[1] = tfinal
	}
	s, err := sim.Build(net, c.Perturbations, opts)
	return s, opts, err
}

func runCase(cmd *cobra.Command, args []string) error {
	c, err := loadCase(args)
	if err != nil {
		return err
	}
	s, opts, err := buildCase(c)
	if err != nil {
		return err
	}

	ok, err := s.Initialize()
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("warning: initialization did not converge, starting from the seeded guess")
	}

	fmt.Printf("running %s...\n", c.Name)
	start := time.Now()
	tr, err := s.Run(context.Background())
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	st := store.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.Save(store.RunMetadata{
		Case:        c.Name,
		Stepper:     opts.Stepper,
		Dt:          opts.Dt,
		Span:        opts.TSpan,
		Initialized: ok,
	}, s.Layout().StateNames(s.Network()), tr)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("steps: %d  newton iterations: %d  events fired: %d\n",
		tr.StepsTaken, tr.NewtonIters, tr.EventsFired)

	fmt.Println("\nmetrics:")
	vals := metrics.Evaluate(tr, metrics.Default(s.Layout(), s.Network())...)
	names := make([]string, 0, len(vals))
	for name := range vals {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %s: %.6f\n", name, vals[name])
	}
	return nil
}

func watchCase(cmd *cobra.Command, args []string) error {
	c, err := loadCase(args)
	if err != nil {
		return err
	}
	s, opts, err := buildCase(c)
	if err != nil {
		return err
	}

	layout := s.Layout()
	net := s.Network()
	busNames := make([]string, len(net.Buses))
	for i, b := range net.Buses {
		busNames[i] = b.Name
	}

	return viz.Watch(c.Name, busNames, func(emit func(viz.Sample)) error {
		opts.OnStep = func(x []float64, t float64) {
			vm := make([]float64, len(busNames))
			for i := range busNames {
				vr := x[layout.VrIndex(i)]
				vi := x[layout.ViIndex(i)]
				vm[i] = math.Hypot(vr, vi)
			}
			emit(viz.Sample{T: t, Vm: vm})
		}
		s2, err := sim.Build(net, c.Perturbations, opts)
		if err != nil {
			return err
		}
		if _, err := s2.Initialize(); err != nil {
			return err
		}
		_, err = s2.Run(context.Background())
		return err
	})
}

func analyzeCase(cmd *cobra.Command, args []string) error {
	c, err := loadCase(args)
	if err != nil {
		return err
	}
	s, _, err := buildCase(c)
	if err != nil {
		return err
	}
	ok, err := s.Initialize()
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("warning: analyzing at the seeded guess, not an equilibrium")
	}

	rep, err := s.SmallSignal(nil)
	if err != nil {
		return err
	}

	fmt.Printf("case: %s\n", c.Name)
	fmt.Printf("differential states: %d  algebraic: %d\n", rep.NDiff, rep.NAlg)
	if rep.Stable {
		fmt.Println("stable: yes")
	} else {
		fmt.Println("stable: no")
	}
	if rep.Advisory != "" {
		fmt.Printf("note: %s\n", rep.Advisory)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RE\tIM\tFREQ(HZ)\tDAMPING")
	for _, ev := range rep.Eigenvalues {
		re, im := real(ev), imag(ev)
		freq := math.Abs(im) / (2 * math.Pi)
		damp := 0.0
		if mag := math.Hypot(re, im); mag > 0 {
			damp = -re / mag
		}
		fmt.Fprintf(w, "%.6f\t%.6f\t%.4f\t%.4f\n", re, im, freq, damp)
	}
	return w.Flush()
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := store.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCASE\tTIME\tSTEPPER\tDT\tSTEPS\tEVENTS")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.4f\t%d\t%d\n",
			run.ID,
			run.Case,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Stepper,
			run.Dt,
			run.StepsTaken,
			run.EventsFired,
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st := store.New(dataDir)
	names, _, states, err := st.Trajectory(runID)
	if err != nil {
		return err
	}
	if len(states) == 0 {
		return fmt.Errorf("no data to plot")
	}

	var want map[string]bool
	if varNames != "" {
		want = make(map[string]bool)
		for _, n := range strings.Split(varNames, ",") {
			want[strings.TrimSpace(n)] = true
		}
	}

	plotted := 0
	for idx, name := range names {
		if want != nil && !want[name] {
			continue
		}
		if want == nil && plotted >= maxPlots {
			break
		}
		data := make([]float64, len(states))
		for i := range states {
			data[i] = states[i][idx]
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(name),
		)
		fmt.Println(graph)
		fmt.Println()
		plotted++
	}
	if plotted == 0 {
		return fmt.Errorf("no matching states (have: %s)", strings.Join(names, ", "))
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := store.New(dataDir)
	return st.ExportJSON(args[0], outFile)
}

func listPresets(cmd *cobra.Command, args []string) error {
	names := make([]string, 0)
	for k := range config.Presets() {
		names = append(names, k)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDESCRIPTION")
	for _, n := range names {
		c := config.Presets()[n]()
		fmt.Fprintf(w, "%s\t%s (%d buses, %d devices)\n", n, c.Name, len(c.Buses), len(c.Generators)+len(c.Inverters))
	}
	return w.Flush()
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/clothsim/internal/automation"
	"github.com/san-kum/clothsim/internal/cloth"
	"github.com/san-kum/clothsim/internal/config"
	"github.com/san-kum/clothsim/internal/ctxlog"
	"github.com/san-kum/clothsim/internal/experiment"
	"github.com/san-kum/clothsim/internal/storage"
	"github.com/san-kum/clothsim/internal/viz"
)

var (
	dataDir    string
	logLevel   string
	configFile string
	preset     string
	backend    string
	dt         float64
	duration   float64
	gridSize   int
	iterations int
	substeps   int
	mass       float64
	side       float64
	gravity    bool
	driver     bool
	amplitude  float64
	frequency  float64
	gifPath    string
	noSave     bool
	benchSizes []int
	benchBacks []string
	benchN     int
)

// main registers the commands and runs the preset menu when no subcommand
// is given.
func main() {
	rootCmd := &cobra.Command{
		Use:   "clothsim",
		Short: "position-based cloth simulation",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(logLevel)
			if err != nil {
				return err
			}
			cmd.SetContext(ctxlog.WithLogger(cmd.Context(), logger))
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return viz.RunMenu(cmd.Context(), openPreset, viz.LiveOptions{
				Logger:  ctxlog.FromContext(cmd.Context()),
				GIFPath: gifPath,
			})
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".clothsim", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.Flags().StringVar(&gifPath, "gif", "cloth.gif", "GIF recording path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a fixed-step simulation and save it",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	addConfigFlags(runCmd)
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "interactive terminal view",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	addConfigFlags(liveCmd)
	liveCmd.Flags().StringVar(&gifPath, "gif", "cloth.gif", "GIF recording path")

	compareCmd := &cobra.Command{
		Use:   "compare",
		Short: "run both backends from the same state and report their deviation",
		Args:  cobra.NoArgs,
		RunE:  compareBackends,
	}
	addConfigFlags(compareCmd)

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "frames per second for each backend across grid sizes",
		Args:  cobra.NoArgs,
		RunE:  benchBackends,
	}
	addConfigFlags(benchCmd)
	benchCmd.Flags().IntSliceVar(&benchSizes, "sizes", []int{16, 32, 64, 128}, "grid sizes")
	benchCmd.Flags().StringSliceVar(&benchBacks, "backends", []string{"cpu", "gpu"}, "backends")
	benchCmd.Flags().IntVar(&benchN, "frames", 120, "frames per measurement")

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "execute a YAML event script",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep [param] [values...]",
		Short: "run once per parameter value (" + strings.Join(automation.SweepParams, ", ") + ")",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runSweep,
	}
	addConfigFlags(sweepCmd)

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list configuration presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	initCmd := &cobra.Command{
		Use:   "init-config [file]",
		Short: "write a config file from a preset and flags",
		Args:  cobra.ExactArgs(1),
		RunE:  initConfig,
	}
	addConfigFlags(initCmd)

	rootCmd.AddCommand(runCmd, liveCmd, compareCmd, benchCmd, scenarioCmd, sweepCmd,
		presetsCmd, initCmd, listCmd(), plotCmd(), analyzeCmd(), phaseCmd(), exportCSVCmd(), exportSVGCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func newLogger(level string) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})), nil
}

func addConfigFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "config file path (yaml)")
	f.StringVar(&preset, "preset", "", "use preset configuration")
	f.StringVar(&backend, "backend", "cpu", "solver backend (cpu, gpu, auto)")
	f.Float64Var(&dt, "dt", config.DefaultDt, "frame timestep")
	f.Float64Var(&duration, "time", config.DefaultDuration, "duration in seconds")
	f.IntVar(&gridSize, "grid", 22, "vertices per side")
	f.IntVar(&iterations, "iterations", 8, "constraint iterations per substep")
	f.IntVar(&substeps, "substeps", 1, "substeps per frame")
	f.Float64Var(&mass, "mass", 1, "particle mass")
	f.Float64Var(&side, "side", 1, "cloth side length")
	f.BoolVar(&gravity, "gravity", true, "apply gravity")
	f.BoolVar(&driver, "driver", true, "oscillate the center vertex")
	f.Float64Var(&amplitude, "amplitude", 0.2, "driver amplitude")
	f.Float64Var(&frequency, "frequency", 1, "driver frequency in Hz")
}

// resolveConfig layers defaults, preset, config file and changed flags, in
// that order.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Backend = backend
	}
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("time") {
		cfg.Duration = duration
	}
	if flags.Changed("grid") {
		cfg.Cloth.GridSize = gridSize
	}
	if flags.Changed("iterations") {
		cfg.Cloth.Iterations = iterations
	}
	if flags.Changed("substeps") {
		cfg.Cloth.Substeps = substeps
	}
	if flags.Changed("mass") {
		cfg.Cloth.Mass = float32(mass)
	}
	if flags.Changed("side") {
		cfg.Cloth.Side = float32(side)
	}
	if flags.Changed("gravity") {
		cfg.Cloth.Gravity = gravity
	}
	if flags.Changed("driver") {
		cfg.Driver.Enabled = driver
	}
	if flags.Changed("amplitude") {
		cfg.Driver.Amplitude = float32(amplitude)
	}
	if flags.Changed("frequency") {
		cfg.Driver.Frequency = float32(frequency)
	}
	cfg.Clamp()
	return cfg, nil
}

func presetLabel() string {
	if preset != "" {
		return preset
	}
	return "custom"
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	exp := experiment.New(cfg, experiment.NewRegistry()).WithPreset(presetLabel())
	fmt.Printf("running %dx%d cloth on %s...\n", cfg.Cloth.GridSize, cfg.Cloth.GridSize, cfg.Backend)
	result, err := exp.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v (%.0f fps)\n", result.Wall, result.FPS())
	fmt.Printf("frames: %d (dropped %d)\n", result.Frames, result.Dropped)
	if !noSave {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		runID, err := st.Save(result.Metadata(exp.Config(), exp.Preset()), result.Series, result.Final)
		if err != nil {
			return err
		}
		fmt.Printf("run id: %s\n", runID)
	}

	fmt.Println("\nmetrics:")
	printMetrics(result.Metrics)
	if sag, ok := result.Series.Column("sag"); ok && len(sag) > 1 {
		fmt.Println()
		fmt.Println(asciigraph.Plot(sag, asciigraph.Height(10), asciigraph.Width(70), asciigraph.Caption("sag")))
	}
	return nil
}

func printMetrics(m map[string]float64) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Printf("  %s: %.6f\n", name, m[name])
	}
}

// openPreset builds a ready simulator for the menu.
func openPreset(ctx context.Context, cfg *config.Config) (*cloth.Simulator, func(), error) {
	return experiment.New(cfg, experiment.NewRegistry()).Open(ctx)
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	sim, release, err := experiment.New(cfg, experiment.NewRegistry()).Open(ctx)
	if err != nil {
		return err
	}
	defer release()
	return viz.RunLive(ctx, sim, viz.LiveOptions{
		Title:   presetLabel(),
		GIFPath: gifPath,
		Logger:  ctxlog.FromContext(ctx),
	})
}

func compareBackends(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	fmt.Printf("comparing cpu and gpu on a %dx%d cloth for %d frames...\n",
		cfg.Cloth.GridSize, cfg.Cloth.GridSize, cfg.Frames())
	out, err := experiment.New(cfg, experiment.NewRegistry()).Compare(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("frames: %d\nmax deviation: %.6g\nfinal deviation: %.6g\n", out.Frames, out.Max, out.Final)
	if len(out.Deviation) > 1 {
		fmt.Println()
		fmt.Println(asciigraph.Plot(out.Deviation, asciigraph.Height(10), asciigraph.Width(70), asciigraph.Caption("max vertex distance")))
	}
	return nil
}

func benchBackends(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	results, err := experiment.New(cfg, experiment.NewRegistry()).Bench(cmd.Context(), benchBacks, benchSizes, benchN)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BACKEND\tGRID\tFRAMES\tTIME\tFPS")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%d\t%d\t%v\t%.0f\n", r.Backend, r.GridSize, r.Frames, r.Wall, r.FPS())
	}
	return w.Flush()
}

func runScenario(cmd *cobra.Command, args []string) error {
	scenario, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("scenario: %s\n", scenario.Name)
	if scenario.Description != "" {
		fmt.Println(scenario.Description)
	}
	results, err := automation.RunScenario(cmd.Context(), scenario, experiment.NewRegistry())
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "EVENT\tFRAMES\tTIME\tGRID\tITER\tGRAVITY\tSAG\tSETTLE")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%d\t%.2fs\t%d\t%d\t%v\t%.4f\t%.2g\n",
			r.Label, r.Frames, r.Time, r.GridSize, r.Iterations, r.Gravity, r.Sag, r.Settle)
	}
	return w.Flush()
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	sweep := &automation.ParameterSweep{Param: args[0]}
	for _, s := range args[1:] {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("sweep value %q: %w", s, err)
		}
		sweep.Values = append(sweep.Values, v)
	}
	results, err := automation.RunSweep(cmd.Context(), cfg, sweep, experiment.NewRegistry())
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tSAG\tSTRETCH\tFPS\n", strings.ToUpper(sweep.Param))
	for _, r := range results {
		fmt.Fprintf(w, "%g\t%.4f\t%.4f\t%.0f\n", r.ParamValue, r.Metrics["sag"], r.Metrics["stretch"], r.FPS)
	}
	return w.Flush()
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRESET\tBACKEND\tGRID\tITER\tMASS\tGRAVITY\tDRIVER")
	for _, name := range config.ListPresets() {
		p := config.GetPreset(name)
		drv := "off"
		if p.Driver.Enabled {
			drv = fmt.Sprintf("%.2f @ %.1f Hz", p.Driver.Amplitude, p.Driver.Frequency)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.1f\t%v\t%s\n",
			name, p.Backend, p.Cloth.GridSize, p.Cloth.Iterations, p.Cloth.Mass, p.Cloth.Gravity, drv)
	}
	return w.Flush()
}

func initConfig(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if err := config.Save(args[0], cfg); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", args[0])
	return nil
}

// Package experiment runs the cloth at a fixed time step and collects
// per-frame series, metrics and cross-backend comparisons.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/san-kum/clothsim/internal/cloth"
	"github.com/san-kum/clothsim/internal/compute"
	"github.com/san-kum/clothsim/internal/config"
	"github.com/san-kum/clothsim/internal/ctxlog"
	"github.com/san-kum/clothsim/internal/metrics"
	"github.com/san-kum/clothsim/internal/pbd"
	"github.com/san-kum/clothsim/internal/storage"
)

// ErrUnstable reports a run whose positions stopped being finite.
var ErrUnstable = errors.New("experiment: simulation became unstable")

// SeriesNames are the per-frame columns recorded by Run.
var SeriesNames = []string{"sag", "settle", "kinetic", "center_y"}

// Observer is notified after every executed frame.
type Observer interface {
	OnFrame(i int, f cloth.Frame)
}

type ObserverFunc func(i int, f cloth.Frame)

func (fn ObserverFunc) OnFrame(i int, f cloth.Frame) { fn(i, f) }

type Experiment struct {
	cfg       *config.Config
	preset    string
	registry  *Registry
	observers []Observer
}

func New(cfg *config.Config, registry *Registry) *Experiment {
	c := *cfg
	c.Clamp()
	return &Experiment{cfg: &c, registry: registry}
}

// WithPreset records the preset name in the run metadata.
func (e *Experiment) WithPreset(name string) *Experiment {
	e.preset = name
	return e
}

func (e *Experiment) AddObserver(o Observer) { e.observers = append(e.observers, o) }

func (e *Experiment) Config() *config.Config { return e.cfg }
func (e *Experiment) Preset() string          { return e.preset }

type Result struct {
	Backend string
	Frames  int
	Dropped uint64
	Wall    time.Duration
	Series  storage.Series
	Metrics map[string]float64
	Final   []pbd.Vec3
	Indices []uint32
}

// Metadata describes the result for storage.
func (r *Result) Metadata(cfg *config.Config, preset string) storage.RunMetadata {
	return storage.RunMetadata{
		Preset:      preset,
		Backend:     r.Backend,
		GridSize:    cfg.Cloth.GridSize,
		Side:        cfg.Cloth.Side,
		Iterations:  cfg.Cloth.Iterations,
		Substeps:    cfg.Cloth.Substeps,
		Gravity:     cfg.Cloth.Gravity,
		Driver:      cfg.Driver,
		Dt:          cfg.Dt,
		Duration:    cfg.Duration,
		Frames:      r.Frames,
		Dropped:     r.Dropped,
		WallSeconds: r.Wall.Seconds(),
		Metrics:     r.Metrics,
	}
}

// FPS is the number of frames simulated per wall-clock second.
func (r *Result) FPS() float64 {
	if r.Wall <= 0 {
		return 0
	}
	return float64(r.Frames) / r.Wall.Seconds()
}

// open creates the simulator for backend and waits until it can step.
func (e *Experiment) open(ctx context.Context, backend string) (*cloth.Simulator, *compute.Device, error) {
	logger := ctxlog.FromContext(ctx)
	dev, err := e.registry.OpenDevice(backend, e.cfg.Device, logger)
	if err != nil {
		return nil, nil, err
	}
	opts := e.cfg.Options(logger)
	opts.Backend = backend
	sim, err := cloth.New(dev, opts)
	if err != nil {
		if dev != nil {
			dev.Close()
		}
		return nil, nil, err
	}
	if err := sim.WaitReady(ctx); err != nil {
		sim.Dispose()
		if dev != nil {
			dev.Close()
		}
		return nil, nil, fmt.Errorf("wait for %s pipelines: %w", backend, err)
	}
	return sim, dev, nil
}

// Open builds a ready simulator for the configured backend. The returned
// func releases it together with its device.
func (e *Experiment) Open(ctx context.Context) (*cloth.Simulator, func(), error) {
	sim, dev, err := e.open(ctx, e.cfg.Backend)
	if err != nil {
		return nil, nil, err
	}
	return sim, func() { closeAll(sim, dev) }, nil
}

func closeAll(sim *cloth.Simulator, dev *compute.Device) {
	sim.Dispose()
	if dev != nil {
		dev.Close()
	}
}

// Run steps the configured backend for the configured duration. The
// context is checked between frames.
func (e *Experiment) Run(ctx context.Context) (*Result, error) {
	logger := ctxlog.FromContext(ctx)
	sim, dev, err := e.open(ctx, e.cfg.Backend)
	if err != nil {
		return nil, err
	}
	defer closeAll(sim, dev)

	set := e.registry.DefaultMetrics(sim.Grid(), e.cfg.Cloth.Mass)
	sag, settle := metrics.NewSag(), metrics.NewSettle()
	kinetic := metrics.NewKinetic(float64(e.cfg.Cloth.Mass))
	series := metrics.Set{sag, settle, kinetic}

	frames := e.cfg.Frames()
	res := &Result{
		Backend: sim.Backend(),
		Series:  storage.Series{Names: SeriesNames},
	}
	logger.Info("run started", "backend", res.Backend, "grid", e.cfg.Cloth.GridSize, "frames", frames)

	start := time.Now()
	var last cloth.Frame
	for i := 0; i < frames; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := sim.Step(e.cfg.Dt); err != nil {
			return res, err
		}
		f, err := sim.Frame(ctx)
		if err != nil {
			return res, err
		}
		if !finite(f.Positions) {
			return res, fmt.Errorf("%w at frame %d (t=%.3fs)", ErrUnstable, i, f.Time)
		}

		set.Observe(f.Positions, f.Time)
		series.Observe(f.Positions, f.Time)
		res.Series.Times = append(res.Series.Times, f.Time)
		res.Series.Rows = append(res.Series.Rows, []float64{
			sag.Value(), settle.Value(), kinetic.Value(), float64(f.Positions[f.Center].Y),
		})
		for _, o := range e.observers {
			o.OnFrame(i, f)
		}
		last = f
	}

	res.Wall = time.Since(start)
	res.Frames = int(sim.Steps())
	res.Dropped = sim.Dropped()
	res.Metrics = set.Values()
	res.Final = last.Positions
	res.Indices = last.Indices
	logger.Info("run finished", "backend", res.Backend, "frames", res.Frames, "wall", res.Wall)
	return res, nil
}

func finite(ps []pbd.Vec3) bool {
	for _, p := range ps {
		if !p.IsFinite() {
			return false
		}
	}
	return true
}

type Comparison struct {
	Frames int
	// Deviation is the largest per-vertex distance between the two
	// backends after each frame.
	Deviation []float64
	Max       float64
	Final     float64
}

// Compare steps the cpu and gpu backends in lockstep from the same initial
// state and measures how far apart they drift.
func (e *Experiment) Compare(ctx context.Context) (*Comparison, error) {
	seq, seqDev, err := e.open(ctx, cloth.BackendCPU)
	if err != nil {
		return nil, err
	}
	defer closeAll(seq, seqDev)
	par, parDev, err := e.open(ctx, cloth.BackendGPU)
	if err != nil {
		return nil, err
	}
	defer closeAll(par, parDev)

	frames := e.cfg.Frames()
	out := &Comparison{Deviation: make([]float64, 0, frames)}
	for i := 0; i < frames; i++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		a, err := stepFrame(ctx, seq, e.cfg.Dt)
		if err != nil {
			return out, fmt.Errorf("cpu frame %d: %w", i, err)
		}
		b, err := stepFrame(ctx, par, e.cfg.Dt)
		if err != nil {
			return out, fmt.Errorf("gpu frame %d: %w", i, err)
		}
		d := float64(maxDistance(a.Positions, b.Positions))
		out.Deviation = append(out.Deviation, d)
		out.Max = max(out.Max, d)
		out.Final = d
		out.Frames++
	}
	ctxlog.FromContext(ctx).Debug("backends compared", "frames", out.Frames, "max", out.Max, "final", out.Final)
	return out, nil
}

func stepFrame(ctx context.Context, sim *cloth.Simulator, dt float64) (cloth.Frame, error) {
	if err := sim.Step(dt); err != nil {
		return cloth.Frame{}, err
	}
	return sim.Frame(ctx)
}

func maxDistance(a, b []pbd.Vec3) float32 {
	var worst float32
	for i := range min(len(a), len(b)) {
		worst = max(worst, a[i].Distance(b[i]))
	}
	return worst
}

type BenchResult struct {
	Backend  string
	GridSize int
	Frames   int
	Wall     time.Duration
}

func (b BenchResult) FPS() float64 {
	if b.Wall <= 0 {
		return 0
	}
	return float64(b.Frames) / b.Wall.Seconds()
}

// Bench measures stepping throughput of each backend at each grid size.
// Positions are read back every frame, as a renderer would.
func (e *Experiment) Bench(ctx context.Context, backends []string, sizes []int, frames int) ([]BenchResult, error) {
	logger := ctxlog.FromContext(ctx)
	results := make([]BenchResult, 0, len(backends)*len(sizes))
	for _, backend := range backends {
		for _, size := range sizes {
			b, err := e.benchOne(ctx, backend, size, frames)
			if err != nil {
				return results, err
			}
			logger.Debug("bench", "backend", backend, "grid", b.GridSize, "fps", b.FPS())
			results = append(results, b)
		}
	}
	return results, nil
}

func (e *Experiment) benchOne(ctx context.Context, backend string, size, frames int) (BenchResult, error) {
	c := *e.cfg
	c.Cloth.GridSize = cloth.ClampGridSize(size)
	sub := &Experiment{cfg: &c, registry: e.registry}
	sim, dev, err := sub.open(ctx, backend)
	if err != nil {
		return BenchResult{}, err
	}
	defer closeAll(sim, dev)

	start := time.Now()
	for i := 0; i < frames; i++ {
		if err := ctx.Err(); err != nil {
			return BenchResult{}, err
		}
		if _, err := stepFrame(ctx, sim, c.Dt); err != nil {
			return BenchResult{}, err
		}
	}
	return BenchResult{
		Backend:  sim.Backend(),
		GridSize: c.Cloth.GridSize,
		Frames:   frames,
		Wall:     time.Since(start),
	}, nil
}

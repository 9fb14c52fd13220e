// Package cloth owns a simulated cloth sheet: its topology, particle state
// and solver backend, and the frame it hands to renderers.
package cloth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/san-kum/clothsim/internal/compute"
	"github.com/san-kum/clothsim/internal/mesh"
	"github.com/san-kum/clothsim/internal/pbd"
	"github.com/san-kum/clothsim/internal/solver"
)

// UIState is what the controls report. Every field is re-clamped.
type UIState struct {
	Gravity    bool
	Iterations int
	GridSize   int
	Reset      bool
}

// Frame is the renderer's view of the cloth. Indices stay valid until the
// next resize.
type Frame struct {
	Positions []pbd.Vec3
	Indices   []uint32
	Corners   [4]uint32
	Center    uint32
	Time      float64

	// Buffer and BufferSize are set for device backends only.
	Buffer     *compute.Buffer
	BufferSize int
}

type instance struct {
	grid   *mesh.Grid
	solver solver.Solver
}

type Simulator struct {
	opts   Options
	dev    *compute.Device
	logger *slog.Logger

	inst     *instance
	time     float64
	steps    uint64
	dropped  uint64
	disposed bool
}

// New builds a simulator. dev may be nil for the cpu backend.
func New(dev *compute.Device, opts Options) (*Simulator, error) {
	opts = opts.Clamp()
	s := &Simulator{opts: opts, dev: dev, logger: opts.Logger}
	inst, err := s.build(opts.GridSize)
	if err != nil {
		return nil, err
	}
	s.inst = inst
	s.logger.Info("cloth created",
		"backend", inst.solver.Name(),
		"grid", opts.GridSize,
		"iterations", opts.Iterations,
		"gravity", opts.Gravity,
	)
	return s, nil
}

func (s *Simulator) backend() (string, error) {
	switch s.opts.Backend {
	case BackendCPU:
		return BackendCPU, nil
	case BackendGPU:
		if s.dev == nil {
			return "", ErrNoDevice
		}
		return BackendGPU, nil
	case BackendAuto:
		if s.dev != nil {
			return BackendGPU, nil
		}
		return BackendCPU, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBackend, s.opts.Backend)
	}
}

func (s *Simulator) build(n int) (*instance, error) {
	backend, err := s.backend()
	if err != nil {
		return nil, err
	}
	grid, err := mesh.Build(n, n, s.opts.Side)
	if err != nil {
		return nil, fmt.Errorf("build grid: %w", err)
	}
	ps := grid.Particles(s.opts.Mass)
	cs := grid.Constraints(ps)
	cfg := solver.Config{
		Driver:   s.opts.Driver,
		Driven:   grid.Center,
		Substeps: s.opts.Substeps,
		Logger:   s.logger,
	}

	inst := &instance{grid: grid}
	switch backend {
	case BackendGPU:
		inst.solver, err = solver.NewParallel(s.dev, ps, grid.Edges(), cs, cfg)
	default:
		inst.solver, err = solver.NewSequential(ps, cs, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s solver: %w", backend, err)
	}
	return inst, nil
}

// Step advances the cloth by dt seconds, clamped to [0, MaxFrameDt]. A
// backend that is still compiling drops the frame without error.
func (s *Simulator) Step(dt float64) error {
	if s.disposed {
		return solver.ErrDisposed
	}
	dt = ClampFrameDt(dt)
	err := s.inst.solver.Step(solver.Params{
		Dt:         float32(dt),
		Gravity:    s.opts.Gravity,
		Iterations: s.opts.Iterations,
		Time:       s.time,
	})
	if errors.Is(err, compute.ErrNotReady) {
		s.dropped++
		s.logger.Debug("frame dropped, backend not ready", "dropped", s.dropped)
		return nil
	}
	if err != nil {
		return fmt.Errorf("step: %w", err)
	}
	s.time += dt
	s.steps++
	return nil
}

// Reset returns every particle to the rest grid without rebuilding
// constraints or device buffers.
func (s *Simulator) Reset() error {
	if s.disposed {
		return solver.ErrDisposed
	}
	g := s.inst.grid
	rest := mesh.RestPositions(g.NX, g.NY, g.Side)
	if err := s.inst.solver.Reset(rest); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	s.time = 0
	s.logger.Debug("cloth reset", "grid", g.NX)
	return nil
}

// Resize rebuilds the cloth at the clamped size. The current cloth is kept
// if the new one cannot be built.
func (s *Simulator) Resize(gridSize int) error {
	if s.disposed {
		return solver.ErrDisposed
	}
	n := ClampGridSize(gridSize)
	inst, err := s.build(n)
	if err != nil {
		s.logger.Error("resize failed", "grid", n, "err", err)
		return fmt.Errorf("resize to %d: %w", n, err)
	}
	old := s.inst
	s.inst = inst
	s.opts.GridSize = n
	s.time = 0
	old.solver.Dispose()
	s.logger.Info("cloth resized", "from", old.grid.NX, "to", n)
	return nil
}

// Apply consumes a control update.
func (s *Simulator) Apply(ui UIState) error {
	s.opts.Gravity = ui.Gravity
	s.SetIterations(ui.Iterations)
	if n := ClampGridSize(ui.GridSize); n != s.opts.GridSize {
		if err := s.Resize(n); err != nil {
			return err
		}
	}
	if ui.Reset {
		return s.Reset()
	}
	return nil
}

// Frame returns the current output. Device backends read positions back
// through the queue.
func (s *Simulator) Frame(ctx context.Context) (Frame, error) {
	if s.disposed {
		return Frame{}, solver.ErrDisposed
	}
	pos, err := s.inst.solver.Positions(ctx)
	if err != nil {
		return Frame{}, err
	}
	g := s.inst.grid
	f := Frame{
		Positions: pos,
		Indices:   g.Indices,
		Corners:   g.Corners,
		Center:    g.Center,
		Time:      s.time,
	}
	if p, ok := s.inst.solver.(*solver.Parallel); ok {
		f.Buffer, f.BufferSize = p.PositionBuffer()
	}
	return f, nil
}

// Ready reports whether the backend can execute steps.
func (s *Simulator) Ready() bool {
	if p, ok := s.inst.solver.(*solver.Parallel); ok {
		return p.Ready()
	}
	return true
}

// WaitReady blocks until the backend can execute steps.
func (s *Simulator) WaitReady(ctx context.Context) error {
	if p, ok := s.inst.solver.(*solver.Parallel); ok {
		return p.WaitReady(ctx)
	}
	return nil
}

// Dispose releases backend resources. It is safe to call more than once.
func (s *Simulator) Dispose() {
	if s.disposed {
		return
	}
	s.disposed = true
	s.inst.solver.Dispose()
	s.logger.Debug("cloth disposed", "steps", s.steps, "dropped", s.dropped)
}

func (s *Simulator) SetGravity(on bool) { s.opts.Gravity = on }

func (s *Simulator) SetIterations(n int) { s.opts.Iterations = solver.ClampIterations(n) }

func (s *Simulator) Options() Options { return s.opts }
func (s *Simulator) Backend() string  { return s.inst.solver.Name() }
func (s *Simulator) Grid() *mesh.Grid { return s.inst.grid }
func (s *Simulator) Time() float64    { return s.time }
func (s *Simulator) Steps() uint64    { return s.steps }
func (s *Simulator) Dropped() uint64  { return s.dropped }

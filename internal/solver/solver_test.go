package solver

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/san-kum/clothsim/internal/compute"
	"github.com/san-kum/clothsim/internal/drive"
	"github.com/san-kum/clothsim/internal/mesh"
	"github.com/san-kum/clothsim/internal/pbd"
)

const frameDt = float32(1.0 / 60.0)

type fixture struct {
	grid *mesh.Grid
	ps   []pbd.Particle
	cs   *pbd.ConstraintSet
}

func newFixture(t *testing.T, n int) fixture {
	t.Helper()
	g, err := mesh.Build(n, n, 1)
	if err != nil {
		t.Fatal(err)
	}
	ps := g.Particles(1)
	return fixture{grid: g, ps: ps, cs: g.Constraints(ps)}
}

func undriven(f fixture) Config {
	return Config{Driven: f.grid.Center}
}

func newParallel(t *testing.T, dev *compute.Device, f fixture, cfg Config) *Parallel {
	t.Helper()
	ps := append([]pbd.Particle(nil), f.ps...)
	p, err := NewParallel(dev, ps, f.grid.Edges(), f.cs, cfg)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.WaitReady(ctx); err != nil {
		t.Fatal(err)
	}
	return p
}

func maxDelta(a, b []pbd.Vec3) float32 {
	var worst float32
	for i := range a {
		if d := a[i].Distance(b[i]); d > worst {
			worst = d
		}
	}
	return worst
}

func TestClampIterations(t *testing.T) {
	tests := []struct{ in, want int }{
		{-3, 1}, {0, 1}, {1, 1}, {8, 8}, {50, 50}, {51, 50}, {1000, 50},
	}
	for _, tt := range tests {
		if got := ClampIterations(tt.in); got != tt.want {
			t.Errorf("ClampIterations(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestPredictZeroDtKeepsMomentum(t *testing.T) {
	ps := []pbd.Particle{pbd.NewParticle(pbd.V(0, 1, 0), 1)}
	ps[0].PrevPosition = pbd.V(0, 0.5, 0)

	Predict(ps, 0, Gravity)

	if ps[0].Position != pbd.V(0, 1.5, 0) {
		t.Errorf("position = %v, want {0 1.5 0}", ps[0].Position)
	}
	if ps[0].PrevPosition != pbd.V(0, 1, 0) {
		t.Errorf("prev = %v, want {0 1 0}", ps[0].PrevPosition)
	}
}

func TestPredictAppliesGravity(t *testing.T) {
	ps := []pbd.Particle{pbd.NewParticle(pbd.V(0, 0, 0), 1)}
	Predict(ps, 0.1, Gravity)

	want := float32(-9.81 * 0.01)
	if math.Abs(float64(ps[0].Position.Y-want)) > 1e-6 {
		t.Errorf("y = %v, want %v", ps[0].Position.Y, want)
	}
}

func TestPredictPinned(t *testing.T) {
	ps := []pbd.Particle{pbd.NewParticle(pbd.V(3, 3, 3), 1)}
	ps[0].Pin(pbd.V(1, 2, 3))
	ps[0].PrevPosition = pbd.V(9, 9, 9)

	Predict(ps, frameDt, Gravity)

	if ps[0].Position != pbd.V(1, 2, 3) || ps[0].PrevPosition != pbd.V(1, 2, 3) {
		t.Errorf("pinned particle moved: %+v", ps[0])
	}
}

func TestPredictImmovableHoldsPosition(t *testing.T) {
	ps := []pbd.Particle{pbd.NewParticle(pbd.V(1, 1, 0), 1)}
	ps[0].InvMass = 0
	ps[0].PrevPosition = pbd.V(1, 0.5, 0)

	Predict(ps, frameDt, Gravity)

	if ps[0].Position != pbd.V(1, 1, 0) {
		t.Errorf("position = %v, want {1 1 0}", ps[0].Position)
	}
	if ps[0].PrevPosition != ps[0].Position {
		t.Errorf("prev = %v, want velocity cleared", ps[0].PrevPosition)
	}
}

func TestStepParticlesHoldsPins(t *testing.T) {
	f := newFixture(t, 5)
	for frame := 0; frame < 30; frame++ {
		StepParticles(f.ps, f.cs, frameDt, true, 8, Gravity)
		for _, c := range f.grid.Corners {
			if f.ps[c].Position != f.ps[c].PinTarget {
				t.Fatalf("frame %d: corner %d at %v, target %v", frame, c, f.ps[c].Position, f.ps[c].PinTarget)
			}
		}
	}
}

func TestSequentialStability(t *testing.T) {
	f := newFixture(t, 4)
	s, err := NewSequential(f.ps, f.cs, undriven(f))
	if err != nil {
		t.Fatal(err)
	}

	var last []pbd.Vec3
	var delta float32
	for frame := 0; frame < 200; frame++ {
		if err := s.Step(Params{Dt: frameDt, Gravity: true, Iterations: 20, Time: float64(frame) * float64(frameDt)}); err != nil {
			t.Fatal(err)
		}
		pos, _ := s.Positions(context.Background())
		if last != nil {
			delta = maxDelta(pos, last)
		}
		last = pos
	}

	if !pbd.ParticlesValid(s.Particles()) {
		t.Fatal("positions not finite")
	}
	if delta > 1e-3 {
		t.Errorf("cloth not settled: last frame delta %v", delta)
	}
	if s.Particles()[f.grid.Center].Position.Y >= 0 {
		t.Errorf("center did not sag: y = %v", s.Particles()[f.grid.Center].Position.Y)
	}
}

func TestSequentialDrivesCenter(t *testing.T) {
	f := newFixture(t, 7)
	cfg := Config{Driver: drive.Default(), Driven: f.grid.Center}
	s, err := NewSequential(f.ps, f.cs, cfg)
	if err != nil {
		t.Fatal(err)
	}
	// The driver runs before relaxation, so after one step the center sits
	// near, not exactly at, the driven height.
	if err := s.Step(Params{Dt: frameDt, Iterations: 1, Time: 0.25}); err != nil {
		t.Fatal(err)
	}
	y := s.Particles()[f.grid.Center].Position.Y
	if y <= 0 || y > 0.2 {
		t.Errorf("center y = %v, want in (0, 0.2]", y)
	}
}

func TestSequentialReset(t *testing.T) {
	f := newFixture(t, 6)
	s, err := NewSequential(f.ps, f.cs, Config{Driver: drive.Default(), Driven: f.grid.Center})
	if err != nil {
		t.Fatal(err)
	}
	for frame := 0; frame < 10; frame++ {
		_ = s.Step(Params{Dt: frameDt, Gravity: true, Iterations: 8, Time: float64(frame) / 60})
	}

	rest := mesh.RestPositions(6, 6, 1)
	for range 2 {
		if err := s.Reset(rest); err != nil {
			t.Fatal(err)
		}
	}
	for i, p := range s.Particles() {
		if p.Position != rest[i] || p.PrevPosition != rest[i] {
			t.Fatalf("particle %d not at rest: %+v", i, p)
		}
	}

	if err := s.Reset(rest[:3]); !errors.Is(err, pbd.ErrInvalidState) {
		t.Errorf("short reset: got %v, want ErrInvalidState", err)
	}
}

func TestSequentialRejectsBadDriven(t *testing.T) {
	f := newFixture(t, 3)
	if _, err := NewSequential(f.ps, f.cs, Config{Driven: 9}); !errors.Is(err, pbd.ErrIndexRange) {
		t.Errorf("got %v, want ErrIndexRange", err)
	}
}

func TestSequentialDisposed(t *testing.T) {
	f := newFixture(t, 3)
	s, _ := NewSequential(f.ps, f.cs, undriven(f))
	s.Dispose()
	if err := s.Step(Params{Dt: frameDt}); !errors.Is(err, ErrDisposed) {
		t.Errorf("got %v, want ErrDisposed", err)
	}
}

func TestParallelStability(t *testing.T) {
	dev := compute.NewDevice(compute.WithWorkers(4), compute.WithMinChunk(2))
	defer dev.Close()

	f := newFixture(t, 4)
	s := newParallel(t, dev, f, undriven(f))
	defer s.Dispose()

	ctx := context.Background()
	var last []pbd.Vec3
	var delta float32
	for frame := 0; frame < 200; frame++ {
		if err := s.Step(Params{Dt: frameDt, Gravity: true, Iterations: 20}); err != nil {
			t.Fatal(err)
		}
		pos, err := s.Positions(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if last != nil {
			delta = maxDelta(pos, last)
		}
		last = pos
	}

	for i, p := range last {
		if !p.IsFinite() {
			t.Fatalf("vertex %d not finite: %v", i, p)
		}
	}
	for _, c := range f.grid.Corners {
		if last[c] != f.ps[c].PinTarget {
			t.Errorf("corner %d moved to %v", c, last[c])
		}
	}
	if delta > 1e-3 {
		t.Errorf("cloth not settled: last frame delta %v", delta)
	}
}

func TestBackendsConverge(t *testing.T) {
	tests := []struct {
		name string
		dt   float32
	}{
		{"60hz", 1.0 / 60},
		{"40hz", 1.0 / 40},
		{"30hz", 1.0 / 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := compute.NewDevice()
			defer dev.Close()

			f := newFixture(t, 8)
			par := newParallel(t, dev, f, undriven(f))
			defer par.Dispose()

			seqPs := append([]pbd.Particle(nil), f.ps...)
			seq, err := NewSequential(seqPs, f.cs, undriven(f))
			if err != nil {
				t.Fatal(err)
			}

			for frame := 0; frame < 400; frame++ {
				p := Params{Dt: tt.dt, Gravity: true, Iterations: 30, Time: float64(frame) * float64(tt.dt)}
				if err := seq.Step(p); err != nil {
					t.Fatal(err)
				}
				if err := par.Step(p); err != nil {
					t.Fatal(err)
				}
			}

			a, _ := seq.Positions(context.Background())
			b, err := par.Positions(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if d := maxDelta(a, b); d > 2e-2 {
				t.Errorf("backends diverged by %v", d)
			}
		})
	}
}

func TestSubstepDtClamp(t *testing.T) {
	tests := []struct {
		dt       float32
		substeps int
		want     float32
	}{
		{-1, 1, 0},
		{0, 2, 0},
		{1.0 / 120, 1, 1.0 / 120},
		{MaxSubstepDt, 2, MaxSubstepDt / 2},
		{1.0 / 30, 1, MaxSubstepDt},
		{1.0 / 30, 4, MaxSubstepDt / 4},
	}
	for _, tt := range tests {
		if got := substepDt(tt.dt, tt.substeps); got != tt.want {
			t.Errorf("substepDt(%v, %d) = %v, want %v", tt.dt, tt.substeps, got, tt.want)
		}
	}
}

func TestBackendsHoldImmovableParticle(t *testing.T) {
	dev := compute.NewDevice()
	defer dev.Close()

	f := newFixture(t, 6)
	k := f.grid.Center
	f.ps[k].InvMass = 0
	f.ps[k].PrevPosition = f.ps[k].Position.Add(pbd.V(0, 0.3, 0))
	want := f.ps[k].Position

	par := newParallel(t, dev, f, undriven(f))
	defer par.Dispose()
	seq, err := NewSequential(append([]pbd.Particle(nil), f.ps...), f.cs, undriven(f))
	if err != nil {
		t.Fatal(err)
	}

	for frame := 0; frame < 30; frame++ {
		p := Params{Dt: frameDt, Gravity: true, Iterations: 8}
		if err := seq.Step(p); err != nil {
			t.Fatal(err)
		}
		if err := par.Step(p); err != nil {
			t.Fatal(err)
		}
	}

	a, _ := seq.Positions(context.Background())
	b, err := par.Positions(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if a[k] != want || b[k] != want {
		t.Errorf("immovable particle moved: cpu %v gpu %v, want %v", a[k], b[k], want)
	}
}

func TestParallelNotReadyIsNoop(t *testing.T) {
	dev := compute.NewDevice(compute.WithCompileDelay(10 * time.Second))
	defer dev.Close()

	f := newFixture(t, 4)
	s, err := NewParallel(dev, f.ps, f.grid.Edges(), f.cs, undriven(f))
	if err != nil {
		t.Fatal(err)
	}
	if s.Ready() {
		t.Fatal("pipelines ready before compile delay")
	}

	err = s.Step(Params{Dt: frameDt, Gravity: true, Iterations: 8})
	if !errors.Is(err, compute.ErrNotReady) {
		t.Fatalf("got %v, want ErrNotReady", err)
	}
	if st := dev.Queue().Stats(); st.Submitted != 0 || st.Dispatches != 0 {
		t.Errorf("work queued while not ready: %+v", st)
	}
	pos, err := s.Positions(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if d := maxDelta(pos, f.grid.Positions); d != 0 {
		t.Errorf("positions changed by %v", d)
	}
}

func TestParallelStepDispatchCount(t *testing.T) {
	dev := compute.NewDevice()
	defer dev.Close()

	f := newFixture(t, 6)
	s := newParallel(t, dev, f, Config{Driven: f.grid.Center, Substeps: 2})
	defer s.Dispose()

	if err := s.Step(Params{Dt: frameDt, Iterations: 3}); err != nil {
		t.Fatal(err)
	}
	<-dev.Queue().OnSubmittedWorkDone()

	// per substep: integrate, oscillate, 3 iterations of 12 groups
	want := uint64(2 * (2 + 3*12))
	if st := dev.Queue().Stats(); st.Dispatches != want || st.Submitted != 1 {
		t.Errorf("stats %+v, want %d dispatches in one submit", st, want)
	}
}

func TestParallelDrivesCenter(t *testing.T) {
	dev := compute.NewDevice()
	defer dev.Close()

	f := newFixture(t, 7)
	s := newParallel(t, dev, f, Config{Driver: drive.Default(), Driven: f.grid.Center})
	defer s.Dispose()

	if err := s.Step(Params{Dt: frameDt, Iterations: 1, Time: 0.25}); err != nil {
		t.Fatal(err)
	}
	pos, err := s.Positions(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if y := pos[f.grid.Center].Y; y <= 0 || y > 0.2 {
		t.Errorf("center y = %v, want in (0, 0.2]", y)
	}
}

func TestDriverPhaseLongRun(t *testing.T) {
	dev := compute.NewDevice()
	defer dev.Close()

	centerY := func(t *testing.T, backend string, at float64) float32 {
		f := newFixture(t, 7)
		cfg := Config{Driver: drive.Default(), Driven: f.grid.Center}
		var s Solver
		switch backend {
		case "cpu":
			seq, err := NewSequential(f.ps, f.cs, cfg)
			if err != nil {
				t.Fatal(err)
			}
			s = seq
		default:
			s = newParallel(t, dev, f, cfg)
		}
		defer s.Dispose()
		if err := s.Step(Params{Dt: frameDt, Iterations: 1, Time: at}); err != nil {
			t.Fatal(err)
		}
		pos, err := s.Positions(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		return pos[f.grid.Center].Y
	}

	for _, backend := range []string{"cpu", "gpu"} {
		t.Run(backend, func(t *testing.T) {
			near := centerY(t, backend, 0.25)
			far := centerY(t, backend, 1e5+0.25)
			if math.Abs(float64(far-near)) > 1e-5 {
				t.Errorf("center y after 1e5 s = %v, want %v", far, near)
			}
		})
	}
}

func TestParallelResetAndDispose(t *testing.T) {
	dev := compute.NewDevice()
	defer dev.Close()

	f := newFixture(t, 5)
	s := newParallel(t, dev, f, undriven(f))
	for range 5 {
		_ = s.Step(Params{Dt: frameDt, Gravity: true, Iterations: 4})
	}
	if err := s.Reset(f.grid.Positions); err != nil {
		t.Fatal(err)
	}
	pos, err := s.Positions(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if d := maxDelta(pos, f.grid.Positions); d != 0 {
		t.Errorf("reset left delta %v", d)
	}

	buf, size := s.PositionBuffer()
	if size != 16*f.grid.NumVertices() {
		t.Errorf("position buffer size = %d, want %d", size, 16*f.grid.NumVertices())
	}

	s.Dispose()
	s.Dispose()
	<-dev.Queue().OnSubmittedWorkDone()
	if !buf.Destroyed() {
		t.Error("position buffer survived Dispose")
	}
	if err := s.Step(Params{Dt: frameDt}); !errors.Is(err, ErrDisposed) {
		t.Errorf("step after dispose: got %v, want ErrDisposed", err)
	}
}

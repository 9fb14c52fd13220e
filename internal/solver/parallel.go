package solver

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/clothsim/internal/compute"
	"github.com/san-kum/clothsim/internal/mesh"
	"github.com/san-kum/clothsim/internal/partition"
	"github.com/san-kum/clothsim/internal/pbd"
)

// Parallel relaxes constraints on a compute device. Within an edge group
// projections run concurrently and see the positions from before the
// dispatch; groups run one after another.
type Parallel struct {
	cfg      Config
	dev      *compute.Device
	numVerts int
	groups   []partition.Group

	positions *compute.Buffer
	prev      *compute.Buffer
	invMass   *compute.Buffer
	params    *compute.Buffer
	edgeBufs  []*compute.Buffer

	integrate *compute.PipelineFuture
	oscillate *compute.PipelineFuture
	constrain *compute.PipelineFuture

	disposed bool
}

// NewParallel uploads the particle state and edge groups and starts
// building the pipelines. Step returns compute.ErrNotReady until the builds
// finish.
func NewParallel(dev *compute.Device, ps []pbd.Particle, edges []mesh.Edge, cs *pbd.ConstraintSet, cfg Config) (*Parallel, error) {
	if err := cs.Validate(len(ps)); err != nil {
		return nil, err
	}
	if int(cfg.Driven) >= len(ps) {
		return nil, fmt.Errorf("%w: driven particle %d of %d", pbd.ErrIndexRange, cfg.Driven, len(ps))
	}
	groups, err := partition.Split(edges, cs.Distance)
	if err != nil {
		return nil, fmt.Errorf("partition constraints: %w", err)
	}
	if err := partition.Validate(groups, len(cs.Distance)); err != nil {
		return nil, fmt.Errorf("partition constraints: %w", err)
	}
	cfg = cfg.withDefaults()

	s := &Parallel{
		cfg:      cfg,
		dev:      dev,
		numVerts: len(ps),
		groups:   groups,
	}
	s.integrate = dev.CreatePipelineAsync(compute.Kernel{Name: "integrate", Fn: integrateKernel})
	s.oscillate = dev.CreatePipelineAsync(compute.Kernel{Name: "oscillate", Fn: oscillateKernel})
	s.constrain = dev.CreatePipelineAsync(compute.Kernel{Name: "constrain", Fn: constrainKernel})

	pos := make([]uint32, stride*len(ps))
	prev := make([]uint32, stride*len(ps))
	inv := make([]float32, len(ps))
	for i := range ps {
		putVec(pos, i, ps[i].Position)
		putVec(prev, i, ps[i].PrevPosition)
		inv[i] = ps[i].InvMass
	}
	s.positions = dev.CreateBufferInit("positions", pos)
	s.prev = dev.CreateBufferInit("prev", prev)
	s.invMass = dev.CreateBufferInit("invMass", compute.Words(inv))
	s.params = dev.CreateBuffer("params", paramWords)
	s.edgeBufs = make([]*compute.Buffer, len(groups))
	for gi, g := range groups {
		s.edgeBufs[gi] = dev.CreateBufferInit("edges."+g.Name, partition.Pack(g))
	}

	cfg.Logger.Debug("parallel solver created",
		"device", dev.Name(),
		"particles", len(ps),
		"constraints", len(cs.Distance),
		"groups", len(groups),
	)
	return s, nil
}

func putVec(words []uint32, i int, v pbd.Vec3) {
	o := i * stride
	words[o] = math.Float32bits(v.X)
	words[o+1] = math.Float32bits(v.Y)
	words[o+2] = math.Float32bits(v.Z)
}

func (s *Parallel) Name() string { return "gpu" }

// Groups returns the edge groups in dispatch order.
func (s *Parallel) Groups() []partition.Group { return s.groups }

// Ready reports whether every pipeline has been built.
func (s *Parallel) Ready() bool {
	return s.integrate.Ready() && s.oscillate.Ready() && s.constrain.Ready()
}

// WaitReady blocks until the pipelines are built or ctx is done.
func (s *Parallel) WaitReady(ctx context.Context) error {
	for _, f := range []*compute.PipelineFuture{s.integrate, s.oscillate, s.constrain} {
		if _, err := f.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Parallel) pipelines() (integrate, oscillate, constrain *compute.Pipeline, err error) {
	for _, f := range []*compute.PipelineFuture{s.integrate, s.oscillate, s.constrain} {
		if err := f.Err(); err != nil {
			return nil, nil, nil, err
		}
	}
	var ok1, ok2, ok3 bool
	integrate, ok1 = s.integrate.Pipeline()
	oscillate, ok2 = s.oscillate.Pipeline()
	constrain, ok3 = s.constrain.Pipeline()
	if !ok1 || !ok2 || !ok3 {
		return nil, nil, nil, compute.ErrNotReady
	}
	return integrate, oscillate, constrain, nil
}

// Step records the whole frame into one command buffer and submits it.
// Nothing is queued when the pipelines are not ready.
func (s *Parallel) Step(p Params) error {
	if s.disposed {
		return ErrDisposed
	}
	integrate, oscillate, constrain, err := s.pipelines()
	if err != nil {
		return err
	}

	h := substepDt(p.Dt, s.cfg.Substeps)
	iterations := ClampIterations(p.Iterations)

	enc := s.dev.NewEncoder()
	for sub := 0; sub < s.cfg.Substeps; sub++ {
		enc.WriteBuffer(s.params, 0, s.paramWords(p, h, iterations, p.Time+float64(sub)*float64(h)))
		enc.Dispatch(integrate, s.numVerts, s.positions, s.prev, s.invMass, s.params)
		enc.Dispatch(oscillate, 1, s.positions, s.invMass, s.params)
		for it := 0; it < iterations; it++ {
			for gi, g := range s.groups {
				if len(g.Constraints) == 0 {
					continue
				}
				enc.Dispatch(constrain, len(g.Constraints), s.positions, s.invMass, s.edgeBufs[gi])
			}
		}
	}
	s.dev.Queue().Submit(enc.Finish())
	return nil
}

func (s *Parallel) paramWords(p Params, h float32, iterations int, t float64) []uint32 {
	var gravity float32
	if p.Gravity {
		gravity = s.cfg.Gravity.Y
	}
	o := s.cfg.Driver
	var on uint32
	if o.Enabled {
		on = 1
	}
	w := make([]uint32, paramWords)
	w[paramDt] = math.Float32bits(h)
	w[paramGravity] = math.Float32bits(gravity)
	w[paramCompliance] = math.Float32bits(0)
	w[paramIterations] = uint32(iterations)
	w[paramDriven] = s.cfg.Driven
	w[paramYOffset] = math.Float32bits(o.YOffset)
	w[paramAmplitude] = math.Float32bits(o.Amplitude)
	w[paramOmega] = math.Float32bits(o.Omega())
	w[paramTime] = math.Float32bits(o.Phase(t))
	w[paramNumVerts] = uint32(s.numVerts)
	w[paramDriverOn] = on
	return w
}

// Positions reads the positions back after all submitted work.
func (s *Parallel) Positions(ctx context.Context) ([]pbd.Vec3, error) {
	words, err := s.dev.Queue().Read(ctx, s.positions)
	if err != nil {
		return nil, fmt.Errorf("read positions: %w", err)
	}
	out := make([]pbd.Vec3, s.numVerts)
	fs := compute.Floats(words)
	for i := range out {
		o := i * stride
		out[i] = pbd.Vec3{X: fs[o], Y: fs[o+1], Z: fs[o+2]}
	}
	return out, nil
}

// PositionBuffer exposes the device position buffer and its size in bytes.
func (s *Parallel) PositionBuffer() (*compute.Buffer, int) {
	return s.positions, s.positions.Size()
}

// Reset queues a write of rest into both position buffers.
func (s *Parallel) Reset(rest []pbd.Vec3) error {
	if s.disposed {
		return ErrDisposed
	}
	if len(rest) != s.numVerts {
		return fmt.Errorf("%w: reset with %d positions for %d particles", pbd.ErrInvalidState, len(rest), s.numVerts)
	}
	words := make([]uint32, stride*len(rest))
	for i, v := range rest {
		putVec(words, i, v)
	}
	q := s.dev.Queue()
	q.WriteBuffer(s.positions, 0, words)
	q.WriteBuffer(s.prev, 0, words)
	return nil
}

// Dispose queues destruction of every buffer. Work submitted earlier still
// completes.
func (s *Parallel) Dispose() {
	if s.disposed {
		return
	}
	s.disposed = true
	s.positions.Destroy()
	s.prev.Destroy()
	s.invMass.Destroy()
	s.params.Destroy()
	for _, b := range s.edgeBufs {
		b.Destroy()
	}
	s.cfg.Logger.Debug("parallel solver disposed", "buffers", 4+len(s.edgeBufs))
}

package solver

import (
	"context"
	"fmt"

	"github.com/san-kum/clothsim/internal/pbd"
)

// Predict advances free particles by Verlet integration. Pinned particles
// are placed on their target with zero velocity. A zero dt still carries
// the particles forward by pos - prev.
func Predict(ps []pbd.Particle, dt float32, accel pbd.Vec3) {
	step := accel.Scale(dt * dt)
	for i := range ps {
		p := &ps[i]
		if p.Pinned {
			p.Position = p.PinTarget
			p.PrevPosition = p.PinTarget
			continue
		}
		// An immovable particle without a pin target holds where it is and
		// loses any velocity. The parallel integrate kernel has no pin targets
		// and does the same for every zero inverse mass.
		if p.InvMass == 0 {
			p.PrevPosition = p.Position
			continue
		}
		next := p.Position.Add(p.Velocity()).Add(step)
		p.PrevPosition = p.Position
		p.Position = next
	}
}

// Relax runs iterations Gauss-Seidel sweeps and re-clamps pinned particles
// after each one.
func Relax(ps []pbd.Particle, cs *pbd.ConstraintSet, dt float32, iterations int) {
	for it := 0; it < iterations; it++ {
		cs.Project(ps, dt)
		for i := range ps {
			ps[i].Clamp()
		}
	}
}

// StepParticles performs one undriven PBD step in place.
func StepParticles(ps []pbd.Particle, cs *pbd.ConstraintSet, dt float32, gravityOn bool, iterations int, gravity pbd.Vec3) {
	var accel pbd.Vec3
	if gravityOn {
		accel = gravity
	}
	Predict(ps, dt, accel)
	Relax(ps, cs, dt, ClampIterations(iterations))
}

// Sequential is the single-threaded strategy. It owns the particle slice it
// was created with.
type Sequential struct {
	cfg       Config
	particles []pbd.Particle
	cs        *pbd.ConstraintSet
	disposed  bool
}

func NewSequential(ps []pbd.Particle, cs *pbd.ConstraintSet, cfg Config) (*Sequential, error) {
	if err := cs.Validate(len(ps)); err != nil {
		return nil, err
	}
	if int(cfg.Driven) >= len(ps) {
		return nil, fmt.Errorf("%w: driven particle %d of %d", pbd.ErrIndexRange, cfg.Driven, len(ps))
	}
	cfg = cfg.withDefaults()
	cfg.Logger.Debug("sequential solver created", "particles", len(ps), "constraints", cs.Len())
	return &Sequential{cfg: cfg, particles: ps, cs: cs}, nil
}

func (s *Sequential) Name() string { return "cpu" }

// Particles exposes the live particle state.
func (s *Sequential) Particles() []pbd.Particle { return s.particles }

func (s *Sequential) Step(p Params) error {
	if s.disposed {
		return ErrDisposed
	}
	var accel pbd.Vec3
	if p.Gravity {
		accel = s.cfg.Gravity
	}
	iterations := ClampIterations(p.Iterations)
	h := substepDt(p.Dt, s.cfg.Substeps)
	for sub := 0; sub < s.cfg.Substeps; sub++ {
		Predict(s.particles, h, accel)
		s.drive(p.Time + float64(sub)*float64(h))
		Relax(s.particles, s.cs, h, iterations)
	}
	return nil
}

func (s *Sequential) drive(t float64) {
	if !s.cfg.Driver.Enabled {
		return
	}
	c := &s.particles[s.cfg.Driven]
	if c.Pinned {
		return
	}
	o := s.cfg.Driver
	c.Position.Y = o.Height(t)
}

func (s *Sequential) Positions(context.Context) ([]pbd.Vec3, error) {
	return pbd.Positions(nil, s.particles), nil
}

func (s *Sequential) Reset(rest []pbd.Vec3) error {
	if len(rest) != len(s.particles) {
		return fmt.Errorf("%w: reset with %d positions for %d particles", pbd.ErrInvalidState, len(rest), len(s.particles))
	}
	for i := range s.particles {
		p := &s.particles[i]
		p.Position = rest[i]
		p.PrevPosition = rest[i]
		if p.Pinned {
			p.PinTarget = rest[i]
		}
	}
	return nil
}

func (s *Sequential) Dispose() { s.disposed = true }

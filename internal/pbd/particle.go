package pbd

// Particle is the per-vertex physical state. A pinned particle has zero
// inverse mass and is held at PinTarget by every solver pass.
type Particle struct {
	Position     Vec3
	PrevPosition Vec3
	InvMass      float32
	Pinned       bool
	PinTarget    Vec3
}

// NewParticle creates a particle at rest at pos. A non-positive mass yields
// an immovable particle.
func NewParticle(pos Vec3, mass float32) Particle {
	p := Particle{Position: pos, PrevPosition: pos}
	if mass > 0 {
		p.InvMass = 1 / mass
	}
	return p
}

// Pin fixes the particle at target.
func (p *Particle) Pin(target Vec3) {
	p.Pinned = true
	p.InvMass = 0
	p.PinTarget = target
}

// Clamp forces a pinned particle back onto its target.
func (p *Particle) Clamp() {
	if p.Pinned {
		p.Position = p.PinTarget
	}
}

// Velocity is the implicit per-step velocity of Verlet integration.
func (p *Particle) Velocity() Vec3 { return p.Position.Sub(p.PrevPosition) }

// ParticlesValid reports whether every particle position is finite.
func ParticlesValid(ps []Particle) bool {
	for i := range ps {
		if !ps[i].Position.IsFinite() || !ps[i].PrevPosition.IsFinite() {
			return false
		}
	}
	return true
}

// Positions copies particle positions into dst, growing it if needed.
func Positions(dst []Vec3, ps []Particle) []Vec3 {
	if cap(dst) < len(ps) {
		dst = make([]Vec3, len(ps))
	}
	dst = dst[:len(ps)]
	for i := range ps {
		dst[i] = ps[i].Position
	}
	return dst
}

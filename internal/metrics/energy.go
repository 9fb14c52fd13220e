package metrics

import "github.com/san-kum/clothsim/internal/pbd"

// Kinetic is the kinetic energy of the most recent frame, estimated from the
// displacement since the previous one.
type Kinetic struct {
	mass  float64
	last  []pbd.Vec3
	lastT float64
	value float64
}

func NewKinetic(mass float64) *Kinetic {
	return &Kinetic{mass: mass}
}

func (k *Kinetic) Name() string { return "kinetic" }

func (k *Kinetic) Observe(positions []pbd.Vec3, t float64) {
	dt := t - k.lastT
	if len(k.last) == len(positions) && dt > 0 {
		var sum float64
		for i, p := range positions {
			d := p.Sub(k.last[i])
			sum += float64(d.Dot(d))
		}
		k.value = 0.5 * k.mass * sum / (dt * dt)
	}
	k.last = append(k.last[:0], positions...)
	k.lastT = t
}

func (k *Kinetic) Value() float64 { return k.value }

func (k *Kinetic) Reset() {
	k.last = k.last[:0]
	k.lastT = 0
	k.value = 0
}

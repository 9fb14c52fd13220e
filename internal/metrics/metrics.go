// Package metrics observes cloth frames and reduces them to scalars.
package metrics

import "github.com/san-kum/clothsim/internal/pbd"

type Metric interface {
	Name() string
	Observe(positions []pbd.Vec3, t float64)
	Value() float64
	Reset()
}

// Set observes a frame with every metric it holds.
type Set []Metric

func (s Set) Observe(positions []pbd.Vec3, t float64) {
	for _, m := range s {
		m.Observe(positions, t)
	}
}

func (s Set) Reset() {
	for _, m := range s {
		m.Reset()
	}
}

// Values returns metric values keyed by name.
func (s Set) Values() map[string]float64 {
	out := make(map[string]float64, len(s))
	for _, m := range s {
		out[m.Name()] = m.Value()
	}
	return out
}

package metrics

import (
	"math"

	"github.com/san-kum/clothsim/internal/pbd"
)

// Stability is the fraction of frames whose positions are finite and inside
// a box of half-width threshold.
type Stability struct {
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{threshold: threshold}
}

func (s *Stability) Name() string {
	return "stability"
}

func (s *Stability) Observe(positions []pbd.Vec3, _ float64) {
	s.samples++
	for _, p := range positions {
		if !p.IsFinite() ||
			math.Abs(float64(p.X)) > s.threshold ||
			math.Abs(float64(p.Y)) > s.threshold ||
			math.Abs(float64(p.Z)) > s.threshold {
			s.violations++
			break
		}
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}

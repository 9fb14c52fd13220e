package metrics

import "github.com/san-kum/clothsim/internal/pbd"

// Sag is how far the lowest particle hangs below the rest plane in the most
// recent frame.
type Sag struct {
	value float64
}

func NewSag() *Sag { return &Sag{} }

func (s *Sag) Name() string { return "sag" }

func (s *Sag) Observe(positions []pbd.Vec3, _ float64) {
	var low float32
	for _, p := range positions {
		low = min(low, p.Y)
	}
	s.value = float64(-low)
}

func (s *Sag) Value() float64 { return s.value }
func (s *Sag) Reset()         { s.value = 0 }

// Settle is the largest single-particle displacement between the two most
// recent frames. It tends to zero once the cloth comes to rest.
type Settle struct {
	last  []pbd.Vec3
	value float64
}

func NewSettle() *Settle { return &Settle{} }

func (s *Settle) Name() string { return "settle" }

func (s *Settle) Observe(positions []pbd.Vec3, _ float64) {
	if len(s.last) == len(positions) {
		var worst float32
		for i, p := range positions {
			worst = max(worst, p.Distance(s.last[i]))
		}
		s.value = float64(worst)
	}
	s.last = append(s.last[:0], positions...)
}

func (s *Settle) Value() float64 { return s.value }

func (s *Settle) Reset() {
	s.last = s.last[:0]
	s.value = 0
}

// Stretch is the peak relative length error over all constraints and frames.
type Stretch struct {
	constraints []pbd.DistanceConstraint
	peak        float64
}

func NewStretch(constraints []pbd.DistanceConstraint) *Stretch {
	return &Stretch{constraints: constraints}
}

func (s *Stretch) Name() string { return "stretch" }

func (s *Stretch) Observe(positions []pbd.Vec3, _ float64) {
	for _, c := range s.constraints {
		if c.RestLength == 0 || int(c.I) >= len(positions) || int(c.J) >= len(positions) {
			continue
		}
		r := float64(c.Residual(positions) / c.RestLength)
		if r < 0 {
			r = -r
		}
		s.peak = max(s.peak, r)
	}
}

func (s *Stretch) Value() float64 { return s.peak }
func (s *Stretch) Reset()         { s.peak = 0 }

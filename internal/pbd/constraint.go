package pbd

import "fmt"

// MinLength floors the constraint length before normalization so that
// coincident particles produce a near-zero correction instead of NaN.
const MinLength = 1e-8

// Kind discriminates constraint variants stored in a ConstraintSet.
type Kind uint8

const (
	KindDistance Kind = iota
)

func (k Kind) String() string {
	switch k {
	case KindDistance:
		return "distance"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Constraint is the capability every constraint kind implements.
type Constraint interface {
	Kind() Kind
	Project(ps []Particle, dt float32)
}

// DistanceConstraint keeps particles I and J at RestLength apart with zero
// compliance.
type DistanceConstraint struct {
	I, J       uint32
	RestLength float32
}

// NewDistance captures the current distance between ps[i] and ps[j] as the
// rest length.
func NewDistance(ps []Particle, i, j uint32) DistanceConstraint {
	return DistanceConstraint{
		I:          i,
		J:          j,
		RestLength: ps[i].Position.Distance(ps[j].Position),
	}
}

func (c DistanceConstraint) Kind() Kind { return KindDistance }

// Project applies one position correction. dt is unused by a fully stiff
// constraint and kept for the interface.
func (c DistanceConstraint) Project(ps []Particle, _ float32) {
	a := &ps[c.I]
	b := &ps[c.J]
	wa, wb := a.InvMass, b.InvMass
	w := wa + wb
	if w == 0 {
		return
	}
	dir := a.Position.Sub(b.Position)
	l := dir.Length()
	if l < MinLength {
		l = MinLength
	}
	n := dir.Scale(1 / l)
	corr := (l - c.RestLength) / w
	if wa > 0 {
		a.Position = a.Position.Sub(n.Scale(corr * wa))
	}
	if wb > 0 {
		b.Position = b.Position.Add(n.Scale(corr * wb))
	}
}

// Residual is the signed length error |a-b| - rest over a position
// snapshot.
func (c DistanceConstraint) Residual(positions []Vec3) float32 {
	return positions[c.I].Distance(positions[c.J]) - c.RestLength
}

type entry struct {
	kind  Kind
	index uint32
}

// ConstraintSet stores constraints flat per kind and remembers insertion
// order across kinds.
type ConstraintSet struct {
	order    []entry
	Distance []DistanceConstraint
}

func NewConstraintSet() *ConstraintSet {
	return &ConstraintSet{}
}

// AddDistance appends a distance constraint whose rest length is the
// current distance between ps[i] and ps[j].
func (s *ConstraintSet) AddDistance(ps []Particle, i, j uint32) {
	s.AddDistanceRest(i, j, ps[i].Position.Distance(ps[j].Position))
}

// AddDistanceRest appends a distance constraint with an explicit rest length.
func (s *ConstraintSet) AddDistanceRest(i, j uint32, rest float32) {
	s.order = append(s.order, entry{kind: KindDistance, index: uint32(len(s.Distance))})
	s.Distance = append(s.Distance, DistanceConstraint{I: i, J: j, RestLength: rest})
}

func (s *ConstraintSet) Len() int { return len(s.order) }

// At returns the i-th constraint in insertion order.
func (s *ConstraintSet) At(i int) Constraint {
	e := s.order[i]
	switch e.kind {
	case KindDistance:
		return s.Distance[e.index]
	default:
		panic(fmt.Sprintf("pbd: unknown constraint %s", e.kind))
	}
}

// Project runs one Gauss-Seidel sweep over every constraint in insertion
// order. Each projection sees the positions written by the previous ones.
func (s *ConstraintSet) Project(ps []Particle, dt float32) {
	for _, e := range s.order {
		switch e.kind {
		case KindDistance:
			s.Distance[e.index].Project(ps, dt)
		}
	}
}

// Validate checks that every constraint references one of n particles.
func (s *ConstraintSet) Validate(n int) error {
	for k, c := range s.Distance {
		if int(c.I) >= n || int(c.J) >= n {
			return fmt.Errorf("%w: distance constraint %d (%d, %d) with %d particles", ErrIndexRange, k, c.I, c.J, n)
		}
	}
	return nil
}

package pbd

import (
	"errors"
	"math"
	"testing"
)

func TestNewParticle(t *testing.T) {
	tests := []struct {
		name    string
		mass    float32
		invMass float32
	}{
		{"unit", 1, 1},
		{"heavy", 4, 0.25},
		{"zero mass", 0, 0},
		{"negative mass", -1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewParticle(V(1, 2, 3), tt.mass)
			if p.InvMass != tt.invMass {
				t.Errorf("InvMass = %v, want %v", p.InvMass, tt.invMass)
			}
			if p.Position != p.PrevPosition {
				t.Errorf("new particle should be at rest, got %v / %v", p.Position, p.PrevPosition)
			}
		})
	}
}

func TestPinZeroesInverseMass(t *testing.T) {
	p := NewParticle(V(0, 0, 0), 1)
	p.Pin(V(1, 1, 1))
	if !p.Pinned || p.InvMass != 0 {
		t.Fatalf("pinned particle: Pinned=%v InvMass=%v", p.Pinned, p.InvMass)
	}
	p.Clamp()
	if p.Position != V(1, 1, 1) {
		t.Errorf("Clamp moved particle to %v, want pin target", p.Position)
	}
}

func TestRestLengthFromInitialPositions(t *testing.T) {
	ps := []Particle{NewParticle(V(0, 0, 0), 1), NewParticle(V(3, 4, 0), 1)}
	c := NewDistance(ps, 0, 1)
	if c.RestLength != 5 {
		t.Fatalf("RestLength = %v, want 5", c.RestLength)
	}

	ps[1].Position = V(10, 0, 0)
	if c.RestLength != 5 {
		t.Errorf("rest length changed after particles moved: %v", c.RestLength)
	}
}

func TestDistanceProjectSatisfiesConstraint(t *testing.T) {
	ps := []Particle{NewParticle(V(0, 0, 0), 1), NewParticle(V(1, 0, 0), 1)}
	c := NewDistance(ps, 0, 1)

	ps[1].Position = V(2, 0, 0)
	c.Project(ps, 1.0/60)

	if got := ps[0].Position.Distance(ps[1].Position); math.Abs(float64(got-1)) > 1e-6 {
		t.Errorf("distance after projection = %v, want 1", got)
	}
	if ps[0].Position.X != 0.5 || ps[1].Position.X != 1.5 {
		t.Errorf("equal masses should share the correction, got %v and %v", ps[0].Position, ps[1].Position)
	}
}

func TestDistanceResidual(t *testing.T) {
	ps := []Particle{NewParticle(V(0, 0, 0), 1), NewParticle(V(1, 0, 0), 1)}
	c := NewDistance(ps, 0, 1)

	tests := []struct {
		b    Vec3
		want float32
	}{
		{V(1, 0, 0), 0},
		{V(3, 0, 0), 2},
		{V(0, 0.5, 0), -0.5},
	}
	for _, tt := range tests {
		if got := c.Residual([]Vec3{ps[0].Position, tt.b}); math.Abs(float64(got-tt.want)) > 1e-6 {
			t.Errorf("Residual with b=%v = %v, want %v", tt.b, got, tt.want)
		}
	}
}

func TestDistanceProjectRespectsPins(t *testing.T) {
	ps := []Particle{NewParticle(V(0, 0, 0), 1), NewParticle(V(1, 0, 0), 1)}
	c := NewDistance(ps, 0, 1)
	ps[0].Pin(V(0, 0, 0))

	ps[1].Position = V(3, 0, 0)
	c.Project(ps, 0)

	if ps[0].Position != V(0, 0, 0) {
		t.Errorf("pinned particle moved to %v", ps[0].Position)
	}
	if ps[1].Position != V(1, 0, 0) {
		t.Errorf("free particle = %v, want (1,0,0)", ps[1].Position)
	}
}

func TestDistanceProjectBothPinnedIsNoop(t *testing.T) {
	ps := []Particle{NewParticle(V(0, 0, 0), 0), NewParticle(V(5, 0, 0), 0)}
	c := DistanceConstraint{I: 0, J: 1, RestLength: 1}
	c.Project(ps, 0)
	if ps[0].Position != V(0, 0, 0) || ps[1].Position != V(5, 0, 0) {
		t.Errorf("immovable particles moved: %v %v", ps[0].Position, ps[1].Position)
	}
}

func TestDistanceProjectCoincidentPoints(t *testing.T) {
	ps := []Particle{NewParticle(V(1, 1, 1), 1), NewParticle(V(1, 1, 1), 1)}
	c := DistanceConstraint{I: 0, J: 1, RestLength: 0.5}
	c.Project(ps, 0)
	if !ps[0].Position.IsFinite() || !ps[1].Position.IsFinite() {
		t.Fatalf("degenerate constraint produced non-finite positions: %v %v", ps[0].Position, ps[1].Position)
	}
}

func TestConstraintSetOrderAndKinds(t *testing.T) {
	ps := []Particle{
		NewParticle(V(0, 0, 0), 1),
		NewParticle(V(1, 0, 0), 1),
		NewParticle(V(2, 0, 0), 1),
	}
	cs := NewConstraintSet()
	cs.AddDistance(ps, 0, 1)
	cs.AddDistanceRest(1, 2, 3)

	if cs.Len() != 2 {
		t.Fatalf("Len = %d, want 2", cs.Len())
	}
	second, ok := cs.At(1).(DistanceConstraint)
	if !ok || second.Kind() != KindDistance {
		t.Fatalf("At(1) = %#v, want distance constraint", cs.At(1))
	}
	if second.RestLength != 3 {
		t.Errorf("explicit rest length = %v, want 3", second.RestLength)
	}
	if KindDistance.String() != "distance" {
		t.Errorf("KindDistance.String() = %q", KindDistance.String())
	}
}

func TestConstraintSetValidate(t *testing.T) {
	cs := NewConstraintSet()
	cs.AddDistanceRest(0, 3, 1)
	if err := cs.Validate(4); err != nil {
		t.Fatalf("Validate(4) = %v", err)
	}
	if err := cs.Validate(3); !errors.Is(err, ErrIndexRange) {
		t.Errorf("Validate(3) = %v, want ErrIndexRange", err)
	}
}

func TestParticlesValid(t *testing.T) {
	ps := []Particle{NewParticle(V(0, 0, 0), 1)}
	if !ParticlesValid(ps) {
		t.Fatal("finite particles reported invalid")
	}
	ps[0].Position.Y = float32(math.NaN())
	if ParticlesValid(ps) {
		t.Error("NaN particle reported valid")
	}
}

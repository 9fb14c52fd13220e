// Package mesh builds the regular cloth grid: rest positions, triangle
// indices, pinned corners, the driven center vertex and the edge families
// the constraint set and the edge partitioner are derived from.
package mesh

import (
	"errors"
	"fmt"

	"github.com/san-kum/clothsim/internal/pbd"
)

// ErrDimensions indicates a grid smaller than 2x2 or a non-positive side.
var ErrDimensions = errors.New("mesh: grid needs nx, ny >= 2 and side > 0")

// Grid is the topology of an nx by ny vertex sheet lying in the XZ plane,
// centered at the origin.
type Grid struct {
	NX, NY    int
	Side      float32
	Positions []pbd.Vec3
	Indices   []uint32
	Corners   [4]uint32
	Center    uint32
}

// Index maps grid coordinates to a row-major vertex index.
func Index(nx, x, y int) uint32 { return uint32(y*nx + x) }

// Build generates the grid topology. It is pure: identical inputs give
// identical grids.
func Build(nx, ny int, side float32) (*Grid, error) {
	if nx < 2 || ny < 2 || !(side > 0) {
		return nil, fmt.Errorf("%w: got %dx%d side %g", ErrDimensions, nx, ny, side)
	}

	g := &Grid{
		NX:        nx,
		NY:        ny,
		Side:      side,
		Positions: RestPositions(nx, ny, side),
		Indices:   make([]uint32, 0, 6*(nx-1)*(ny-1)),
	}

	for y := 0; y < ny-1; y++ {
		for x := 0; x < nx-1; x++ {
			a := Index(nx, x, y)
			b := Index(nx, x+1, y)
			c := Index(nx, x, y+1)
			d := Index(nx, x+1, y+1)
			g.Indices = append(g.Indices, a, c, b, b, c, d)
		}
	}

	g.Corners = [4]uint32{
		Index(nx, 0, 0),
		Index(nx, nx-1, 0),
		Index(nx, 0, ny-1),
		Index(nx, nx-1, ny-1),
	}
	g.Center = Index(nx, nx/2, ny/2)
	return g, nil
}

// RestPositions returns the flat rest configuration without building the
// rest of the topology. Reset uses it to restore positions in place.
func RestPositions(nx, ny int, side float32) []pbd.Vec3 {
	dx := side / float32(nx-1)
	dz := side / float32(ny-1)
	x0 := -side / 2
	z0 := -side / 2

	pos := make([]pbd.Vec3, 0, nx*ny)
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			pos = append(pos, pbd.Vec3{X: x0 + float32(x)*dx, Y: 0, Z: z0 + float32(y)*dz})
		}
	}
	return pos
}

func (g *Grid) NumVertices() int  { return g.NX * g.NY }
func (g *Grid) NumTriangles() int { return len(g.Indices) / 3 }

// IsCorner reports whether vertex i is one of the four pinned corners.
func (g *Grid) IsCorner(i uint32) bool {
	for _, c := range g.Corners {
		if c == i {
			return true
		}
	}
	return false
}

// Particles creates one particle per rest position and pins the corners
// to their own rest positions.
func (g *Grid) Particles(mass float32) []pbd.Particle {
	ps := make([]pbd.Particle, len(g.Positions))
	for i, p := range g.Positions {
		ps[i] = pbd.NewParticle(p, mass)
	}
	for _, c := range g.Corners {
		ps[c].Pin(ps[c].Position)
	}
	return ps
}

// Constraints creates one distance constraint per grid edge, in edge order,
// with rest lengths taken from the particles' current positions.
func (g *Grid) Constraints(ps []pbd.Particle) *pbd.ConstraintSet {
	cs := pbd.NewConstraintSet()
	for _, e := range g.Edges() {
		cs.AddDistance(ps, e.A, e.B)
	}
	return cs
}

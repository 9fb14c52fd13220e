package mesh

// Family identifies the orientation of a grid edge.
type Family uint8

const (
	Horizontal   Family = iota // (x,y)-(x+1,y)
	Vertical                   // (x,y)-(x,y+1)
	Diagonal                   // (x,y)-(x+1,y+1)
	AntiDiagonal               // (x+1,y)-(x,y+1)
)

func (f Family) String() string {
	switch f {
	case Horizontal:
		return "H"
	case Vertical:
		return "V"
	case Diagonal:
		return "D1"
	case AntiDiagonal:
		return "D2"
	}
	return "?"
}

// Edge is a constraint edge between vertices A and B. X and Y are the
// grid coordinates of the cell (or left/top endpoint) the edge belongs to.
type Edge struct {
	A, B   uint32
	Family Family
	X, Y   int
}

// Edges lists every structural and shear edge of the grid. For each vertex
// in row-major order it emits, when the neighbor exists, the horizontal,
// vertical, diagonal and anti-diagonal edges. This order is the constraint
// insertion order of the sequential solver.
func (g *Grid) Edges() []Edge {
	nx, ny := g.NX, g.NY
	edges := make([]Edge, 0, NumEdges(nx, ny))
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			right := x+1 < nx
			down := y+1 < ny
			if right {
				edges = append(edges, Edge{Index(nx, x, y), Index(nx, x+1, y), Horizontal, x, y})
			}
			if down {
				edges = append(edges, Edge{Index(nx, x, y), Index(nx, x, y+1), Vertical, x, y})
			}
			if right && down {
				edges = append(edges, Edge{Index(nx, x, y), Index(nx, x+1, y+1), Diagonal, x, y})
				edges = append(edges, Edge{Index(nx, x+1, y), Index(nx, x, y+1), AntiDiagonal, x, y})
			}
		}
	}
	return edges
}

// NumEdges is the edge count of an nx by ny grid.
func NumEdges(nx, ny int) int {
	return (nx-1)*ny + nx*(ny-1) + 2*(nx-1)*(ny-1)
}

package partition

import (
	"fmt"
	"math"

	"github.com/san-kum/clothsim/internal/mesh"
	"github.com/san-kum/clothsim/internal/pbd"
)

// NumGroups is the number of colors a regular grid needs.
const NumGroups = 12

// EdgeWords is the packed size of one edge in 32-bit words: i, j, rest, pad.
const EdgeWords = 4

// Group is one color class of constraints.
type Group struct {
	Name        string
	Constraints []pbd.DistanceConstraint
}

// GroupOf returns the group index of an edge.
func GroupOf(e mesh.Edge) int {
	xp, yp := e.X&1, e.Y&1
	switch e.Family {
	case mesh.Horizontal:
		return xp
	case mesh.Vertical:
		return 2 + yp
	case mesh.Diagonal:
		return 4 + xp*2 + yp
	default:
		return 8 + xp*2 + yp
	}
}

// GroupName returns the conventional label of group g.
func GroupName(g int) string {
	switch {
	case g < 2:
		return fmt.Sprintf("H%d", g)
	case g < 4:
		return fmt.Sprintf("V%d", g-2)
	case g < 8:
		return fmt.Sprintf("D1_%d%d", (g-4)>>1, (g-4)&1)
	default:
		return fmt.Sprintf("D2_%d%d", (g-8)>>1, (g-8)&1)
	}
}

// Split distributes constraints into the 12 groups. constraints[k] must be
// the constraint built from edges[k]; order inside a group follows edges.
func Split(edges []mesh.Edge, constraints []pbd.DistanceConstraint) ([]Group, error) {
	if len(edges) != len(constraints) {
		return nil, fmt.Errorf("partition: %d edges but %d constraints", len(edges), len(constraints))
	}
	groups := make([]Group, NumGroups)
	for g := range groups {
		groups[g].Name = GroupName(g)
	}
	for k, e := range edges {
		c := constraints[k]
		if c.I != e.A || c.J != e.B {
			return nil, fmt.Errorf("partition: constraint %d (%d,%d) does not match edge (%d,%d)", k, c.I, c.J, e.A, e.B)
		}
		g := GroupOf(e)
		groups[g].Constraints = append(groups[g].Constraints, c)
	}
	return groups, nil
}

// ConflictError reports a vertex referenced twice inside one group.
type ConflictError struct {
	Group  string
	Vertex uint32
	First  int
	Second int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("partition: vertex %d used by constraints %d and %d of group %s", e.Vertex, e.First, e.Second, e.Group)
}

// Validate checks that no group references a vertex more than once and
// that the groups hold exactly total constraints.
func Validate(groups []Group, total int) error {
	count := 0
	for _, g := range groups {
		seen := make(map[uint32]int, 2*len(g.Constraints))
		for k, c := range g.Constraints {
			for _, v := range [2]uint32{c.I, c.J} {
				if prev, ok := seen[v]; ok {
					return &ConflictError{Group: g.Name, Vertex: v, First: prev, Second: k}
				}
				seen[v] = k
			}
		}
		count += len(g.Constraints)
	}
	if count != total {
		return fmt.Errorf("partition: groups hold %d constraints, want %d", count, total)
	}
	return nil
}

// Pack encodes a group in the device layout: per edge two uint32 vertex
// indices, the float32 rest length and one pad word.
func Pack(g Group) []uint32 {
	words := make([]uint32, len(g.Constraints)*EdgeWords)
	for k, c := range g.Constraints {
		o := k * EdgeWords
		words[o] = c.I
		words[o+1] = c.J
		words[o+2] = math.Float32bits(c.RestLength)
	}
	return words
}

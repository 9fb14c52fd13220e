package partition

import (
	"errors"
	"math"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/clothsim/internal/mesh"
	"github.com/san-kum/clothsim/internal/pbd"
)

func build(nx, ny int) (*mesh.Grid, []mesh.Edge, *pbd.ConstraintSet) {
	g, err := mesh.Build(nx, ny, 1)
	Expect(err).NotTo(HaveOccurred())
	cs := g.Constraints(g.Particles(1))
	return g, g.Edges(), cs
}

var _ = Describe("Split", func() {
	It("produces twelve named groups in dispatch order", func() {
		_, edges, cs := build(5, 5)
		groups, err := Split(edges, cs.Distance)
		Expect(err).NotTo(HaveOccurred())
		Expect(groups).To(HaveLen(NumGroups))

		names := make([]string, len(groups))
		for i, g := range groups {
			names[i] = g.Name
		}
		Expect(names).To(Equal([]string{
			"H0", "H1", "V0", "V1",
			"D1_00", "D1_01", "D1_10", "D1_11",
			"D2_00", "D2_01", "D2_10", "D2_11",
		}))
	})

	It("keeps every vertex unique inside a group for random grid sizes", func() {
		rng := rand.New(rand.NewSource(GinkgoRandomSeed()))
		for trial := 0; trial < 200; trial++ {
			nx := 2 + rng.Intn(40)
			ny := 2 + rng.Intn(40)
			_, edges, cs := build(nx, ny)

			groups, err := Split(edges, cs.Distance)
			Expect(err).NotTo(HaveOccurred())
			Expect(Validate(groups, cs.Len())).To(Succeed(), "grid %dx%d", nx, ny)
		}
	})

	It("places each family only in its own groups", func() {
		_, edges, _ := build(9, 6)
		for _, e := range edges {
			g := GroupOf(e)
			switch e.Family {
			case mesh.Horizontal:
				Expect(g).To(BeNumerically("<", 2))
			case mesh.Vertical:
				Expect(g).To(BeElementOf(2, 3))
			case mesh.Diagonal:
				Expect(g).To(BeNumerically(">=", 4))
				Expect(g).To(BeNumerically("<", 8))
			case mesh.AntiDiagonal:
				Expect(g).To(BeNumerically(">=", 8))
			}
		}
	})

	It("leaves groups empty when the grid is too small to fill them", func() {
		_, edges, cs := build(2, 2)
		groups, err := Split(edges, cs.Distance)
		Expect(err).NotTo(HaveOccurred())
		Expect(groups[1].Constraints).To(BeEmpty())
		Expect(groups[0].Constraints).To(HaveLen(2))
		Expect(Validate(groups, cs.Len())).To(Succeed())
	})

	It("rejects mismatched inputs", func() {
		_, edges, cs := build(3, 3)
		_, err := Split(edges[1:], cs.Distance)
		Expect(err).To(HaveOccurred())

		swapped := append([]pbd.DistanceConstraint(nil), cs.Distance...)
		swapped[0], swapped[1] = swapped[1], swapped[0]
		_, err = Split(edges, swapped)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Validate", func() {
	It("reports the first shared vertex", func() {
		groups := []Group{{
			Name: "bad",
			Constraints: []pbd.DistanceConstraint{
				{I: 0, J: 1}, {I: 2, J: 3}, {I: 1, J: 4},
			},
		}}
		err := Validate(groups, 3)

		var conflict *ConflictError
		Expect(errors.As(err, &conflict)).To(BeTrue())
		Expect(conflict.Group).To(Equal("bad"))
		Expect(conflict.Vertex).To(BeEquivalentTo(1))
		Expect(conflict.First).To(Equal(0))
		Expect(conflict.Second).To(Equal(2))
	})

	It("detects dropped constraints", func() {
		groups := []Group{{Name: "H0", Constraints: []pbd.DistanceConstraint{{I: 0, J: 1}}}}
		Expect(Validate(groups, 2)).To(MatchError(ContainSubstring("want 2")))
	})

	It("rejects a naive two-color split of horizontal edges by row", func() {
		_, edges, cs := build(4, 4)
		var rows [2]Group
		for k, e := range edges {
			if e.Family == mesh.Horizontal {
				rows[e.Y&1].Constraints = append(rows[e.Y&1].Constraints, cs.Distance[k])
			}
		}
		rows[0].Name, rows[1].Name = "row0", "row1"
		err := Validate(rows[:], len(rows[0].Constraints)+len(rows[1].Constraints))
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Pack", func() {
	It("lays out each edge as i, j, rest, pad", func() {
		g := Group{Constraints: []pbd.DistanceConstraint{{I: 3, J: 7, RestLength: 0.25}}}
		words := Pack(g)
		Expect(words).To(HaveLen(EdgeWords))
		Expect(words[0]).To(BeEquivalentTo(3))
		Expect(words[1]).To(BeEquivalentTo(7))
		Expect(math.Float32frombits(words[2])).To(BeEquivalentTo(float32(0.25)))
		Expect(words[3]).To(BeZero())
	})
})

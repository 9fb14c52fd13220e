package cloth

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/clothsim/internal/compute"
	"github.com/san-kum/clothsim/internal/mesh"
	"github.com/san-kum/clothsim/internal/solver"
)

func small(backend string) Options {
	o := DefaultOptions()
	o.Backend = backend
	o.GridSize = 8
	return o
}

var _ = Describe("Options", func() {
	It("clamps every field", func() {
		o := Options{GridSize: 500, Iterations: -1, Side: -2, Mass: 0}.Clamp()
		Expect(o.Backend).To(Equal(BackendCPU))
		Expect(o.GridSize).To(Equal(MaxGridSize))
		Expect(o.Iterations).To(Equal(solver.MinIterations))
		Expect(o.Side).To(BeNumerically("==", DefaultSide))
		Expect(o.Mass).To(BeNumerically("==", DefaultMass))
		Expect(o.Substeps).To(Equal(1))
		Expect(o.Logger).NotTo(BeNil())
	})

	DescribeTable("ClampFrameDt",
		func(in, want float64) {
			Expect(ClampFrameDt(in)).To(BeNumerically("~", want, 1e-12))
		},
		Entry("negative", -0.5, 0.0),
		Entry("zero", 0.0, 0.0),
		Entry("normal", 1.0/60, 1.0/60),
		Entry("stall", 2.0, MaxFrameDt),
	)
})

var _ = Describe("Clock", func() {
	It("returns clamped wall deltas", func() {
		now := time.Unix(100, 0)
		c := NewClockFunc(func() time.Time { return now })

		now = now.Add(10 * time.Millisecond)
		Expect(c.Tick()).To(BeNumerically("~", 0.01, 1e-9))

		now = now.Add(3 * time.Second)
		Expect(c.Tick()).To(BeNumerically("==", MaxFrameDt))

		Expect(c.Tick()).To(BeZero())
	})
})

var _ = Describe("Simulator", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Context("backend selection", func() {
		It("rejects gpu without a device", func() {
			_, err := New(nil, small(BackendGPU))
			Expect(err).To(MatchError(ErrNoDevice))
		})

		It("rejects unknown backends", func() {
			_, err := New(nil, small("vulkan"))
			Expect(err).To(MatchError(ErrUnknownBackend))
		})

		It("picks cpu for auto without a device", func() {
			s, err := New(nil, small(BackendAuto))
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Backend()).To(Equal(BackendCPU))
		})
	})

	for _, backend := range []string{BackendCPU, BackendGPU} {
		Context(backend+" backend", func() {
			var (
				dev *compute.Device
				s   *Simulator
			)

			BeforeEach(func() {
				dev = compute.NewDevice()
				var err error
				s, err = New(dev, small(backend))
				Expect(err).NotTo(HaveOccurred())
				Expect(s.WaitReady(ctx)).To(Succeed())
				Expect(s.Backend()).To(Equal(backend))
			})

			AfterEach(func() {
				s.Dispose()
				dev.Close()
			})

			It("exposes the topology in the frame", func() {
				f, err := s.Frame(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(f.Positions).To(HaveLen(64))
				Expect(f.Indices).To(HaveLen(6 * 7 * 7))
				Expect(f.Corners).To(Equal([4]uint32{0, 7, 56, 63}))
				Expect(f.Center).To(Equal(mesh.Index(8, 4, 4)))
				if backend == BackendGPU {
					Expect(f.Buffer).NotTo(BeNil())
					Expect(f.BufferSize).To(Equal(64 * 16))
				} else {
					Expect(f.Buffer).To(BeNil())
				}
			})

			It("holds pinned corners through every frame", func() {
				rest := s.Grid().Positions
				for i := 0; i < 60; i++ {
					Expect(s.Step(1.0 / 60)).To(Succeed())
					f, err := s.Frame(ctx)
					Expect(err).NotTo(HaveOccurred())
					for _, c := range f.Corners {
						Expect(f.Positions[c]).To(Equal(rest[c]))
					}
				}
				Expect(s.Steps()).To(BeEquivalentTo(60))
				Expect(s.Time()).To(BeNumerically("~", 1.0, 1e-9))
			})

			It("clamps long frames", func() {
				Expect(s.Step(5)).To(Succeed())
				Expect(s.Time()).To(BeNumerically("==", MaxFrameDt))
			})

			It("resets idempotently", func() {
				for i := 0; i < 20; i++ {
					Expect(s.Step(1.0 / 60)).To(Succeed())
				}
				Expect(s.Reset()).To(Succeed())
				once, err := s.Frame(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(s.Reset()).To(Succeed())
				twice, err := s.Frame(ctx)
				Expect(err).NotTo(HaveOccurred())

				Expect(twice.Positions).To(Equal(once.Positions))
				Expect(once.Positions).To(Equal(s.Grid().Positions))
				Expect(s.Time()).To(BeZero())

				// zero velocity: a zero-dt step at t=0 leaves the grid in place
				s.SetGravity(false)
				Expect(s.Step(0)).To(Succeed())
				f, err := s.Frame(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(f.Positions).To(Equal(s.Grid().Positions))
			})

			It("resizes and keeps the old cloth on failure", func() {
				Expect(s.Resize(10)).To(Succeed())
				Expect(s.Grid().NX).To(Equal(10))
				Expect(s.Time()).To(BeZero())

				s.opts.Backend = "bogus"
				Expect(s.Resize(12)).To(MatchError(ErrUnknownBackend))
				Expect(s.Grid().NX).To(Equal(10))
				Expect(s.Step(1.0 / 60)).To(Succeed())
			})

			It("applies control updates with clamping", func() {
				Expect(s.Apply(UIState{Gravity: false, Iterations: 99, GridSize: 2})).To(Succeed())
				Expect(s.Options().Gravity).To(BeFalse())
				Expect(s.Options().Iterations).To(Equal(solver.MaxIterations))
				Expect(s.Grid().NX).To(Equal(MinGridSize))

				Expect(s.Step(1.0 / 60)).To(Succeed())
				Expect(s.Apply(UIState{Gravity: true, Iterations: 8, GridSize: MinGridSize, Reset: true})).To(Succeed())
				Expect(s.Time()).To(BeZero())
			})

			It("refuses work after Dispose", func() {
				s.Dispose()
				Expect(s.Step(1.0 / 60)).To(MatchError(solver.ErrDisposed))
				_, err := s.Frame(ctx)
				Expect(err).To(MatchError(solver.ErrDisposed))
			})
		})
	}

	It("drops frames while pipelines compile", func() {
		dev := compute.NewDevice(compute.WithCompileDelay(10 * time.Second))
		defer dev.Close()

		s, err := New(dev, small(BackendGPU))
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Ready()).To(BeFalse())

		for i := 0; i < 3; i++ {
			Expect(s.Step(1.0 / 60)).To(Succeed())
		}
		Expect(s.Dropped()).To(BeEquivalentTo(3))
		Expect(s.Steps()).To(BeZero())
		Expect(s.Time()).To(BeZero())
		Expect(dev.Queue().Stats().Submitted).To(BeZero())
	})
})

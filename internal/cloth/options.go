package cloth

import (
	"errors"
	"log/slog"

	"github.com/san-kum/clothsim/internal/drive"
	"github.com/san-kum/clothsim/internal/solver"
)

const (
	BackendCPU  = "cpu"
	BackendGPU  = "gpu"
	BackendAuto = "auto"

	MinGridSize     = 6
	MaxGridSize     = 128
	DefaultGridSize = 22
	DefaultSide     = 1.0
	DefaultMass     = 1.0

	// MaxFrameDt caps a frame so a stalled host does not explode the cloth.
	MaxFrameDt = 1.0 / 30.0
)

var (
	ErrNoDevice       = errors.New("cloth: gpu backend needs a compute device")
	ErrUnknownBackend = errors.New("cloth: unknown backend")
)

type Options struct {
	Backend    string
	GridSize   int
	Side       float32
	Mass       float32
	Iterations int
	Gravity    bool
	Substeps   int
	Driver     drive.Oscillator
	Logger     *slog.Logger
}

func DefaultOptions() Options {
	return Options{
		Backend:    BackendCPU,
		GridSize:   DefaultGridSize,
		Side:       DefaultSide,
		Mass:       DefaultMass,
		Iterations: solver.DefaultIterations,
		Gravity:    true,
		Substeps:   1,
		Driver:     drive.Default(),
	}
}

// Clamp returns o with every field forced into its valid range.
func (o Options) Clamp() Options {
	if o.Backend == "" {
		o.Backend = BackendCPU
	}
	o.GridSize = ClampGridSize(o.GridSize)
	o.Iterations = solver.ClampIterations(o.Iterations)
	if !(o.Side > 0) {
		o.Side = DefaultSide
	}
	if !(o.Mass > 0) {
		o.Mass = DefaultMass
	}
	if o.Substeps < 1 {
		o.Substeps = 1
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// ClampGridSize limits n to [MinGridSize, MaxGridSize].
func ClampGridSize(n int) int {
	return max(MinGridSize, min(n, MaxGridSize))
}

// ClampFrameDt limits dt to [0, MaxFrameDt].
func ClampFrameDt(dt float64) float64 {
	if !(dt > 0) {
		return 0
	}
	return min(dt, MaxFrameDt)
}

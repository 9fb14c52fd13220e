// Package solver advances cloth particles one frame at a time.
//
// Two strategies share the pbd data model: Sequential projects every
// constraint in insertion order on the calling goroutine, Parallel records
// integrate, oscillate and constrain dispatches on a compute queue and
// relaxes one conflict-free edge group per dispatch. The two do not produce
// bit-identical positions; they converge to the same constraint manifold.
package solver

import (
	"context"
	"errors"
	"log/slog"

	"github.com/san-kum/clothsim/internal/drive"
	"github.com/san-kum/clothsim/internal/pbd"
)

const (
	MinIterations     = 1
	MaxIterations     = 50
	DefaultIterations = 8

	// MaxSubstepDt bounds the frame time either strategy integrates in one
	// step.
	MaxSubstepDt = float32(1.0 / 60.0)
)

// Gravity is the acceleration applied when gravity is enabled.
var Gravity = pbd.Vec3{Y: -9.81}

var ErrDisposed = errors.New("solver: disposed")

// Params are the per-step inputs.
type Params struct {
	Dt         float32
	Gravity    bool
	Iterations int
	// Time is the elapsed simulation time at the start of the step.
	Time float64
}

type Solver interface {
	Name() string
	Step(p Params) error
	Positions(ctx context.Context) ([]pbd.Vec3, error)
	// Reset moves every particle to rest and zeroes its velocity.
	Reset(rest []pbd.Vec3) error
	Dispose()
}

// Config is shared by both strategies.
type Config struct {
	Driver   drive.Oscillator
	Driven   uint32
	Gravity  pbd.Vec3
	Substeps int
	Logger   *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Gravity == (pbd.Vec3{}) {
		c.Gravity = Gravity
	}
	if c.Substeps < 1 {
		c.Substeps = 1
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	return c
}

// substepDt clamps a frame dt to [0, MaxSubstepDt] and splits it into
// substeps.
func substepDt(dt float32, substeps int) float32 {
	return min(max(dt, 0), MaxSubstepDt) / float32(substeps)
}

// ClampIterations limits n to [MinIterations, MaxIterations].
func ClampIterations(n int) int {
	return max(MinIterations, min(n, MaxIterations))
}

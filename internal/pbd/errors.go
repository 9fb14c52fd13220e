package pbd

import "errors"

var (
	// ErrInvalidState indicates particle positions containing NaN or Inf.
	ErrInvalidState = errors.New("pbd: invalid particle state (NaN or Inf detected)")

	// ErrIndexRange indicates a constraint referencing a missing particle.
	ErrIndexRange = errors.New("pbd: constraint index out of range")
)

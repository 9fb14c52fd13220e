// Package pbd provides the data model for position-based dynamics.
//
// The package defines the primitives shared by every solver backend:
//
//   - [Vec3]: single-precision 3D vector
//   - [Particle]: position, previous position, inverse mass and pin state
//   - [DistanceConstraint]: fully stiff distance constraint between two particles
//   - [ConstraintSet]: ordered, kind-tagged flat constraint storage
//
// Particles are addressed by index into a caller-owned slice, so constraint
// storage stays flat and can be packed directly into device buffers.
//
// # Example
//
//	ps := []pbd.Particle{pbd.NewParticle(a, 1), pbd.NewParticle(b, 1)}
//	cs := pbd.NewConstraintSet()
//	cs.AddDistance(ps, 0, 1)
//	cs.Project(ps, dt)
package pbd

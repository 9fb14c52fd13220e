// Package partition splits the cloth's distance constraints into groups in
// which no vertex appears twice, so every constraint of a group can be
// projected concurrently without locks.
//
// The split is structural. On a regular grid two horizontal edges share a
// vertex only when they are neighbors in the same row, so they differ in x
// parity; vertical edges likewise differ in y parity. A diagonal edge can
// only touch diagonals of the same orientation one cell away in x and y,
// so the (x parity, y parity) pair separates them. That gives 2+2+4+4 = 12
// groups in a fixed order:
//
//	H0 H1 V0 V1 D1₀₀ D1₀₁ D1₁₀ D1₁₁ D2₀₀ D2₀₁ D2₁₀ D2₁₁
//
// [Validate] re-checks the invariant on any grouping.
package partition

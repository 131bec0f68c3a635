// Package sampling provides the deterministic low-discrepancy sequences and
// tileable noise used to decorrelate ray directions across pixels and frames.
package sampling

import (
	"math"

	"github.com/df07/go-ssgi/pkg/core"
)

const (
	// GoldenRatioConjugate is 1/φ, the additive step of the golden ratio sequence
	GoldenRatioConjugate = 0.6180339887498949

	// plastic is the plastic constant used by the R2 sequence
	plastic = 1.324717957244746
)

var (
	r2A1 = 1.0 / plastic
	r2A2 = 1.0 / (plastic * plastic)
)

// Halton returns the index-th element of the radical inverse in the given base
func Halton(index, base int) float64 {
	result := 0.0
	f := 1.0 / float64(base)
	for i := index; i > 0; i /= base {
		result += f * float64(i%base)
		f /= float64(base)
	}
	return result
}

// Halton2D returns the index-th point of the (2,3) Halton sequence
func Halton2D(index int) core.Vec2 {
	return core.NewVec2(Halton(index, 2), Halton(index, 3))
}

// R2 returns the index-th point of the R2 additive recurrence in [0,1)²
func R2(index int) core.Vec2 {
	n := float64(index)
	return core.NewVec2(core.Fract(0.5+r2A1*n), core.Fract(0.5+r2A2*n))
}

// Stratified returns the center-jittered sample of stratum i of n along one axis,
// offset by jitter in [0,1)
func Stratified(i, n int, jitter float64) float64 {
	return (float64(i) + core.Fract(jitter)) / float64(n)
}

// GoldenRotation returns the per-frame rotation angle in radians from the
// golden ratio sequence. Consecutive frames are maximally spread over [0, 2π).
func GoldenRotation(frame uint64) float64 {
	return 2 * math.Pi * core.Fract(float64(frame%1048576)*GoldenRatioConjugate)
}

// Rotate2D shifts a 2D sample by offset on the torus [0,1)²
func Rotate2D(sample, offset core.Vec2) core.Vec2 {
	return core.NewVec2(core.Fract(sample.X+offset.X), core.Fract(sample.Y+offset.Y))
}

package temporal

import (
	"github.com/df07/go-ssgi/pkg/buffer"
	"github.com/df07/go-ssgi/pkg/core"
	"github.com/df07/go-ssgi/pkg/reflection"
)

const (
	// MinHistoryConfidence is the smallest history confidence trusted when
	// the value type carries one
	MinHistoryConfidence = 0.2

	// ScalarWindow is the half-width of the clamp window for scalar effects
	ScalarWindow = 0.04
)

// Ops describes how the stabilizer blends and clamps one value type
type Ops[T any] struct {
	Lerp  func(a, b T, t float64) T
	Clamp func(blended, current T) T // Restrict blended to the window around current

	// Confidence returns the trust of a history value. Nil means history is
	// never rejected on confidence.
	Confidence func(v T) float64
}

// ScalarOps blends AO values, clamped to ±ScalarWindow around the current value
var ScalarOps = Ops[float64]{
	Lerp: core.Lerp,
	Clamp: func(blended, current float64) float64 {
		return core.Clamp01(core.Clamp(blended, current-ScalarWindow, current+ScalarWindow))
	},
}

// ColorOps blends indirect light, clamped per channel to [0.5c, 2c]
var ColorOps = Ops[core.Vec3]{
	Lerp:  lerpColor,
	Clamp: clampColor,
}

// ReflectionOps blends reflection samples and rejects low-confidence history
var ReflectionOps = Ops[reflection.Sample]{
	Lerp: func(a, b reflection.Sample, t float64) reflection.Sample {
		return reflection.Sample{
			Color:      a.Color.Lerp(b.Color, t),
			Confidence: core.Lerp(a.Confidence, b.Confidence, t),
		}
	},
	Clamp: func(blended, current reflection.Sample) reflection.Sample {
		return reflection.Sample{
			Color:      clampColor(blended.Color, current.Color),
			Confidence: core.Clamp01(blended.Confidence),
		}
	},
	Confidence: func(s reflection.Sample) float64 {
		return s.Confidence
	},
}

func lerpColor(a, b core.Vec3, t float64) core.Vec3 {
	return a.Lerp(b, t)
}

func clampColor(blended, current core.Vec3) core.Vec3 {
	return blended.ClampVec(current.Multiply(0.5), current.Multiply(2))
}

// Stabilizer blends one effect with its history
type Stabilizer[T any] struct {
	ops          Ops[T]
	blend        float64
	checkNormals bool
}

// NewStabilizer creates a stabilizer. blend is the history weight;
// checkNormals adds the normal test to the validity check.
func NewStabilizer[T any](ops Ops[T], blend float64, checkNormals bool) *Stabilizer[T] {
	return &Stabilizer[T]{ops: ops, blend: core.Clamp01(blend), checkNormals: checkNormals}
}

// Valid reports whether a reprojection passes this stabilizer's geometric tests
func (s *Stabilizer[T]) Valid(r Reprojection) bool {
	if s.checkNormals {
		return r.NormalValid
	}
	return r.Valid
}

// Resolve returns the stabilized value and whether history was used. When
// history is rejected current is returned unchanged.
func (s *Stabilizer[T]) Resolve(current T, history *buffer.EffectBuffer[T], r Reprojection) (T, bool) {
	if history == nil || !s.Valid(r) {
		return current, false
	}
	previous := history.AtUV(r.PrevUV)
	if s.ops.Confidence != nil && s.ops.Confidence(previous) < MinHistoryConfidence {
		return current, false
	}
	return s.ops.Clamp(s.ops.Lerp(current, previous, s.blend), current), true
}

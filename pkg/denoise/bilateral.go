// Package denoise provides the edge-aware bilateral blur applied to every
// effect before temporal accumulation.
package denoise

import (
	"math"

	"github.com/df07/go-ssgi/pkg/buffer"
	"github.com/df07/go-ssgi/pkg/core"
	"github.com/df07/go-ssgi/pkg/reflection"
)

const (
	// MinRadius and MaxRadius bound the kernel radius in pixels
	MinRadius = 1
	MaxRadius = 3

	// DepthSharpness scales the linear depth difference in the depth weight
	DepthSharpness = 100.0

	// NormalPower is the exponent of the normal weight
	NormalPower = 8.0

	// VarianceScale maps local luminance variance to the radius multiplier
	VarianceScale = 10.0

	minTotalWeight = 1e-6
)

// Ops describes the arithmetic the filter needs on one value type
type Ops[T any] struct {
	Add       func(a, b T) T
	Scale     func(v T, s float64) T
	Luminance func(v T) float64

	// Confidence weights neighbors and drives the radius. Nil means the
	// radius follows local variance.
	Confidence func(v T) float64
}

// ScalarOps filters AO
var ScalarOps = Ops[float64]{
	Add:       func(a, b float64) float64 { return a + b },
	Scale:     func(v, s float64) float64 { return v * s },
	Luminance: func(v float64) float64 { return v },
}

// ColorOps filters indirect light
var ColorOps = Ops[core.Vec3]{
	Add:       core.Vec3.Add,
	Scale:     core.Vec3.Multiply,
	Luminance: core.Vec3.Luminance,
}

// ReflectionOps filters reflections, weighting neighbors by their confidence
var ReflectionOps = Ops[reflection.Sample]{
	Add: func(a, b reflection.Sample) reflection.Sample {
		return reflection.Sample{Color: a.Color.Add(b.Color), Confidence: a.Confidence + b.Confidence}
	},
	Scale: func(v reflection.Sample, s float64) reflection.Sample {
		return reflection.Sample{Color: v.Color.Multiply(s), Confidence: v.Confidence * s}
	},
	Luminance: func(v reflection.Sample) float64 { return v.Color.Luminance() },
	Confidence: func(v reflection.Sample) float64 {
		return v.Confidence
	},
}

// Guide is the geometry the filter preserves edges of
type Guide struct {
	Depth   *buffer.EffectBuffer[float64]   // Normalized linear depth
	Normals *buffer.EffectBuffer[core.Vec3] // View-space normals
}

// Denoiser is a bilateral filter over one value type
type Denoiser[T any] struct {
	ops        Ops[T]
	guide      Guide
	baseRadius float64
	strength   float64
}

// New creates a denoiser. baseRadius is the radius before the adaptive
// multiplier; strength in [0,1] lerps from the input to the filtered value.
func New[T any](ops Ops[T], guide Guide, baseRadius, strength float64) *Denoiser[T] {
	return &Denoiser[T]{ops: ops, guide: guide, baseRadius: baseRadius, strength: core.Clamp01(strength)}
}

// Radius returns the adaptive kernel radius at (x, y)
func (d *Denoiser[T]) Radius(src *buffer.EffectBuffer[T], x, y int) int {
	var multiplier float64
	if d.ops.Confidence != nil {
		multiplier = 1 + (1 - core.Clamp01(d.ops.Confidence(src.At(x, y))))
	} else {
		multiplier = 1 + core.Clamp01(d.localVariance(src, x, y)*VarianceScale)
	}
	r := int(math.Round(d.baseRadius * multiplier))
	return max(MinRadius, min(MaxRadius, r))
}

func (d *Denoiser[T]) localVariance(src *buffer.EffectBuffer[T], x, y int) float64 {
	var sum, sumSq float64
	n := 0
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if !src.InBounds(x+dx, y+dy) {
				continue
			}
			l := d.ops.Luminance(src.At(x+dx, y+dy))
			sum += l
			sumSq += l * l
			n++
		}
	}
	mean := sum / float64(n)
	return math.Max(0, sumSq/float64(n)-mean*mean)
}

// FilterPixel returns the denoised value of (x, y)
func (d *Denoiser[T]) FilterPixel(src *buffer.EffectBuffer[T], x, y int) T {
	center := src.At(x, y)
	if d.strength == 0 {
		return center
	}

	radius := d.Radius(src, x, y)
	kernel := kernels[radius]
	size := 2*radius + 1

	centerDepth := d.guide.Depth.At(x, y)
	centerNormal := d.guide.Normals.At(x, y)

	var total T
	var weights float64
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			nx, ny := x+dx, y+dy
			if !src.InBounds(nx, ny) {
				continue
			}
			w := kernel[(dy+radius)*size+dx+radius]
			w *= math.Exp(-math.Abs(d.guide.Depth.At(nx, ny)-centerDepth) * DepthSharpness)
			if !centerNormal.IsZero() {
				w *= math.Pow(math.Max(0, centerNormal.Dot(d.guide.Normals.At(nx, ny))), NormalPower)
			}
			v := src.At(nx, ny)
			if d.ops.Confidence != nil {
				w *= core.Clamp01(d.ops.Confidence(v))
			}
			if w <= 0 {
				continue
			}
			total = d.ops.Add(total, d.ops.Scale(v, w))
			weights += w
		}
	}
	if weights < minTotalWeight {
		return center
	}

	filtered := d.ops.Scale(total, 1/weights)
	if d.strength == 1 {
		return filtered
	}
	return d.ops.Add(d.ops.Scale(center, 1-d.strength), d.ops.Scale(filtered, d.strength))
}

// Filter denoises every pixel of src into dst
func (d *Denoiser[T]) Filter(src, dst *buffer.EffectBuffer[T]) {
	for y := 0; y < src.Height(); y++ {
		for x := 0; x < src.Width(); x++ {
			dst.Set(x, y, d.FilterPixel(src, x, y))
		}
	}
}

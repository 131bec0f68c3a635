// Package reflection estimates screen-space specular reflections: a single
// mirror ray for smooth surfaces, cone tracing for rough ones.
package reflection

import (
	"math"

	"github.com/df07/go-ssgi/pkg/config"
	"github.com/df07/go-ssgi/pkg/core"
	"github.com/df07/go-ssgi/pkg/frame"
	"github.com/df07/go-ssgi/pkg/raymarch"
	"github.com/df07/go-ssgi/pkg/sampling"
)

const (
	// MirrorThreshold is the roughness below which a single mirror ray is traced
	MirrorThreshold = 0.05

	// MaxConeAngle is the cone half-angle at roughness 1, in radians
	MaxConeAngle = math.Pi / 6

	// MaxLuminance is the firefly ceiling
	MaxLuminance = 4.0

	// DefaultThickness is the ray thickness at the camera, growing with depth
	DefaultThickness = 0.3

	// EnvironmentConfidence is the confidence of the environment estimate
	// used when a ray leaves the frame without a hit
	EnvironmentConfidence = 0.6

	// mirrorStepScale multiplies the step budget of the single mirror ray
	mirrorStepScale = 2
)

// Sample is a reflection color with its confidence in [0,1]
type Sample struct {
	Color      core.Vec3
	Confidence float64
}

// Params controls one estimator
type Params struct {
	Steps             int // Step budget of a cone ray; mirror rays get twice this
	MaxSamples        int // Cone samples at roughness 1
	MaxDistance       float64
	Thickness         float64
	RefineSteps       int
	Intensity         float64
	RoughnessOverride float64 // config.AutoEstimate or [0,1]
	MetalnessOverride float64 // config.AutoEstimate or [0,1]
}

// ParamsFromSettings derives estimator parameters from the host settings
func ParamsFromSettings(s config.Settings) Params {
	profile := s.Profile()
	return Params{
		Steps:             profile.ReflectionSteps,
		MaxSamples:        profile.ReflectionSamples,
		MaxDistance:       s.MaxRayDistance * profile.MaxDistanceScale,
		Thickness:         DefaultThickness,
		RefineSteps:       profile.RefineSteps,
		Intensity:         s.ReflectionIntensity,
		RoughnessOverride: s.RoughnessOverride,
		MetalnessOverride: s.MetalnessOverride,
	}
}

// SampleCount returns the number of rays traced for a roughness: 1 on the
// mirror path, growing to maxSamples at roughness 1
func SampleCount(roughness float64, maxSamples int) int {
	if roughness < MirrorThreshold || maxSamples <= 1 {
		return 1
	}
	return 1 + int(math.Round(core.Clamp01(roughness)*float64(maxSamples-1)))
}

// Estimator computes reflections against one frame
type Estimator struct {
	frame   *frame.Frame
	marcher *raymarch.Marcher
	noise   *sampling.NoiseTexture
	params  Params
}

// NewEstimator creates an estimator. noise may be nil.
func NewEstimator(f *frame.Frame, noise *sampling.NoiseTexture, p Params) *Estimator {
	if p.Thickness <= 0 {
		p.Thickness = DefaultThickness
	}
	p.MaxSamples = max(1, p.MaxSamples)
	return &Estimator{
		frame:   f,
		marcher: raymarch.NewMarcher(f),
		noise:   noise,
		params:  p,
	}
}

// Material returns the roughness and metalness of a pixel, estimated from
// the color buffer unless overridden
func (e *Estimator) Material(ps frame.PixelState) (roughness, metalness float64) {
	if e.params.RoughnessOverride >= 0 {
		roughness = core.Clamp01(e.params.RoughnessOverride)
	} else {
		roughness = EstimateRoughness(e.frame, ps.X, ps.Y)
	}
	if e.params.MetalnessOverride >= 0 {
		metalness = core.Clamp01(e.params.MetalnessOverride)
	} else {
		metalness = EstimateMetalness(ps.Albedo)
	}
	return roughness, metalness
}

// EstimatePixel reconstructs pixel (x, y) with robust normals and estimates it
func (e *Estimator) EstimatePixel(x, y int, frameIndex uint64) Sample {
	return e.Estimate(e.frame.Pixel(x, y, frame.NormalRobust), frameIndex)
}

// Estimate returns the reflection at ps. Roughness and metalness in ps are
// replaced by the estimator's material.
func (e *Estimator) Estimate(ps frame.PixelState, frameIndex uint64) Sample {
	if ps.Sky || ps.Normal.IsZero() {
		return Sample{}
	}
	ps.Roughness, ps.Metalness = e.Material(ps)

	view := ps.ViewDirection()
	cosView := math.Max(0, -view.Dot(ps.Normal))
	mirror := view.Reflect(ps.Normal).Normalize()

	var noise core.Vec3
	if e.noise != nil {
		noise = e.noise.Sample(ps.X, ps.Y, frameIndex)
	}
	params := raymarch.Params{
		MaxSteps:    e.params.Steps,
		MaxDistance: e.params.MaxDistance,
		Thickness:   e.params.Thickness * (1 + ps.Linear*4),
		RefineSteps: e.params.RefineSteps,
		Jitter:      noise.Z,
	}

	var color core.Vec3
	var confidence float64
	count := SampleCount(ps.Roughness, e.params.MaxSamples)
	if count == 1 {
		params.MaxSteps *= mirrorStepScale
		color, confidence = e.resolve(ps, e.marcher.Trace(ps.Position, mirror, params))
	} else {
		color, confidence = e.cone(ps, mirror, count, noise, params)
	}

	fresnel := Fresnel(cosView, SpecularF0(ps.Albedo, ps.Metalness))
	return Sample{
		Color:      color.MultiplyVec(fresnel).Multiply(e.params.Intensity).ClampLuminance(MaxLuminance),
		Confidence: core.Clamp01(confidence * GrazingFade(cosView, ps.Roughness)),
	}
}

// cone traces count stratified rays inside the roughness cone around mirror
func (e *Estimator) cone(ps frame.PixelState, mirror core.Vec3, count int, noise core.Vec3, params raymarch.Params) (core.Vec3, float64) {
	halfAngle := ps.Roughness * MaxConeAngle

	var sum core.Vec3
	var weights, confidence float64
	traced := 0
	for i := 0; i < count; i++ {
		s := core.NewVec2(
			sampling.Stratified(i, count, noise.X),
			core.Fract(sampling.R2(i).Y+noise.Y),
		)
		dir, cosAngle := core.SampleCone(mirror, halfAngle, s)
		if dir.Dot(ps.Normal) <= 0 {
			// Below the surface
			continue
		}
		traced++

		c, conf := e.resolve(ps, e.marcher.Trace(ps.Position, dir, params))
		w := conf * cosAngle
		sum = sum.Add(c.Multiply(w))
		weights += w
		confidence += conf
	}
	if traced == 0 || weights < core.Epsilon {
		return core.Vec3{}, 0
	}
	return sum.Multiply(1 / weights), confidence / float64(traced)
}

// resolve turns a march result into a color and confidence. Rays that miss
// see the environment, estimated from the coarsest color mip. A ray that
// left the frame fades its environment confidence with the border, like a
// hit there would.
func (e *Estimator) resolve(ps frame.PixelState, hit raymarch.Hit) (core.Vec3, float64) {
	if hit.Hit || hit.Sky {
		return hit.Color, hit.Confidence
	}
	lod := float64(e.frame.MipLevels() - 1)
	confidence := EnvironmentConfidence
	if hit.Exited {
		confidence *= raymarch.ScreenFade(hit.UV)
	}
	return e.frame.SampleColorLod(ps.UV, lod), confidence
}

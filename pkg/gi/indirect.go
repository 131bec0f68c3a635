// Package gi estimates one-bounce diffuse indirect light by ray marching a
// cosine-weighted hemisphere around the AO bent normal, with an approximated
// multi-bounce tail.
package gi

import (
	"math"

	"github.com/df07/go-ssgi/pkg/ao"
	"github.com/df07/go-ssgi/pkg/config"
	"github.com/df07/go-ssgi/pkg/core"
	"github.com/df07/go-ssgi/pkg/frame"
	"github.com/df07/go-ssgi/pkg/raymarch"
	"github.com/df07/go-ssgi/pkg/sampling"
)

const (
	// ConfidenceThreshold is the hit confidence above which a ray's color is used
	ConfidenceThreshold = 0.1

	// AmbientWeight is the weight of the ambient fallback for missed rays
	AmbientWeight = 0.2

	// MaxLuminance is the firefly ceiling
	MaxLuminance = 4.0

	// DefaultThickness is the ray thickness at the camera, growing with depth
	DefaultThickness = 0.5

	bentNormalBlend = 0.5
	aoFloor         = 0.3
)

// AmbientColor is the contribution of a ray that found nothing
var AmbientColor = core.Splat(0.05)

// Bounce scales the ray budget and energy of one approximated bounce
type Bounce struct {
	Rays     float64 // Fraction of the first bounce's rays
	Distance float64 // Fraction of the first bounce's distance
	Energy   float64 // Energy multiplier
}

// Bounces is the schedule of the approximated bounces. Every bounce resamples
// the same frame; later bounces are cheaper and dimmer.
var Bounces = [...]Bounce{
	{Rays: 1, Distance: 1, Energy: 1},
	{Rays: 0.5, Distance: 0.6, Energy: 0.6},
	{Rays: 0.25, Distance: 0.4, Energy: 0.6 * 0.5},
}

// Params controls one estimator
type Params struct {
	Rays        int
	Steps       int
	Bounces     int // 1-3
	MaxDistance float64
	Thickness   float64
	RefineSteps int
	Intensity   float64
}

// ParamsFromSettings derives estimator parameters from the host settings
func ParamsFromSettings(s config.Settings) Params {
	profile := s.Profile()
	return Params{
		Rays:        profile.GIRays,
		Steps:       profile.GISteps,
		Bounces:     profile.GIBounces,
		MaxDistance: s.MaxRayDistance * profile.MaxDistanceScale,
		Thickness:   DefaultThickness,
		RefineSteps: profile.RefineSteps,
		Intensity:   s.GIIntensity,
	}
}

// Estimator computes indirect light against one frame
type Estimator struct {
	frame   *frame.Frame
	marcher *raymarch.Marcher
	noise   *sampling.NoiseTexture
	params  Params
}

// NewEstimator creates an estimator. noise may be nil.
func NewEstimator(f *frame.Frame, noise *sampling.NoiseTexture, p Params) *Estimator {
	p.Bounces = max(1, min(len(Bounces), p.Bounces))
	if p.Thickness <= 0 {
		p.Thickness = DefaultThickness
	}
	return &Estimator{
		frame:   f,
		marcher: raymarch.NewMarcher(f),
		noise:   noise,
		params:  p,
	}
}

// EstimatePixel reconstructs pixel (x, y) with fast normals and estimates it
func (e *Estimator) EstimatePixel(x, y int, occlusion ao.Result, frameIndex uint64) core.Vec3 {
	return e.Estimate(e.frame.Pixel(x, y, frame.NormalFast), occlusion, frameIndex)
}

// Estimate returns the indirect light reaching ps, modulated by its albedo.
// occlusion is the AO result of the same pixel; a zero bent normal falls
// back to the surface normal.
func (e *Estimator) Estimate(ps frame.PixelState, occlusion ao.Result, frameIndex uint64) core.Vec3 {
	if ps.Sky || ps.Normal.IsZero() || e.params.Rays <= 0 {
		return core.Vec3{}
	}

	var total core.Vec3
	for b := 0; b < e.params.Bounces; b++ {
		bounce := Bounces[b]
		rays := max(1, int(math.Round(float64(e.params.Rays)*bounce.Rays)))
		distance := e.params.MaxDistance * bounce.Distance
		light := e.gather(ps, occlusion, rays, distance, b, frameIndex)
		total = total.Add(light.Multiply(bounce.Energy))
	}

	return total.MultiplyVec(ps.Albedo).Multiply(e.params.Intensity).ClampLuminance(MaxLuminance)
}

// gather is the single-bounce estimator: the confidence-weighted average of
// rays traced around the bent normal, times the albedo
func (e *Estimator) gather(ps frame.PixelState, occlusion ao.Result, rays int, distance float64, bounce int, frameIndex uint64) core.Vec3 {
	samplingNormal := ps.Normal
	if !occlusion.BentNormal.IsZero() {
		if n := ps.Normal.Lerp(occlusion.BentNormal, bentNormalBlend).Normalize(); !n.IsZero() {
			samplingNormal = n
		}
	}

	var noise core.Vec3
	if e.noise != nil {
		noise = e.noise.Sample(ps.X, ps.Y, frameIndex)
	}
	offset := core.NewVec2(noise.X, noise.Y)

	params := raymarch.Params{
		MaxSteps:    e.params.Steps,
		MaxDistance: distance,
		Thickness:   e.params.Thickness * (1 + ps.Linear*4),
		RefineSteps: e.params.RefineSteps,
		Jitter:      noise.Z,
	}
	aoScale := core.Lerp(occlusion.AO, 1, aoFloor)

	var sum core.Vec3
	var weights float64
	for i := 0; i < rays; i++ {
		s := sampling.Rotate2D(sampling.R2(i+bounce*e.params.Rays), offset)
		dir := core.SampleCosineHemisphere(samplingNormal, s)

		hit := e.marcher.Trace(ps.Position, dir, params)
		if (hit.Hit || hit.Sky) && hit.Confidence > ConfidenceThreshold {
			cosine := math.Max(0, ps.Normal.Dot(dir))
			sum = sum.Add(hit.Color.Multiply(cosine * aoScale * hit.Confidence))
			weights += hit.Confidence
			continue
		}
		sum = sum.Add(AmbientColor.Multiply(AmbientWeight))
		weights += AmbientWeight
	}

	return sum.Multiply(1 / weights).MultiplyVec(ps.Albedo)
}

// AmbientBaseline is the result for a pixel whose rays all miss: the
// ambient color carried through every bounce and both albedo terms
func AmbientBaseline(albedo core.Vec3, bounces int, intensity float64) core.Vec3 {
	bounces = max(1, min(len(Bounces), bounces))
	energy := 0.0
	for b := 0; b < bounces; b++ {
		energy += Bounces[b].Energy
	}
	return AmbientColor.MultiplyVec(albedo).MultiplyVec(albedo).Multiply(energy * intensity).ClampLuminance(MaxLuminance)
}

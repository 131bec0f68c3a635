// Package ao estimates ground-truth ambient occlusion (GTAO) and bent normals
// from the depth buffer.
package ao

import (
	"math"

	"github.com/df07/go-ssgi/pkg/config"
	"github.com/df07/go-ssgi/pkg/core"
	"github.com/df07/go-ssgi/pkg/frame"
	"github.com/df07/go-ssgi/pkg/sampling"
)

const (
	// DefaultThickness is the view-space depth behind the shading point at
	// which a sample starts to lose its occlusion
	DefaultThickness = 1.0

	// MaxPixelRadius caps the projected sampling radius
	MaxPixelRadius = 64.0

	minPixelRadius = 1.0

	// fullSliceOcclusion is the slice integral of a fully closed slice
	fullSliceOcclusion = 0.75
)

// MultiScaleRadii are the radius multipliers averaged in multi-scale mode
var MultiScaleRadii = [...]float64{0.5, 1, 2}

// Result is the horizon-based visibility of one pixel
type Result struct {
	AO         float64   // 1 = unoccluded
	BentNormal core.Vec3 // Mean unoccluded direction, view space
}

// Unoccluded returns the result for sky and degenerate pixels
func Unoccluded() Result {
	return Result{AO: 1, BentNormal: core.NewVec3(0, 1, 0)}
}

// Params controls one estimator
type Params struct {
	Directions int     // Slice directions
	Steps      int     // Samples per side of each slice
	Radius     float64 // View-space sampling radius
	Power      float64 // Contrast exponent
	Intensity  float64 // 0 disables, 1 full strength
	MultiScale bool
	Thickness  float64 // See DefaultThickness
}

// ParamsFromSettings derives estimator parameters from the host settings
func ParamsFromSettings(s config.Settings) Params {
	profile := s.Profile()
	return Params{
		Directions: profile.AODirections,
		Steps:      profile.AOSteps,
		Radius:     s.AORadius,
		Power:      s.AOPower,
		Intensity:  s.AOIntensity,
		MultiScale: s.AOMultiScale,
		Thickness:  DefaultThickness,
	}
}

// Estimator computes GTAO against one frame
type Estimator struct {
	frame  *frame.Frame
	noise  *sampling.NoiseTexture
	params Params
	focal  float64
}

// NewEstimator creates an estimator. noise may be nil, which disables
// per-pixel decorrelation.
func NewEstimator(f *frame.Frame, noise *sampling.NoiseTexture, p Params) *Estimator {
	if p.Power <= 0 {
		p.Power = 1
	}
	if p.Thickness <= 0 {
		p.Thickness = DefaultThickness
	}
	return &Estimator{
		frame:  f,
		noise:  noise,
		params: p,
		focal:  f.Camera.FocalPixels(f.Height),
	}
}

// EstimatePixel reconstructs pixel (x, y) with robust normals and estimates it
func (e *Estimator) EstimatePixel(x, y int, frameIndex uint64) Result {
	return e.Estimate(e.frame.Pixel(x, y, frame.NormalRobust), frameIndex)
}

// Estimate computes the occlusion and bent normal of a reconstructed pixel
func (e *Estimator) Estimate(ps frame.PixelState, frameIndex uint64) Result {
	p := e.params
	if ps.Sky || ps.Normal.IsZero() || p.Directions <= 0 || p.Steps <= 0 {
		return Unoccluded()
	}

	var n core.Vec3
	if e.noise != nil {
		n = e.noise.Sample(ps.X, ps.Y, frameIndex)
	}
	rotation := sampling.GoldenRotation(frameIndex) + 2*math.Pi*n.X
	jitter := n.Y

	scales := []float64{1}
	if p.MultiScale {
		scales = MultiScaleRadii[:]
	}

	var occlusion float64
	var bent core.Vec3
	for _, scale := range scales {
		occ, b := e.integrate(ps, p.Radius*scale, rotation, jitter)
		occlusion += occ
		bent = bent.Add(b)
	}
	occlusion /= float64(len(scales))

	visibility := math.Pow(core.Clamp01(1-occlusion), p.Power)
	bentNormal := bent.Normalize()
	if bentNormal.IsZero() {
		bentNormal = ps.Normal
	}
	return Result{
		AO:         core.Clamp01(core.Lerp(1, visibility, p.Intensity)),
		BentNormal: bentNormal,
	}
}

// integrate averages the slice occlusion and bent normal at one radius
func (e *Estimator) integrate(ps frame.PixelState, radius, rotation, jitter float64) (float64, core.Vec3) {
	pixelRadius := min(radius*e.focal/ps.Position.Z, MaxPixelRadius)
	if pixelRadius < minPixelRadius {
		return 0, ps.Normal
	}
	stepPixels := pixelRadius / float64(e.params.Steps)

	var occlusion float64
	var bent core.Vec3
	for d := 0; d < e.params.Directions; d++ {
		// Both sides are walked, so the slices only need to cover half a turn
		angle := rotation + math.Pi*float64(d)/float64(e.params.Directions)
		dir := core.NewVec2(math.Cos(angle), math.Sin(angle))

		hMax := e.horizon(ps, dir, stepPixels, jitter)
		hMin := -e.horizon(ps, dir.Multiply(-1), stepPixels, jitter)

		occlusion += SliceOcclusion(hMax, hMin)
		bent = bent.Add(bendNormal(ps.Normal, dir, hMax, hMin))
	}
	n := float64(e.params.Directions)
	return occlusion / n, bent.Multiply(1 / n)
}

// horizon walks one side of a slice and returns the highest elevation above
// the tangent plane, never below 0
func (e *Estimator) horizon(ps frame.PixelState, dir core.Vec2, stepPixels, jitter float64) float64 {
	h := 0.0
	for s := 0; s < e.params.Steps; s++ {
		dist := stepPixels * (float64(s) + 0.5 + 0.5*jitter)
		sx := ps.X + int(math.Round(dir.X*dist))
		sy := ps.Y + int(math.Round(dir.Y*dist))
		if sx < 0 || sx >= e.frame.Width || sy < 0 || sy >= e.frame.Height {
			break
		}
		if (sx == ps.X && sy == ps.Y) || e.frame.IsSky(sx, sy) {
			continue
		}

		sample := e.frame.ViewPosition(sx, sy)
		delta := sample.Subtract(ps.Position)
		length := delta.Length()
		if length < core.Epsilon {
			continue
		}
		elevation := math.Asin(core.Clamp(delta.Dot(ps.Normal)/length, -1, 1))

		// Samples far behind the point are likely thin occluders or background
		behind := sample.Z - ps.Position.Z
		fade := core.Smoothstep(e.params.Thickness, 2*e.params.Thickness, behind)
		elevation *= 1 - fade

		h = max(h, elevation)
	}
	return h
}

// SliceOcclusion integrates the occluded part of a slice bounded by the
// horizon angles hMax >= 0 and hMin <= 0. A closed slice returns 1.
func SliceOcclusion(hMax, hMin float64) float64 {
	occ := 0.25 * ((math.Sin(hMax) - math.Sin(hMin)) + (hMax-hMin)/math.Pi)
	return core.Clamp01(occ / fullSliceOcclusion)
}

// bendNormal rotates n within the slice plane toward the middle of the
// visible arc between the two horizons
func bendNormal(n core.Vec3, dir core.Vec2, hMax, hMin float64) core.Vec3 {
	// Screen y grows downward, view y upward
	v := core.NewVec3(dir.X, -dir.Y, 0)
	t := v.Subtract(n.Multiply(v.Dot(n))).Normalize()
	if t.IsZero() {
		return n
	}
	return core.RotateInPlane(n, t, -0.5*(hMax+hMin))
}

package reflection

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/df07/go-ssgi/pkg/core"
	"github.com/df07/go-ssgi/pkg/frame"
)

const (
	// RoughnessScale maps the local luminance deviation to roughness
	RoughnessScale = 4.0

	// DielectricF0 is the normal-incidence reflectance of non-metals
	DielectricF0 = 0.04
)

// Metalness gate in HSV: saturated and bright colors read as metal
const (
	saturationLow  = 0.25
	saturationHigh = 0.6
	valueLow       = 0.4
	valueHigh      = 0.8
)

// EstimateRoughness treats local contrast as surface roughness: the standard
// deviation of luminance in the 3×3 neighborhood of (x, y), scaled and
// clamped to [0,1]
func EstimateRoughness(f *frame.Frame, x, y int) float64 {
	// Shifted by the center value so uniform regions give exactly 0
	center := f.Color(x, y).Luminance()
	var sum, sumSq float64
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			d := f.Color(x+dx, y+dy).Luminance() - center
			sum += d
			sumSq += d * d
		}
	}
	mean := sum / 9
	variance := math.Max(0, sumSq/9-mean*mean)
	return core.Clamp01(math.Sqrt(variance) * RoughnessScale)
}

// EstimateMetalness reads metalness from the HSV saturation of the linear
// albedo, gated by its HSV value so dark saturated colors stay dielectric
func EstimateMetalness(albedo core.Vec3) float64 {
	c := colorful.LinearRgb(core.Clamp01(albedo.X), core.Clamp01(albedo.Y), core.Clamp01(albedo.Z))
	_, s, v := c.Hsv()
	return core.Clamp01(core.Smoothstep(saturationLow, saturationHigh, s) * core.Smoothstep(valueLow, valueHigh, v))
}

// SpecularF0 returns the normal-incidence reflectance for an albedo and metalness
func SpecularF0(albedo core.Vec3, metalness float64) core.Vec3 {
	return core.Splat(DielectricF0).Lerp(albedo, core.Clamp01(metalness))
}

// Fresnel evaluates the Schlick approximation at the given cosine between
// the normal and the view direction
func Fresnel(cosTheta float64, f0 core.Vec3) core.Vec3 {
	m := math.Pow(1-core.Clamp01(cosTheta), 5)
	return f0.Add(core.Splat(1).Subtract(f0).Multiply(m))
}

// GrazingFade scales confidence down at grazing view angles. Rough surfaces
// fade sooner.
func GrazingFade(cosTheta, roughness float64) float64 {
	return math.Pow(core.Clamp01(cosTheta), core.Lerp(0.5, 2, core.Clamp01(roughness)))
}

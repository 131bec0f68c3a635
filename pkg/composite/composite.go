// Package composite combines the effect buffers with the original color,
// applies tone mapping and renders debug views.
package composite

import (
	"image"
	"image/color"

	"github.com/df07/go-ssgi/pkg/buffer"
	"github.com/df07/go-ssgi/pkg/config"
	"github.com/df07/go-ssgi/pkg/core"
	"github.com/df07/go-ssgi/pkg/reflection"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// Layers are the per-pixel buffers of one frame. Effect buffers of disabled
// stages hold neutral values.
type Layers struct {
	Color       *buffer.EffectBuffer[core.Vec3]
	Depth       *buffer.EffectBuffer[float64]   // Normalized linear depth
	Normals     *buffer.EffectBuffer[core.Vec3] // View-space normals
	AO          *buffer.EffectBuffer[float64]
	BentNormals *buffer.EffectBuffer[core.Vec3]
	Indirect    *buffer.EffectBuffer[core.Vec3]
	Reflections *buffer.EffectBuffer[reflection.Sample]
	Roughness   *buffer.EffectBuffer[float64]
	Metalness   *buffer.EffectBuffer[float64]
}

// ToneMap compresses HDR values with x/(1+x) per channel
func ToneMap(c core.Vec3) core.Vec3 {
	return core.NewVec3(tone(c.X), tone(c.Y), tone(c.Z))
}

func tone(x float64) float64 {
	x = max(0, x)
	return x / (1 + x)
}

// Combine composites one pixel: occlusion, indirect light, then reflections
// blended by confidence, followed by tone mapping
func Combine(original core.Vec3, occlusion float64, indirect core.Vec3, refl reflection.Sample) core.Vec3 {
	c := original.Multiply(occlusion)
	c = c.Add(indirect)
	c = c.Lerp(c.Add(refl.Color), core.Clamp01(refl.Confidence))
	return ToneMap(c)
}

// Pixel returns the output color of (x, y) for the given view
func (l Layers) Pixel(x, y int, view config.DebugView) core.Vec3 {
	switch view {
	case config.DebugDepth:
		return core.Splat(l.Depth.At(x, y))
	case config.DebugNormals:
		return encodeDirection(l.Normals.At(x, y))
	case config.DebugAO:
		return core.Splat(l.AO.At(x, y))
	case config.DebugIndirect:
		return l.Indirect.At(x, y)
	case config.DebugReflections:
		return l.Reflections.At(x, y).Color
	case config.DebugBentNormal:
		return encodeDirection(l.BentNormals.At(x, y))
	case config.DebugRoughness:
		return core.Splat(l.Roughness.At(x, y))
	case config.DebugMetalness:
		return core.Splat(l.Metalness.At(x, y))
	case config.DebugConfidence:
		return core.Splat(l.Reflections.At(x, y).Confidence)
	}
	return Combine(l.Color.At(x, y), l.AO.At(x, y), l.Indirect.At(x, y), l.Reflections.At(x, y))
}

// Resolve writes the output of every pixel into dst
func (l Layers) Resolve(dst *buffer.EffectBuffer[core.Vec3], view config.DebugView) {
	for y := 0; y < dst.Height(); y++ {
		for x := 0; x < dst.Width(); x++ {
			dst.Set(x, y, l.Pixel(x, y, view))
		}
	}
}

// encodeDirection maps a unit vector to [0,1] per component. Zero stays black.
func encodeDirection(n core.Vec3) core.Vec3 {
	if n.IsZero() {
		return core.Vec3{}
	}
	return n.Multiply(0.5).Add(core.Splat(0.5))
}

// ToImage converts a linear RGB buffer to an 8-bit sRGB image
func ToImage(b *buffer.EffectBuffer[core.Vec3]) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, b.Width(), b.Height()))
	for y := 0; y < b.Height(); y++ {
		for x := 0; x < b.Width(); x++ {
			img.SetRGBA(x, y, toRGBA(b.At(x, y)))
		}
	}
	return img
}

func toRGBA(c core.Vec3) color.RGBA {
	if !c.IsFinite() {
		c = core.Vec3{}
	}
	c = c.Clamp(0, 1)
	r, g, b := colorful.LinearRgb(c.X, c.Y, c.Z).Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

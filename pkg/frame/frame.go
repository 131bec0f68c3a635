// Package frame gives per-pixel access to the host's depth and color buffers:
// depth decoding and linearization, sky classification, view-space position
// and normal reconstruction.
package frame

import (
	"errors"
	"fmt"
	"math"

	"github.com/df07/go-ssgi/pkg/core"
)

// ErrSizeMismatch is returned when buffer lengths do not match the frame size
var ErrSizeMismatch = errors.New("buffer size mismatch")

// maxMipLevels bounds the mip chain built for explicit-LOD sampling
const maxMipLevels = 5

// Frame is one immutable frame of host input
type Frame struct {
	Width  int
	Height int
	Camera Camera

	depthMips []mip[float64]   // Level 0 is the decoded non-linear depth
	linear    []float64        // Normalized linear depth per pixel
	colorMips []mip[core.Vec3] // Level 0 is the linear RGB color
	pixelSize core.Vec2
}

type mip[T any] struct {
	width, height int
	data          []T
}

// NewFrame decodes host buffers into a frame. depth holds one host-encoded
// value per pixel, color one linear RGB value per pixel, both row-major.
func NewFrame(width, height int, depth []float64, color []core.Vec3, camera Camera, format DepthFormat) (*Frame, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: invalid frame size %dx%d", ErrSizeMismatch, width, height)
	}
	if len(depth) != width*height {
		return nil, fmt.Errorf("%w: depth has %d values, want %d", ErrSizeMismatch, len(depth), width*height)
	}
	if len(color) != width*height {
		return nil, fmt.Errorf("%w: color has %d values, want %d", ErrSizeMismatch, len(color), width*height)
	}
	if camera.Aspect <= 0 {
		camera = NewCamera(camera.FovY, float64(width)/float64(height), camera.FarPlane)
	}

	decoded := make([]float64, width*height)
	linear := make([]float64, width*height)
	for y := 0; y < height; y++ {
		srcY := y
		if format.FlipY {
			srcY = height - 1 - y
		}
		for x := 0; x < width; x++ {
			d := format.Decode(depth[srcY*width+x])
			decoded[y*width+x] = d
			linear[y*width+x] = Linearize(d)
		}
	}

	colors := make([]core.Vec3, len(color))
	copy(colors, color)

	return &Frame{
		Width:     width,
		Height:    height,
		Camera:    camera,
		depthMips: buildMips(mip[float64]{width, height, decoded}, nearestScalar),
		linear:    linear,
		colorMips: buildMips(mip[core.Vec3]{width, height, colors}, averageColor),
		pixelSize: core.NewVec2(1/float64(width), 1/float64(height)),
	}, nil
}

// PixelSize returns the UV size of one pixel
func (f *Frame) PixelSize() core.Vec2 {
	return f.pixelSize
}

// UV returns the UV coordinate of the center of pixel (x, y)
func (f *Frame) UV(x, y int) core.Vec2 {
	return core.NewVec2((float64(x)+0.5)*f.pixelSize.X, (float64(y)+0.5)*f.pixelSize.Y)
}

func (f *Frame) clampPixel(x, y int) int {
	x = max(0, min(f.Width-1, x))
	y = max(0, min(f.Height-1, y))
	return y*f.Width + x
}

// Depth returns the non-linear depth of pixel (x, y), clamping to the edge
func (f *Frame) Depth(x, y int) float64 {
	return f.depthMips[0].data[f.clampPixel(x, y)]
}

// LinearDepth returns the normalized linear depth of pixel (x, y)
func (f *Frame) LinearDepth(x, y int) float64 {
	return f.linear[f.clampPixel(x, y)]
}

// ViewZ returns the view-space depth of pixel (x, y)
func (f *Frame) ViewZ(x, y int) float64 {
	return f.Camera.ViewZ(f.LinearDepth(x, y))
}

// IsSky reports whether pixel (x, y) is background
func (f *Frame) IsSky(x, y int) bool {
	return IsSky(f.LinearDepth(x, y))
}

// Color returns the linear color of pixel (x, y)
func (f *Frame) Color(x, y int) core.Vec3 {
	return f.colorMips[0].data[f.clampPixel(x, y)]
}

// SampleDepth point-samples non-linear depth at uv
func (f *Frame) SampleDepth(uv core.Vec2) float64 {
	return f.SampleDepthLod(uv, 0)
}

// SampleDepthLod point-samples non-linear depth at uv from an explicit mip level.
// Loops use this form so no implicit derivatives are involved.
func (f *Frame) SampleDepthLod(uv core.Vec2, lod int) float64 {
	return f.depthMips[f.level(lod)].point(uv)
}

// SampleLinearDepth point-samples normalized linear depth at uv
func (f *Frame) SampleLinearDepth(uv core.Vec2) float64 {
	x, y := f.pixelOf(uv)
	return f.linear[y*f.Width+x]
}

// SampleViewZ point-samples view-space depth at uv
func (f *Frame) SampleViewZ(uv core.Vec2) float64 {
	return f.Camera.ViewZ(f.SampleLinearDepth(uv))
}

// SampleColor bilinearly samples color at uv
func (f *Frame) SampleColor(uv core.Vec2) core.Vec3 {
	return f.SampleColorLod(uv, 0)
}

// SampleColorLod bilinearly samples color at uv from an explicit mip level
func (f *Frame) SampleColorLod(uv core.Vec2, lod float64) core.Vec3 {
	lod = max(0, lod)
	lo := f.level(int(lod))
	hi := f.level(lo + 1)
	c0 := f.colorMips[lo].bilinear(uv, lerpColor)
	if hi == lo {
		return c0
	}
	c1 := f.colorMips[hi].bilinear(uv, lerpColor)
	return c0.Lerp(c1, lod-math.Floor(lod))
}

// MipLevels returns the number of mip levels available
func (f *Frame) MipLevels() int {
	return len(f.colorMips)
}

// ViewPosition reconstructs the view-space position of pixel (x, y)
func (f *Frame) ViewPosition(x, y int) core.Vec3 {
	return f.Camera.ViewPosition(f.UV(x, y), f.ViewZ(x, y))
}

// ViewPositionAt reconstructs the view-space position at uv using its sampled depth
func (f *Frame) ViewPositionAt(uv core.Vec2) core.Vec3 {
	return f.Camera.ViewPosition(uv, f.SampleViewZ(uv))
}

func (f *Frame) level(lod int) int {
	return max(0, min(len(f.depthMips)-1, lod))
}

func (f *Frame) pixelOf(uv core.Vec2) (int, int) {
	x := int(uv.X * float64(f.Width))
	y := int(uv.Y * float64(f.Height))
	return max(0, min(f.Width-1, x)), max(0, min(f.Height-1, y))
}

func (m mip[T]) point(uv core.Vec2) T {
	x := max(0, min(m.width-1, int(uv.X*float64(m.width))))
	y := max(0, min(m.height-1, int(uv.Y*float64(m.height))))
	return m.data[y*m.width+x]
}

func (m mip[T]) at(x, y int) T {
	x = max(0, min(m.width-1, x))
	y = max(0, min(m.height-1, y))
	return m.data[y*m.width+x]
}

func (m mip[T]) bilinear(uv core.Vec2, lerp func(a, b T, t float64) T) T {
	fx := uv.X*float64(m.width) - 0.5
	fy := uv.Y*float64(m.height) - 0.5
	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	tx := fx - float64(x0)
	ty := fy - float64(y0)
	top := lerp(m.at(x0, y0), m.at(x0+1, y0), tx)
	bottom := lerp(m.at(x0, y0+1), m.at(x0+1, y0+1), tx)
	return lerp(top, bottom, ty)
}

func lerpColor(a, b core.Vec3, t float64) core.Vec3 {
	return a.Lerp(b, t)
}

func buildMips[T any](base mip[T], average func(a, b, c, d T) T) []mip[T] {
	mips := []mip[T]{base}
	for len(mips) < maxMipLevels {
		prev := mips[len(mips)-1]
		if prev.width < 2 || prev.height < 2 {
			break
		}
		next := mip[T]{width: prev.width / 2, height: prev.height / 2}
		next.data = make([]T, next.width*next.height)
		for y := 0; y < next.height; y++ {
			for x := 0; x < next.width; x++ {
				next.data[y*next.width+x] = average(
					prev.at(2*x, 2*y), prev.at(2*x+1, 2*y),
					prev.at(2*x, 2*y+1), prev.at(2*x+1, 2*y+1))
			}
		}
		mips = append(mips, next)
	}
	return mips
}

// nearestScalar keeps the closest depth of a 2x2 footprint
func nearestScalar(a, b, c, d float64) float64 {
	return min(a, b, c, d)
}

func averageColor(a, b, c, d core.Vec3) core.Vec3 {
	return a.Add(b).Add(c).Add(d).Multiply(0.25)
}

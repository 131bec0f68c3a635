// Package buffer provides the full-screen per-pixel grids that carry effect
// results between pipeline stages and across frames.
package buffer

import (
	"github.com/df07/go-ssgi/pkg/core"
)

// EffectBuffer is a full-screen grid of per-pixel values stored row-major
type EffectBuffer[T any] struct {
	width  int
	height int
	data   []T
}

// NewEffectBuffer allocates a zeroed buffer of the given size
func NewEffectBuffer[T any](width, height int) *EffectBuffer[T] {
	return &EffectBuffer[T]{
		width:  width,
		height: height,
		data:   make([]T, width*height),
	}
}

// NewFilledBuffer allocates a buffer with every pixel set to value
func NewFilledBuffer[T any](width, height int, value T) *EffectBuffer[T] {
	b := NewEffectBuffer[T](width, height)
	b.Fill(value)
	return b
}

// Width returns the buffer width in pixels
func (b *EffectBuffer[T]) Width() int { return b.width }

// Height returns the buffer height in pixels
func (b *EffectBuffer[T]) Height() int { return b.height }

// Data returns the backing slice (row-major)
func (b *EffectBuffer[T]) Data() []T { return b.data }

// InBounds reports whether (x, y) addresses a pixel of the buffer
func (b *EffectBuffer[T]) InBounds(x, y int) bool {
	return x >= 0 && x < b.width && y >= 0 && y < b.height
}

// At returns the value at (x, y). Coordinates are clamped to the edge.
func (b *EffectBuffer[T]) At(x, y int) T {
	x = max(0, min(b.width-1, x))
	y = max(0, min(b.height-1, y))
	return b.data[y*b.width+x]
}

// Set writes the value at (x, y). Out-of-range writes are ignored.
func (b *EffectBuffer[T]) Set(x, y int, v T) {
	if !b.InBounds(x, y) {
		return
	}
	b.data[y*b.width+x] = v
}

// AtUV returns the nearest value to a UV coordinate in [0,1]²
func (b *EffectBuffer[T]) AtUV(uv core.Vec2) T {
	x, y := PixelOf(uv, b.width, b.height)
	return b.At(x, y)
}

// Fill sets every pixel to value
func (b *EffectBuffer[T]) Fill(value T) {
	for i := range b.data {
		b.data[i] = value
	}
}

// CopyFrom copies src into b. Both buffers must share a size.
func (b *EffectBuffer[T]) CopyFrom(src *EffectBuffer[T]) {
	copy(b.data, src.data)
}

// SameSize reports whether two buffers have identical dimensions
func SameSize[A, B any](a *EffectBuffer[A], b *EffectBuffer[B]) bool {
	return a.width == b.width && a.height == b.height
}

// PixelOf converts a UV coordinate to the containing pixel
func PixelOf(uv core.Vec2, width, height int) (int, int) {
	x := int(uv.X * float64(width))
	y := int(uv.Y * float64(height))
	return max(0, min(width-1, x)), max(0, min(height-1, y))
}

// UVOf returns the UV coordinate of the center of pixel (x, y)
func UVOf(x, y, width, height int) core.Vec2 {
	return core.NewVec2((float64(x)+0.5)/float64(width), (float64(y)+0.5)/float64(height))
}

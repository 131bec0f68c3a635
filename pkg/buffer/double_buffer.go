package buffer

import "github.com/df07/go-ssgi/pkg/core"

// DoubleBuffer holds the current and previous frame's buffers for one effect.
// Stages write Current and read Previous; only Swap exchanges them.
type DoubleBuffer[T any] struct {
	buffers [2]*EffectBuffer[T]
	current int
}

// NewDoubleBuffer allocates both buffers filled with the neutral value
func NewDoubleBuffer[T any](width, height int, neutral T) *DoubleBuffer[T] {
	return &DoubleBuffer[T]{
		buffers: [2]*EffectBuffer[T]{
			NewFilledBuffer(width, height, neutral),
			NewFilledBuffer(width, height, neutral),
		},
	}
}

// Current returns the buffer being written this frame
func (d *DoubleBuffer[T]) Current() *EffectBuffer[T] {
	return d.buffers[d.current]
}

// Previous returns the history buffer written by the last frame
func (d *DoubleBuffer[T]) Previous() *EffectBuffer[T] {
	return d.buffers[1-d.current]
}

// Swap makes the current buffer the history for the next frame
func (d *DoubleBuffer[T]) Swap() {
	d.current = 1 - d.current
}

// Swapper is a double buffer that can be exchanged without knowing its type
type Swapper interface {
	Swap()
}

// History is the previous frame's geometry and effect buffers, read-only
// during a frame and overwritten once per frame by the history-store stage.
type History struct {
	LinearDepth *DoubleBuffer[float64]
	Normals     *DoubleBuffer[core.Vec3]
	Valid       bool   // False until the first frame has been stored
	Frame       uint64 // Frame index of the stored history

	effects []Swapper
}

// NewHistory allocates an empty, invalid history
func NewHistory(width, height int) *History {
	return &History{
		LinearDepth: NewDoubleBuffer(width, height, 1.0),
		Normals:     NewDoubleBuffer(width, height, core.Vec3{}),
	}
}

// Track registers effect double buffers swapped together with the geometry
func (h *History) Track(buffers ...Swapper) {
	h.effects = append(h.effects, buffers...)
}

// Store records the current geometry and effects as history and marks it valid
func (h *History) Store(frame uint64) {
	h.LinearDepth.Swap()
	h.Normals.Swap()
	for _, b := range h.effects {
		b.Swap()
	}
	h.Valid = true
	h.Frame = frame
}

// Reset invalidates the history so the next frame is rendered without blending
func (h *History) Reset() {
	h.Valid = false
}

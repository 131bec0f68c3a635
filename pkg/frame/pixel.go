package frame

import "github.com/df07/go-ssgi/pkg/core"

// PixelState is the per-pixel surface description derived from the frame.
// Roughness and Metalness are filled in by the reflection stage.
type PixelState struct {
	X, Y      int
	UV        core.Vec2
	Depth     float64   // Non-linear depth
	Linear    float64   // Normalized linear depth
	Position  core.Vec3 // View-space position
	Normal    core.Vec3 // View-space normal, zero for sky
	Albedo    core.Vec3
	Roughness float64
	Metalness float64
	Sky       bool
}

// Pixel builds the state of pixel (x, y) using the given normal scheme
func (f *Frame) Pixel(x, y int, mode NormalMode) PixelState {
	linear := f.LinearDepth(x, y)
	ps := PixelState{
		X:      x,
		Y:      y,
		UV:     f.UV(x, y),
		Depth:  f.Depth(x, y),
		Linear: linear,
		Albedo: f.Color(x, y),
		Sky:    IsSky(linear),
	}
	if ps.Sky {
		return ps
	}
	ps.Position = f.Camera.ViewPosition(ps.UV, f.Camera.ViewZ(linear))
	ps.Normal = f.Normal(x, y, mode)
	return ps
}

// ViewDirection returns the unit direction from the camera to the pixel's surface
func (ps PixelState) ViewDirection() core.Vec3 {
	return ps.Position.Normalize()
}

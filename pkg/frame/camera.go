package frame

import (
	"math"

	"github.com/df07/go-ssgi/pkg/core"
)

// nearZ is the view depth at or below which a point is behind the camera
const nearZ = 1e-3

// Camera is the pinhole projection used to move between UV and view space.
// View space looks down +Z with +Y up; UV (0,0) is the top-left corner.
type Camera struct {
	FovY     float64 // Vertical field of view in degrees
	Aspect   float64 // Width / height
	FarPlane float64 // View-space distance of normalized linear depth 1.0

	tanHalfFov float64
}

// NewCamera creates a camera and caches its projection terms
func NewCamera(fovY, aspect, farPlane float64) Camera {
	return Camera{
		FovY:       fovY,
		Aspect:     aspect,
		FarPlane:   farPlane,
		tanHalfFov: math.Tan(fovY * math.Pi / 360.0),
	}
}

// TanHalfFov returns tan(FovY/2)
func (c Camera) TanHalfFov() float64 {
	if c.tanHalfFov == 0 {
		return math.Tan(c.FovY * math.Pi / 360.0)
	}
	return c.tanHalfFov
}

// ViewZ converts normalized linear depth to view-space depth
func (c Camera) ViewZ(linear float64) float64 {
	return linear * c.FarPlane
}

// ViewPosition reconstructs the view-space position of a UV at view depth z
func (c Camera) ViewPosition(uv core.Vec2, z float64) core.Vec3 {
	t := c.TanHalfFov()
	ndcX := uv.X*2 - 1
	ndcY := 1 - uv.Y*2
	return core.NewVec3(ndcX*t*c.Aspect*z, ndcY*t*z, z)
}

// Project maps a view-space position to UV. ok is false when the point
// lies at or behind the camera.
func (c Camera) Project(p core.Vec3) (uv core.Vec2, ok bool) {
	if p.Z <= nearZ {
		return core.Vec2{}, false
	}
	t := c.TanHalfFov()
	ndcX := p.X / (p.Z * t * c.Aspect)
	ndcY := p.Y / (p.Z * t)
	return core.NewVec2(ndcX*0.5+0.5, 0.5-ndcY*0.5), true
}

// FocalPixels returns the focal length in pixels for a frame of the given height
func (c Camera) FocalPixels(height int) float64 {
	return float64(height) / (2 * c.TanHalfFov())
}

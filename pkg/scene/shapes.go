package scene

import (
	"math"

	"github.com/df07/go-ssgi/pkg/core"
)

// Ray is a camera ray in view space
type Ray struct {
	Origin    core.Vec3
	Direction core.Vec3
}

// At returns the point at parameter t along the ray
func (r Ray) At(t float64) core.Vec3 {
	return r.Origin.Add(r.Direction.Multiply(t))
}

// Shape is an analytic surface the rasterizer can intersect
type Shape interface {
	// Hit returns the ray parameter and outward unit normal of the nearest
	// intersection in (tMin, tMax)
	Hit(ray Ray, tMin, tMax float64) (float64, core.Vec3, bool)
}

// Plane represents an infinite plane defined by a point and normal
type Plane struct {
	Point  core.Vec3 // A point on the plane
	Normal core.Vec3 // Unit normal
}

// NewPlane creates a new plane
func NewPlane(point, normal core.Vec3) *Plane {
	return &Plane{Point: point, Normal: normal.Normalize()}
}

// Hit tests if a ray intersects with the plane
func (p *Plane) Hit(ray Ray, tMin, tMax float64) (float64, core.Vec3, bool) {
	denominator := ray.Direction.Dot(p.Normal)

	// Ray is parallel to the plane
	if math.Abs(denominator) < 1e-8 {
		return 0, core.Vec3{}, false
	}

	t := p.Point.Subtract(ray.Origin).Dot(p.Normal) / denominator
	if t < tMin || t > tMax {
		return 0, core.Vec3{}, false
	}

	// Face the normal toward the ray origin
	normal := p.Normal
	if denominator > 0 {
		normal = normal.Negate()
	}
	return t, normal, true
}

// Rect is an axis-aligned rectangle facing the camera at a fixed view depth.
// Use ±Inf bounds for half-planes.
type Rect struct {
	Z                      float64
	MinX, MaxX, MinY, MaxY float64
}

// Hit tests if a ray intersects with the rectangle
func (r *Rect) Hit(ray Ray, tMin, tMax float64) (float64, core.Vec3, bool) {
	if math.Abs(ray.Direction.Z) < 1e-8 {
		return 0, core.Vec3{}, false
	}
	t := (r.Z - ray.Origin.Z) / ray.Direction.Z
	if t < tMin || t > tMax {
		return 0, core.Vec3{}, false
	}
	p := ray.At(t)
	if p.X < r.MinX || p.X > r.MaxX || p.Y < r.MinY || p.Y > r.MaxY {
		return 0, core.Vec3{}, false
	}
	return t, core.NewVec3(0, 0, -1), true
}

// Sphere represents a sphere shape
type Sphere struct {
	Center core.Vec3
	Radius float64
}

// NewSphere creates a new sphere
func NewSphere(center core.Vec3, radius float64) *Sphere {
	return &Sphere{Center: center, Radius: radius}
}

// Hit tests if a ray intersects with the sphere
func (s *Sphere) Hit(ray Ray, tMin, tMax float64) (float64, core.Vec3, bool) {
	// Quadratic equation coefficients: at² + bt + c = 0
	oc := ray.Origin.Subtract(s.Center)
	a := ray.Direction.Dot(ray.Direction)
	halfB := oc.Dot(ray.Direction)
	c := oc.Dot(oc) - s.Radius*s.Radius

	discriminant := halfB*halfB - a*c
	if discriminant < 0 {
		return 0, core.Vec3{}, false
	}

	// Try the closer intersection point first
	sqrtD := math.Sqrt(discriminant)
	root := (-halfB - sqrtD) / a
	if root < tMin || root > tMax {
		root = (-halfB + sqrtD) / a
		if root < tMin || root > tMax {
			return 0, core.Vec3{}, false
		}
	}

	normal := ray.At(root).Subtract(s.Center).Multiply(1 / s.Radius)
	return root, normal, true
}

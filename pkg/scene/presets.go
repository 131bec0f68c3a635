// Package scene builds synthetic analytic scenes and rasterizes them into the
// depth and color buffers the pipeline consumes.
package scene

import (
	"fmt"
	"math"
	"sort"

	"github.com/df07/go-ssgi/pkg/core"
)

// Builder creates a named scene from a configuration
type Builder func(cfg Config) *Scene

var builders = map[string]Builder{
	"plane": func(cfg Config) *Scene {
		return NewPlaneScene(cfg, 10, core.Splat(0.5))
	},
	"corner": func(cfg Config) *Scene {
		return NewCornerScene(cfg, 10, 45)
	},
	"step": func(cfg Config) *Scene {
		return NewStepScene(cfg, 10, 20)
	},
	"spheres": NewSpheresScene,
}

// Names returns the names of the built-in scenes, sorted
func Names() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ByName creates the built-in scene with the given name
func ByName(name string, cfg Config) (*Scene, error) {
	build, ok := builders[name]
	if !ok {
		return nil, fmt.Errorf("unknown scene %q (available: %v)", name, Names())
	}
	return build(cfg), nil
}

// NewPlaneScene creates a plane perpendicular to the view at depth z
func NewPlaneScene(cfg Config, z float64, albedo core.Vec3) *Scene {
	s := New("plane", cfg)
	s.Add(&Rect{Z: z, MinX: math.Inf(-1), MaxX: math.Inf(1), MinY: math.Inf(-1), MaxY: math.Inf(1)}, albedo)
	return s
}

// NewCornerScene creates a concave vertical crease at the center of the
// frame. Both walls recede toward the crease at depth z; angle is the tilt
// of each wall away from the camera-facing plane in degrees, so 0 is a flat
// plane and 90 closes the corner.
func NewCornerScene(cfg Config, z, angle float64) *Scene {
	s := New("corner", cfg)
	tilt := angle * math.Pi / 180
	crease := core.NewVec3(0, 0, z)
	s.Add(NewPlane(crease, core.NewVec3(math.Sin(tilt), 0, math.Cos(tilt))), core.NewVec3(0.7, 0.3, 0.3))
	s.Add(NewPlane(crease, core.NewVec3(-math.Sin(tilt), 0, math.Cos(tilt))), core.NewVec3(0.3, 0.7, 0.3))
	return s
}

// NewStepScene creates a depth step: the right half of the frame at the near
// depth in front of a far plane
func NewStepScene(cfg Config, near, far float64) *Scene {
	s := New("step", cfg)
	s.Add(&Rect{Z: near, MinX: 0, MaxX: math.Inf(1), MinY: math.Inf(-1), MaxY: math.Inf(1)}, core.NewVec3(0.8, 0.2, 0.2))
	s.Add(&Rect{Z: far, MinX: math.Inf(-1), MaxX: math.Inf(1), MinY: math.Inf(-1), MaxY: math.Inf(1)}, core.NewVec3(0.2, 0.2, 0.8))
	return s
}

// NewSpheresScene creates a row of colored spheres resting on a floor in
// front of a back wall
func NewSpheresScene(cfg Config) *Scene {
	s := New("spheres", cfg)
	s.Add(NewPlane(core.NewVec3(0, -1, 0), core.NewVec3(0, 1, 0)), core.NewVec3(0.75, 0.75, 0.7))
	s.Add(&Rect{Z: 14, MinX: math.Inf(-1), MaxX: math.Inf(1), MinY: -1, MaxY: 4}, core.NewVec3(0.6, 0.6, 0.65))

	const count = 5
	for i := 0; i < count; i++ {
		radius := 0.5 + 0.15*float64(i%2)
		center := core.NewVec3(-2.4+1.2*float64(i), -1+radius, 6+0.8*float64(i))
		hue := 360 * float64(i) / count
		s.Add(NewSphere(center, radius), oklchToRGB(0.7, 0.15, hue))
	}
	return s
}

// oklchToRGB converts OKLCH color values to linear RGB
// L: lightness (0-1), C: chroma (0-0.4+), H: hue (0-360 degrees)
func oklchToRGB(l, c, h float64) core.Vec3 {
	hRad := h * math.Pi / 180.0
	a := c * math.Cos(hRad)
	b := c * math.Sin(hRad)

	// OKLAB to LMS, then cube
	l_ := l + 0.3963377774*a + 0.2158037573*b
	m_ := l - 0.1055613458*a - 0.0638541728*b
	s_ := l - 0.0894841775*a - 1.2914855480*b
	l_ = l_ * l_ * l_
	m_ = m_ * m_ * m_
	s_ = s_ * s_ * s_

	r := +4.0767416621*l_ - 3.3077115913*m_ + 0.2309699292*s_
	g := -1.2684380046*l_ + 2.6097574011*m_ - 0.3413193965*s_
	blue := -0.0041960863*l_ - 0.7034186147*m_ + 1.7076147010*s_

	return core.NewVec3(r, g, blue).Clamp(0, 1)
}

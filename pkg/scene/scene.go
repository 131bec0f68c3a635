package scene

import (
	"fmt"
	"math"

	"github.com/df07/go-ssgi/pkg/core"
	"github.com/df07/go-ssgi/pkg/frame"
)

// Config contains the output and camera configuration of a synthetic scene
type Config struct {
	Width    int     // Image width
	Height   int     // Image height
	FovY     float64 // Vertical field of view in degrees
	FarPlane float64 // View-space distance mapped to linear depth 1.0
}

// DefaultConfig returns the configuration used by the CLI
func DefaultConfig() Config {
	return Config{
		Width:    320,
		Height:   180,
		FovY:     60,
		FarPlane: 100,
	}
}

// Object is a shape with a diffuse color
type Object struct {
	Shape  Shape
	Albedo core.Vec3
}

// Scene is an analytic view-space scene rasterized into the depth and color
// buffers a host engine would supply
type Scene struct {
	Name    string
	Config  Config
	Camera  frame.Camera
	Objects []Object

	Light    core.Vec3 // Unit direction toward the key light, view space
	Ambient  float64   // Light added to every lit surface
	SkyTop   core.Vec3 // Background color at the top of the frame
	SkyHoriz core.Vec3 // Background color at the horizon
	Motion   core.Vec3 // Camera translation per frame, view space
}

// New creates an empty scene with default lighting
func New(name string, cfg Config) *Scene {
	return &Scene{
		Name:     name,
		Config:   cfg,
		Camera:   frame.NewCamera(cfg.FovY, float64(cfg.Width)/float64(cfg.Height), cfg.FarPlane),
		Light:    core.NewVec3(-0.4, 0.8, -0.5).Normalize(),
		Ambient:  0.25,
		SkyTop:   core.NewVec3(0.5, 0.7, 1.0),
		SkyHoriz: core.NewVec3(0.9, 0.9, 0.95),
	}
}

// Add appends an object to the scene
func (s *Scene) Add(shape Shape, albedo core.Vec3) {
	s.Objects = append(s.Objects, Object{Shape: shape, Albedo: albedo})
}

// Trace returns the nearest object hit along the camera ray through uv in
// the given frame. ok is false when the ray escapes past the far plane.
func (s *Scene) Trace(uv core.Vec2, frameIndex uint64) (z float64, normal core.Vec3, albedo core.Vec3, ok bool) {
	// Direction with unit view depth, so the ray parameter is the view depth
	dir := s.Camera.ViewPosition(uv, 1)
	ray := Ray{Origin: s.Motion.Multiply(float64(frameIndex)), Direction: dir}

	closest := s.Camera.FarPlane
	for _, obj := range s.Objects {
		t, n, hit := obj.Shape.Hit(ray, 1e-3, closest)
		if !hit {
			continue
		}
		closest, normal, albedo, ok = t, n, obj.Albedo, true
	}
	return closest, normal, albedo, ok
}

// Render rasterizes the scene for the given frame. Depth is encoded with
// format, color is linear RGB lit by the key light.
func (s *Scene) Render(frameIndex uint64, format frame.DepthFormat) ([]float64, []core.Vec3) {
	w, h := s.Config.Width, s.Config.Height
	depth := make([]float64, w*h)
	color := make([]core.Vec3, w*h)

	pixelSize := core.NewVec2(1/float64(w), 1/float64(h))
	for y := 0; y < h; y++ {
		// Encoded rows are stored flipped when the host flips
		row := y
		if format.FlipY {
			row = h - 1 - y
		}
		for x := 0; x < w; x++ {
			uv := core.NewVec2((float64(x)+0.5)*pixelSize.X, (float64(y)+0.5)*pixelSize.Y)
			z, n, albedo, ok := s.Trace(uv, frameIndex)
			if !ok {
				depth[row*w+x] = format.Encode(1)
				color[y*w+x] = s.SkyTop.Lerp(s.SkyHoriz, uv.Y)
				continue
			}
			depth[row*w+x] = format.Encode(frame.Delinearize(z / s.Camera.FarPlane))
			diffuse := s.Ambient + (1-s.Ambient)*math.Max(0, n.Dot(s.Light))
			color[y*w+x] = albedo.Multiply(diffuse)
		}
	}
	return depth, color
}

// Frame renders the scene and decodes it into a frame
func (s *Scene) Frame(frameIndex uint64) (*frame.Frame, error) {
	depth, color := s.Render(frameIndex, frame.DepthFormat{})
	f, err := frame.NewFrame(s.Config.Width, s.Config.Height, depth, color, s.Camera, frame.DepthFormat{})
	if err != nil {
		return nil, fmt.Errorf("scene %s: %w", s.Name, err)
	}
	return f, nil
}

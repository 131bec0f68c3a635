// Package raymarch traces view-space rays against the depth buffer with an
// adaptive step size, binary-search refinement and hit-confidence scoring.
package raymarch

import (
	"math"

	"github.com/df07/go-ssgi/pkg/core"
	"github.com/df07/go-ssgi/pkg/frame"
)

const (
	// EdgeMargin is the UV width of the soft fade at the frame border
	EdgeMargin = 0.05

	// SkyConfidence is the fixed confidence of a ray that reaches the sky
	SkyConfidence = 0.3

	minStepScale = 0.25 // Lower bound of the step, relative to the base step
	maxStepScale = 4.0  // Upper bound of the step, relative to the base step
	stepGrowth   = 1.5  // Step multiplier while far from any surface

	// approachFraction is the drop in depth difference, relative to
	// Thickness, that marks a ray as closing in on a surface
	approachFraction = 0.25
)

// DefaultSkyColor is the flat ambient color returned for rays that reach the sky
var DefaultSkyColor = core.NewVec3(0.6, 0.7, 0.8)

// Params bounds a single march
type Params struct {
	MaxSteps    int     // Step budget
	MaxDistance float64 // View-space travel budget
	Thickness   float64 // Depth tolerance in front of a surface that counts as a hit
	RefineSteps int     // Binary search rounds after a hit (0 disables)
	Jitter      float64 // Start offset in [0,1) of the first step
}

// Hit is the result of a march. A ray that runs out of budget has
// confidence 0. A ray that leaves the frame keeps the edge-faded confidence
// of its last on-screen position.
type Hit struct {
	Color      core.Vec3
	Confidence float64
	UV         core.Vec2 // Hit UV, or the last on-screen UV for a miss
	Hit        bool      // A surface was found
	Sky        bool      // The ray reached the background
	Exited     bool      // The ray left the frame or passed behind the camera
	Distance   float64   // Travel distance at termination
	DepthDiff  float64   // Scene depth minus ray depth at the hit
	Steps      int       // Steps taken
}

// Marcher traces rays against one frame
type Marcher struct {
	frame    *frame.Frame
	SkyColor core.Vec3
}

// NewMarcher creates a marcher for the given frame
func NewMarcher(f *frame.Frame) *Marcher {
	return &Marcher{frame: f, SkyColor: DefaultSkyColor}
}

// Frame returns the frame the marcher reads from
func (m *Marcher) Frame() *frame.Frame {
	return m.frame
}

// sceneZ returns the view-space depth of the scene at uv, sampled at level 0
func (m *Marcher) sceneZ(uv core.Vec2) (float64, bool) {
	linear := frame.Linearize(m.frame.SampleDepthLod(uv, 0))
	return m.frame.Camera.ViewZ(linear), frame.IsSky(linear)
}

// Trace marches from origin along the unit direction dir.
//
// A sample is a hit when the scene lies behind the ray by less than
// Thickness. Hits only count once the ray is armed: it has either cleared
// Thickness in front of the scene, or its depth difference has dropped by
// approachFraction of Thickness below the largest seen so far. A ray
// leaving its own surface only moves away from it and never arms early.
// The step halves (backing up) when the ray passes behind a surface and
// grows while the ray is far from any surface.
func (m *Marcher) Trace(origin, dir core.Vec3, p Params) Hit {
	if p.MaxSteps <= 0 || p.MaxDistance <= 0 || dir.IsZero() {
		return Hit{}
	}

	baseStep := p.MaxDistance / float64(p.MaxSteps)
	minStep := baseStep * minStepScale
	maxStep := baseStep * maxStepScale
	step := 0.5 * baseStep

	camera := m.frame.Camera
	lastUV, onScreen := camera.Project(origin)
	t := step * core.Fract(p.Jitter)

	// An origin off the depth buffer is not on any surface
	armed := true
	var peak float64
	if onScreen && lastUV.InUnitSquare() {
		if z, sky := m.sceneZ(lastUV); !sky {
			armed = false
			peak = z - origin.Z
		}
	}
	approach := approachFraction * p.Thickness

	for i := 0; i < p.MaxSteps; i++ {
		t += step
		if t > p.MaxDistance {
			return Hit{UV: lastUV, Distance: p.MaxDistance, Steps: i + 1}
		}

		pos := origin.Add(dir.Multiply(t))
		uv, ok := camera.Project(pos)
		if !ok || !uv.InUnitSquare() {
			return Hit{
				Confidence: ExitConfidence(t, p.MaxDistance, lastUV),
				UV:         lastUV,
				Exited:     true,
				Distance:   t,
				Steps:      i + 1,
			}
		}
		lastUV = uv

		sceneZ, sky := m.sceneZ(uv)
		if sky {
			return Hit{
				Color:      m.SkyColor,
				Confidence: SkyConfidence * ScreenFade(uv),
				UV:         uv,
				Sky:        true,
				Distance:   t,
				Steps:      i + 1,
			}
		}

		diff := sceneZ - pos.Z
		if !armed {
			if peak-diff > approach {
				armed = true
			} else {
				peak = max(peak, diff)
			}
		}

		switch {
		case diff >= 0 && diff < p.Thickness:
			if !armed {
				// Still hugging the origin surface
				continue
			}
			found := candidate{t: t, diff: diff, uv: uv, ok: true}
			return m.hit(m.search(origin, dir, t, t+step, found, p.RefineSteps, p), p, i+1)

		case diff < 0:
			if !armed {
				continue
			}
			if step <= minStep {
				// The surface lies between the last two samples or the ray is
				// passing behind an occluder
				if diff >= -p.Thickness {
					if c := m.search(origin, dir, t-step, t, candidate{}, max(p.RefineSteps, 3), p); c.ok {
						return m.hit(c, p, i+1)
					}
				}
				continue
			}
			// Back up to the last sample in front and approach with half the step
			t -= step
			step = max(step*0.5, minStep)

		default:
			armed = true
			step = min(step*stepGrowth, maxStep)
		}
	}

	return Hit{UV: lastUV, Distance: t, Steps: p.MaxSteps}
}

// candidate is a position along the ray that satisfies the hit test
type candidate struct {
	t    float64
	diff float64
	uv   core.Vec2
	ok   bool
}

func (m *Marcher) hit(c candidate, p Params, steps int) Hit {
	return Hit{
		Color:      m.frame.SampleColor(c.uv),
		Confidence: Confidence(c.t, p.MaxDistance, c.uv, c.diff, p.Thickness),
		UV:         c.uv,
		Hit:        true,
		Distance:   c.t,
		DepthDiff:  c.diff,
		Steps:      steps,
	}
}

// search bisects [lo, hi] for the position closest to the surface that is
// still in front of it, keeping best if no better position is found.
func (m *Marcher) search(origin, dir core.Vec3, lo, hi float64, best candidate, rounds int, p Params) candidate {
	for r := 0; r < rounds; r++ {
		mid := 0.5 * (lo + hi)
		pos := origin.Add(dir.Multiply(mid))
		uv, ok := m.frame.Camera.Project(pos)
		if !ok || !uv.InUnitSquare() {
			hi = mid
			continue
		}
		sceneZ, sky := m.sceneZ(uv)
		d := sceneZ - pos.Z
		if sky || d < 0 {
			hi = mid
			continue
		}
		lo = mid
		if d < p.Thickness {
			best = candidate{t: mid, diff: d, uv: uv, ok: true}
		}
	}
	return best
}

// Confidence scores a hit: closer hits, hits away from the frame border and
// tighter depth matches are trusted more. The result is clamped to [0,1].
func Confidence(distance, maxDistance float64, uv core.Vec2, depthDiff, thickness float64) float64 {
	travel := 1 - core.Clamp01(distance/max(maxDistance, core.Epsilon))
	tightness := 1 - core.Clamp01(depthDiff/max(thickness, core.Epsilon))
	return core.Clamp01(travel * EdgeFalloff(uv) * tightness)
}

// ExitConfidence scores a ray that left the frame after travelling
// distance, by the edge fade of its last on-screen position uv
func ExitConfidence(distance, maxDistance float64, uv core.Vec2) float64 {
	travel := 1 - core.Clamp01(distance/max(maxDistance, core.Epsilon))
	return core.Clamp01(travel * ScreenFade(uv))
}

// ScreenFade is 1 inside the frame and fades to 0 within EdgeMargin of the border
func ScreenFade(uv core.Vec2) float64 {
	d := min(uv.X, 1-uv.X, uv.Y, 1-uv.Y)
	return core.Smoothstep(0, EdgeMargin, d)
}

// EdgeFalloff is 1 at the frame center and falls to 0 at the border. It is
// non-increasing along any path from the center to the border.
func EdgeFalloff(uv core.Vec2) float64 {
	e := max(math.Abs(uv.X*2-1), math.Abs(uv.Y*2-1))
	return core.Clamp01(1-math.Pow(e, 8)) * ScreenFade(uv)
}

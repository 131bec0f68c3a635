package raymarch

import (
	"math"
	"testing"

	"github.com/df07/go-ssgi/pkg/core"
	"github.com/df07/go-ssgi/pkg/frame"
)

// newDepthFieldFrame builds a frame whose view depth at each pixel is given by zAt.
// zAt returning a value <= 0 marks the pixel as sky.
func newDepthFieldFrame(t *testing.T, width, height int, zAt func(x, y int) float64, colorAt func(x, y int) core.Vec3) *frame.Frame {
	t.Helper()
	camera := frame.NewCamera(60, float64(width)/float64(height), 100)
	depth := make([]float64, width*height)
	color := make([]core.Vec3, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			z := zAt(x, y)
			if z <= 0 {
				depth[y*width+x] = 1.0
			} else {
				depth[y*width+x] = frame.Delinearize(z / camera.FarPlane)
			}
			color[y*width+x] = colorAt(x, y)
		}
	}
	f, err := frame.NewFrame(width, height, depth, color, camera, frame.DepthFormat{})
	if err != nil {
		t.Fatalf("NewFrame failed: %v", err)
	}
	return f
}

// stepField is 10 units deep on the right half of the frame and 20 on the left
func stepField(t *testing.T) *frame.Frame {
	width, height := 64, 64
	return newDepthFieldFrame(t, width, height,
		func(x, y int) float64 {
			if x >= width/2 {
				return 10
			}
			return 20
		},
		func(x, y int) core.Vec3 {
			if x >= width/2 {
				return core.NewVec3(1, 0, 0)
			}
			return core.NewVec3(0, 0, 1)
		})
}

func defaultParams() Params {
	return Params{MaxSteps: 64, MaxDistance: 20, Thickness: 0.5, RefineSteps: 4}
}

func TestTraceHitsStepFace(t *testing.T) {
	f := stepField(t)
	m := NewMarcher(f)

	// Pixel on the near (right) block: march along its view ray from halfway
	surface := f.ViewPosition(48, 32)
	origin := surface.Multiply(0.5)
	dir := surface.Normalize()
	params := defaultParams()

	hit := m.Trace(origin, dir, params)

	if !hit.Hit {
		t.Fatalf("Expected a hit on the near block, got %+v", hit)
	}
	if hit.DepthDiff < 0 || hit.DepthDiff >= params.Thickness {
		t.Errorf("DepthDiff %f outside [0, %f)", hit.DepthDiff, params.Thickness)
	}
	expectedDistance := surface.Subtract(origin).Length()
	if math.Abs(hit.Distance-expectedDistance) > params.Thickness/dir.Z {
		t.Errorf("Hit distance %f, expected about %f", hit.Distance, expectedDistance)
	}
	if hit.Color != core.NewVec3(1, 0, 0) {
		t.Errorf("Expected the near block's color, got %v", hit.Color)
	}
	if hit.Confidence <= 0 || hit.Confidence > 1 {
		t.Errorf("Confidence %f outside (0,1]", hit.Confidence)
	}
	if hit.Steps >= params.MaxSteps {
		t.Errorf("Adaptive march should converge before exhausting %d steps, took %d", params.MaxSteps, hit.Steps)
	}
}

func TestTraceHitsFarPlaneNotNear(t *testing.T) {
	f := stepField(t)
	m := NewMarcher(f)

	surface := f.ViewPosition(16, 32)
	origin := surface.Multiply(0.5)
	hit := m.Trace(origin, surface.Normalize(), defaultParams())

	if !hit.Hit {
		t.Fatalf("Expected a hit on the far plane, got %+v", hit)
	}
	if hit.Color != core.NewVec3(0, 0, 1) {
		t.Errorf("Expected the far plane's color, got %v", hit.Color)
	}
}

func TestTraceMissesWhenPointingAway(t *testing.T) {
	f := stepField(t)
	m := NewMarcher(f)

	surface := f.ViewPosition(48, 32)
	origin := surface.Multiply(0.5)
	hit := m.Trace(origin, surface.Normalize().Negate(), defaultParams())

	if hit.Hit {
		t.Errorf("Ray pointing toward the camera should miss, got %+v", hit)
	}
	if !hit.Exited {
		t.Fatalf("Ray should terminate behind the camera, got %+v", hit)
	}
	expected := ExitConfidence(hit.Distance, defaultParams().MaxDistance, hit.UV)
	if math.Abs(hit.Confidence-expected) > 1e-12 || hit.Confidence <= 0 {
		t.Errorf("Exit confidence should be %f, got %f", expected, hit.Confidence)
	}
}

func TestTraceBudgetMissHasNoConfidence(t *testing.T) {
	f := stepField(t)
	m := NewMarcher(f)

	// Far in front of the near block and too short to reach it
	surface := f.ViewPosition(48, 32)
	origin := surface.Multiply(0.2)
	params := defaultParams()
	params.MaxDistance = 2
	hit := m.Trace(origin, surface.Normalize(), params)
	if hit.Hit || hit.Exited || hit.Confidence != 0 {
		t.Errorf("Ray running out of distance should be a plain miss, got %+v", hit)
	}
}

func TestTraceHitsNearbySurface(t *testing.T) {
	f := stepField(t)
	m := NewMarcher(f)
	params := defaultParams()

	surface := f.ViewPosition(48, 32)
	dir := surface.Normalize()
	for _, gap := range []float64{0.05, 0.1, 0.2, 0.4, 0.6, 1.0} {
		for _, jitter := range []float64{0, 0.5, 0.9} {
			params.Jitter = jitter
			hit := m.Trace(surface.Subtract(dir.Multiply(gap)), dir, params)
			if !hit.Hit {
				t.Errorf("gap %.2f jitter %.1f: expected a hit on the near block, got %+v", gap, jitter, hit)
				continue
			}
			if hit.Color != core.NewVec3(1, 0, 0) {
				t.Errorf("gap %.2f jitter %.1f: expected the near block's color, got %v", gap, jitter, hit.Color)
			}
			if hit.Confidence <= 0 {
				t.Errorf("gap %.2f jitter %.1f: expected positive confidence, got %f", gap, jitter, hit.Confidence)
			}
			if hit.Steps >= params.MaxSteps {
				t.Errorf("gap %.2f jitter %.1f: close hit took the whole step budget", gap, jitter)
			}
		}
	}
}

func TestTraceGrazingOwnSurfaceDoesNotSelfHit(t *testing.T) {
	f := newDepthFieldFrame(t, 64, 64,
		func(x, y int) float64 { return 10 },
		func(x, y int) core.Vec3 { return core.Splat(0.5) })
	m := NewMarcher(f)

	origin := f.ViewPosition(32, 32)
	// Tilted slightly away from the plane (normal is -Z)
	dir := core.NewVec3(1, 0, -0.05).Normalize()
	hit := m.Trace(origin, dir, defaultParams())
	if hit.Hit {
		t.Errorf("Ray leaving a flat plane should not hit it, got %+v", hit)
	}
}

func TestTraceSky(t *testing.T) {
	f := newDepthFieldFrame(t, 32, 32,
		func(x, y int) float64 { return 0 },
		func(x, y int) core.Vec3 { return core.Vec3{} })
	m := NewMarcher(f)

	hit := m.Trace(core.NewVec3(0, 0, 5), core.NewVec3(0, 0, 1), defaultParams())
	if !hit.Sky {
		t.Fatalf("Expected a sky termination, got %+v", hit)
	}
	if hit.Hit {
		t.Error("Sky termination should not count as a surface hit")
	}
	if math.Abs(hit.Confidence-SkyConfidence) > 1e-9 {
		t.Errorf("Sky confidence at the frame center should be %f, got %f", SkyConfidence, hit.Confidence)
	}
	if hit.Color != DefaultSkyColor {
		t.Errorf("Expected sky color %v, got %v", DefaultSkyColor, hit.Color)
	}
}

func TestConfidenceDecreasesTowardBorder(t *testing.T) {
	directions := []core.Vec2{{X: 1, Y: 0}, {X: -1, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: -1}, {X: 1, Y: 0.3}}
	for _, d := range directions {
		prev := math.Inf(1)
		for i := 0; i <= 100; i++ {
			s := float64(i) / 200
			uv := core.NewVec2(0.5+d.X*s, 0.5+d.Y*s)
			c := Confidence(2, 10, uv, 0.1, 0.5)
			if c > prev+1e-12 {
				t.Fatalf("Confidence increased toward the border along %v at step %d: %f > %f", d, i, c, prev)
			}
			prev = c
		}
		if prev > 1e-9 {
			t.Errorf("Confidence at the border along %v should be 0, got %f", d, prev)
		}
	}
}

func TestTraceExitConfidenceFadesAtBorder(t *testing.T) {
	f := newDepthFieldFrame(t, 64, 64,
		func(x, y int) float64 { return 10 },
		func(x, y int) core.Vec3 { return core.Splat(0.5) })
	m := NewMarcher(f)
	params := defaultParams()

	// Rays parallel to the plane run off the right edge
	for _, x := range []int{8, 32, 48, 60} {
		origin := f.ViewPosition(x, 32).Multiply(0.5)
		hit := m.Trace(origin, core.NewVec3(1, 0, 0), params)
		if !hit.Exited {
			t.Fatalf("Ray from pixel %d should leave the frame, got %+v", x, hit)
		}
		expected := ExitConfidence(hit.Distance, params.MaxDistance, hit.UV)
		if math.Abs(hit.Confidence-expected) > 1e-12 {
			t.Errorf("Ray from pixel %d: expected exit confidence %f, got %f", x, expected, hit.Confidence)
		}
		if hit.Confidence > ScreenFade(hit.UV) {
			t.Errorf("Ray from pixel %d: exit confidence %f above the edge fade %f", x, hit.Confidence, ScreenFade(hit.UV))
		}
	}
}

func TestExitConfidenceDecreasesTowardBorder(t *testing.T) {
	prev := math.Inf(1)
	for i := 0; i <= 100; i++ {
		uv := core.NewVec2(0.9+float64(i)/1000, 0.5)
		c := ExitConfidence(2, 10, uv)
		if c > prev+1e-12 {
			t.Fatalf("Exit confidence increased toward the border at %v: %f > %f", uv, c, prev)
		}
		prev = c
	}
	if prev > 1e-9 {
		t.Errorf("Exit confidence at the border should be 0, got %f", prev)
	}
	if c := ExitConfidence(2, 10, core.NewVec2(0.5, 0.5)); math.Abs(c-0.8) > 1e-12 {
		t.Errorf("Exit from the interior should only lose travel, got %f", c)
	}
}

func TestConfidenceFactors(t *testing.T) {
	center := core.NewVec2(0.5, 0.5)
	if c := Confidence(0, 10, center, 0, 1); math.Abs(c-1) > 1e-9 {
		t.Errorf("Exact centered hit at zero distance should have confidence 1, got %f", c)
	}
	if Confidence(5, 10, center, 0, 1) <= Confidence(8, 10, center, 0, 1) {
		t.Error("Closer hits should be more confident")
	}
	if Confidence(5, 10, center, 0.1, 1) <= Confidence(5, 10, center, 0.9, 1) {
		t.Error("Tighter depth matches should be more confident")
	}
}

func TestTraceDegenerateInput(t *testing.T) {
	f := stepField(t)
	m := NewMarcher(f)
	if hit := m.Trace(core.NewVec3(0, 0, 5), core.Vec3{}, defaultParams()); hit.Hit || hit.Confidence != 0 {
		t.Errorf("Zero direction should return an empty result, got %+v", hit)
	}
	if hit := m.Trace(core.NewVec3(0, 0, 5), core.NewVec3(0, 0, 1), Params{}); hit.Hit {
		t.Errorf("Zero step budget should return an empty result, got %+v", hit)
	}
}

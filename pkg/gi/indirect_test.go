package gi

import (
	"math"
	"testing"

	"github.com/df07/go-ssgi/pkg/ao"
	"github.com/df07/go-ssgi/pkg/config"
	"github.com/df07/go-ssgi/pkg/core"
	"github.com/df07/go-ssgi/pkg/frame"
	"github.com/df07/go-ssgi/pkg/sampling"
	"github.com/df07/go-ssgi/pkg/scene"
)

var testConfig = scene.Config{Width: 64, Height: 64, FovY: 60, FarPlane: 100}

func mustFrame(t *testing.T, s *scene.Scene) *frame.Frame {
	t.Helper()
	f, err := s.Frame(0)
	if err != nil {
		t.Fatalf("Failed to render scene: %v", err)
	}
	return f
}

func testParams(bounces int) Params {
	return Params{Rays: 12, Steps: 32, Bounces: bounces, MaxDistance: 20, Thickness: DefaultThickness, RefineSteps: 4, Intensity: 1}
}

// unoccluded returns a neutral AO result bent along the pixel's own normal
func unoccluded(ps frame.PixelState) ao.Result {
	return ao.Result{AO: 1, BentNormal: ps.Normal}
}

func TestFlatPlaneReturnsAmbientBaseline(t *testing.T) {
	f := mustFrame(t, scene.NewPlaneScene(testConfig, 10, core.Splat(0.5)))
	noise := sampling.NewProceduralNoise(64, 5)

	for _, bounces := range []int{1, 2, 3} {
		est := NewEstimator(f, noise, testParams(bounces))
		for _, px := range [][2]int{{32, 32}, {5, 60}, {60, 3}} {
			ps := f.Pixel(px[0], px[1], frame.NormalFast)
			got := est.Estimate(ps, unoccluded(ps), 1)
			want := AmbientBaseline(ps.Albedo, bounces, 1)
			if got.Subtract(want).Length() > 1e-9 {
				t.Errorf("%d bounces, pixel %v: expected ambient baseline %v, got %v", bounces, px, want, got)
			}
		}
	}
}

func TestAmbientBaselineGrowsWithBounces(t *testing.T) {
	albedo := core.Splat(0.5)
	prev := 0.0
	for b := 1; b <= 3; b++ {
		l := AmbientBaseline(albedo, b, 1).Luminance()
		if l <= prev {
			t.Errorf("Baseline with %d bounces (%f) should exceed %d bounces (%f)", b, l, b-1, prev)
		}
		prev = l
	}
	one := AmbientBaseline(albedo, 1, 1)
	expected := 0.05 * 0.25
	if math.Abs(one.X-expected) > 1e-12 {
		t.Errorf("Single bounce baseline should be ambient·albedo², got %f, expected %f", one.X, expected)
	}
}

func TestColorBleedsAcrossCorner(t *testing.T) {
	f := mustFrame(t, scene.NewCornerScene(testConfig, 10, 45))
	est := NewEstimator(f, sampling.NewProceduralNoise(64, 2), testParams(1))

	// Green left wall facing the red right wall
	ps := f.Pixel(26, 32, frame.NormalFast)
	got := est.Estimate(ps, unoccluded(ps), 0)
	baseline := AmbientBaseline(ps.Albedo, 1, 1)

	if got.X <= baseline.X {
		t.Errorf("Red wall should raise the red channel above the ambient baseline: got %v, baseline %v", got, baseline)
	}
}

func TestFireflyClamp(t *testing.T) {
	f := mustFrame(t, scene.NewCornerScene(testConfig, 10, 45))
	p := testParams(2)
	p.Intensity = 1000
	est := NewEstimator(f, nil, p)

	for x := 20; x < 44; x += 4 {
		ps := f.Pixel(x, 32, frame.NormalFast)
		got := est.Estimate(ps, unoccluded(ps), 0)
		if got.Luminance() > MaxLuminance+1e-9 {
			t.Errorf("Pixel %d: luminance %f exceeds the firefly ceiling", x, got.Luminance())
		}
	}
}

func TestSkyIsBlack(t *testing.T) {
	f := mustFrame(t, scene.New("empty", testConfig))
	got := NewEstimator(f, nil, testParams(2)).EstimatePixel(3, 3, ao.Unoccluded(), 0)
	if got != (core.Vec3{}) {
		t.Errorf("Sky pixels receive no indirect light, got %v", got)
	}
}

func TestParamsFromSettings(t *testing.T) {
	s := config.DefaultSettings()
	s.Quality = config.QualityLow
	p := ParamsFromSettings(s)
	if p.Rays != 4 || p.Steps != 16 || p.Bounces != 1 {
		t.Errorf("Low quality should use 4 rays, 16 steps, 1 bounce, got %+v", p)
	}
	if math.Abs(p.MaxDistance-s.MaxRayDistance*0.5) > 1e-12 {
		t.Errorf("Low quality should halve the ray distance, got %f", p.MaxDistance)
	}
}

package reflection

import (
	"math"
	"testing"

	"github.com/df07/go-ssgi/pkg/config"
	"github.com/df07/go-ssgi/pkg/core"
	"github.com/df07/go-ssgi/pkg/frame"
	"github.com/df07/go-ssgi/pkg/raymarch"
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

func testParams() Params {
	return Params{
		Steps:             48,
		MaxSamples:        12,
		MaxDistance:       20,
		Thickness:         DefaultThickness,
		RefineSteps:       4,
		Intensity:         1,
		RoughnessOverride: config.AutoEstimate,
		MetalnessOverride: config.AutoEstimate,
	}
}

func TestSampleCount(t *testing.T) {
	tests := []struct {
		roughness  float64
		maxSamples int
		expected   int
	}{
		{0, 12, 1},
		{0.04, 12, 1},
		{1, 12, 12},
		{1, 4, 4},
		{1, 16, 16},
		{0.5, 13, 7},
		{1, 1, 1},
	}
	for _, tt := range tests {
		if got := SampleCount(tt.roughness, tt.maxSamples); got != tt.expected {
			t.Errorf("SampleCount(%.2f, %d) = %d, expected %d", tt.roughness, tt.maxSamples, got, tt.expected)
		}
	}
	for q := config.QualityLow; q <= config.QualityUltra; q++ {
		maxSamples := config.Profile(q).ReflectionSamples
		if got := SampleCount(1, maxSamples); got != maxSamples {
			t.Errorf("%s: roughness 1 should use all %d samples, got %d", q, maxSamples, got)
		}
	}
}

func TestFresnel(t *testing.T) {
	f0 := core.Splat(DielectricF0)
	if got := Fresnel(1, f0); got.Subtract(f0).Length() > 1e-12 {
		t.Errorf("Normal incidence should return F0, got %v", got)
	}
	if got := Fresnel(0, f0); got.Subtract(core.Splat(1)).Length() > 1e-12 {
		t.Errorf("Grazing incidence should return 1, got %v", got)
	}
	if Fresnel(0.3, f0).X <= Fresnel(0.8, f0).X {
		t.Error("Reflectance should increase toward grazing angles")
	}
}

func TestSpecularF0(t *testing.T) {
	gold := core.NewVec3(1.0, 0.78, 0.34)
	if got := SpecularF0(gold, 0); got != core.Splat(DielectricF0) {
		t.Errorf("Dielectrics should use F0 = 0.04, got %v", got)
	}
	if got := SpecularF0(gold, 1); got.Subtract(gold).Length() > 1e-12 {
		t.Errorf("Metals should reflect their albedo, got %v", got)
	}
}

func TestEstimateMetalness(t *testing.T) {
	tests := []struct {
		name   string
		albedo core.Vec3
		metal  bool
	}{
		{"gray", core.Splat(0.5), false},
		{"white", core.Splat(1), false},
		{"dark red", core.NewVec3(0.05, 0.0, 0.0), false},
		{"gold", core.NewVec3(1.0, 0.6, 0.1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := EstimateMetalness(tt.albedo)
			if m < 0 || m > 1 {
				t.Fatalf("Metalness %f outside [0,1]", m)
			}
			if tt.metal && m < 0.5 {
				t.Errorf("Expected metallic, got %f", m)
			}
			if !tt.metal && m > 0.1 {
				t.Errorf("Expected dielectric, got %f", m)
			}
		})
	}
}

func TestEstimateRoughness(t *testing.T) {
	flat := mustFrame(t, scene.NewPlaneScene(testConfig, 10, core.Splat(0.5)))
	if r := EstimateRoughness(flat, 32, 32); r != 0 {
		t.Errorf("Uniform color should be perfectly smooth, got %f", r)
	}

	// Checkerboard color on a flat depth
	w, h := 16, 16
	depth := make([]float64, w*h)
	color := make([]core.Vec3, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			depth[y*w+x] = frame.Delinearize(0.1)
			if (x+y)%2 == 0 {
				color[y*w+x] = core.Splat(1)
			}
		}
	}
	checker, err := frame.NewFrame(w, h, depth, color, frame.NewCamera(60, 1, 100), frame.DepthFormat{})
	if err != nil {
		t.Fatalf("NewFrame failed: %v", err)
	}
	if r := EstimateRoughness(checker, 8, 8); r != 1 {
		t.Errorf("High-contrast texture should saturate roughness, got %f", r)
	}
}

func TestFlatGrayPlaneReflectsEnvironment(t *testing.T) {
	f := mustFrame(t, scene.NewPlaneScene(testConfig, 10, core.Splat(0.5)))
	est := NewEstimator(f, sampling.NewProceduralNoise(64, 1), testParams())

	ps := f.Pixel(32, 32, frame.NormalRobust)
	roughness, metalness := est.Material(ps)
	if roughness != 0 || metalness != 0 {
		t.Fatalf("Flat gray plane should be a smooth dielectric, got roughness %f metalness %f", roughness, metalness)
	}

	s := est.Estimate(ps, 0)
	expected := ps.Albedo.Multiply(DielectricF0)
	if s.Color.Subtract(expected).Length() > 1e-6 {
		t.Errorf("Expected gray·F0 %v, got %v", expected, s.Color)
	}
	if s.Confidence < 0.5 {
		t.Errorf("Expected a confident environment reflection, got %f", s.Confidence)
	}
}

func TestEnvironmentConfidenceFadesAtBorder(t *testing.T) {
	f := mustFrame(t, scene.NewPlaneScene(testConfig, 10, core.Splat(0.5)))
	est := NewEstimator(f, nil, testParams())
	ps := f.Pixel(32, 32, frame.NormalRobust)

	if _, c := est.resolve(ps, raymarch.Hit{UV: core.NewVec2(0.99, 0.5)}); c != EnvironmentConfidence {
		t.Errorf("Ray out of budget should keep the full environment confidence, got %f", c)
	}

	prev := math.Inf(1)
	for i := 0; i <= 50; i++ {
		uv := core.NewVec2(0.5, 0.9+float64(i)/500)
		_, c := est.resolve(ps, raymarch.Hit{UV: uv, Exited: true})
		if c > prev+1e-12 {
			t.Fatalf("Environment confidence increased toward the border at %v: %f > %f", uv, c, prev)
		}
		prev = c
	}
	if prev > 1e-9 {
		t.Errorf("Exit at the border should carry no confidence, got %f", prev)
	}
	if _, c := est.resolve(ps, raymarch.Hit{UV: core.NewVec2(0.5, 0.5), Exited: true}); math.Abs(c-EnvironmentConfidence) > 1e-12 {
		t.Errorf("Exit from the interior should keep the full environment confidence, got %f", c)
	}
}

func TestMirrorAcrossCorner(t *testing.T) {
	f := mustFrame(t, scene.NewCornerScene(testConfig, 10, 45))
	p := testParams()
	p.RoughnessOverride = 0
	p.MetalnessOverride = 0
	est := NewEstimator(f, nil, p)

	// The green left wall mirrors the red right wall
	s := est.EstimatePixel(20, 32, 0)
	if s.Confidence <= 0 {
		t.Fatalf("Expected a reflection hit, got %+v", s)
	}
	if s.Color.X <= s.Color.Y {
		t.Errorf("Reflection should pick up the red wall, got %v", s.Color)
	}
}

func TestRoughConeTracing(t *testing.T) {
	f := mustFrame(t, scene.NewCornerScene(testConfig, 10, 45))
	p := testParams()
	p.RoughnessOverride = 1
	est := NewEstimator(f, sampling.NewProceduralNoise(64, 3), p)

	for x := 8; x < 60; x += 8 {
		s := est.EstimatePixel(x, 32, 2)
		if s.Confidence < 0 || s.Confidence > 1 {
			t.Errorf("Pixel %d: confidence %f outside [0,1]", x, s.Confidence)
		}
		if !s.Color.IsFinite() || s.Color.Luminance() > MaxLuminance+1e-9 {
			t.Errorf("Pixel %d: color %v not finite or above the firefly ceiling", x, s.Color)
		}
	}
}

func TestGrazingFade(t *testing.T) {
	if GrazingFade(1, 0.5) != 1 {
		t.Error("Head-on view should not fade")
	}
	if GrazingFade(0, 0.5) != 0 {
		t.Error("Grazing view should fade completely")
	}
	if GrazingFade(0.5, 1) >= GrazingFade(0.5, 0) {
		t.Error("Rough surfaces should fade sooner")
	}
}

func TestSkyHasNoReflection(t *testing.T) {
	f := mustFrame(t, scene.New("empty", testConfig))
	if s := NewEstimator(f, nil, testParams()).EstimatePixel(1, 1, 0); s != (Sample{}) {
		t.Errorf("Sky should not reflect, got %+v", s)
	}
	if math.IsNaN(GrazingFade(-1, 0)) {
		t.Error("Negative cosine should clamp, not produce NaN")
	}
}

package config

import (
	"errors"
	"testing"
)

func TestDefaultSettingsValid(t *testing.T) {
	if err := DefaultSettings().Validate(); err != nil {
		t.Fatalf("Default settings should validate, got %v", err)
	}
}

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Settings)
	}{
		{"quality too high", func(s *Settings) { s.Quality = 4 }},
		{"quality negative", func(s *Settings) { s.Quality = -1 }},
		{"blend factor one", func(s *Settings) { s.TemporalBlend = 1.0 }},
		{"negative ao intensity", func(s *Settings) { s.AOIntensity = -0.5 }},
		{"zero ao power", func(s *Settings) { s.AOPower = 0 }},
		{"roughness override above one", func(s *Settings) { s.RoughnessOverride = 1.5 }},
		{"zero ray distance", func(s *Settings) { s.MaxRayDistance = 0 }},
		{"fov too wide", func(s *Settings) { s.FovY = 180 }},
		{"unknown debug view", func(s *Settings) { s.DebugView = 99 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.modify(&s)
			err := s.Validate()
			if err == nil {
				t.Fatal("Expected validation error, got nil")
			}
			if !errors.Is(err, ErrInvalidSettings) {
				t.Errorf("Expected error wrapping ErrInvalidSettings, got %v", err)
			}
		})
	}
}

func TestOverrideSentinel(t *testing.T) {
	s := DefaultSettings()
	if !s.AutoRoughness() || !s.AutoMetalness() {
		t.Error("Default settings should auto-estimate roughness and metalness")
	}
	s.RoughnessOverride = 0
	if s.AutoRoughness() {
		t.Error("Roughness override of 0 should disable auto-estimation")
	}
}

func TestProfileMonotonic(t *testing.T) {
	prev := Profile(QualityLow)
	for q := QualityMedium; q <= QualityUltra; q++ {
		p := Profile(q)
		if p.GIRays < prev.GIRays || p.ReflectionSamples < prev.ReflectionSamples ||
			p.AODirections < prev.AODirections || p.GIBounces < prev.GIBounces {
			t.Errorf("Quality %s should not reduce sample counts relative to the previous level", q)
		}
		prev = p
	}
}

func TestProfileClamps(t *testing.T) {
	if Profile(-3) != Profile(QualityLow) {
		t.Error("Negative quality should clamp to low")
	}
	if Profile(12) != Profile(QualityUltra) {
		t.Error("Quality above ultra should clamp to ultra")
	}
}

func TestParseDebugView(t *testing.T) {
	for view, name := range debugViewNames {
		got, err := ParseDebugView(name)
		if err != nil {
			t.Errorf("ParseDebugView(%q) failed: %v", name, err)
		}
		if got != view {
			t.Errorf("ParseDebugView(%q) = %v, expected %v", name, got, view)
		}
	}
	if _, err := ParseDebugView("wireframe"); !errors.Is(err, ErrInvalidSettings) {
		t.Errorf("Expected ErrInvalidSettings for unknown view, got %v", err)
	}
}

func TestParseQuality(t *testing.T) {
	tests := []struct {
		name    string
		want    Quality
		wantErr bool
	}{
		{"low", QualityLow, false},
		{"Medium", QualityMedium, false},
		{" high ", QualityHigh, false},
		{"ultra", QualityUltra, false},
		{"extreme", QualityLow, true},
		{"", QualityLow, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseQuality(tt.name)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSettings) {
					t.Errorf("Expected ErrInvalidSettings, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseQuality(%q) failed: %v", tt.name, err)
			}
			if got != tt.want {
				t.Errorf("ParseQuality(%q) = %v, expected %v", tt.name, got, tt.want)
			}
		})
	}
}

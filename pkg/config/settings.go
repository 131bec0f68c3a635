package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSettings is wrapped by every validation failure
var ErrInvalidSettings = errors.New("invalid settings")

// AutoEstimate is the override sentinel meaning "estimate from the color buffer"
const AutoEstimate = -1.0

// DebugView selects an intermediate buffer to output instead of the composite
type DebugView int

const (
	DebugNone DebugView = iota
	DebugDepth
	DebugNormals
	DebugAO
	DebugIndirect
	DebugReflections
	DebugBentNormal
	DebugRoughness
	DebugMetalness
	DebugConfidence
)

var debugViewNames = map[DebugView]string{
	DebugNone:        "none",
	DebugDepth:       "depth",
	DebugNormals:     "normals",
	DebugAO:          "ao",
	DebugIndirect:    "indirect",
	DebugReflections: "reflections",
	DebugBentNormal:  "bent-normal",
	DebugRoughness:   "roughness",
	DebugMetalness:   "metalness",
	DebugConfidence:  "confidence",
}

// String returns the debug view name
func (d DebugView) String() string {
	if name, ok := debugViewNames[d]; ok {
		return name
	}
	return fmt.Sprintf("DebugView(%d)", int(d))
}

// ParseDebugView converts a debug view name into a DebugView
func ParseDebugView(name string) (DebugView, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return DebugNone, nil
	}
	for view, n := range debugViewNames {
		if n == name {
			return view, nil
		}
	}
	return DebugNone, fmt.Errorf("%w: unknown debug view %q", ErrInvalidSettings, name)
}

// Settings carries the pass-through configuration supplied by the host
type Settings struct {
	Quality Quality

	EnableAO          bool
	EnableGI          bool
	EnableReflections bool

	AOIntensity  float64 // 0 = no AO, 1 = full AO
	AOPower      float64 // Contrast exponent applied to visibility
	AORadius     float64 // Sampling radius in view-space units
	AOMultiScale bool    // Average several radii from near to far

	GIIntensity         float64
	ReflectionIntensity float64

	TemporalBlend float64 // History weight, typically 0.90-0.98

	DenoiseAO          float64 // Denoise strength per effect, 0 disables
	DenoiseGI          float64
	DenoiseReflections float64

	RoughnessOverride float64 // AutoEstimate or a value in [0,1]
	MetalnessOverride float64 // AutoEstimate or a value in [0,1]

	MaxRayDistance float64 // View-space distance budget for GI and reflection rays
	FarPlane       float64 // View-space distance of linear depth 1.0
	FovY           float64 // Vertical field of view in degrees

	DebugView DebugView
}

// DefaultSettings returns sensible default values
func DefaultSettings() Settings {
	return Settings{
		Quality:             QualityHigh,
		EnableAO:            true,
		EnableGI:            true,
		EnableReflections:   true,
		AOIntensity:         1.0,
		AOPower:             1.5,
		AORadius:            1.0,
		AOMultiScale:        false,
		GIIntensity:         1.0,
		ReflectionIntensity: 1.0,
		TemporalBlend:       0.94,
		DenoiseAO:           1.0,
		DenoiseGI:           1.0,
		DenoiseReflections:  1.0,
		RoughnessOverride:   AutoEstimate,
		MetalnessOverride:   AutoEstimate,
		MaxRayDistance:      20.0,
		FarPlane:            100.0,
		FovY:                60.0,
		DebugView:           DebugNone,
	}
}

// Profile returns the quality profile selected by the settings
func (s Settings) Profile() QualityProfile {
	return Profile(s.Quality)
}

// AutoRoughness reports whether roughness is estimated per pixel
func (s Settings) AutoRoughness() bool {
	return s.RoughnessOverride < 0
}

// AutoMetalness reports whether metalness is estimated per pixel
func (s Settings) AutoMetalness() bool {
	return s.MetalnessOverride < 0
}

// Validate checks that every value lies in its documented range
func (s Settings) Validate() error {
	var errs []error
	if s.Quality < QualityLow || s.Quality > QualityUltra {
		errs = append(errs, fmt.Errorf("quality %d out of range [0,3]", int(s.Quality)))
	}
	if s.TemporalBlend < 0 || s.TemporalBlend >= 1 {
		errs = append(errs, fmt.Errorf("temporal blend %.3f out of range [0,1)", s.TemporalBlend))
	}
	for name, v := range map[string]float64{
		"ao intensity":         s.AOIntensity,
		"gi intensity":         s.GIIntensity,
		"reflection intensity": s.ReflectionIntensity,
		"ao denoise":           s.DenoiseAO,
		"gi denoise":           s.DenoiseGI,
		"reflection denoise":   s.DenoiseReflections,
	} {
		if v < 0 {
			errs = append(errs, fmt.Errorf("%s must be non-negative, got %.3f", name, v))
		}
	}
	if s.AOPower <= 0 {
		errs = append(errs, fmt.Errorf("ao power must be positive, got %.3f", s.AOPower))
	}
	if s.AORadius <= 0 {
		errs = append(errs, fmt.Errorf("ao radius must be positive, got %.3f", s.AORadius))
	}
	if s.RoughnessOverride > 1 {
		errs = append(errs, fmt.Errorf("roughness override %.3f above 1", s.RoughnessOverride))
	}
	if s.MetalnessOverride > 1 {
		errs = append(errs, fmt.Errorf("metalness override %.3f above 1", s.MetalnessOverride))
	}
	if s.MaxRayDistance <= 0 {
		errs = append(errs, fmt.Errorf("max ray distance must be positive, got %.3f", s.MaxRayDistance))
	}
	if s.FarPlane <= 0 {
		errs = append(errs, fmt.Errorf("far plane must be positive, got %.3f", s.FarPlane))
	}
	if s.FovY <= 0 || s.FovY >= 180 {
		errs = append(errs, fmt.Errorf("field of view %.1f out of range (0,180)", s.FovY))
	}
	if _, ok := debugViewNames[s.DebugView]; !ok {
		errs = append(errs, fmt.Errorf("unknown debug view %d", int(s.DebugView)))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidSettings, errors.Join(errs...))
}

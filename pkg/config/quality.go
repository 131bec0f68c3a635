package config

import (
	"fmt"
	"strings"
)

// Quality selects one of the predefined quality profiles
type Quality int

const (
	QualityLow Quality = iota
	QualityMedium
	QualityHigh
	QualityUltra
)

// String returns the quality level name
func (q Quality) String() string {
	switch q {
	case QualityLow:
		return "low"
	case QualityMedium:
		return "medium"
	case QualityHigh:
		return "high"
	case QualityUltra:
		return "ultra"
	default:
		return "unknown"
	}
}

// ParseQuality converts a quality level name into a Quality
func ParseQuality(name string) (Quality, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for q := QualityLow; q <= QualityUltra; q++ {
		if q.String() == name {
			return q, nil
		}
	}
	return QualityLow, fmt.Errorf("%w: unknown quality %q", ErrInvalidSettings, name)
}

// QualityProfile holds every per-quality count consumed by the estimators.
// All three estimators read from this one table.
type QualityProfile struct {
	AODirections       int     // GTAO slice directions
	AOSteps            int     // Samples per slice direction (each side)
	GIRays             int     // Rays per pixel for the first bounce
	GISteps            int     // Ray march step budget for indirect rays
	GIBounces          int     // Number of approximated bounces (1-3)
	ReflectionSteps    int     // Ray march step budget for reflection rays
	ReflectionSamples  int     // Maximum cone-tracing samples at roughness 1
	MaxDistanceScale   float64 // Multiplier applied to Settings.MaxRayDistance
	RefineSteps        int     // Binary search rounds after a hit
	DenoiseRadiusScale float64 // Multiplier applied to the base denoise radius
}

var profiles = [...]QualityProfile{
	QualityLow: {
		AODirections: 2, AOSteps: 4,
		GIRays: 4, GISteps: 16, GIBounces: 1,
		ReflectionSteps: 24, ReflectionSamples: 4,
		MaxDistanceScale: 0.5, RefineSteps: 3, DenoiseRadiusScale: 1.0,
	},
	QualityMedium: {
		AODirections: 4, AOSteps: 6,
		GIRays: 8, GISteps: 24, GIBounces: 2,
		ReflectionSteps: 32, ReflectionSamples: 8,
		MaxDistanceScale: 0.75, RefineSteps: 3, DenoiseRadiusScale: 1.0,
	},
	QualityHigh: {
		AODirections: 6, AOSteps: 8,
		GIRays: 12, GISteps: 32, GIBounces: 2,
		ReflectionSteps: 48, ReflectionSamples: 12,
		MaxDistanceScale: 1.0, RefineSteps: 4, DenoiseRadiusScale: 1.5,
	},
	QualityUltra: {
		AODirections: 8, AOSteps: 12,
		GIRays: 16, GISteps: 48, GIBounces: 3,
		ReflectionSteps: 64, ReflectionSamples: 16,
		MaxDistanceScale: 1.0, RefineSteps: 4, DenoiseRadiusScale: 1.5,
	},
}

// Profile returns the quality profile for q, clamping out-of-range levels
func Profile(q Quality) QualityProfile {
	if q < QualityLow {
		q = QualityLow
	}
	if q > QualityUltra {
		q = QualityUltra
	}
	return profiles[q]
}

package frame

import "math"

const (
	// SkyThreshold is the linear depth above which a pixel is treated as sky
	SkyThreshold = 0.999

	// Linearization planes of the host's normalized depth
	linearizeNear = 1.0
	linearizeFar  = 1000.0

	// logDepthC is the constant of the logarithmic depth encoding
	logDepthC = 0.01
)

// DepthFormat describes how the host encoded its depth buffer
type DepthFormat struct {
	Reversed    bool // 1.0 at the near plane
	Logarithmic bool // Logarithmic depth encoding
	FlipY       bool // Rows stored bottom-up
}

// Decode converts a host depth value into standard non-linear depth (0 near, 1 far)
func (f DepthFormat) Decode(d float64) float64 {
	if f.Logarithmic {
		d = (math.Exp(d*math.Log(logDepthC+1.0)) - 1.0) / logDepthC
	}
	if f.Reversed {
		d = 1.0 - d
	}
	return max(0, min(1, d))
}

// Encode is the inverse of Decode
func (f DepthFormat) Encode(d float64) float64 {
	if f.Reversed {
		d = 1.0 - d
	}
	if f.Logarithmic {
		d = math.Log(d*logDepthC+1.0) / math.Log(logDepthC+1.0)
	}
	return d
}

// Linearize maps non-linear depth to normalized linear depth in [0,1]
func Linearize(d float64) float64 {
	return d / (linearizeFar - d*(linearizeFar-linearizeNear))
}

// Delinearize maps normalized linear depth back to non-linear depth
func Delinearize(lin float64) float64 {
	return lin * linearizeFar / (1.0 + lin*(linearizeFar-linearizeNear))
}

// IsSky reports whether a normalized linear depth belongs to the background
func IsSky(linear float64) bool {
	return linear > SkyThreshold
}

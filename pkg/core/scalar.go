package core

import "math"

// Clamp01 saturates x into [0, 1]. NaN saturates to 0.
func Clamp01(x float64) float64 {
	if !(x > 0) {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// Clamp restricts x to [lo, hi]
func Clamp(x, lo, hi float64) float64 {
	return max(lo, min(hi, x))
}

// Lerp linearly interpolates from a to b by t
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// Smoothstep performs Hermite interpolation between edge0 and edge1
func Smoothstep(edge0, edge1, x float64) float64 {
	if edge1 == edge0 {
		if x < edge0 {
			return 0
		}
		return 1
	}
	t := Clamp01((x - edge0) / (edge1 - edge0))
	return t * t * (3 - 2*t)
}

// Fract returns the fractional part of x in [0, 1)
func Fract(x float64) float64 {
	return x - math.Floor(x)
}

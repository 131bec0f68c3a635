package denoise

import "math"

// gaussianKernel returns the 2D spatial weights of a (2r+1)² window, row
// major, using sigma = r/2 + 0.5. The center weight is 1.
func gaussianKernel(radius int) []float64 {
	if radius <= 0 {
		return []float64{1.0}
	}
	sigma := float64(radius)*0.5 + 0.5
	twoSigmaSq := 2 * sigma * sigma

	size := 2*radius + 1
	kernel := make([]float64, size*size)
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			d2 := float64(dx*dx + dy*dy)
			kernel[(dy+radius)*size+dx+radius] = math.Exp(-d2 / twoSigmaSq)
		}
	}
	return kernel
}

// kernels holds the precomputed kernels for every supported radius
var kernels = func() [MaxRadius + 1][]float64 {
	var k [MaxRadius + 1][]float64
	for r := range k {
		k[r] = gaussianKernel(r)
	}
	return k
}()

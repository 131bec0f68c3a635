package core

import (
	"math"
)

// OrthonormalBasis builds a tangent frame (tangent, bitangent) around the unit vector n
func OrthonormalBasis(n Vec3) (Vec3, Vec3) {
	// Find a vector perpendicular to normal
	var nt Vec3
	if math.Abs(n.X) > 0.1 {
		nt = NewVec3(0, 1, 0)
	} else {
		nt = NewVec3(1, 0, 0)
	}

	tangent := nt.Cross(n).Normalize()
	bitangent := n.Cross(tangent)
	return tangent, bitangent
}

// SampleCosineHemisphere maps a 2D sample to a cosine-weighted direction in the hemisphere around normal
func SampleCosineHemisphere(normal Vec3, sample Vec2) Vec3 {
	// Generate point in unit disk
	a := 2.0 * math.Pi * sample.X
	z := sample.Y
	r := math.Sqrt(z)

	x := r * math.Cos(a)
	y := r * math.Sin(a)
	zCoord := math.Sqrt(max(0, 1.0-z))

	tangent, bitangent := OrthonormalBasis(normal)

	return tangent.Multiply(x).Add(bitangent.Multiply(y)).Add(normal.Multiply(zCoord)).Normalize()
}

// SampleCone maps a 2D sample to a direction inside the cone around direction with
// the given half-angle. The returned cosine is the angle between the sample and the axis.
func SampleCone(direction Vec3, halfAngle float64, sample Vec2) (Vec3, float64) {
	w := direction
	u, v := OrthonormalBasis(w)

	cosTotalWidth := math.Cos(halfAngle)
	cosTheta := 1.0 - sample.X*(1.0-cosTotalWidth)
	sinTheta := math.Sqrt(math.Max(0, 1.0-cosTheta*cosTheta))
	phi := 2.0 * math.Pi * sample.Y

	x := sinTheta * math.Cos(phi)
	y := sinTheta * math.Sin(phi)
	z := cosTheta

	return u.Multiply(x).Add(v.Multiply(y)).Add(w.Multiply(z)).Normalize(), cosTheta
}

// RotateInPlane rotates v toward w by angle, where v and w are orthonormal vectors spanning the plane
func RotateInPlane(v, w Vec3, angle float64) Vec3 {
	return v.Multiply(math.Cos(angle)).Add(w.Multiply(math.Sin(angle)))
}

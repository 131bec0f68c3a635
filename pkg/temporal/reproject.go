// Package temporal blends each effect with its reprojected history, rejecting
// history on disocclusion and clamping the blend to bound ghosting.
package temporal

import (
	"math"

	"github.com/df07/go-ssgi/pkg/buffer"
	"github.com/df07/go-ssgi/pkg/core"
)

const (
	// SearchRadius is the motion search window in pixels
	SearchRadius = 5

	// MatchThreshold is the largest linear depth difference accepted as a motion match
	MatchThreshold = 0.005

	// DepthTolerance is the largest linear depth change of valid history
	DepthTolerance = 0.02

	// NormalThreshold is the smallest cosine between current and previous
	// normals of valid history, when normals are checked
	NormalThreshold = 0.8
)

// Pixel is the current-frame geometry of one pixel
type Pixel struct {
	X, Y   int
	UV     core.Vec2
	Depth  float64   // Normalized linear depth
	Normal core.Vec3 // Zero skips the normal test
}

// Previous is the previous frame's geometry. A nil Depth means no history.
type Previous struct {
	Depth   *buffer.EffectBuffer[float64]
	Normals *buffer.EffectBuffer[core.Vec3]
}

// PreviousFrom returns the history view of h, or an empty Previous when h
// holds no valid frame yet
func PreviousFrom(h *buffer.History) Previous {
	if h == nil || !h.Valid {
		return Previous{}
	}
	return Previous{Depth: h.LinearDepth.Previous(), Normals: h.Normals.Previous()}
}

// Reprojection locates a pixel in the previous frame
type Reprojection struct {
	Motion      core.Vec2 // UV offset to the previous position
	PrevUV      core.Vec2
	Valid       bool // History passed the disocclusion tests
	NormalValid bool // Valid and the normal test passed
}

// EstimateMotion searches the previous depth within SearchRadius pixels for
// the closest match to depth. It returns the UV offset of the best match, or
// zero when no match is within MatchThreshold.
func EstimateMotion(prevDepth *buffer.EffectBuffer[float64], x, y int, depth float64) core.Vec2 {
	w, h := prevDepth.Width(), prevDepth.Height()
	bestDiff := math.Inf(1)
	bestDist := math.MaxInt
	bestX, bestY := 0, 0
	for dy := -SearchRadius; dy <= SearchRadius; dy++ {
		for dx := -SearchRadius; dx <= SearchRadius; dx++ {
			if !prevDepth.InBounds(x+dx, y+dy) {
				continue
			}
			diff := math.Abs(prevDepth.At(x+dx, y+dy) - depth)
			dist := dx*dx + dy*dy
			// Ties go to the smaller offset
			if diff < bestDiff || (diff == bestDiff && dist < bestDist) {
				bestDiff, bestDist = diff, dist
				bestX, bestY = dx, dy
			}
		}
	}
	if bestDiff >= MatchThreshold {
		return core.Vec2{}
	}
	return core.NewVec2(float64(bestX)/float64(w), float64(bestY)/float64(h))
}

// Reproject finds px in the previous frame and runs the disocclusion tests
func Reproject(px Pixel, prev Previous) Reprojection {
	if prev.Depth == nil {
		return Reprojection{PrevUV: px.UV}
	}

	motion := EstimateMotion(prev.Depth, px.X, px.Y, px.Depth)
	r := Reprojection{Motion: motion, PrevUV: px.UV.Add(motion)}
	if !r.PrevUV.InUnitSquare() {
		return r
	}
	if math.Abs(px.Depth-prev.Depth.AtUV(r.PrevUV)) > DepthTolerance {
		return r
	}
	r.Valid = true

	r.NormalValid = true
	if prev.Normals != nil && !px.Normal.IsZero() {
		prevNormal := prev.Normals.AtUV(r.PrevUV)
		if !prevNormal.IsZero() && px.Normal.Dot(prevNormal) < NormalThreshold {
			r.NormalValid = false
		}
	}
	return r
}

package frame

import (
	"math"

	"github.com/df07/go-ssgi/pkg/core"
)

// EdgeTolerance is the normalized linear depth jump above which a neighbor
// is considered to lie across a discontinuity
const EdgeTolerance = 0.02

// NormalMode selects the normal reconstruction scheme
type NormalMode int

const (
	// NormalFast uses a 4-neighbor cross product of depth-gradient positions
	NormalFast NormalMode = iota
	// NormalRobust uses diagonal samples and rejects neighbors across depth edges
	NormalRobust
)

// Normal reconstructs the view-space normal of pixel (x, y) with the given scheme.
// Sky pixels return the zero vector.
func (f *Frame) Normal(x, y int, mode NormalMode) core.Vec3 {
	if f.IsSky(x, y) {
		return core.Vec3{}
	}
	if mode == NormalRobust {
		return f.NormalRobust(x, y)
	}
	return f.NormalFast(x, y)
}

// NormalFast reconstructs a normal from the horizontal and vertical position
// gradients, taking the one-sided difference with the smaller depth change.
func (f *Frame) NormalFast(x, y int) core.Vec3 {
	center := f.ViewPosition(x, y)

	ddx := f.gradient(center, x, y, 1, 0)
	ddy := f.gradient(center, x, y, 0, 1)

	return orientToViewer(ddx.Cross(ddy).Normalize(), center)
}

// gradient returns the position difference along (dx, dy) using whichever
// side (forward or backward) has the smaller depth change.
func (f *Frame) gradient(center core.Vec3, x, y, dx, dy int) core.Vec3 {
	hasForward := f.inBounds(x+dx, y+dy)
	hasBackward := f.inBounds(x-dx, y-dy)
	switch {
	case hasForward && !hasBackward:
		return f.ViewPosition(x+dx, y+dy).Subtract(center)
	case hasBackward && !hasForward:
		return center.Subtract(f.ViewPosition(x-dx, y-dy))
	}

	forward := f.neighborPosition(x+dx, y+dy).Subtract(center)
	backward := center.Subtract(f.neighborPosition(x-dx, y-dy))
	if math.Abs(forward.Z) <= math.Abs(backward.Z) {
		return forward
	}
	return backward
}

// diagonal neighbor offsets in winding order
var diagonals = [4][2]int{{1, 1}, {-1, 1}, {-1, -1}, {1, -1}}

// NormalRobust reconstructs a normal from the four diagonal neighbors,
// discarding neighbors whose linear depth differs from the center by more
// than EdgeTolerance. Falls back to NormalFast when too few survive.
func (f *Frame) NormalRobust(x, y int) core.Vec3 {
	center := f.ViewPosition(x, y)
	centerDepth := f.LinearDepth(x, y)

	var offsets [4]core.Vec3
	var valid [4]bool
	count := 0
	for i, d := range diagonals {
		nx, ny := x+d[0], y+d[1]
		if nx < 0 || nx >= f.Width || ny < 0 || ny >= f.Height {
			continue
		}
		if math.Abs(f.LinearDepth(nx, ny)-centerDepth) > EdgeTolerance {
			continue
		}
		offsets[i] = f.ViewPosition(nx, ny).Subtract(center)
		valid[i] = true
		count++
	}

	if count < 2 {
		return f.NormalFast(x, y)
	}

	var sum core.Vec3
	for i := 0; i < 4; i++ {
		j := (i + 1) % 4
		if valid[i] && valid[j] {
			sum = sum.Add(offsets[i].Cross(offsets[j]))
		}
	}
	n := sum.Normalize()
	if n.IsZero() {
		// Two opposite neighbors only: combine with the fast path
		return f.NormalFast(x, y)
	}
	return orientToViewer(n, center)
}

func (f *Frame) inBounds(x, y int) bool {
	return x >= 0 && x < f.Width && y >= 0 && y < f.Height
}

func (f *Frame) neighborPosition(x, y int) core.Vec3 {
	x = max(0, min(f.Width-1, x))
	y = max(0, min(f.Height-1, y))
	return f.ViewPosition(x, y)
}

// orientToViewer flips n so it faces the camera at the origin
func orientToViewer(n, position core.Vec3) core.Vec3 {
	if n.Dot(position) > 0 {
		return n.Negate()
	}
	return n
}

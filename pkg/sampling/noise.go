package sampling

import (
	"errors"
	"fmt"

	"github.com/df07/go-ssgi/pkg/core"
)

// DefaultNoiseSize is the edge length of the procedural noise texture
const DefaultNoiseSize = 256

// NoiseTexture is a tileable 2D array of pseudo-random values in [0,1),
// three channels per texel, sampled with wraparound addressing.
type NoiseTexture struct {
	width  int
	height int
	texels []core.Vec3
}

// ErrInvalidNoise is returned for noise textures without texels or whose
// texel count does not match their size
var ErrInvalidNoise = errors.New("invalid noise texture")

// NewNoiseTexture wraps existing texel values. Values are wrapped into [0,1).
func NewNoiseTexture(width, height int, texels []core.Vec3) (*NoiseTexture, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: size %dx%d", ErrInvalidNoise, width, height)
	}
	if len(texels) != width*height {
		return nil, fmt.Errorf("%w: %d texels for %dx%d", ErrInvalidNoise, len(texels), width, height)
	}
	wrapped := make([]core.Vec3, len(texels))
	for i, v := range texels {
		wrapped[i] = core.NewVec3(core.Fract(v.X), core.Fract(v.Y), core.Fract(v.Z))
	}
	return &NoiseTexture{width: width, height: height, texels: wrapped}, nil
}

// NewProceduralNoise generates a size×size low-discrepancy noise texture.
// Channel X is R2 dither, channel Y interleaved gradient noise, channel Z a
// seeded integer hash. Sizes below 1 use DefaultNoiseSize.
func NewProceduralNoise(size int, seed uint32) *NoiseTexture {
	if size < 1 {
		size = DefaultNoiseSize
	}
	texels := make([]core.Vec3, size*size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			fx, fy := float64(x), float64(y)
			r2 := core.Fract(r2A1*fx + r2A2*fy)
			ign := core.Fract(52.9829189 * core.Fract(0.06711056*fx+0.00583715*fy))
			h := float64(hash(uint32(x)+uint32(y)*uint32(size)+seed*0x9e3779b9)) / 4294967296.0
			texels[y*size+x] = core.NewVec3(r2, ign, h)
		}
	}
	return &NoiseTexture{width: size, height: size, texels: texels}
}

// Size returns the texture dimensions
func (n *NoiseTexture) Size() (int, int) {
	return n.width, n.height
}

// Texel returns the raw texel at (x, y) with wraparound addressing
func (n *NoiseTexture) Texel(x, y int) core.Vec3 {
	x %= n.width
	if x < 0 {
		x += n.width
	}
	y %= n.height
	if y < 0 {
		y += n.height
	}
	return n.texels[y*n.width+x]
}

// FrameOffset returns the per-frame texel offset that rotates the tile
func (n *NoiseTexture) FrameOffset(frame uint64) (int, int) {
	o := R2(int(frame % 65536))
	return int(o.X * float64(n.width)), int(o.Y * float64(n.height))
}

// Sample returns the noise for pixel (x, y) in the given frame. The tile is
// shifted by FrameOffset and the values advanced along the golden ratio
// sequence so consecutive frames decorrelate.
func (n *NoiseTexture) Sample(x, y int, frame uint64) core.Vec3 {
	ox, oy := n.FrameOffset(frame)
	v := n.Texel(x+ox, y+oy)
	shift := core.Fract(float64(frame%1048576) * GoldenRatioConjugate)
	return core.NewVec3(core.Fract(v.X+shift), core.Fract(v.Y+shift), core.Fract(v.Z+shift))
}

// hash is a 32-bit integer mixer (lowbias32)
func hash(x uint32) uint32 {
	x ^= x >> 16
	x *= 0x7feb352d
	x ^= x >> 15
	x *= 0x846ca68b
	x ^= x >> 16
	return x
}

package sampling

import (
	"errors"
	"math"
	"testing"

	"github.com/df07/go-ssgi/pkg/core"
)

func TestHalton(t *testing.T) {
	tests := []struct {
		index    int
		base     int
		expected float64
	}{
		{0, 2, 0},
		{1, 2, 0.5},
		{2, 2, 0.25},
		{3, 2, 0.75},
		{1, 3, 1.0 / 3.0},
		{2, 3, 2.0 / 3.0},
		{3, 3, 1.0 / 9.0},
	}
	for _, tt := range tests {
		got := Halton(tt.index, tt.base)
		if math.Abs(got-tt.expected) > 1e-12 {
			t.Errorf("Halton(%d, %d) = %f, expected %f", tt.index, tt.base, got, tt.expected)
		}
	}
}

func TestR2Coverage(t *testing.T) {
	// 64 R2 points should land in every cell of a 4x4 grid
	var cells [4][4]int
	for i := 0; i < 64; i++ {
		p := R2(i)
		if p.X < 0 || p.X >= 1 || p.Y < 0 || p.Y >= 1 {
			t.Fatalf("R2(%d) = %v outside [0,1)²", i, p)
		}
		cells[int(p.Y*4)][int(p.X*4)]++
	}
	for y := range cells {
		for x := range cells[y] {
			if cells[y][x] == 0 {
				t.Errorf("Cell (%d,%d) received no R2 samples", x, y)
			}
		}
	}
}

func TestGoldenRotationDecorrelates(t *testing.T) {
	a := GoldenRotation(0)
	b := GoldenRotation(1)
	if a == b {
		t.Error("Consecutive frames should rotate differently")
	}
	for f := uint64(0); f < 100; f++ {
		r := GoldenRotation(f)
		if r < 0 || r >= 2*math.Pi {
			t.Errorf("GoldenRotation(%d) = %f outside [0, 2π)", f, r)
		}
	}
}

func TestNewNoiseTexture(t *testing.T) {
	tests := []struct {
		name    string
		width   int
		height  int
		texels  int
		wantErr bool
	}{
		{"valid", 2, 3, 6, false},
		{"empty", 0, 0, 0, true},
		{"zero width", 0, 4, 0, true},
		{"negative height", 4, -1, 0, true},
		{"too few texels", 2, 2, 3, true},
		{"too many texels", 2, 2, 5, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			texels := make([]core.Vec3, tt.texels)
			for i := range texels {
				texels[i] = core.NewVec3(1.25, -0.25, 0.5)
			}
			n, err := NewNoiseTexture(tt.width, tt.height, texels)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidNoise) {
					t.Errorf("Expected ErrInvalidNoise, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewNoiseTexture failed: %v", err)
			}
			if got := n.Texel(-1, 7); got != core.NewVec3(0.25, 0.75, 0.5) {
				t.Errorf("Expected wrapped values (0.25, 0.75, 0.5), got %v", got)
			}
		})
	}
}

func TestProceduralNoiseFallsBackToDefaultSize(t *testing.T) {
	w, h := NewProceduralNoise(0, 1).Size()
	if w != DefaultNoiseSize || h != DefaultNoiseSize {
		t.Errorf("Expected %dx%d, got %dx%d", DefaultNoiseSize, DefaultNoiseSize, w, h)
	}
}

func TestNoiseWraparound(t *testing.T) {
	n := NewProceduralNoise(16, 1)
	if n.Texel(3, 5) != n.Texel(3+16, 5-32) {
		t.Error("Texel addressing should wrap in both directions")
	}
}

func TestNoiseRange(t *testing.T) {
	n := NewProceduralNoise(32, 7)
	for frame := uint64(0); frame < 4; frame++ {
		for y := 0; y < 40; y++ {
			for x := 0; x < 40; x++ {
				v := n.Sample(x, y, frame)
				for _, c := range []float64{v.X, v.Y, v.Z} {
					if c < 0 || c >= 1 {
						t.Fatalf("Noise sample %v at (%d,%d) frame %d outside [0,1)", v, x, y, frame)
					}
				}
			}
		}
	}
}

func TestNoiseChangesPerFrame(t *testing.T) {
	n := NewProceduralNoise(DefaultNoiseSize, 3)
	same := 0
	for x := 0; x < 64; x++ {
		if n.Sample(x, 10, 0) == n.Sample(x, 10, 1) {
			same++
		}
	}
	if same > 4 {
		t.Errorf("Expected noise to change between frames, %d of 64 samples identical", same)
	}
}

func TestNoiseMeanIsBalanced(t *testing.T) {
	n := NewProceduralNoise(64, 11)
	var sum float64
	w, h := n.Size()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum += n.Texel(x, y).X
		}
	}
	mean := sum / float64(w*h)
	if math.Abs(mean-0.5) > 0.05 {
		t.Errorf("Expected mean near 0.5, got %f", mean)
	}
}

package loaders

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/df07/go-ssgi/pkg/core"
)

func writePNG(t *testing.T, filename string, img image.Image) {
	t.Helper()
	f, err := os.Create(filename)
	if err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		t.Fatalf("Failed to encode PNG: %v", err)
	}
	f.Close()
}

// TestLoadImage creates a test PNG and verifies loading
func TestLoadImage(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "test.png")

	// Create a simple 2x2 test image
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	img.Set(1, 0, color.RGBA{R: 255, G: 0, B: 0, A: 255})
	img.Set(0, 1, color.RGBA{R: 0, G: 255, B: 0, A: 255})
	// sRGB 188 is linear ~0.5
	img.Set(1, 1, color.RGBA{R: 188, G: 188, B: 188, A: 255})
	writePNG(t, testFile, img)

	imageData, err := LoadImage(testFile)
	if err != nil {
		t.Fatalf("LoadImage failed: %v", err)
	}

	if imageData.Width != 2 || imageData.Height != 2 {
		t.Errorf("Expected 2x2 image, got %dx%d", imageData.Width, imageData.Height)
	}
	if len(imageData.Pixels) != 4 {
		t.Fatalf("Expected 4 pixels, got %d", len(imageData.Pixels))
	}

	tests := []struct {
		name     string
		index    int
		expected core.Vec3
	}{
		{"top-left white", 0, core.NewVec3(1, 1, 1)},
		{"top-right red", 1, core.NewVec3(1, 0, 0)},
		{"bottom-left green", 2, core.NewVec3(0, 1, 0)},
		{"bottom-right linearized gray", 3, core.Splat(0.5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			const tolerance = 0.01
			got := imageData.Pixels[tt.index]
			if abs(got.X-tt.expected.X) > tolerance ||
				abs(got.Y-tt.expected.Y) > tolerance ||
				abs(got.Z-tt.expected.Z) > tolerance {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

// TestLoadImageNotFound verifies error handling for missing files
func TestLoadImageNotFound(t *testing.T) {
	_, err := LoadImage("nonexistent.png")
	if err == nil {
		t.Error("Expected error for non-existent file, got nil")
	}
}

func TestLoadImageNotAnImage(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "junk.png")
	if err := os.WriteFile(testFile, []byte("not an image"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadImage(testFile); err == nil {
		t.Error("Expected a decode error")
	}
}

func TestImageResize(t *testing.T) {
	data := &ImageData{Width: 4, Height: 4, Pixels: make([]core.Vec3, 16)}
	for i := range data.Pixels {
		data.Pixels[i] = core.NewVec3(0.25, 0.5, 0.75)
	}

	if same := data.Resize(4, 4); same != data {
		t.Error("Resizing to the same size should return the input")
	}

	resized := data.Resize(8, 2)
	if resized.Width != 8 || resized.Height != 2 || len(resized.Pixels) != 16 {
		t.Fatalf("Unexpected resized shape %dx%d (%d pixels)", resized.Width, resized.Height, len(resized.Pixels))
	}
	for i, p := range resized.Pixels {
		if abs(p.X-0.25) > 1e-3 || abs(p.Y-0.5) > 1e-3 || abs(p.Z-0.75) > 1e-3 {
			t.Fatalf("Pixel %d of a uniform image changed to %v", i, p)
		}
	}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

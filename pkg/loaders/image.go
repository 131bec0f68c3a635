package loaders

import (
	"fmt"
	"image"
	_ "image/jpeg" // JPEG decoder
	_ "image/png"  // PNG decoder
	"os"

	"github.com/df07/go-ssgi/pkg/core"
	colorful "github.com/lucasb-eyer/go-colorful"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // TIFF decoder
	_ "golang.org/x/image/webp" // WebP decoder
)

// ImageData contains loaded image data as Vec3 color array
type ImageData struct {
	Width  int
	Height int
	Pixels []core.Vec3
}

// decodeFile opens and decodes an image, auto-detecting the format from the header
func decodeFile(filename string) (image.Image, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", filename, err)
	}

	bounds := img.Bounds()
	core.Logger().Debug("decoded image",
		"file", filename, "format", format, "width", bounds.Dx(), "height", bounds.Dy())
	return img, nil
}

// toVec3 converts an image to a Vec3 array. sRGB values are linearized when
// linear is true, otherwise the stored values are kept.
func toVec3(img image.Image, linear bool) *ImageData {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	pixels := make([]core.Vec3, width*height)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
			// RGBA returns uint32 in [0, 65535], convert to [0, 1]
			c := colorful.Color{R: float64(r) / 65535.0, G: float64(g) / 65535.0, B: float64(b) / 65535.0}
			if linear {
				lr, lg, lb := c.LinearRgb()
				pixels[y*width+x] = core.NewVec3(lr, lg, lb)
				continue
			}
			pixels[y*width+x] = core.NewVec3(c.R, c.G, c.B)
		}
	}

	return &ImageData{
		Width:  width,
		Height: height,
		Pixels: pixels,
	}
}

// LoadImage loads a PNG, JPEG, WebP or TIFF color image and converts it from
// sRGB to linear RGB
func LoadImage(filename string) (*ImageData, error) {
	img, err := decodeFile(filename)
	if err != nil {
		return nil, err
	}
	return toVec3(img, true), nil
}

// Resize resamples the image to width x height with bilinear filtering
func (d *ImageData) Resize(width, height int) *ImageData {
	if width == d.Width && height == d.Height {
		return d
	}

	// Linear values are scaled at 16 bits per channel
	src := image.NewRGBA64(image.Rect(0, 0, d.Width, d.Height))
	for y := 0; y < d.Height; y++ {
		for x := 0; x < d.Width; x++ {
			c := d.Pixels[y*d.Width+x].Clamp(0, 1)
			i := src.PixOffset(x, y)
			putUint16(src.Pix[i:], c.X)
			putUint16(src.Pix[i+2:], c.Y)
			putUint16(src.Pix[i+4:], c.Z)
			putUint16(src.Pix[i+6:], 1)
		}
	}

	dst := image.NewRGBA64(image.Rect(0, 0, width, height))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return toVec3(dst, false)
}

// putUint16 stores v in [0,1] as a big-endian 16-bit value
func putUint16(b []byte, v float64) {
	u := uint16(core.Clamp01(v)*65535 + 0.5)
	b[0] = uint8(u >> 8)
	b[1] = uint8(u)
}

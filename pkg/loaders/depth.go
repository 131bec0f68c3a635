package loaders

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/df07/go-ssgi/pkg/core"
	"github.com/mrjoshuak/go-openexr/half"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/tiff"
)

// RawHalfExt is the extension of raw half-float depth dumps
const RawHalfExt = ".r16f"

// rawHalfMagic starts every raw half-float depth file, followed by the
// little-endian uint32 width and height and one little-endian float16 per pixel
var rawHalfMagic = [4]byte{'R', '1', '6', 'F'}

// maxRawDimension bounds the size accepted from a raw depth header
const maxRawDimension = 1 << 15

// ErrInvalidDepth is returned for malformed depth files
var ErrInvalidDepth = errors.New("invalid depth data")

// DepthData holds host-encoded depth values in [0,1], row-major
type DepthData struct {
	Width  int
	Height int
	Values []float64
}

// LoadDepth loads a depth buffer from a 16-bit grayscale PNG or TIFF, any
// other decodable image, or a raw half-float dump (.r16f)
func LoadDepth(filename string) (*DepthData, error) {
	if strings.EqualFold(filepath.Ext(filename), RawHalfExt) {
		file, err := os.Open(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to open depth file: %w", err)
		}
		defer file.Close()

		d, err := ReadRawHalfDepth(bufio.NewReader(file))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
		core.Logger().Debug("decoded raw depth", "file", filename, "width", d.Width, "height", d.Height)
		return d, nil
	}

	img, err := decodeFile(filename)
	if err != nil {
		return nil, err
	}
	return depthFromImage(img), nil
}

// depthFromImage reads the 16-bit luminance of every pixel
func depthFromImage(img image.Image) *DepthData {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	values := make([]float64, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			g := color.Gray16Model.Convert(img.At(x+bounds.Min.X, y+bounds.Min.Y)).(color.Gray16)
			values[y*width+x] = float64(g.Y) / 65535.0
		}
	}
	return &DepthData{Width: width, Height: height, Values: values}
}

// ReadRawHalfDepth decodes a raw half-float depth dump
func ReadRawHalfDepth(r io.Reader) (*DepthData, error) {
	var header struct {
		Magic  [4]byte
		Width  uint32
		Height uint32
	}
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("%w: reading header: %w", ErrInvalidDepth, err)
	}
	if header.Magic != rawHalfMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrInvalidDepth, header.Magic[:])
	}
	if header.Width == 0 || header.Height == 0 || header.Width > maxRawDimension || header.Height > maxRawDimension {
		return nil, fmt.Errorf("%w: bad size %dx%d", ErrInvalidDepth, header.Width, header.Height)
	}

	width, height := int(header.Width), int(header.Height)
	raw := make([]uint16, width*height)
	if err := binary.Read(r, binary.LittleEndian, raw); err != nil {
		return nil, fmt.Errorf("%w: reading %d samples: %w", ErrInvalidDepth, len(raw), err)
	}

	values := make([]float64, len(raw))
	for i, bits := range raw {
		values[i] = core.Clamp01(float64(half.Half(bits).Float32()))
	}
	return &DepthData{Width: width, Height: height, Values: values}, nil
}

// gray16 converts the depth values to a 16-bit grayscale image
func (d *DepthData) gray16() *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, d.Width, d.Height))
	for y := 0; y < d.Height; y++ {
		for x := 0; x < d.Width; x++ {
			img.SetGray16(x, y, color.Gray16{Y: uint16(core.Clamp01(d.Values[y*d.Width+x])*65535 + 0.5)})
		}
	}
	return img
}

// Resize resamples the depth to width x height. Nearest-neighbor sampling
// keeps depth edges from blending into values no surface has. The scaler
// runs over pixel indices, so values keep their full precision.
func (d *DepthData) Resize(width, height int) *DepthData {
	if width == d.Width && height == d.Height {
		return d
	}
	src := image.NewRGBA64(image.Rect(0, 0, d.Width, d.Height))
	for y := 0; y < d.Height; y++ {
		for x := 0; x < d.Width; x++ {
			src.SetRGBA64(x, y, indexColor(y*d.Width+x))
		}
	}
	dst := image.NewRGBA64(image.Rect(0, 0, width, height))
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)

	values := make([]float64, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			values[y*width+x] = d.Values[colorIndex(dst.RGBA64At(x, y))]
		}
	}
	return &DepthData{Width: width, Height: height, Values: values}
}

// indexColor packs a pixel index into an opaque 16-bit color
func indexColor(i int) color.RGBA64 {
	return color.RGBA64{R: uint16(i >> 16), G: uint16(i), A: 0xffff}
}

func colorIndex(c color.RGBA64) int {
	return int(c.R)<<16 | int(c.G)
}

// SaveDepthTIFF writes the depth as a 16-bit grayscale TIFF
func SaveDepthTIFF(filename string, d *DepthData) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create depth file: %w", err)
	}
	if err := tiff.Encode(file, d.gray16(), &tiff.Options{Compression: tiff.Deflate}); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode depth TIFF: %w", err)
	}
	return file.Close()
}

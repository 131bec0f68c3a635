package loaders

import (
	"fmt"

	"github.com/df07/go-ssgi/pkg/core"
	"github.com/df07/go-ssgi/pkg/frame"
	"github.com/df07/go-ssgi/pkg/sampling"
)

// LoadFrame loads a color image and a depth buffer into a frame. Depth of a
// different resolution is resampled to the color resolution.
func LoadFrame(colorFile, depthFile string, camera frame.Camera, format frame.DepthFormat) (*frame.Frame, error) {
	img, err := LoadImage(colorFile)
	if err != nil {
		return nil, fmt.Errorf("loading color: %w", err)
	}
	depth, err := LoadDepth(depthFile)
	if err != nil {
		return nil, fmt.Errorf("loading depth: %w", err)
	}
	return NewFrame(img, depth, camera, format)
}

// NewFrame builds a frame from loaded color and depth, matching the depth to
// the color resolution
func NewFrame(img *ImageData, depth *DepthData, camera frame.Camera, format frame.DepthFormat) (*frame.Frame, error) {
	if depth.Width != img.Width || depth.Height != img.Height {
		core.Logger().Warn("depth resolution differs from color, resampling",
			"depth", fmt.Sprintf("%dx%d", depth.Width, depth.Height),
			"color", fmt.Sprintf("%dx%d", img.Width, img.Height))
		depth = depth.Resize(img.Width, img.Height)
	}
	if camera.Aspect <= 0 {
		camera = frame.NewCamera(camera.FovY, float64(img.Width)/float64(img.Height), camera.FarPlane)
	}
	return frame.NewFrame(img.Width, img.Height, depth.Values, img.Pixels, camera, format)
}

// LoadNoise loads a tileable noise texture. Channel values are used as
// stored, without color space conversion; size > 0 resamples to size x size.
func LoadNoise(filename string, size int) (*sampling.NoiseTexture, error) {
	img, err := decodeFile(filename)
	if err != nil {
		return nil, fmt.Errorf("loading noise: %w", err)
	}
	data := toVec3(img, false)
	if size > 0 {
		data = data.Resize(size, size)
	}
	noise, err := sampling.NewNoiseTexture(data.Width, data.Height, data.Pixels)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return noise, nil
}

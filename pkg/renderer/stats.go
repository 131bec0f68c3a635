package renderer

import (
	"image"
	"time"

	"github.com/df07/go-ssgi/pkg/core"
)

// Stage names, in pipeline order
const (
	StageGeometry     = "geometry"
	StageReproject    = "reproject"
	StageAO           = "ao"
	StageAOBlur       = "ao-blur"
	StageAOTemporal   = "ao-temporal"
	StageGI           = "gi"
	StageGIDenoise    = "gi-denoise"
	StageGITemporal   = "gi-temporal"
	StageRefl         = "reflections"
	StageReflDenoise  = "reflections-denoise"
	StageReflTemporal = "reflections-temporal"
	StageComposite    = "composite"
	StageHistory      = "history-store"
)

// StageStats contains statistics about one pipeline stage
type StageStats struct {
	Name     string
	Duration time.Duration
	Pixels   int  // Pixels written, 0 for no-op stages
	Skipped  bool // The effect was disabled and neutral values were filled
}

// FrameStats contains statistics about one rendered frame
type FrameStats struct {
	Frame             uint64
	Stages            []StageStats
	Total             time.Duration
	HistoryValid      bool // History from the previous frame was available
	ReprojectedPixels int  // Pixels whose history passed the disocclusion tests
	SkyPixels         int
	AverageLuminance  float64 // Of the 8-bit output
}

// Stage returns the statistics of the named stage
func (fs FrameStats) Stage(name string) (StageStats, bool) {
	for _, s := range fs.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageStats{}, false
}

// StageNames returns the executed stage names in order
func (fs FrameStats) StageNames() []string {
	names := make([]string, len(fs.Stages))
	for i, s := range fs.Stages {
		names[i] = s.Name
	}
	return names
}

// CalculateAverageLuminance returns the mean luminance of an 8-bit image in [0,1]
func CalculateAverageLuminance(img *image.RGBA) float64 {
	bounds := img.Bounds()
	pixels := bounds.Dx() * bounds.Dy()
	if pixels == 0 {
		return 0
	}

	total := 0.0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := img.RGBAAt(x, y)
			total += core.NewVec3(float64(c.R), float64(c.G), float64(c.B)).Multiply(1.0 / 255).Luminance()
		}
	}
	return total / float64(pixels)
}

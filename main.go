package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/df07/go-ssgi/pkg/config"
	"github.com/df07/go-ssgi/pkg/core"
	"github.com/df07/go-ssgi/pkg/frame"
	"github.com/df07/go-ssgi/pkg/loaders"
	"github.com/df07/go-ssgi/pkg/renderer"
	"github.com/df07/go-ssgi/pkg/scene"
)

// options holds the parsed command line
type options struct {
	Scene     string
	ColorFile string
	DepthFile string
	NoiseFile string

	Width   int
	Height  int
	Frames  int
	Motion  float64
	Quality string
	Debug   string

	NoAO          bool
	NoGI          bool
	NoReflections bool
	TemporalBlend float64

	DepthReversed bool
	DepthLog      bool
	DepthFlip     bool
	FovY          float64
	FarPlane      float64

	OutDir    string
	SaveDepth bool
	Workers   int
	Verbose   bool
	Help      bool
}

// parseFlags parses the command line arguments (without the program name)
func parseFlags(args []string, output io.Writer) (*options, error) {
	opts := &options{}
	fs := newFlagSet(opts, output)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if opts.Help {
		return opts, nil
	}

	switch {
	case opts.Scene != "" && opts.ColorFile != "":
		return nil, errors.New("use either -scene or -color, not both")
	case opts.ColorFile != "" && opts.DepthFile == "":
		return nil, errors.New("-color requires -depth")
	case opts.ColorFile == "" && opts.DepthFile != "":
		return nil, errors.New("-depth requires -color")
	case opts.Scene == "" && opts.ColorFile == "":
		opts.Scene = "spheres"
	}
	if opts.Frames < 1 {
		return nil, fmt.Errorf("-frames must be at least 1, got %d", opts.Frames)
	}
	if opts.Width < 1 || opts.Height < 1 {
		return nil, fmt.Errorf("invalid size %dx%d", opts.Width, opts.Height)
	}
	return opts, nil
}

// newFlagSet binds every command line flag to opts
func newFlagSet(opts *options, output io.Writer) *flag.FlagSet {
	defaults := config.DefaultSettings()
	sceneDefaults := scene.DefaultConfig()

	fs := flag.NewFlagSet("go-ssgi", flag.ContinueOnError)
	fs.SetOutput(output)

	fs.StringVar(&opts.Scene, "scene", "", "Built-in scene: "+strings.Join(scene.Names(), ", "))
	fs.StringVar(&opts.ColorFile, "color", "", "Color image (PNG, JPEG, WebP, TIFF) instead of a built-in scene")
	fs.StringVar(&opts.DepthFile, "depth", "", "Depth buffer (16-bit PNG/TIFF or raw "+loaders.RawHalfExt+") for -color")
	fs.StringVar(&opts.NoiseFile, "noise", "", "Tileable noise texture (default: procedural)")

	fs.IntVar(&opts.Width, "width", sceneDefaults.Width, "Image width for built-in scenes")
	fs.IntVar(&opts.Height, "height", sceneDefaults.Height, "Image height for built-in scenes")
	fs.IntVar(&opts.Frames, "frames", 1, "Number of frames to render")
	fs.Float64Var(&opts.Motion, "motion", 0.02, "Sideways camera motion per frame for built-in scenes")
	fs.StringVar(&opts.Quality, "quality", defaults.Quality.String(), "Quality: low, medium, high, ultra")
	fs.StringVar(&opts.Debug, "debug", config.DebugNone.String(), "Debug view: none, depth, normals, ao, indirect, reflections, bent-normal, roughness, metalness, confidence")

	fs.BoolVar(&opts.NoAO, "no-ao", false, "Disable ambient occlusion")
	fs.BoolVar(&opts.NoGI, "no-gi", false, "Disable indirect lighting")
	fs.BoolVar(&opts.NoReflections, "no-reflections", false, "Disable reflections")
	fs.Float64Var(&opts.TemporalBlend, "temporal", defaults.TemporalBlend, "History blend weight [0,1)")

	fs.BoolVar(&opts.DepthReversed, "depth-reversed", false, "Depth is reversed (1 at the near plane)")
	fs.BoolVar(&opts.DepthLog, "depth-log", false, "Depth is logarithmically encoded")
	fs.BoolVar(&opts.DepthFlip, "depth-flip", false, "Depth rows are stored bottom-up")
	fs.Float64Var(&opts.FovY, "fov", defaults.FovY, "Vertical field of view in degrees")
	fs.Float64Var(&opts.FarPlane, "far", defaults.FarPlane, "View-space distance of linear depth 1")

	fs.StringVar(&opts.OutDir, "out", "output", "Output directory")
	fs.BoolVar(&opts.SaveDepth, "save-depth", false, "Also write each frame's linear depth as a 16-bit TIFF")
	fs.IntVar(&opts.Workers, "workers", 0, "Number of parallel workers (0 = CPU count)")
	fs.BoolVar(&opts.Verbose, "v", false, "Verbose (debug) logging")
	fs.BoolVar(&opts.Help, "help", false, "Show help information")
	return fs
}

// settings builds the pipeline settings selected by the options
func (o *options) settings() (config.Settings, error) {
	s := config.DefaultSettings()

	quality, err := config.ParseQuality(o.Quality)
	if err != nil {
		return s, err
	}
	view, err := config.ParseDebugView(o.Debug)
	if err != nil {
		return s, err
	}

	s.Quality = quality
	s.DebugView = view
	s.EnableAO = !o.NoAO
	s.EnableGI = !o.NoGI
	s.EnableReflections = !o.NoReflections
	s.TemporalBlend = o.TemporalBlend
	s.FovY = o.FovY
	s.FarPlane = o.FarPlane
	return s, s.Validate()
}

// depthFormat returns the host depth encoding selected by the options
func (o *options) depthFormat() frame.DepthFormat {
	return frame.DepthFormat{Reversed: o.DepthReversed, Logarithmic: o.DepthLog, FlipY: o.DepthFlip}
}

// outputName is the directory name under the output directory
func (o *options) outputName() string {
	if o.Scene != "" {
		return o.Scene
	}
	return strings.TrimSuffix(filepath.Base(o.ColorFile), filepath.Ext(o.ColorFile))
}

// loadFrames creates the input frames: a moving camera through a built-in
// scene, or the loaded color and depth held still
func loadFrames(o *options, settings config.Settings) ([]renderer.FrameInput, error) {
	frames := make([]renderer.FrameInput, o.Frames)

	if o.ColorFile != "" {
		camera := frame.Camera{FovY: settings.FovY, FarPlane: settings.FarPlane}
		f, err := loaders.LoadFrame(o.ColorFile, o.DepthFile, camera, o.depthFormat())
		if err != nil {
			return nil, err
		}
		for i := range frames {
			frames[i] = renderer.FrameInput{Frame: f, Settings: settings}
		}
		return frames, nil
	}

	s, err := scene.ByName(o.Scene, scene.Config{
		Width:    o.Width,
		Height:   o.Height,
		FovY:     settings.FovY,
		FarPlane: settings.FarPlane,
	})
	if err != nil {
		return nil, err
	}
	s.Motion = core.NewVec3(o.Motion, 0, 0)

	for i := range frames {
		depth, color := s.Render(uint64(i), o.depthFormat())
		f, err := frame.NewFrame(o.Width, o.Height, depth, color, s.Camera, o.depthFormat())
		if err != nil {
			return nil, err
		}
		frames[i] = renderer.FrameInput{Frame: f, Settings: settings}
	}
	return frames, nil
}

// run renders the frames selected by the options and writes them to disk
func run(ctx context.Context, o *options, stdout io.Writer) error {
	settings, err := o.settings()
	if err != nil {
		return err
	}
	frames, err := loadFrames(o, settings)
	if err != nil {
		return err
	}

	cfg := renderer.DefaultPipelineConfig()
	cfg.NumWorkers = o.Workers
	if o.NoiseFile != "" {
		if cfg.Noise, err = loaders.LoadNoise(o.NoiseFile, 0); err != nil {
			return err
		}
	}

	width, height := frames[0].Frame.Width, frames[0].Frame.Height
	pipeline, err := renderer.NewPipeline(width, height, cfg)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	// Create output directory for this scene
	outputDir := filepath.Join(o.OutDir, o.outputName())
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	fmt.Fprintf(stdout, "Rendering %d frame(s) of %s at %dx%d, quality %s\n",
		len(frames), o.outputName(), width, height, settings.Quality)
	startTime := time.Now()

	// Stops the sequence if writing an output fails
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results, errs := pipeline.RenderSequence(ctx, frames)
	rendered := 0
	for result := range results {
		filename := filepath.Join(outputDir, fmt.Sprintf("frame_%03d.png", result.Index))
		if err := savePNG(filename, result); err != nil {
			return err
		}
		if o.SaveDepth {
			depthFile := filepath.Join(outputDir, fmt.Sprintf("depth_%03d.tiff", result.Index))
			if err := loaders.SaveDepthTIFF(depthFile, linearDepth(frames[rendered].Frame)); err != nil {
				return err
			}
		}
		fmt.Fprintf(stdout, "Frame %d: %v, history %v, reprojected %d, saved %s\n",
			result.Index, result.Stats.Total.Round(time.Millisecond), result.Stats.HistoryValid,
			result.Stats.ReprojectedPixels, filename)
		rendered++
	}
	if err := <-errs; err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Completed in %v\n", time.Since(startTime).Round(time.Millisecond))
	return nil
}

// savePNG writes a frame's output image
func savePNG(filename string, result renderer.FrameResult) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filename, err)
	}
	if err := png.Encode(file, result.Image); err != nil {
		file.Close()
		return fmt.Errorf("saving PNG: %w", err)
	}
	return file.Close()
}

// linearDepth extracts the normalized linear depth of a frame
func linearDepth(f *frame.Frame) *loaders.DepthData {
	d := &loaders.DepthData{Width: f.Width, Height: f.Height, Values: make([]float64, f.Width*f.Height)}
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			d.Values[y*f.Width+x] = f.LinearDepth(x, y)
		}
	}
	return d
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	// Show help if requested
	if opts.Help {
		fmt.Println("Screen-Space Global Illumination")
		fmt.Println("Usage: go-ssgi [options]")
		fmt.Println()
		fmt.Println("Options:")
		newFlagSet(&options{}, os.Stdout).PrintDefaults()
		fmt.Println()
		fmt.Println("Output will be saved to <out>/<scene>/frame_<n>.png")
		return
	}

	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	core.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

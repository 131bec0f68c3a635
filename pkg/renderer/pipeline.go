// Package renderer orchestrates the per-frame illumination pipeline: every
// stage runs over a tile grid on a shared worker pool, with a barrier between
// stages and history stored only after compositing.
package renderer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/df07/go-ssgi/pkg/ao"
	"github.com/df07/go-ssgi/pkg/buffer"
	"github.com/df07/go-ssgi/pkg/composite"
	"github.com/df07/go-ssgi/pkg/config"
	"github.com/df07/go-ssgi/pkg/core"
	"github.com/df07/go-ssgi/pkg/denoise"
	"github.com/df07/go-ssgi/pkg/frame"
	"github.com/df07/go-ssgi/pkg/gi"
	"github.com/df07/go-ssgi/pkg/reflection"
	"github.com/df07/go-ssgi/pkg/sampling"
	"github.com/df07/go-ssgi/pkg/temporal"
)

var (
	// ErrInvalidSize is returned for non-positive pipeline dimensions
	ErrInvalidSize = errors.New("invalid pipeline size")

	// ErrSizeMismatch is returned when a frame does not match the pipeline size
	ErrSizeMismatch = frame.ErrSizeMismatch
)

// PipelineConfig contains configuration for the frame pipeline
type PipelineConfig struct {
	TileSize      int     // Size of each tile (32x32 recommended)
	NumWorkers    int     // Number of parallel workers (0 = use CPU count)
	DenoiseRadius float64 // Base denoise radius before quality scaling
	NoiseSize     int     // Edge length of the procedural noise texture
	NoiseSeed     uint32
	Noise         *sampling.NoiseTexture // Replaces the procedural noise when set

	// Observer, when set, is called on the rendering goroutine after every stage
	Observer func(FrameContext, StageStats)
}

// DefaultPipelineConfig returns sensible default values
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		TileSize:      DefaultTileSize,
		NumWorkers:    0, // Auto-detect CPU count
		DenoiseRadius: 1.0,
		NoiseSize:     sampling.DefaultNoiseSize,
		NoiseSeed:     1,
	}
}

// FrameContext carries the per-frame state shared by every stage
type FrameContext struct {
	Index    uint64 // Frame counter, advances the noise rotation
	Width    int
	Height   int
	Settings config.Settings
	Profile  config.QualityProfile
	Frame    *frame.Frame
}

// FrameInput is one frame of host input
type FrameInput struct {
	Frame    *frame.Frame
	Settings config.Settings
}

// FrameResult is the output of one frame
type FrameResult struct {
	Index  uint64
	Output *buffer.EffectBuffer[core.Vec3] // Tone-mapped linear color or debug view
	Image  *image.RGBA
	Stats  FrameStats
}

// Pipeline renders frames of one resolution, carrying history between them
type Pipeline struct {
	width, height int
	config        PipelineConfig
	tiles         []*Tile
	pool          *WorkerPool
	noise         *sampling.NoiseTexture
	frameIndex    uint64

	// Temporal state
	history *buffer.History
	ao      *buffer.DoubleBuffer[float64]
	gi      *buffer.DoubleBuffer[core.Vec3]
	refl    *buffer.DoubleBuffer[reflection.Sample]

	// Per-frame scratch
	color        *buffer.EffectBuffer[core.Vec3]
	reprojection *buffer.EffectBuffer[temporal.Reprojection]
	aoRaw        *buffer.EffectBuffer[float64]
	aoBlur       *buffer.EffectBuffer[float64]
	bent         *buffer.EffectBuffer[core.Vec3]
	giRaw        *buffer.EffectBuffer[core.Vec3]
	giBlur       *buffer.EffectBuffer[core.Vec3]
	reflRaw      *buffer.EffectBuffer[reflection.Sample]
	reflBlur     *buffer.EffectBuffer[reflection.Sample]
	roughness    *buffer.EffectBuffer[float64]
	metalness    *buffer.EffectBuffer[float64]
}

// NewPipeline creates a pipeline and starts its worker pool
func NewPipeline(width, height int, cfg PipelineConfig) (*Pipeline, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	if cfg.TileSize <= 0 {
		cfg.TileSize = DefaultTileSize
	}
	if cfg.DenoiseRadius <= 0 {
		cfg.DenoiseRadius = 1
	}
	noise := cfg.Noise
	if noise == nil {
		size := cfg.NoiseSize
		if size <= 0 {
			size = sampling.DefaultNoiseSize
		}
		noise = sampling.NewProceduralNoise(size, cfg.NoiseSeed)
	}

	tiles := NewTileGrid(width, height, cfg.TileSize)
	pool := NewWorkerPool(len(tiles), cfg.NumWorkers)
	pool.Start()

	p := &Pipeline{
		width:        width,
		height:       height,
		config:       cfg,
		tiles:        tiles,
		pool:         pool,
		noise:        noise,
		history:      buffer.NewHistory(width, height),
		ao:           buffer.NewDoubleBuffer(width, height, 1.0),
		gi:           buffer.NewDoubleBuffer(width, height, core.Vec3{}),
		refl:         buffer.NewDoubleBuffer(width, height, reflection.Sample{}),
		color:        buffer.NewEffectBuffer[core.Vec3](width, height),
		reprojection: buffer.NewEffectBuffer[temporal.Reprojection](width, height),
		aoRaw:        buffer.NewFilledBuffer(width, height, 1.0),
		aoBlur:       buffer.NewFilledBuffer(width, height, 1.0),
		bent:         buffer.NewEffectBuffer[core.Vec3](width, height),
		giRaw:        buffer.NewEffectBuffer[core.Vec3](width, height),
		giBlur:       buffer.NewEffectBuffer[core.Vec3](width, height),
		reflRaw:      buffer.NewEffectBuffer[reflection.Sample](width, height),
		reflBlur:     buffer.NewEffectBuffer[reflection.Sample](width, height),
		roughness:    buffer.NewEffectBuffer[float64](width, height),
		metalness:    buffer.NewEffectBuffer[float64](width, height),
	}
	p.history.Track(p.ao, p.gi, p.refl)

	core.Logger().Debug("pipeline created",
		"width", width, "height", height, "tiles", len(tiles), "workers", pool.GetNumWorkers())
	return p, nil
}

// Close stops the worker pool. The pipeline cannot render afterwards.
func (p *Pipeline) Close() {
	p.pool.Stop()
}

// Size returns the pipeline resolution
func (p *Pipeline) Size() (int, int) {
	return p.width, p.height
}

// FrameIndex returns the index the next frame will be rendered with
func (p *Pipeline) FrameIndex() uint64 {
	return p.frameIndex
}

// History returns the temporal history. It is read-only for callers.
func (p *Pipeline) History() *buffer.History {
	return p.history
}

// Reset discards history so the next frame renders without temporal blending
func (p *Pipeline) Reset() {
	p.history.Reset()
}

// frameRun tracks the stages of one frame in flight
type frameRun struct {
	ctx   context.Context
	fc    FrameContext
	stats FrameStats
}

// stage dispatches kernel over the tile grid after checking for cancellation
func (p *Pipeline) stage(run *frameRun, name string, kernel Kernel, skipped bool) error {
	if err := run.ctx.Err(); err != nil {
		core.Logger().Debug("frame cancelled", "frame", run.fc.Index, "before", name)
		return err
	}
	start := time.Now()
	pixels := 0
	if kernel != nil {
		n, err := p.pool.Dispatch(p.tiles, kernel)
		if err != nil {
			return fmt.Errorf("stage %s: %w", name, err)
		}
		pixels = n
	}
	p.record(run, StageStats{Name: name, Duration: time.Since(start), Pixels: pixels, Skipped: skipped})
	return nil
}

func (p *Pipeline) record(run *frameRun, s StageStats) {
	run.stats.Stages = append(run.stats.Stages, s)
	core.Logger().Debug("stage complete",
		"frame", run.fc.Index, "stage", s.Name, "duration", s.Duration, "pixels", s.Pixels, "skipped", s.Skipped)
	if p.config.Observer != nil {
		p.config.Observer(run.fc, s)
	}
}

// RenderFrame runs every stage for one frame. Cancellation is checked between
// stages; a cancelled frame returns ctx.Err() and leaves history untouched.
func (p *Pipeline) RenderFrame(ctx context.Context, in FrameInput) (FrameResult, error) {
	f := in.Frame
	if f == nil {
		return FrameResult{}, fmt.Errorf("%w: no frame", ErrSizeMismatch)
	}
	if f.Width != p.width || f.Height != p.height {
		return FrameResult{}, fmt.Errorf("%w: frame is %dx%d, pipeline is %dx%d",
			ErrSizeMismatch, f.Width, f.Height, p.width, p.height)
	}
	if err := in.Settings.Validate(); err != nil {
		return FrameResult{}, err
	}

	start := time.Now()
	run := &frameRun{
		ctx: ctx,
		fc: FrameContext{
			Index:    p.frameIndex,
			Width:    p.width,
			Height:   p.height,
			Settings: in.Settings,
			Profile:  in.Settings.Profile(),
			Frame:    f,
		},
	}
	run.stats.Frame = p.frameIndex
	run.stats.HistoryValid = p.history.Valid

	steps := []func(*frameRun) error{
		p.geometryStages,
		p.aoStages,
		p.giStages,
		p.reflectionStages,
	}
	for _, step := range steps {
		if err := step(run); err != nil {
			return FrameResult{}, err
		}
	}

	output := buffer.NewEffectBuffer[core.Vec3](p.width, p.height)
	layers := composite.Layers{
		Color:       p.color,
		Depth:       p.history.LinearDepth.Current(),
		Normals:     p.history.Normals.Current(),
		AO:          p.ao.Current(),
		BentNormals: p.bent,
		Indirect:    p.gi.Current(),
		Reflections: p.refl.Current(),
		Roughness:   p.roughness,
		Metalness:   p.metalness,
	}
	view := in.Settings.DebugView
	if err := p.stage(run, StageComposite, func(x, y int) {
		output.Set(x, y, layers.Pixel(x, y, view))
	}, false); err != nil {
		return FrameResult{}, err
	}

	// History is written only after compositing, and only for complete frames
	if err := ctx.Err(); err != nil {
		return FrameResult{}, err
	}
	storeStart := time.Now()
	p.history.Store(run.fc.Index)
	p.record(run, StageStats{Name: StageHistory, Duration: time.Since(storeStart)})
	p.frameIndex++

	img := composite.ToImage(output)
	run.stats.AverageLuminance = CalculateAverageLuminance(img)
	run.stats.Total = time.Since(start)

	core.Logger().Info("frame rendered",
		"frame", run.fc.Index,
		"duration", run.stats.Total,
		"history", run.stats.HistoryValid,
		"reprojected", run.stats.ReprojectedPixels,
		"sky", run.stats.SkyPixels,
		"view", view.String())

	return FrameResult{Index: run.fc.Index, Output: output, Image: img, Stats: run.stats}, nil
}

// geometryStages decodes the frame into the current geometry buffers and
// reprojects every pixel into the previous frame
func (p *Pipeline) geometryStages(run *frameRun) error {
	f := run.fc.Frame
	depth := p.history.LinearDepth.Current()
	normals := p.history.Normals.Current()

	if err := p.stage(run, StageGeometry, func(x, y int) {
		ps := f.Pixel(x, y, frame.NormalRobust)
		depth.Set(x, y, ps.Linear)
		normals.Set(x, y, ps.Normal)
		p.color.Set(x, y, f.Color(x, y))
	}, false); err != nil {
		return err
	}
	for _, d := range depth.Data() {
		if frame.IsSky(d) {
			run.stats.SkyPixels++
		}
	}

	prev := temporal.PreviousFrom(p.history)
	if err := p.stage(run, StageReproject, func(x, y int) {
		p.reprojection.Set(x, y, temporal.Reproject(temporal.Pixel{
			X:      x,
			Y:      y,
			UV:     f.UV(x, y),
			Depth:  depth.At(x, y),
			Normal: normals.At(x, y),
		}, prev))
	}, false); err != nil {
		return err
	}
	for _, r := range p.reprojection.Data() {
		if r.Valid {
			run.stats.ReprojectedPixels++
		}
	}
	return nil
}

func (p *Pipeline) guide() denoise.Guide {
	return denoise.Guide{Depth: p.history.LinearDepth.Current(), Normals: p.history.Normals.Current()}
}

func (p *Pipeline) denoiseRadius(run *frameRun) float64 {
	return p.config.DenoiseRadius * run.fc.Profile.DenoiseRadiusScale
}

// skipStages records no-op stages of a disabled effect
func (p *Pipeline) skipStages(run *frameRun, names ...string) error {
	for _, name := range names {
		if err := run.ctx.Err(); err != nil {
			return err
		}
		p.record(run, StageStats{Name: name, Skipped: true})
	}
	return nil
}

func (p *Pipeline) aoStages(run *frameRun) error {
	s := run.fc.Settings
	current := p.ao.Current()
	normals := p.history.Normals.Current()

	if !s.EnableAO {
		if err := p.stage(run, StageAO, func(x, y int) {
			current.Set(x, y, 1)
			p.bent.Set(x, y, normals.At(x, y))
		}, true); err != nil {
			return err
		}
		return p.skipStages(run, StageAOBlur, StageAOTemporal)
	}

	est := ao.NewEstimator(run.fc.Frame, p.noise, ao.ParamsFromSettings(s))
	index := run.fc.Index
	if err := p.stage(run, StageAO, func(x, y int) {
		r := est.EstimatePixel(x, y, index)
		p.aoRaw.Set(x, y, r.AO)
		p.bent.Set(x, y, r.BentNormal)
	}, false); err != nil {
		return err
	}

	blur := denoise.New(denoise.ScalarOps, p.guide(), p.denoiseRadius(run), s.DenoiseAO)
	if err := p.stage(run, StageAOBlur, func(x, y int) {
		p.aoBlur.Set(x, y, blur.FilterPixel(p.aoRaw, x, y))
	}, false); err != nil {
		return err
	}

	stabilizer := temporal.NewStabilizer(temporal.ScalarOps, s.TemporalBlend, true)
	previous := p.ao.Previous()
	return p.stage(run, StageAOTemporal, func(x, y int) {
		v, _ := stabilizer.Resolve(p.aoBlur.At(x, y), previous, p.reprojection.At(x, y))
		current.Set(x, y, v)
	}, false)
}

func (p *Pipeline) giStages(run *frameRun) error {
	s := run.fc.Settings
	current := p.gi.Current()

	if !s.EnableGI {
		if err := p.stage(run, StageGI, func(x, y int) {
			current.Set(x, y, core.Vec3{})
		}, true); err != nil {
			return err
		}
		return p.skipStages(run, StageGIDenoise, StageGITemporal)
	}

	est := gi.NewEstimator(run.fc.Frame, p.noise, gi.ParamsFromSettings(s))
	occlusion := p.ao.Current()
	index := run.fc.Index
	if err := p.stage(run, StageGI, func(x, y int) {
		r := ao.Result{AO: occlusion.At(x, y), BentNormal: p.bent.At(x, y)}
		p.giRaw.Set(x, y, est.EstimatePixel(x, y, r, index))
	}, false); err != nil {
		return err
	}

	den := denoise.New(denoise.ColorOps, p.guide(), p.denoiseRadius(run), s.DenoiseGI)
	if err := p.stage(run, StageGIDenoise, func(x, y int) {
		p.giBlur.Set(x, y, den.FilterPixel(p.giRaw, x, y))
	}, false); err != nil {
		return err
	}

	stabilizer := temporal.NewStabilizer(temporal.ColorOps, s.TemporalBlend, false)
	previous := p.gi.Previous()
	return p.stage(run, StageGITemporal, func(x, y int) {
		v, _ := stabilizer.Resolve(p.giBlur.At(x, y), previous, p.reprojection.At(x, y))
		current.Set(x, y, v)
	}, false)
}

func (p *Pipeline) reflectionStages(run *frameRun) error {
	s := run.fc.Settings
	current := p.refl.Current()

	if !s.EnableReflections {
		if err := p.stage(run, StageRefl, func(x, y int) {
			current.Set(x, y, reflection.Sample{})
			p.roughness.Set(x, y, 0)
			p.metalness.Set(x, y, 0)
		}, true); err != nil {
			return err
		}
		return p.skipStages(run, StageReflDenoise, StageReflTemporal)
	}

	f := run.fc.Frame
	est := reflection.NewEstimator(f, p.noise, reflection.ParamsFromSettings(s))
	index := run.fc.Index
	if err := p.stage(run, StageRefl, func(x, y int) {
		ps := f.Pixel(x, y, frame.NormalRobust)
		if ps.Sky {
			p.roughness.Set(x, y, 0)
			p.metalness.Set(x, y, 0)
			p.reflRaw.Set(x, y, reflection.Sample{})
			return
		}
		rough, metal := est.Material(ps)
		p.roughness.Set(x, y, rough)
		p.metalness.Set(x, y, metal)
		p.reflRaw.Set(x, y, est.Estimate(ps, index))
	}, false); err != nil {
		return err
	}

	den := denoise.New(denoise.ReflectionOps, p.guide(), p.denoiseRadius(run), s.DenoiseReflections)
	if err := p.stage(run, StageReflDenoise, func(x, y int) {
		p.reflBlur.Set(x, y, den.FilterPixel(p.reflRaw, x, y))
	}, false); err != nil {
		return err
	}

	stabilizer := temporal.NewStabilizer(temporal.ReflectionOps, s.TemporalBlend, false)
	previous := p.refl.Previous()
	return p.stage(run, StageReflTemporal, func(x, y int) {
		v, _ := stabilizer.Resolve(p.reflBlur.At(x, y), previous, p.reprojection.At(x, y))
		current.Set(x, y, v)
	}, false)
}

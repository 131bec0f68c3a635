package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"net/http"
	"time"

	"github.com/df07/go-ssgi/pkg/core"
	"github.com/df07/go-ssgi/pkg/frame"
	"github.com/df07/go-ssgi/pkg/renderer"
	"github.com/df07/go-ssgi/pkg/scene"
)

// FrameUpdate represents a single rendered frame sent via SSE
type FrameUpdate struct {
	FrameNumber int    `json:"frameNumber"`
	TotalFrames int    `json:"totalFrames"`
	ImageData   string `json:"imageData"` // Base64 encoded PNG
	Stats       Stats  `json:"stats"`
	IsComplete  bool   `json:"isComplete"`
	ElapsedMs   int64  `json:"elapsedMs"`
}

// StageUpdate reports one finished pipeline stage
type StageUpdate struct {
	Frame      uint64  `json:"frame"`
	Stage      string  `json:"stage"`
	DurationMs float64 `json:"durationMs"`
	Pixels     int     `json:"pixels"`
	Skipped    bool    `json:"skipped"`
}

// Stats represents frame statistics
type Stats struct {
	FrameMs           float64            `json:"frameMs"`
	StageMs           map[string]float64 `json:"stageMs"`
	HistoryValid      bool               `json:"historyValid"`
	ReprojectedPixels int                `json:"reprojectedPixels"`
	SkyPixels         int                `json:"skyPixels"`
	AverageLuminance  float64            `json:"averageLuminance"`
}

// SSEEvent represents a unified SSE event for thread-safe writing
type SSEEvent struct {
	Type string `json:"type"` // "console", "stage", "frame", "error", "complete"
	Data string `json:"data"` // JSON-encoded data
}

// handleRender renders a frame sequence of a built-in scene and streams
// every frame via SSE
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	s.setSSEHeaders(w)
	ctx := r.Context()

	events := make(chan SSEEvent, 100)

	req, err := s.parseRenderRequest(r)
	if err != nil {
		go func() {
			defer close(events)
			s.sendEvent(ctx, events, "error", fmt.Sprintf("Invalid request: %v", err))
		}()
	} else {
		go s.renderSequence(ctx, req, events)
	}

	// Events are written from the handler goroutine only
	s.writeSSEEvents(ctx, w, events)
}

// setSSEHeaders sets the required headers for Server-Sent Events
func (s *Server) setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

// writeSSEEvents writes events until the channel closes or the client disconnects
func (s *Server) writeSSEEvents(ctx context.Context, w http.ResponseWriter, events <-chan SSEEvent) {
	flusher, _ := w.(http.Flusher)
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, event.Data); err != nil {
				// Client disconnected during write
				return
			}
			if flusher != nil {
				flusher.Flush()
			}

		case <-ctx.Done():
			// Client disconnected
			return
		}
	}
}

// sendEvent queues an event unless the client has gone away
func (s *Server) sendEvent(ctx context.Context, events chan<- SSEEvent, eventType, data string) bool {
	select {
	case events <- SSEEvent{Type: eventType, Data: data}:
		return true
	case <-ctx.Done():
		return false
	}
}

// sendJSON queues an event with a JSON payload
func (s *Server) sendJSON(ctx context.Context, events chan<- SSEEvent, eventType string, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		return s.sendEvent(ctx, events, "error", fmt.Sprintf("encoding %s: %v", eventType, err))
	}
	return s.sendEvent(ctx, events, eventType, string(data))
}

// renderSequence runs the pipeline over the requested frames and queues the
// results. It closes events when done.
func (s *Server) renderSequence(ctx context.Context, req *RenderRequest, events chan SSEEvent) {
	defer close(events)

	// Console messages for this render, forwarded as SSE events
	consoleChan := make(chan ConsoleMessage, 50)
	renderID := fmt.Sprintf("render-%d", time.Now().UnixNano())
	logger := slog.New(NewConsoleHandler(renderID, slog.LevelInfo, consoleChan))
	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		for msg := range consoleChan {
			if !s.sendJSON(ctx, events, "console", msg) {
				return
			}
		}
	}()
	defer func() {
		close(consoleChan)
		<-forwarded
	}()

	frames, err := sceneFrames(req)
	if err != nil {
		s.sendEvent(ctx, events, "error", err.Error())
		return
	}

	cfg := renderer.DefaultPipelineConfig()
	cfg.NumWorkers = s.workers
	cfg.Observer = func(fc renderer.FrameContext, st renderer.StageStats) {
		s.sendJSON(ctx, events, "stage", StageUpdate{
			Frame:      fc.Index,
			Stage:      st.Name,
			DurationMs: float64(st.Duration.Microseconds()) / 1000,
			Pixels:     st.Pixels,
			Skipped:    st.Skipped,
		})
	}

	pipeline, err := renderer.NewPipeline(req.Width, req.Height, cfg)
	if err != nil {
		s.sendEvent(ctx, events, "error", err.Error())
		return
	}
	defer pipeline.Close()

	logger.Info("starting render", "scene", req.Scene, "size", fmt.Sprintf("%dx%d", req.Width, req.Height),
		"frames", req.Frames, "quality", req.Settings.Quality.String(), "debug", req.Settings.DebugView.String())

	startTime := time.Now()
	results, errs := pipeline.RenderSequence(ctx, frames)
	count := 0
	for result := range results {
		count++
		imageData, err := imageToBase64PNG(result.Image)
		if err != nil {
			s.sendEvent(ctx, events, "error", fmt.Sprintf("failed to encode image: %v", err))
			return
		}
		update := FrameUpdate{
			FrameNumber: count,
			TotalFrames: req.Frames,
			ImageData:   imageData,
			Stats:       toStats(result.Stats),
			IsComplete:  count == req.Frames,
			ElapsedMs:   time.Since(startTime).Milliseconds(),
		}
		if !s.sendJSON(ctx, events, "frame", update) {
			return
		}
	}

	if err := <-errs; err != nil {
		if ctx.Err() == nil {
			s.sendEvent(ctx, events, "error", fmt.Sprintf("Render error: %v", err))
		}
		return
	}

	logger.Info("render complete", "frames", count, "duration", time.Since(startTime).Round(time.Millisecond))
	s.sendEvent(ctx, events, "complete", "Rendering completed")
}

// sceneFrames renders the input frames of a moving camera through the scene
func sceneFrames(req *RenderRequest) ([]renderer.FrameInput, error) {
	sc, err := scene.ByName(req.Scene, scene.Config{
		Width:    req.Width,
		Height:   req.Height,
		FovY:     req.Settings.FovY,
		FarPlane: req.Settings.FarPlane,
	})
	if err != nil {
		return nil, err
	}
	sc.Motion = core.NewVec3(req.Motion, 0, 0)

	frames := make([]renderer.FrameInput, req.Frames)
	for i := range frames {
		depth, color := sc.Render(uint64(i), frame.DepthFormat{})
		f, err := frame.NewFrame(req.Width, req.Height, depth, color, sc.Camera, frame.DepthFormat{})
		if err != nil {
			return nil, err
		}
		frames[i] = renderer.FrameInput{Frame: f, Settings: req.Settings}
	}
	return frames, nil
}

// toStats converts pipeline statistics to their wire form
func toStats(fs renderer.FrameStats) Stats {
	stages := make(map[string]float64, len(fs.Stages))
	for _, st := range fs.Stages {
		stages[st.Name] = float64(st.Duration.Microseconds()) / 1000
	}
	return Stats{
		FrameMs:           float64(fs.Total.Microseconds()) / 1000,
		StageMs:           stages,
		HistoryValid:      fs.HistoryValid,
		ReprojectedPixels: fs.ReprojectedPixels,
		SkyPixels:         fs.SkyPixels,
		AverageLuminance:  fs.AverageLuminance,
	}
}

// imageToBase64PNG converts an image to base64-encoded PNG
func imageToBase64PNG(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

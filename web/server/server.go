// Package server streams rendered frame sequences to a browser over
// Server-Sent Events and answers per-pixel inspection queries.
package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/df07/go-ssgi/pkg/config"
	"github.com/df07/go-ssgi/pkg/core"
	"github.com/df07/go-ssgi/pkg/scene"
)

// Request limits
const (
	minSize, maxSize     = 16, 1920
	minFrames, maxFrames = 1, 600
	maxMotion            = 1.0
)

// Server handles web requests for the preview renderer
type Server struct {
	port    int
	workers int
}

// NewServer creates a new web server. workers = 0 uses the CPU count.
func NewServer(port, workers int) *Server {
	return &Server{port: port, workers: workers}
}

// RenderRequest represents a render request from the client
type RenderRequest struct {
	Scene    string          `json:"scene"`  // Built-in scene name
	Width    int             `json:"width"`  // Image width
	Height   int             `json:"height"` // Image height
	Frames   int             `json:"frames"` // Number of frames in the sequence
	Motion   float64         `json:"motion"` // Sideways camera motion per frame
	Settings config.Settings `json:"-"`
}

// Handler returns the HTTP handler serving every endpoint
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/scenes", s.handleScenes)
	mux.HandleFunc("/api/render", s.handleRender)
	mux.HandleFunc("/api/inspect", s.handleInspect)
	return mux
}

// Start starts the web server
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	core.Logger().Info("starting web server", "addr", "http://localhost"+addr)
	return http.ListenAndServe(addr, s.Handler())
}

// handleHealth provides a simple health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleScenes lists the built-in scenes with the request defaults and limits
func (s *Server) handleScenes(w http.ResponseWriter, r *http.Request) {
	defaults := scene.DefaultConfig()
	settings := config.DefaultSettings()

	debugViews := make([]string, 0, int(config.DebugConfidence)+1)
	for v := config.DebugNone; v <= config.DebugConfidence; v++ {
		debugViews = append(debugViews, v.String())
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"scenes":     scene.Names(),
		"debugViews": debugViews,
		"defaults": map[string]any{
			"width":         defaults.Width,
			"height":        defaults.Height,
			"frames":        30,
			"motion":        0.02,
			"quality":       settings.Quality.String(),
			"temporalBlend": settings.TemporalBlend,
		},
		"limits": map[string]any{
			"width":  map[string]int{"min": minSize, "max": maxSize},
			"height": map[string]int{"min": minSize, "max": maxSize},
			"frames": map[string]int{"min": minFrames, "max": maxFrames},
			"motion": map[string]float64{"min": -maxMotion, "max": maxMotion},
		},
	})
}

// parseRenderRequest parses request parameters
func (s *Server) parseRenderRequest(r *http.Request) (*RenderRequest, error) {
	q := r.URL.Query()
	defaults := scene.DefaultConfig()

	req := &RenderRequest{Scene: "spheres"}
	if name := q.Get("scene"); name != "" {
		req.Scene = name
	}

	// Parse and validate all parameters using helper functions
	var err error
	if req.Width, err = parseIntParam(q, "width", defaults.Width, minSize, maxSize); err != nil {
		return nil, err
	}
	if req.Height, err = parseIntParam(q, "height", defaults.Height, minSize, maxSize); err != nil {
		return nil, err
	}
	if req.Frames, err = parseIntParam(q, "frames", 30, minFrames, maxFrames); err != nil {
		return nil, err
	}
	if req.Motion, err = parseFloatParam(q, "motion", 0.02, -maxMotion, maxMotion); err != nil {
		return nil, err
	}
	if req.Settings, err = parseSettings(q); err != nil {
		return nil, err
	}
	return req, nil
}

// parseSettings reads the pipeline settings from the query
func parseSettings(q url.Values) (config.Settings, error) {
	s := config.DefaultSettings()

	var err error
	if v := q.Get("quality"); v != "" {
		if s.Quality, err = config.ParseQuality(v); err != nil {
			return s, err
		}
	}
	if s.DebugView, err = config.ParseDebugView(q.Get("debug")); err != nil {
		return s, err
	}
	if s.EnableAO, err = parseBoolParam(q, "ao", true); err != nil {
		return s, err
	}
	if s.EnableGI, err = parseBoolParam(q, "gi", true); err != nil {
		return s, err
	}
	if s.EnableReflections, err = parseBoolParam(q, "reflections", true); err != nil {
		return s, err
	}
	if s.TemporalBlend, err = parseFloatParam(q, "temporalBlend", s.TemporalBlend, 0, 0.99); err != nil {
		return s, err
	}
	return s, s.Validate()
}

// parseIntParam parses an integer parameter from URL query with validation
func parseIntParam(values url.Values, key string, defaultValue, min, max int) (int, error) {
	if value := values.Get(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %s", key, value)
		}
		if parsed < min || parsed > max {
			return 0, fmt.Errorf("%s must be between %d and %d, got: %d", key, min, max, parsed)
		}
		return parsed, nil
	}
	return defaultValue, nil
}

// parseFloatParam parses a float parameter from URL query with validation
func parseFloatParam(values url.Values, key string, defaultValue, min, max float64) (float64, error) {
	if value := values.Get(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %s", key, value)
		}
		if parsed < min || parsed > max {
			return 0, fmt.Errorf("%s must be between %f and %f, got: %f", key, min, max, parsed)
		}
		return parsed, nil
	}
	return defaultValue, nil
}

// parseBoolParam parses a boolean parameter from URL query
func parseBoolParam(values url.Values, key string, defaultValue bool) (bool, error) {
	if value := values.Get(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return false, fmt.Errorf("invalid %s: %s", key, value)
		}
		return parsed, nil
	}
	return defaultValue, nil
}

// writeJSON writes v as a JSON response
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		core.Logger().Warn("failed to write response", slog.Any("error", err))
	}
}

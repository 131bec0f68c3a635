package server

import (
	"net/http"

	"github.com/df07/go-ssgi/pkg/ao"
	"github.com/df07/go-ssgi/pkg/core"
	"github.com/df07/go-ssgi/pkg/frame"
	"github.com/df07/go-ssgi/pkg/gi"
	"github.com/df07/go-ssgi/pkg/reflection"
	"github.com/df07/go-ssgi/pkg/sampling"
)

// InspectResponse represents the JSON response for pixel inspection. Effect
// values are the raw single-frame estimates, before denoising and history.
type InspectResponse struct {
	X           int        `json:"x"`
	Y           int        `json:"y"`
	Sky         bool       `json:"sky"`
	Depth       float64    `json:"depth"`
	LinearDepth float64    `json:"linearDepth"`
	Position    [3]float64 `json:"position"`
	Normal      [3]float64 `json:"normal"`
	Albedo      [3]float64 `json:"albedo"`
	Roughness   float64    `json:"roughness"`
	Metalness   float64    `json:"metalness"`
	AO          float64    `json:"ao"`
	BentNormal  [3]float64 `json:"bentNormal"`
	Indirect    [3]float64 `json:"indirect"`
	Reflection  [3]float64 `json:"reflection"`
	Confidence  float64    `json:"confidence"`
}

// handleInspect estimates every effect at one pixel of a scene's first frame
func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseRenderRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	q := r.URL.Query()
	x, err := parseIntParam(q, "x", req.Width/2, 0, req.Width-1)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	y, err := parseIntParam(q, "y", req.Height/2, 0, req.Height-1)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	req.Frames = 1
	frames, err := sceneFrames(req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, inspectPixel(frames[0].Frame, req, x, y))
}

// inspectPixel runs the estimators on a single pixel
func inspectPixel(f *frame.Frame, req *RenderRequest, x, y int) InspectResponse {
	noise := sampling.NewProceduralNoise(sampling.DefaultNoiseSize, 1)
	settings := req.Settings

	ps := f.Pixel(x, y, frame.NormalRobust)
	resp := InspectResponse{
		X:           x,
		Y:           y,
		Sky:         ps.Sky,
		Depth:       ps.Depth,
		LinearDepth: ps.Linear,
		Position:    toArray(ps.Position),
		Normal:      toArray(ps.Normal),
		Albedo:      toArray(ps.Albedo),
		AO:          1,
		BentNormal:  toArray(ps.Normal),
	}

	occlusion := ao.Result{AO: 1, BentNormal: ps.Normal}
	if settings.EnableAO {
		occlusion = ao.NewEstimator(f, noise, ao.ParamsFromSettings(settings)).Estimate(ps, 0)
		resp.AO = occlusion.AO
		resp.BentNormal = toArray(occlusion.BentNormal)
	}
	if settings.EnableGI {
		resp.Indirect = toArray(gi.NewEstimator(f, noise, gi.ParamsFromSettings(settings)).EstimatePixel(x, y, occlusion, 0))
	}
	if settings.EnableReflections {
		est := reflection.NewEstimator(f, noise, reflection.ParamsFromSettings(settings))
		resp.Roughness, resp.Metalness = est.Material(ps)
		sample := est.Estimate(ps, 0)
		resp.Reflection = toArray(sample.Color)
		resp.Confidence = sample.Confidence
	}
	return resp
}

func toArray(v core.Vec3) [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}

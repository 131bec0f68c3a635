package server

import (
	"bufio"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/df07/go-ssgi/pkg/config"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(NewServer(0, 2).Handler())
	t.Cleanup(ts.Close)
	return ts
}

// readEvents reads an SSE stream to the end and returns the event types
// with their data
func readEvents(t *testing.T, body io.Reader) []SSEEvent {
	t.Helper()
	var events []SSEEvent
	var current SSEEvent
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 1<<20), 1<<24)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current.Type = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			current.Data = strings.TrimPrefix(line, "data: ")
		case line == "" && current.Type != "":
			events = append(events, current)
			current = SSEEvent{}
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("Reading event stream failed: %v", err)
	}
	return events
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("Unexpected health response %v", body)
	}
}

func TestScenes(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/scenes")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body struct {
		Scenes     []string `json:"scenes"`
		DebugViews []string `json:"debugViews"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if strings.Join(body.Scenes, ",") != "corner,plane,spheres,step" {
		t.Errorf("Unexpected scenes %v", body.Scenes)
	}
	if len(body.DebugViews) != int(config.DebugConfidence)+1 || body.DebugViews[0] != "none" {
		t.Errorf("Unexpected debug views %v", body.DebugViews)
	}
}

func TestParseRenderRequest(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		check   func(*RenderRequest) bool
		wantErr bool
	}{
		{"defaults", "", func(r *RenderRequest) bool {
			return r.Scene == "spheres" && r.Frames == 30 && r.Settings.EnableAO
		}, false},
		{"explicit values", "scene=step&width=64&height=32&frames=3&quality=low&debug=ao&gi=false", func(r *RenderRequest) bool {
			return r.Scene == "step" && r.Width == 64 && r.Height == 32 && r.Frames == 3 &&
				r.Settings.Quality == config.QualityLow && r.Settings.DebugView == config.DebugAO && !r.Settings.EnableGI
		}, false},
		{"width too small", "width=4", nil, true},
		{"frames not a number", "frames=many", nil, true},
		{"motion out of range", "motion=5", nil, true},
		{"bad bool", "ao=maybe", nil, true},
		{"unknown quality", "quality=extreme", nil, true},
		{"unknown debug view", "debug=wireframe", nil, true},
	}
	s := NewServer(0, 1)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/render?"+tt.query, nil)
			req, err := s.parseRenderRequest(r)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error for %q", tt.query)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseRenderRequest(%q) failed: %v", tt.query, err)
			}
			if !tt.check(req) {
				t.Errorf("Unexpected request %+v", req)
			}
		})
	}
}

func TestRenderStreamsFrames(t *testing.T) {
	ts := newTestServer(t)
	query := url.Values{
		"scene": {"plane"}, "width": {"16"}, "height": {"16"}, "frames": {"2"}, "quality": {"low"},
	}
	resp, err := http.Get(ts.URL + "/api/render?" + query.Encode())
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Expected an event stream, got %q", ct)
	}

	counts := map[string]int{}
	var last FrameUpdate
	for _, event := range readEvents(t, resp.Body) {
		counts[event.Type]++
		if event.Type == "frame" {
			if err := json.Unmarshal([]byte(event.Data), &last); err != nil {
				t.Fatalf("Bad frame event: %v", err)
			}
		}
		if event.Type == "error" {
			t.Errorf("Unexpected error event: %s", event.Data)
		}
	}

	if counts["frame"] != 2 {
		t.Errorf("Expected 2 frame events, got %d", counts["frame"])
	}
	if counts["complete"] != 1 {
		t.Errorf("Expected 1 complete event, got %d", counts["complete"])
	}
	if counts["stage"] == 0 {
		t.Error("Expected stage events")
	}
	if !last.IsComplete || last.FrameNumber != 2 || last.ImageData == "" {
		t.Errorf("Unexpected last frame update %+v", last)
	}
	if !last.Stats.HistoryValid {
		t.Error("Second frame should have valid history")
	}
}

func TestRenderInvalidRequest(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/render?width=1")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	events := readEvents(t, resp.Body)
	if len(events) != 1 || events[0].Type != "error" {
		t.Errorf("Expected a single error event, got %+v", events)
	}
}

func TestInspect(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/inspect?scene=plane&width=32&height=32&quality=low&x=16&y=16")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var got InspectResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Sky {
		t.Error("Plane pixel should not be sky")
	}
	if math.Abs(got.LinearDepth-0.1) > 1e-3 {
		t.Errorf("Expected linear depth 0.1, got %f", got.LinearDepth)
	}
	if math.Abs(got.AO-1) > 1e-6 {
		t.Errorf("Flat plane should be unoccluded, got AO %f", got.AO)
	}
	if got.Normal[2] > -0.99 {
		t.Errorf("Plane normal should face the camera, got %v", got.Normal)
	}

	bad, err := http.Get(ts.URL + "/api/inspect?scene=plane&width=32&height=32&x=40")
	if err != nil {
		t.Fatal(err)
	}
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for an out-of-range pixel, got %d", bad.StatusCode)
	}
}

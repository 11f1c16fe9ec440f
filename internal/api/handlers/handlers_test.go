package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"github.com/onnwee/forcegraph/internal/apierr"
	"github.com/onnwee/forcegraph/internal/config"
	"github.com/onnwee/forcegraph/internal/layout"
	"github.com/onnwee/forcegraph/internal/scheduler"
)

func testOptions() layout.Options {
	return layout.Options{
		Defaults: config.LayoutParams{
			Width:        100,
			Height:       100,
			Friction:     0.9,
			Charge:       -30,
			Gravity:      0.1,
			Theta:        0.8,
			LinkDistance: 20,
			LinkStrength: 1,
			Alpha:        0.1,
		},
		Limits:         layout.Limits{MaxNodes: 50, MaxLinks: 50},
		MaxSimulations: 4,
		MaxTicks:       400,
	}
}

// newTestRouter wires the handlers onto a manually advanced scheduler.
func newTestRouter(t *testing.T) (*mux.Router, *layout.Service, *scheduler.Scheduler) {
	t.Helper()
	sched := scheduler.New()
	svc := layout.NewService(sched, nil, testOptions())

	sims := NewSimulationHandler(svc)
	r := mux.NewRouter()
	r.HandleFunc("/api/layout", NewLayoutHandler(svc, 0).Compute).Methods(http.MethodPost)
	r.HandleFunc("/api/simulations", sims.List).Methods(http.MethodGet)
	r.HandleFunc("/api/simulations", sims.Create).Methods(http.MethodPost)
	r.HandleFunc("/api/simulations/{id}", sims.Get).Methods(http.MethodGet)
	r.HandleFunc("/api/simulations/{id}", sims.Delete).Methods(http.MethodDelete)
	r.HandleFunc("/api/simulations/{id}/stop", sims.Stop).Methods(http.MethodPost)
	r.HandleFunc("/api/simulations/{id}/resume", sims.Resume).Methods(http.MethodPost)
	r.HandleFunc("/api/simulations/{id}/alpha", sims.SetAlpha).Methods(http.MethodPut)
	r.HandleFunc("/api/simulations/{id}/drag", sims.Drag).Methods(http.MethodPost)
	r.HandleFunc("/api/simulations/{id}/ws", NewStreamHandler(svc, []string{"http://allowed.example"}).HandleWebSocket).Methods(http.MethodGet)
	return r, svc, sched
}

const triangle = `{
	"nodes": [{"id":"a","x":40,"y":40}, {"id":"b","x":60,"y":40}, {"id":"c","x":50,"y":60}],
	"links": [{"source":"a","target":"b"}, {"source":1,"target":2}, {"source":"c","target":0}],
	"params": {"seed": 5}
}`

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) apierr.ErrorCode {
	t.Helper()
	var resp apierr.ErrorResponse
	decode(t, rr, &resp)
	if resp.Error == nil {
		t.Fatalf("expected an error body, got %q", rr.Body.String())
	}
	return resp.Error.Code
}

func createSimulation(t *testing.T, h http.Handler) layout.Snapshot {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/api/simulations", triangle)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var snap layout.Snapshot
	decode(t, rr, &snap)
	return snap
}

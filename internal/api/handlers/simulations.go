package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/onnwee/forcegraph/internal/apierr"
	"github.com/onnwee/forcegraph/internal/layout"
	"github.com/onnwee/forcegraph/internal/middleware"
)

// SimulationHandler exposes live simulations over REST.
type SimulationHandler struct {
	svc *layout.Service
}

// NewSimulationHandler creates a handler backed by svc.
func NewSimulationHandler(svc *layout.Service) *SimulationHandler {
	return &SimulationHandler{svc: svc}
}

// SimulationList is the body of GET /api/simulations.
type SimulationList struct {
	Simulations []string `json:"simulations"`
	Total       int      `json:"total"`
}

// AlphaRequest is the body of PUT /api/simulations/{id}/alpha.
type AlphaRequest struct {
	Alpha *float64 `json:"alpha"`
}

// List returns the ids of every live simulation.
// GET /api/simulations
func (h *SimulationHandler) List(w http.ResponseWriter, r *http.Request) {
	ids := h.svc.Active()
	writeJSON(w, http.StatusOK, SimulationList{Simulations: ids, Total: len(ids)})
}

// Create starts a simulation for the posted graph.
// POST /api/simulations
func (h *SimulationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req layout.GraphRequest
	if e := middleware.DecodeJSON(r, &req); e != nil {
		apierr.WriteErrorWithContext(w, r, e)
		return
	}
	snap, err := h.svc.Create(r.Context(), &req)
	if err != nil {
		writeLayoutError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/simulations/"+snap.ID)
	writeJSON(w, http.StatusCreated, snap)
}

// Get returns the current snapshot.
// GET /api/simulations/{id}
func (h *SimulationHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)(h.svc.Snapshot(mux.Vars(r)["id"]))
}

// Delete removes a simulation and closes its streams.
// DELETE /api/simulations/{id}
func (h *SimulationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(mux.Vars(r)["id"]); err != nil {
		writeLayoutError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stop cools a simulation so it ends on its next tick.
// POST /api/simulations/{id}/stop
func (h *SimulationHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)(h.svc.Stop(mux.Vars(r)["id"]))
}

// Resume reheats a simulation.
// POST /api/simulations/{id}/resume
func (h *SimulationHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)(h.svc.Resume(mux.Vars(r)["id"]))
}

// SetAlpha sets the temperature directly.
// PUT /api/simulations/{id}/alpha
func (h *SimulationHandler) SetAlpha(w http.ResponseWriter, r *http.Request) {
	var req AlphaRequest
	if e := middleware.DecodeJSON(r, &req); e != nil {
		apierr.WriteErrorWithContext(w, r, e)
		return
	}
	if req.Alpha == nil {
		apierr.WriteErrorWithContext(w, r, apierr.ValidationMissingField("alpha"))
		return
	}
	h.respond(w, r)(h.svc.SetAlpha(mux.Vars(r)["id"], *req.Alpha))
}

// Drag applies a pointer interaction to one node.
// POST /api/simulations/{id}/drag
func (h *SimulationHandler) Drag(w http.ResponseWriter, r *http.Request) {
	var req layout.DragRequest
	if e := middleware.DecodeJSON(r, &req); e != nil {
		apierr.WriteErrorWithContext(w, r, e)
		return
	}
	h.respond(w, r)(h.svc.Drag(mux.Vars(r)["id"], req))
}

func (h *SimulationHandler) respond(w http.ResponseWriter, r *http.Request) func(layout.Snapshot, error) {
	return func(snap layout.Snapshot, err error) {
		if err != nil {
			writeLayoutError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

package handlers

import (
	"net/http"
)

// SimulationLister reports the ids of live simulations.
type SimulationLister interface {
	Active() []string
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version,omitempty"`
	Simulations int    `json:"simulations"`
}

// Health returns a handler reporting liveness, the build version and the
// number of live simulations. svc may be nil.
func Health(version string, svc SimulationLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Status: "ok", Version: version}
		if svc != nil {
			resp.Simulations = len(svc.Active())
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/onnwee/forcegraph/internal/apierr"
	"github.com/onnwee/forcegraph/internal/layout"
	"github.com/onnwee/forcegraph/internal/middleware"
)

// LayoutHandler serves one-shot layout computations.
type LayoutHandler struct {
	svc     *layout.Service
	timeout time.Duration
}

// NewLayoutHandler creates a handler bounding each computation by timeout.
// A non-positive timeout leaves only the request context in charge.
func NewLayoutHandler(svc *layout.Service, timeout time.Duration) *LayoutHandler {
	return &LayoutHandler{svc: svc, timeout: timeout}
}

// Compute runs a graph to rest and returns the final positions.
// POST /api/layout?max_ticks=N
func (h *LayoutHandler) Compute(w http.ResponseWriter, r *http.Request) {
	maxTicks := 0
	if v := r.URL.Query().Get("max_ticks"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidValue("max_ticks", "max_ticks must be a non-negative integer"))
			return
		}
		maxTicks = n
	}

	var req layout.GraphRequest
	if e := middleware.DecodeJSON(r, &req); e != nil {
		apierr.WriteErrorWithContext(w, r, e)
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	res, err := h.svc.Compute(ctx, &req, maxTicks)
	if err != nil {
		writeLayoutError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/onnwee/forcegraph/internal/apierr"
	"github.com/onnwee/forcegraph/internal/layout"
	"github.com/onnwee/forcegraph/internal/logger"
)

// toAPIError maps layout sentinel errors onto structured API errors.
func toAPIError(err error) *apierr.Error {
	switch {
	case errors.Is(err, layout.ErrNotFound):
		return apierr.ResourceNotFound("simulation")
	case errors.Is(err, layout.ErrNodeOutOfRange):
		return apierr.LayoutNodeOutOfRange(err.Error())
	case errors.Is(err, layout.ErrInvalidGraph):
		return apierr.LayoutInvalidGraph(err.Error())
	case errors.Is(err, layout.ErrTooLarge):
		return apierr.LayoutTooLarge(err.Error())
	case errors.Is(err, layout.ErrCapacity):
		return apierr.LayoutCapacity()
	case errors.Is(err, context.DeadlineExceeded):
		return apierr.LayoutTimeout("")
	case errors.Is(err, context.Canceled):
		return apierr.SystemTimeout("Request cancelled")
	default:
		return apierr.LayoutFailed("")
	}
}

func writeLayoutError(w http.ResponseWriter, r *http.Request, err error) {
	e := toAPIError(err)
	if e.Status() >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Layout request failed", "error", err, "path", r.URL.Path)
	}
	apierr.WriteErrorWithContext(w, r, e)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/forcegraph/internal/api/handlers"
	"github.com/onnwee/forcegraph/internal/config"
	"github.com/onnwee/forcegraph/internal/layout"
	"github.com/onnwee/forcegraph/internal/middleware"
)

// Deps are the collaborators the router serves.
type Deps struct {
	Service *layout.Service
	Config  *config.Config
	// RateLimiter is optional; nil disables rate limiting.
	RateLimiter *middleware.RateLimiter
}

// NewRouter returns the routes wrapped in the middleware chain.
func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	r := mux.NewRouter()
	r.Use(middleware.Instrument)

	r.HandleFunc("/health", handlers.Health(cfg.ServiceVersion, d.Service)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	// One-shot layout
	lh := handlers.NewLayoutHandler(d.Service, cfg.LayoutTimeout)
	api.HandleFunc("/layout", lh.Compute).Methods(http.MethodPost)

	// Live simulations
	sh := handlers.NewSimulationHandler(d.Service)
	api.Handle("/simulations", middleware.ETag(http.HandlerFunc(sh.List))).Methods(http.MethodGet)
	api.HandleFunc("/simulations", sh.Create).Methods(http.MethodPost)
	api.Handle("/simulations/{id}", middleware.ETag(http.HandlerFunc(sh.Get))).Methods(http.MethodGet)
	api.HandleFunc("/simulations/{id}", sh.Delete).Methods(http.MethodDelete)
	api.HandleFunc("/simulations/{id}/stop", sh.Stop).Methods(http.MethodPost)
	api.HandleFunc("/simulations/{id}/resume", sh.Resume).Methods(http.MethodPost)
	api.HandleFunc("/simulations/{id}/alpha", sh.SetAlpha).Methods(http.MethodPut)
	api.HandleFunc("/simulations/{id}/drag", sh.Drag).Methods(http.MethodPost)

	// Frame stream
	ws := handlers.NewStreamHandler(d.Service, cfg.CORSAllowedOrigins)
	api.HandleFunc("/simulations/{id}/ws", ws.HandleWebSocket).Methods(http.MethodGet)

	var h http.Handler = r
	h = middleware.LimitBody(cfg.MaxBodyBytes)(h)
	h = middleware.Compress(h)
	if d.RateLimiter != nil {
		h = d.RateLimiter.Limit(h)
	}
	h = middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSAllowedOrigins...))(h)
	h = middleware.SecurityHeaders(h)
	h = middleware.RecoverWithSentry(h)
	h = middleware.RequestID(h)
	return h
}

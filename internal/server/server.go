package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/onnwee/forcegraph/internal/api"
	"github.com/onnwee/forcegraph/internal/cache"
	"github.com/onnwee/forcegraph/internal/config"
	"github.com/onnwee/forcegraph/internal/layout"
	"github.com/onnwee/forcegraph/internal/logger"
	"github.com/onnwee/forcegraph/internal/metrics"
	"github.com/onnwee/forcegraph/internal/middleware"
	"github.com/onnwee/forcegraph/internal/scheduler"
)

// Server owns the frame scheduler, the simulation registry and the HTTP
// front end, along with the background loops that maintain them.
type Server struct {
	cfg       *config.Config
	sched     *scheduler.Scheduler
	service   *layout.Service
	janitor   *layout.Janitor
	collector *metrics.Collector
	limiter   *middleware.RateLimiter
	http      *http.Server
}

// New wires a server from cfg. c caches one-shot layouts and may be nil.
func New(cfg *config.Config, c cache.Cache) *Server {
	sched := scheduler.New(scheduler.WithInterval(cfg.FrameInterval))
	if c != nil {
		c = cache.WithMetrics(c, "layout")
	}
	svc := layout.NewService(sched, c, layout.OptionsFromConfig(cfg))

	var limiter *middleware.RateLimiter
	if cfg.EnableRateLimit {
		limiter = middleware.NewRateLimiter(cfg.RateLimitGlobal, cfg.RateLimitGlobalBurst,
			cfg.RateLimitPerIP, cfg.RateLimitPerIPBurst)
	}

	s := &Server{
		cfg:       cfg,
		sched:     sched,
		service:   svc,
		janitor:   layout.NewJanitor(svc, cfg.SimulationIdleTTL, cfg.JanitorInterval),
		collector: metrics.NewCollector(svc, cfg.MetricsInterval),
		limiter:   limiter,
	}
	s.http = &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           api.NewRouter(api.Deps{Service: svc, Config: cfg, RateLimiter: limiter}),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Service returns the simulation registry.
func (s *Server) Service() *layout.Service { return s.service }

// Handler returns the HTTP handler with the full middleware chain.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ServerAddr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then drains connections for up to
// the configured shutdown timeout and stops the background loops.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	bg, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	loops := []func(context.Context){s.sched.Start, s.collector.Start}
	if s.cfg.SimulationIdleTTL > 0 {
		loops = append(loops, s.janitor.Start)
	}
	for _, loop := range loops {
		wg.Add(1)
		go func(run func(context.Context)) {
			defer wg.Done()
			run(bg)
		}(loop)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", ln.Addr().String())
		errCh <- s.http.Serve(ln)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer done()
	logger.Info("Shutting down HTTP server", "timeout", s.cfg.ShutdownTimeout)
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
		if serveErr == nil {
			serveErr = err
		}
	}

	cancel()
	wg.Wait()
	if s.limiter != nil {
		s.limiter.Stop()
	}
	for _, id := range s.service.Active() {
		_ = s.service.Delete(id)
	}

	if errors.Is(serveErr, http.ErrServerClosed) {
		return nil
	}
	return serveErr
}

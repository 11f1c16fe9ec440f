package layout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/onnwee/forcegraph/internal/cache"
	"github.com/onnwee/forcegraph/internal/config"
	"github.com/onnwee/forcegraph/internal/errorreporting"
	"github.com/onnwee/forcegraph/internal/force"
	"github.com/onnwee/forcegraph/internal/logger"
	"github.com/onnwee/forcegraph/internal/metrics"
	"github.com/onnwee/forcegraph/internal/scheduler"
	"github.com/onnwee/forcegraph/internal/tracing"
)

// ctxCheckEvery is how many ticks run between context checks.
const ctxCheckEvery = 32

// Compute lays out req synchronously on the service's limits and cache.
// maxTicks <= 0 uses the configured cap, and larger values are clamped to it.
func (s *Service) Compute(ctx context.Context, req *GraphRequest, maxTicks int) (*Result, error) {
	if maxTicks <= 0 || (s.opts.MaxTicks > 0 && maxTicks > s.opts.MaxTicks) {
		maxTicks = s.opts.MaxTicks
	}
	return Compute(ctx, req, ComputeOptions{
		Defaults: s.opts.Defaults,
		Limits:   s.opts.Limits,
		MaxTicks: maxTicks,
		Cache:    s.cache,
	})
}

// ComputeOptions configures a standalone layout run.
type ComputeOptions struct {
	Defaults config.LayoutParams
	Limits   Limits
	// MaxTicks bounds the run; zero runs until the simulation cools.
	MaxTicks int
	Cache    cache.Cache
}

// Compute runs a simulation for req on a private scheduler until it cools or
// MaxTicks ticks have run, and returns the final positions. Results are cached
// by a digest of the request when a cache is configured.
func Compute(ctx context.Context, req *GraphRequest, opts ComputeOptions) (*Result, error) {
	ctx, span := tracing.StartSpan(ctx, "layout.Compute",
		tracing.GraphAttributes(len(req.Nodes), len(req.Links), opts.Defaults.Theta))
	defer span.End()

	key := ""
	if opts.Cache != nil {
		if k, err := requestKey(req, opts.MaxTicks); err == nil {
			key = k
			if data, ok := opts.Cache.Get(key); ok {
				var res Result
				if err := json.Unmarshal(data, &res); err == nil {
					span.SetAttributes(attribute.Bool("cache.hit", true))
					return &res, nil
				}
				opts.Cache.Delete(key)
			}
		}
	}

	start := time.Now()
	res, err := run(ctx, req, opts)
	if err != nil {
		metrics.LayoutComputeErrors.Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "layout failed")
		if !errors.Is(err, ErrInvalidGraph) && !errors.Is(err, ErrNodeOutOfRange) &&
			!errors.Is(err, ErrTooLarge) && !errors.Is(err, context.Canceled) &&
			!errors.Is(err, context.DeadlineExceeded) {
			errorreporting.CaptureErrorWithContext(err,
				map[string]string{"component": "layout", "operation": "compute"},
				map[string]interface{}{"nodes": len(req.Nodes), "links": len(req.Links)})
		}
		return nil, err
	}
	metrics.LayoutComputeDuration.Observe(time.Since(start).Seconds())
	metrics.LayoutComputeTicks.Observe(float64(res.Ticks))
	span.SetAttributes(attribute.Int("layout.ticks", res.Ticks), attribute.Bool("layout.converged", res.Converged))

	logger.FromContext(ctx).Debug("Layout computed",
		"nodes", len(res.Nodes),
		"ticks", res.Ticks,
		"converged", res.Converged,
		"duration", time.Since(start))

	if key != "" {
		if data, err := json.Marshal(res); err == nil {
			opts.Cache.Set(key, data, 0)
		}
	}
	return res, nil
}

func run(ctx context.Context, req *GraphRequest, opts ComputeOptions) (*Result, error) {
	sched := scheduler.New()
	g, err := Build(sched, req, opts.Defaults, opts.Limits)
	if err != nil {
		return nil, err
	}

	ticks := 0
	g.Sim.On(force.EventTick, func(force.Event) { ticks++ })
	g.Sim.Start()
	if g.Params.Alpha != force.ResumeAlpha {
		g.Sim.SetAlpha(g.Params.Alpha)
	}

	for g.Sim.Running() {
		if opts.MaxTicks > 0 && ticks >= opts.MaxTicks {
			break
		}
		if ticks%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				g.Sim.Detach()
				return nil, fmt.Errorf("layout interrupted after %d ticks: %w", ticks, err)
			}
		}
		sched.Advance()
	}
	converged := !g.Sim.Running()
	g.Sim.Detach()

	return &Result{
		Ticks:     ticks,
		Converged: converged,
		Params:    g.Params,
		Nodes:     positions(g.Nodes),
	}, nil
}

// requestKey digests the request as re-encoded JSON so equivalent bodies
// share an entry.
func requestKey(req *GraphRequest, maxTicks int) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	data = append(data, '#')
	data = strconv.AppendInt(data, int64(maxTicks), 10)
	return cache.Key("layout", data), nil
}

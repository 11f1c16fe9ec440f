// Package layout hosts force simulations behind a registry keyed by ID and
// computes one-shot layouts for the HTTP API and the precalculate command.
package layout

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
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

// Options configures a Service.
type Options struct {
	Defaults       config.LayoutParams
	Limits         Limits
	MaxSimulations int
	// StreamEvery sends one tick frame to subscribers every N ticks.
	StreamEvery int
	// BufferSize is the per-subscriber frame buffer.
	BufferSize int
	// MaxTicks caps synchronous layouts that do not set their own cap.
	MaxTicks int
}

// OptionsFromConfig maps the server configuration onto service options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Defaults:       cfg.Layout,
		Limits:         Limits{MaxNodes: cfg.LayoutMaxNodes, MaxLinks: cfg.LayoutMaxLinks},
		MaxSimulations: cfg.MaxSimulations,
		StreamEvery:    cfg.StreamEveryNTicks,
		BufferSize:     cfg.StreamBufferSize,
		MaxTicks:       cfg.LayoutMaxTicks,
	}
}

type subscriber struct {
	id int
	ch chan Frame
}

// session is one hosted simulation. Every field is owned by the scheduler
// loop and only touched from tick callbacks or inside sched.Do.
type session struct {
	id         string
	graph      *Graph
	drag       *force.Drag
	ticks      int
	lastActive time.Time
	subs       []subscriber
	nextSub    int
}

func (s *session) snapshot() Snapshot {
	return Snapshot{
		ID:      s.id,
		Alpha:   s.graph.Sim.Alpha(),
		Running: s.graph.Sim.Running(),
		Ticks:   s.ticks,
		Nodes:   positions(s.graph.Nodes),
	}
}

func (s *session) broadcast(kind string) {
	if len(s.subs) == 0 {
		return
	}
	f := Frame{Type: kind, Payload: s.snapshot()}
	for _, sub := range s.subs {
		select {
		case sub.ch <- f:
		default:
			metrics.WebSocketMessagesDropped.Inc()
		}
	}
}

func (s *session) closeSubscribers() {
	for _, sub := range s.subs {
		close(sub.ch)
	}
	s.subs = nil
}

// Service is the simulation registry. All simulations share one scheduler.
type Service struct {
	sched *scheduler.Scheduler
	cache cache.Cache
	opts  Options
	now   func() time.Time

	mu   sync.RWMutex
	sims map[string]*session
	// reserved counts Creates that passed the capacity check but are not
	// registered yet.
	reserved int
}

// NewService creates a registry ticking on sched. c may be nil to disable
// result caching for Compute.
func NewService(sched *scheduler.Scheduler, c cache.Cache, opts Options) *Service {
	if opts.StreamEvery <= 0 {
		opts.StreamEvery = 1
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 16
	}
	return &Service{
		sched: sched,
		cache: c,
		opts:  opts,
		now:   time.Now,
		sims:  make(map[string]*session),
	}
}

// Defaults returns the parameters applied to requests that leave them unset.
func (s *Service) Defaults() config.LayoutParams { return s.opts.Defaults }

func (s *Service) lookup(id string) (*session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sims[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return sess, nil
}

// Create builds a simulation from req, starts it and returns its first
// snapshot.
func (s *Service) Create(ctx context.Context, req *GraphRequest) (Snapshot, error) {
	ctx, span := tracing.StartSpan(ctx, "layout.Create",
		tracing.GraphAttributes(len(req.Nodes), len(req.Links), s.opts.Defaults.Theta))
	defer span.End()

	if err := s.reserve(); err != nil {
		span.SetStatus(codes.Error, "capacity")
		return Snapshot{}, err
	}

	g, err := Build(s.sched, req, s.opts.Defaults, s.opts.Limits)
	if err != nil {
		s.mu.Lock()
		s.reserved--
		s.mu.Unlock()
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid graph")
		return Snapshot{}, err
	}

	sess := &session{
		id:    uuid.NewString(),
		graph: g,
		drag:  force.NewDrag(g.Sim),
	}
	span.SetAttributes(tracing.SimulationAttribute(sess.id))
	s.observe(sess)

	var snap Snapshot
	s.sched.Do(func() {
		sess.lastActive = s.now()
		g.Sim.Start()
		if g.Params.Alpha != force.ResumeAlpha {
			g.Sim.SetAlpha(g.Params.Alpha)
		}
		snap = sess.snapshot()
	})

	s.mu.Lock()
	s.reserved--
	s.sims[sess.id] = sess
	s.mu.Unlock()

	logger.FromContext(ctx).Info("Simulation created",
		"simulation_id", sess.id,
		"nodes", len(g.Nodes),
		"links", len(g.Links))
	errorreporting.AddBreadcrumb("layout", "simulation created")
	return snap, nil
}

// reserve claims a registry slot for a Create in progress.
func (s *Service) reserve() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.sims) + s.reserved
	if s.opts.MaxSimulations > 0 && n >= s.opts.MaxSimulations {
		return fmt.Errorf("%w: %d simulations", ErrCapacity, n)
	}
	s.reserved++
	return nil
}

// observe wires lifecycle events to metrics and subscribers.
func (s *Service) observe(sess *session) {
	sim := sess.graph.Sim
	sim.On(force.EventStart, func(force.Event) {
		metrics.SimulationEventsTotal.WithLabelValues(string(force.EventStart)).Inc()
		sess.broadcast(string(force.EventStart))
	})
	sim.On(force.EventTick, func(force.Event) {
		sess.ticks++
		metrics.SimulationTicksTotal.Inc()
		if sess.ticks%s.opts.StreamEvery == 0 {
			sess.broadcast(string(force.EventTick))
		}
	})
	sim.On(force.EventEnd, func(force.Event) {
		metrics.SimulationEventsTotal.WithLabelValues(string(force.EventEnd)).Inc()
		sess.broadcast(string(force.EventEnd))
		logger.WithSimulation("layout", sess.id).Debug("Simulation cooled", "ticks", sess.ticks)
	})
}

// with runs fn against the session between frames.
func (s *Service) with(id string, fn func(*session) error) (Snapshot, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	s.sched.Do(func() {
		if err = fn(sess); err != nil {
			return
		}
		snap = sess.snapshot()
	})
	return snap, err
}

// Snapshot returns the current positions of a simulation.
func (s *Service) Snapshot(id string) (Snapshot, error) {
	return s.with(id, func(*session) error { return nil })
}

// Stop cools the simulation; it ends on its next tick.
func (s *Service) Stop(id string) (Snapshot, error) {
	return s.with(id, func(sess *session) error {
		sess.lastActive = s.now()
		sess.graph.Sim.Stop()
		return nil
	})
}

// Resume reheats the simulation.
func (s *Service) Resume(id string) (Snapshot, error) {
	return s.with(id, func(sess *session) error {
		sess.lastActive = s.now()
		sess.graph.Sim.Resume()
		return nil
	})
}

// SetAlpha sets the simulation temperature.
func (s *Service) SetAlpha(id string, alpha float64) (Snapshot, error) {
	if math.IsNaN(alpha) || math.IsInf(alpha, 0) || alpha < 0 {
		return Snapshot{}, fmt.Errorf("%w: alpha must be a non-negative number", ErrInvalidGraph)
	}
	return s.with(id, func(sess *session) error {
		sess.lastActive = s.now()
		sess.graph.Sim.SetAlpha(alpha)
		return nil
	})
}

// Drag applies one pointer interaction.
func (s *Service) Drag(id string, req DragRequest) (Snapshot, error) {
	if req.Phase != DragEnd && (math.IsNaN(req.X) || math.IsInf(req.X, 0) || math.IsNaN(req.Y) || math.IsInf(req.Y, 0)) {
		return Snapshot{}, fmt.Errorf("%w: drag position must be finite", ErrInvalidGraph)
	}
	return s.with(id, func(sess *session) error {
		sess.lastActive = s.now()
		switch req.Phase {
		case DragStart:
			if req.Node < 0 || req.Node >= len(sess.graph.Nodes) {
				return fmt.Errorf("%w: drag references node %d", ErrNodeOutOfRange, req.Node)
			}
			sess.drag.Start(sess.graph.Nodes[req.Node])
			sess.drag.Move(req.X, req.Y)
		case DragMove:
			if sess.drag.Node() == nil {
				return fmt.Errorf("%w: no drag in progress", ErrInvalidGraph)
			}
			sess.drag.Move(req.X, req.Y)
		case DragEnd:
			sess.drag.End()
		default:
			return fmt.Errorf("%w: unknown drag phase %q", ErrInvalidGraph, req.Phase)
		}
		return nil
	})
}

// Delete cancels the simulation and closes its subscribers.
func (s *Service) Delete(id string) error {
	s.mu.Lock()
	sess, ok := s.sims[id]
	delete(s.sims, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.sched.Do(func() {
		sess.graph.Sim.Detach()
		sess.closeSubscribers()
	})
	logger.WithSimulation("layout", id).Info("Simulation deleted")
	return nil
}

// Subscribe returns a channel of frames for the simulation, primed with a
// "snapshot" frame, and a function that unsubscribes. The channel is closed
// when the subscription or the simulation goes away. Frames are dropped
// rather than blocking the scheduler when the buffer is full.
func (s *Service) Subscribe(id string) (<-chan Frame, func(), error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, nil, err
	}
	ch := make(chan Frame, s.opts.BufferSize)
	var subID int
	s.sched.Do(func() {
		sess.lastActive = s.now()
		sess.nextSub++
		subID = sess.nextSub
		sess.subs = append(sess.subs, subscriber{id: subID, ch: ch})
		ch <- Frame{Type: "snapshot", Payload: sess.snapshot()}
	})
	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			s.sched.Do(func() {
				for i, sub := range sess.subs {
					if sub.id == subID {
						close(sub.ch)
						sess.subs = append(sess.subs[:i], sess.subs[i+1:]...)
						return
					}
				}
			})
		})
	}
	return ch, unsubscribe, nil
}

// Active returns the IDs of all hosted simulations in sorted order.
func (s *Service) Active() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.sims))
	for id := range s.sims {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Totals summarizes the registry for the metrics collector.
func (s *Service) Totals(ctx context.Context) (metrics.Totals, error) {
	if err := ctx.Err(); err != nil {
		return metrics.Totals{}, err
	}
	s.mu.RLock()
	sessions := make([]*session, 0, len(s.sims))
	for _, sess := range s.sims {
		sessions = append(sessions, sess)
	}
	s.mu.RUnlock()

	t := metrics.Totals{Simulations: len(sessions)}
	s.sched.Do(func() {
		for _, sess := range sessions {
			if sess.graph.Sim.Running() {
				t.Running++
			}
			t.Nodes += len(sess.graph.Nodes)
			t.Links += len(sess.graph.Links)
		}
	})
	if s.cache != nil {
		cache.ReportStats(s.cache, "layout")
	}
	return t, nil
}

// Evict deletes simulations with no subscribers that have not been touched
// for longer than ttl, and returns how many were removed.
func (s *Service) Evict(ttl time.Duration) int {
	cutoff := s.now().Add(-ttl)
	s.mu.RLock()
	sessions := make([]*session, 0, len(s.sims))
	for _, sess := range s.sims {
		sessions = append(sessions, sess)
	}
	s.mu.RUnlock()

	var idle []string
	s.sched.Do(func() {
		for _, sess := range sessions {
			if len(sess.subs) == 0 && sess.lastActive.Before(cutoff) {
				idle = append(idle, sess.id)
			}
		}
	})

	removed := 0
	for _, id := range idle {
		if err := s.Delete(id); err == nil {
			removed++
			metrics.SimulationsEvicted.Inc()
		}
	}
	return removed
}

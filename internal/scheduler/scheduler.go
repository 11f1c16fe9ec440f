// Package scheduler provides the frame timer that drives simulations. It is a
// single cooperative loop: every frame runs each registered callback once, in
// registration order, and drops the callbacks that report they are done.
package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/onnwee/forcegraph/internal/errorreporting"
	"github.com/onnwee/forcegraph/internal/logger"
	"github.com/onnwee/forcegraph/internal/metrics"
)

// DefaultInterval is roughly one display frame at 60Hz.
const DefaultInterval = 16 * time.Millisecond

// Callback is invoked once per frame with the time elapsed since it was
// registered. Returning true deregisters it.
type Callback func(elapsed time.Duration) bool

// Handle identifies a registered callback.
type Handle uint64

type timer struct {
	id      Handle
	cb      Callback
	started time.Time
	done    bool
}

// Scheduler owns an ordered queue of timer callbacks.
type Scheduler struct {
	// loop serializes frames with Do so callers never observe a half-run tick.
	loop sync.Mutex

	mu    sync.Mutex
	queue []*timer
	next  Handle

	now      func() time.Time
	interval time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the time source, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// WithInterval sets the wall-clock frame interval used by Start.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// New creates a scheduler with an empty queue.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		now:      time.Now,
		interval: DefaultInterval,
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register appends cb to the queue. Callbacks registered while a frame is
// running first run on the following frame.
func (s *Scheduler) Register(cb Callback) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.queue = append(s.queue, &timer{id: s.next, cb: cb, started: s.now()})
	metrics.SchedulerCallbacksPending.Inc()
	return s.next
}

// Cancel deregisters the callback behind h. It reports whether h was still
// registered.
func (s *Scheduler) Cancel(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.queue {
		if t.id == h && !t.done {
			s.retire(t)
			return true
		}
	}
	return false
}

// retire marks t done. The queue slot is reclaimed by the next Advance.
// Callers hold s.mu.
func (s *Scheduler) retire(t *timer) {
	if t.done {
		return
	}
	t.done = true
	metrics.SchedulerCallbacksPending.Dec()
}

// Pending returns the number of live callbacks.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.queue {
		if !t.done {
			n++
		}
	}
	return n
}

// Advance runs one frame and returns the number of callbacks still
// registered afterwards.
func (s *Scheduler) Advance() int {
	s.loop.Lock()
	defer s.loop.Unlock()

	start := s.now()

	s.mu.Lock()
	frame := make([]*timer, len(s.queue))
	copy(frame, s.queue)
	s.mu.Unlock()

	for _, t := range frame {
		s.mu.Lock()
		done := t.done
		s.mu.Unlock()
		if done {
			continue
		}

		if s.invoke(t, start.Sub(t.started)) {
			s.mu.Lock()
			s.retire(t)
			s.mu.Unlock()
		}
	}

	s.mu.Lock()
	live := s.queue[:0]
	for _, t := range s.queue {
		if !t.done {
			live = append(live, t)
		}
	}
	for i := len(live); i < len(s.queue); i++ {
		s.queue[i] = nil
	}
	s.queue = live
	remaining := len(live)
	s.mu.Unlock()

	metrics.SchedulerFramesTotal.Inc()
	metrics.SchedulerFrameDuration.Observe(s.now().Sub(start).Seconds())
	return remaining
}

// invoke runs a callback, converting a panic into cancellation.
func (s *Scheduler) invoke(t *timer, elapsed time.Duration) (done bool) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("timer callback %d panicked: %v", t.id, r)
			logger.WithComponent("scheduler").Error("Timer callback panicked",
				"handle", t.id,
				"error", err,
				"stack", string(debug.Stack()))
			metrics.SchedulerCallbackPanics.Inc()
			errorreporting.CaptureErrorWithContext(err,
				map[string]string{"component": "scheduler"},
				map[string]interface{}{"handle": uint64(t.id)})
			done = true
		}
	}()
	return t.cb(elapsed)
}

// Do runs fn between frames. It must not be called from inside a callback.
func (s *Scheduler) Do(fn func()) {
	s.loop.Lock()
	defer s.loop.Unlock()
	fn()
}

// Flush advances frames until the queue drains or maxFrames have run, and
// returns the number of frames advanced.
func (s *Scheduler) Flush(maxFrames int) int {
	n := 0
	for n < maxFrames {
		n++
		if s.Advance() == 0 {
			break
		}
	}
	return n
}

// Start drives Advance from a wall-clock ticker until ctx is done or Stop is
// called.
func (s *Scheduler) Start(ctx context.Context) {
	log := logger.WithComponent("scheduler")
	log.Info("Starting frame scheduler", "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Frame scheduler stopped by context")
			return
		case <-s.stop:
			log.Info("Frame scheduler stopped by signal")
			return
		case <-ticker.C:
			s.Advance()
		}
	}
}

// Stop ends the Start loop. It is safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
}

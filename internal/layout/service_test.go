package layout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/onnwee/forcegraph/internal/config"
	"github.com/onnwee/forcegraph/internal/metrics"
	"github.com/onnwee/forcegraph/internal/scheduler"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var pb dto.Metric
	if err := c.Write(&pb); err != nil {
		t.Fatalf("read metric: %v", err)
	}
	return pb.Counter.GetValue()
}

func pairRequest() *GraphRequest {
	return &GraphRequest{
		Nodes: []NodeSpec{
			{ID: "a", X: f(40), Y: f(50)},
			{ID: "b", X: f(60), Y: f(50)},
		},
		Links:  []LinkSpec{{Source: IDEndpoint("a"), Target: IDEndpoint("b")}},
		Params: Params{Seed: 1},
	}
}

func newTestService(opts Options) (*Service, *scheduler.Scheduler) {
	if opts.Defaults == (config.LayoutParams{}) {
		opts.Defaults = testDefaults()
	}
	sched := scheduler.New()
	return NewService(sched, nil, opts), sched
}

func TestServiceLifecycle(t *testing.T) {
	svc, sched := newTestService(Options{})
	ctx := context.Background()

	snap, err := svc.Create(ctx, pairRequest())
	if err != nil {
		t.Fatal(err)
	}
	if snap.ID == "" || !snap.Running || snap.Alpha != 0.1 || len(snap.Nodes) != 2 {
		t.Fatalf("unexpected initial snapshot %+v", snap)
	}
	if ids := svc.Active(); len(ids) != 1 || ids[0] != snap.ID {
		t.Fatalf("Active() = %v", ids)
	}

	sched.Advance()
	got, err := svc.Snapshot(snap.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Ticks != 1 || got.Alpha >= snap.Alpha {
		t.Errorf("one frame should tick once and cool, got %+v", got)
	}

	if _, err := svc.Stop(snap.ID); err != nil {
		t.Fatal(err)
	}
	sched.Advance()
	got, _ = svc.Snapshot(snap.ID)
	if got.Running || got.Alpha != 0 {
		t.Errorf("stopped simulation should end on the next frame, got %+v", got)
	}

	got, err = svc.Resume(snap.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Running || got.Alpha != 0.1 {
		t.Errorf("resume should reheat, got %+v", got)
	}

	got, err = svc.SetAlpha(snap.ID, 0.05)
	if err != nil || got.Alpha != 0.05 {
		t.Errorf("SetAlpha: %+v %v", got, err)
	}
	if _, err := svc.SetAlpha(snap.ID, -1); !errors.Is(err, ErrInvalidGraph) {
		t.Errorf("negative alpha should be rejected, got %v", err)
	}

	if err := svc.Delete(snap.ID); err != nil {
		t.Fatal(err)
	}
	if sched.Pending() != 0 {
		t.Errorf("delete should cancel the tick, %d pending", sched.Pending())
	}
	if _, err := svc.Snapshot(snap.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := svc.Delete(snap.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete should fail, got %v", err)
	}
}

func TestServiceCreateAppliesAlpha(t *testing.T) {
	svc, _ := newTestService(Options{})
	req := pairRequest()
	req.Params.Alpha = f(0.5)
	snap, err := svc.Create(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Alpha != 0.5 {
		t.Errorf("alpha = %f, want 0.5", snap.Alpha)
	}
}

func TestServiceCapacity(t *testing.T) {
	svc, _ := newTestService(Options{MaxSimulations: 1})
	ctx := context.Background()
	if _, err := svc.Create(ctx, pairRequest()); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Create(ctx, pairRequest()); !errors.Is(err, ErrCapacity) {
		t.Errorf("expected ErrCapacity, got %v", err)
	}
}

func TestServiceCapacityConcurrentCreates(t *testing.T) {
	const limit, callers = 3, 16
	svc, _ := newTestService(Options{MaxSimulations: limit})

	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(context.Background(), pairRequest())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	created, rejected := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			created++
		case errors.Is(err, ErrCapacity):
			rejected++
		default:
			t.Errorf("unexpected error %v", err)
		}
	}
	if created != limit || rejected != callers-limit {
		t.Errorf("created=%d rejected=%d, want %d and %d", created, rejected, limit, callers-limit)
	}
	if n := len(svc.Active()); n != limit {
		t.Errorf("expected %d registered simulations, got %d", limit, n)
	}
}

func TestServiceRejectedGraphFreesSlot(t *testing.T) {
	svc, _ := newTestService(Options{MaxSimulations: 1})
	bad := &GraphRequest{Nodes: []NodeSpec{{ID: "x"}, {ID: "x"}}}
	if _, err := svc.Create(context.Background(), bad); !errors.Is(err, ErrInvalidGraph) {
		t.Fatalf("expected ErrInvalidGraph, got %v", err)
	}
	if _, err := svc.Create(context.Background(), pairRequest()); err != nil {
		t.Errorf("the slot should be free again, got %v", err)
	}
}

func TestServiceCreateInvalid(t *testing.T) {
	svc, sched := newTestService(Options{})
	req := &GraphRequest{Links: []LinkSpec{{Source: IndexEndpoint(0), Target: IndexEndpoint(0)}}}
	if _, err := svc.Create(context.Background(), req); !errors.Is(err, ErrNodeOutOfRange) {
		t.Errorf("expected ErrNodeOutOfRange, got %v", err)
	}
	if len(svc.Active()) != 0 || sched.Pending() != 0 {
		t.Error("a rejected graph must not be registered")
	}
}

func TestServiceDrag(t *testing.T) {
	svc, sched := newTestService(Options{})
	snap, err := svc.Create(context.Background(), pairRequest())
	if err != nil {
		t.Fatal(err)
	}
	id := snap.ID

	if _, err := svc.Drag(id, DragRequest{Phase: DragMove, X: 1, Y: 1}); !errors.Is(err, ErrInvalidGraph) {
		t.Errorf("move without start should fail, got %v", err)
	}
	if _, err := svc.Drag(id, DragRequest{Phase: DragStart, Node: 5}); !errors.Is(err, ErrNodeOutOfRange) {
		t.Errorf("expected ErrNodeOutOfRange, got %v", err)
	}
	if _, err := svc.Drag(id, DragRequest{Phase: "fling"}); !errors.Is(err, ErrInvalidGraph) {
		t.Errorf("unknown phase should fail, got %v", err)
	}

	got, err := svc.Drag(id, DragRequest{Phase: DragStart, Node: 0, X: 10, Y: 20})
	if err != nil {
		t.Fatal(err)
	}
	if !got.Nodes[0].Fixed {
		t.Error("dragged node should be reported fixed")
	}
	sched.Advance()
	got, _ = svc.Snapshot(id)
	if got.Nodes[0].X != 10 || got.Nodes[0].Y != 20 {
		t.Errorf("dragged node should sit under the pointer, got (%f,%f)", got.Nodes[0].X, got.Nodes[0].Y)
	}

	if _, err := svc.Drag(id, DragRequest{Phase: DragMove, X: 30, Y: 30}); err != nil {
		t.Fatal(err)
	}
	sched.Advance()
	got, _ = svc.Snapshot(id)
	if got.Nodes[0].X != 30 || got.Nodes[0].Y != 30 {
		t.Errorf("move should follow the pointer, got (%f,%f)", got.Nodes[0].X, got.Nodes[0].Y)
	}

	got, err = svc.Drag(id, DragRequest{Phase: DragEnd})
	if err != nil {
		t.Fatal(err)
	}
	if got.Nodes[0].Fixed {
		t.Error("end should release the node")
	}
}

func TestServiceSubscribe(t *testing.T) {
	svc, sched := newTestService(Options{})
	snap, err := svc.Create(context.Background(), pairRequest())
	if err != nil {
		t.Fatal(err)
	}

	frames, unsubscribe, err := svc.Subscribe(snap.ID)
	if err != nil {
		t.Fatal(err)
	}
	first := <-frames
	if first.Type != "snapshot" || first.Payload.ID != snap.ID {
		t.Fatalf("expected a priming snapshot frame, got %+v", first)
	}

	sched.Advance()
	tick := <-frames
	if tick.Type != "tick" || tick.Payload.Ticks != 1 {
		t.Errorf("expected tick frame 1, got %+v", tick)
	}

	unsubscribe()
	unsubscribe()
	if _, ok := <-frames; ok {
		t.Error("channel should be closed after unsubscribe")
	}
	sched.Advance()

	if _, _, err := svc.Subscribe("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestServiceSubscribeStreamEvery(t *testing.T) {
	svc, sched := newTestService(Options{StreamEvery: 3, BufferSize: 8})
	snap, _ := svc.Create(context.Background(), pairRequest())
	frames, unsubscribe, _ := svc.Subscribe(snap.ID)
	defer unsubscribe()
	<-frames

	for i := 0; i < 6; i++ {
		sched.Advance()
	}
	if n := len(frames); n != 2 {
		t.Errorf("expected 2 tick frames after 6 ticks, got %d", n)
	}
}

func TestServiceSubscriberEndFrame(t *testing.T) {
	svc, sched := newTestService(Options{StreamEvery: 1000, BufferSize: 4})
	snap, _ := svc.Create(context.Background(), pairRequest())
	frames, unsubscribe, _ := svc.Subscribe(snap.ID)
	defer unsubscribe()
	<-frames

	svc.Stop(snap.ID)
	sched.Advance()
	end := <-frames
	if end.Type != "end" || end.Payload.Running {
		t.Errorf("expected end frame, got %+v", end)
	}
}

func TestServiceSlowSubscriberDoesNotBlock(t *testing.T) {
	svc, sched := newTestService(Options{BufferSize: 1})
	snap, _ := svc.Create(context.Background(), pairRequest())
	frames, unsubscribe, _ := svc.Subscribe(snap.ID)
	defer unsubscribe()

	before := counterValue(t, metrics.WebSocketMessagesDropped)
	for i := 0; i < 5; i++ {
		sched.Advance()
	}
	if dropped := counterValue(t, metrics.WebSocketMessagesDropped) - before; dropped != 5 {
		t.Errorf("expected 5 dropped frames, got %f", dropped)
	}
	if f := <-frames; f.Type != "snapshot" {
		t.Errorf("buffered frame should be the priming snapshot, got %s", f.Type)
	}
}

func TestServiceDeleteClosesSubscribers(t *testing.T) {
	svc, _ := newTestService(Options{})
	snap, _ := svc.Create(context.Background(), pairRequest())
	frames, unsubscribe, _ := svc.Subscribe(snap.ID)
	<-frames

	if err := svc.Delete(snap.ID); err != nil {
		t.Fatal(err)
	}
	if _, ok := <-frames; ok {
		t.Error("delete should close subscriber channels")
	}
	unsubscribe()
}

func TestServiceTotals(t *testing.T) {
	svc, sched := newTestService(Options{})
	ctx := context.Background()
	a, _ := svc.Create(ctx, pairRequest())
	if _, err := svc.Create(ctx, pairRequest()); err != nil {
		t.Fatal(err)
	}
	svc.Stop(a.ID)
	sched.Advance()

	got, err := svc.Totals(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := metrics.Totals{Simulations: 2, Running: 1, Nodes: 4, Links: 2}
	if got != want {
		t.Errorf("Totals() = %+v, want %+v", got, want)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := svc.Totals(cancelled); err == nil {
		t.Error("expected an error for a cancelled context")
	}
}

func TestServiceEvict(t *testing.T) {
	svc, _ := newTestService(Options{})
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	ctx := context.Background()

	idle, _ := svc.Create(ctx, pairRequest())
	watched, _ := svc.Create(ctx, pairRequest())
	frames, unsubscribe, _ := svc.Subscribe(watched.ID)
	defer unsubscribe()
	<-frames

	now = now.Add(30 * time.Minute)
	fresh, _ := svc.Create(ctx, pairRequest())

	before := counterValue(t, metrics.SimulationsEvicted)
	if n := svc.Evict(15 * time.Minute); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if counterValue(t, metrics.SimulationsEvicted)-before != 1 {
		t.Error("eviction should be counted")
	}
	if _, err := svc.Snapshot(idle.ID); !errors.Is(err, ErrNotFound) {
		t.Error("idle simulation should be gone")
	}
	for _, id := range []string{watched.ID, fresh.ID} {
		if _, err := svc.Snapshot(id); err != nil {
			t.Errorf("simulation %s should survive: %v", id, err)
		}
	}
}

func TestJanitorStopsWithContext(t *testing.T) {
	svc, _ := newTestService(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewJanitor(svc, time.Minute, time.Millisecond).Start(ctx)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}

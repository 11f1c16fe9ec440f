package metrics

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/client_golang/prometheus"
)

type fakeSource struct {
	totals Totals
	err    error
	calls  atomic.Int32
}

func (f *fakeSource) Totals(ctx context.Context) (Totals, error) {
	f.calls.Add(1)
	return f.totals, f.err
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var pb dto.Metric
	if err := g.Write(&pb); err != nil {
		t.Fatalf("read gauge: %v", err)
	}
	return pb.Gauge.GetValue()
}

func TestCollectorCollect(t *testing.T) {
	src := &fakeSource{totals: Totals{Simulations: 3, Running: 2, Nodes: 120, Links: 300}}
	c := NewCollector(src, time.Minute)
	c.Collect(context.Background())

	tests := []struct {
		name  string
		gauge prometheus.Gauge
		want  float64
	}{
		{"active", SimulationsActive, 3},
		{"running", SimulationsRunning, 2},
		{"nodes", SimulationNodesTotal, 120},
		{"links", SimulationLinksTotal, 300},
	}
	for _, tt := range tests {
		if got := gaugeValue(t, tt.gauge); got != tt.want {
			t.Errorf("%s gauge = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestCollectorError(t *testing.T) {
	src := &fakeSource{err: errors.New("registry unavailable")}
	c := NewCollector(src, time.Minute)
	c.Collect(context.Background())

	if got := gaugeValue(t, SimulationsActive); got != -1 {
		t.Errorf("expected stale marker -1, got %v", got)
	}
}

func TestCollectorStop(t *testing.T) {
	src := &fakeSource{}
	c := NewCollector(src, time.Millisecond)

	done := make(chan struct{})
	go func() {
		c.Start(context.Background())
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for src.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("collector did not poll")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	c.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("Stop signal not received in time")
	}
}

func TestCollectorContextCancellation(t *testing.T) {
	c := NewCollector(&fakeSource{}, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		c.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("Context cancellation not working properly")
	}
}

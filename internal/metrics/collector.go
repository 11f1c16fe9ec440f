package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/onnwee/forcegraph/internal/logger"
)

// Totals summarizes the simulations held by the layout service.
type Totals struct {
	Simulations int
	Running     int
	Nodes       int
	Links       int
}

// Source reports registry totals. The layout service implements it.
type Source interface {
	Totals(ctx context.Context) (Totals, error)
}

// Collector periodically refreshes gauges that are cheaper to poll than to
// maintain on every mutation.
type Collector struct {
	source   Source
	interval time.Duration
	stop     chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(source Source, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{
		source:   source,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.Collect(ctx)

	for {
		select {
		case <-ticker.C:
			c.Collect(ctx)
		case <-c.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop stops the metrics collector
func (c *Collector) Stop() {
	close(c.stop)
}

// Collect refreshes the simulation gauges once.
func (c *Collector) Collect(ctx context.Context) {
	t, err := c.source.Totals(ctx)
	if err != nil {
		logger.WithComponent("metrics").Warn("Error collecting simulation totals", "error", err)
		MetricsCollectionErrors.WithLabelValues("simulations").Inc()
		// Signal stale data
		SimulationsActive.Set(-1)
		SimulationsRunning.Set(-1)
		SimulationNodesTotal.Set(-1)
		SimulationLinksTotal.Set(-1)
		return
	}
	if t.Simulations < 0 || t.Running > t.Simulations {
		MetricsCollectionErrors.WithLabelValues("simulations").Inc()
		logger.WithComponent("metrics").Warn("Inconsistent simulation totals",
			"error", fmt.Errorf("running=%d simulations=%d", t.Running, t.Simulations))
	}

	SimulationsActive.Set(float64(t.Simulations))
	SimulationsRunning.Set(float64(t.Running))
	SimulationNodesTotal.Set(float64(t.Nodes))
	SimulationLinksTotal.Set(float64(t.Links))
}

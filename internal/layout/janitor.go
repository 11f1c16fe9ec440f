package layout

import (
	"context"
	"time"

	"github.com/onnwee/forcegraph/internal/logger"
)

// Janitor periodically evicts idle simulations.
type Janitor struct {
	service  *Service
	ttl      time.Duration
	interval time.Duration
}

// NewJanitor creates a janitor evicting simulations idle for longer than
// ttl. A non-positive interval defaults to one minute.
func NewJanitor(service *Service, ttl, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Janitor{
		service:  service,
		ttl:      ttl,
		interval: interval,
	}
}

func (j *Janitor) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	log := logger.WithComponent("janitor")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := j.service.Evict(j.ttl); n > 0 {
				log.Info("Evicted idle simulations", "count", n, "ttl", j.ttl)
			}
		}
	}
}

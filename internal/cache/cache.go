// Package cache stores serialized layout results keyed by a digest of the
// request that produced them.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/onnwee/forcegraph/internal/metrics"
)

// Cache stores serialized values with a TTL.
type Cache interface {
	// Get returns the value and true if present and not expired.
	Get(key string) ([]byte, bool)

	// Set stores value under key. A ttl of 0 uses the cache default.
	Set(key string, value []byte, ttl time.Duration)

	Delete(key string)

	Clear()

	Stats() Stats
}

// Stats represents cache statistics.
type Stats struct {
	Hits      uint64 // Total cache hits
	Misses    uint64 // Total cache misses
	KeysAdded uint64 // Total keys added
	Evictions uint64 // Total evictions
	Size      int64  // Approximate size in bytes
	Items     int64  // Current number of items
}

// Key derives a cache key from a namespace and a canonical payload.
func Key(namespace string, payload []byte) string {
	sum := sha256.Sum256(payload)
	return namespace + ":" + hex.EncodeToString(sum[:])
}

// instrumented records hits and misses for one endpoint.
type instrumented struct {
	Cache
	endpoint string
}

// WithMetrics wraps c so lookups are counted under endpoint.
func WithMetrics(c Cache, endpoint string) Cache {
	return &instrumented{Cache: c, endpoint: endpoint}
}

func (i *instrumented) Get(key string) ([]byte, bool) {
	v, ok := i.Cache.Get(key)
	if ok {
		metrics.APICacheHits.WithLabelValues(i.endpoint).Inc()
	} else {
		metrics.APICacheMisses.WithLabelValues(i.endpoint).Inc()
	}
	return v, ok
}

// ReportStats publishes the size gauges of c under endpoint.
func ReportStats(c Cache, endpoint string) {
	s := c.Stats()
	metrics.APICacheSize.WithLabelValues(endpoint).Set(float64(s.Size))
	metrics.APICacheItems.WithLabelValues(endpoint).Set(float64(s.Items))
}

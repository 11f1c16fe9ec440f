package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Frame scheduler metrics
	SchedulerFramesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_frames_total",
			Help: "Total number of animation frames advanced",
		},
	)

	SchedulerFrameDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scheduler_frame_duration_seconds",
			Help:    "Time spent running all timer callbacks for one frame",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.016, 0.033, 0.1, 0.5},
		},
	)

	SchedulerCallbacksPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scheduler_callbacks_pending",
			Help: "Number of timer callbacks registered with the frame scheduler",
		},
	)

	SchedulerCallbackPanics = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_callback_panics_total",
			Help: "Total number of timer callbacks that panicked and were cancelled",
		},
	)

	// Simulation metrics
	SimulationsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "simulations_active",
			Help: "Number of simulations registered with the layout service",
		},
	)

	SimulationsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "simulations_running",
			Help: "Number of simulations with a non-zero alpha",
		},
	)

	SimulationEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simulation_events_total",
			Help: "Total number of simulation lifecycle events",
		},
		[]string{"event"}, // event: start, end
	)

	SimulationTicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "simulation_ticks_total",
			Help: "Total number of non-terminal simulation ticks",
		},
	)

	SimulationNodesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "simulation_nodes_total",
			Help: "Total number of nodes across registered simulations",
		},
	)

	SimulationLinksTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "simulation_links_total",
			Help: "Total number of links across registered simulations",
		},
	)

	SimulationsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "simulations_evicted_total",
			Help: "Total number of idle simulations removed by the janitor",
		},
	)

	// One-shot layout computation
	LayoutComputeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "layout_compute_duration_seconds",
			Help:    "Duration of synchronous layout computations",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	LayoutComputeTicks = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "layout_compute_ticks",
			Help:    "Number of ticks a synchronous layout ran before cooling out",
			Buckets: []float64{10, 50, 100, 200, 300, 500, 1000},
		},
	)

	LayoutComputeErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "layout_compute_errors_total",
			Help: "Total number of failed layout computations",
		},
	)

	// API cache metrics
	APICacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_cache_hits_total",
			Help: "Total number of API cache hits",
		},
		[]string{"endpoint"},
	)

	APICacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_cache_misses_total",
			Help: "Total number of API cache misses",
		},
		[]string{"endpoint"},
	)

	APICacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "api_cache_size_bytes",
			Help: "Current size of API cache in bytes",
		},
		[]string{"endpoint"},
	)

	APICacheItems = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "api_cache_items",
			Help: "Current number of items in API cache",
		},
		[]string{"endpoint"},
	)

	// API request metrics
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"endpoint", "method", "status"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"endpoint", "method", "status"},
	)

	APIRateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
		[]string{"scope"}, // scope: global, ip
	)

	// Metrics collection error tracking
	MetricsCollectionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metrics_collection_errors_total",
			Help: "Total number of errors during metrics collection",
		},
		[]string{"collector"}, // collector: simulations, cache
	)

	// WebSocket metrics
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Number of active WebSocket connections",
		},
	)

	WebSocketMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent to clients",
		},
	)

	WebSocketMessagesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_dropped_total",
			Help: "Total number of frames dropped because a client buffer was full",
		},
	)
)

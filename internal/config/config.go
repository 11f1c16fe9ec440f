package config

import (
	"os"
	"strings"
	"time"

	"github.com/onnwee/forcegraph/internal/utils"
)

// Config holds application configuration derived from environment variables.
type Config struct {
	// HTTP server
	ServerAddr      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
	// Frame scheduler
	FrameInterval time.Duration
	// Layout defaults applied to requests that omit a parameter
	Layout LayoutParams
	// Upper bounds on accepted graphs and synchronous runs
	LayoutMaxNodes    int
	LayoutMaxLinks    int
	LayoutMaxTicks    int
	LayoutTimeout     time.Duration
	MaxSimulations    int
	SimulationIdleTTL time.Duration
	JanitorInterval   time.Duration
	// Websocket streaming
	StreamEveryNTicks int
	StreamBufferSize  int
	// Layout result cache
	CacheMaxSizeMB  int
	CacheMaxEntries int64
	CacheTTL        time.Duration
	// Security settings
	RateLimitGlobal      float64  // requests per second globally
	RateLimitGlobalBurst int      // burst size for global rate limit
	RateLimitPerIP       float64  // requests per second per IP
	RateLimitPerIPBurst  int      // burst size for per-IP rate limit
	CORSAllowedOrigins   []string // allowed CORS origins
	EnableRateLimit      bool     // enable rate limiting middleware
	// Observability settings
	LogLevel          string  // log level: debug, info, warn, error
	ServiceVersion    string  // reported to tracing and Sentry
	OTELEnabled       bool    // enable OpenTelemetry tracing
	OTELEndpoint      string  // OpenTelemetry collector endpoint
	OTELSampleRate    float64 // trace sampling rate (0.0 to 1.0)
	SentryDSN         string  // Sentry DSN for error reporting
	SentryEnvironment string  // Sentry environment (dev, staging, production)
	SentryRelease     string  // Sentry release version
	SentrySampleRate  float64 // Sentry error sampling rate (0.0 to 1.0)
	MetricsInterval   time.Duration
}

var cached *Config

// Load reads env vars once and caches them.
func Load() *Config {
	if cached != nil {
		return cached
	}
	cached = &Config{
		ServerAddr:      strings.TrimSpace(os.Getenv("SERVER_ADDR")),
		ReadTimeout:     utils.GetEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    utils.GetEnvAsDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: utils.GetEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxBodyBytes:    int64(utils.GetEnvAsInt("MAX_BODY_BYTES", 4<<20)),
		FrameInterval:   time.Duration(utils.GetEnvAsInt("FRAME_INTERVAL_MS", 16)) * time.Millisecond,
		Layout: LayoutParams{
			Width:        utils.GetEnvAsFloat("LAYOUT_WIDTH", 960),
			Height:       utils.GetEnvAsFloat("LAYOUT_HEIGHT", 500),
			Friction:     utils.GetEnvAsFloat("LAYOUT_FRICTION", 0.9),
			Charge:       utils.GetEnvAsFloat("LAYOUT_CHARGE", -30),
			Gravity:      utils.GetEnvAsFloat("LAYOUT_GRAVITY", 0.1),
			Theta:        utils.GetEnvAsFloat("LAYOUT_THETA", 0.8),
			LinkDistance: utils.GetEnvAsFloat("LAYOUT_LINK_DISTANCE", 20),
			LinkStrength: utils.GetEnvAsFloat("LAYOUT_LINK_STRENGTH", 1),
			Alpha:        utils.GetEnvAsFloat("LAYOUT_ALPHA", 0.1),
		},
		LayoutMaxNodes:    utils.GetEnvAsInt("LAYOUT_MAX_NODES", 5000),
		LayoutMaxLinks:    utils.GetEnvAsInt("LAYOUT_MAX_LINKS", 20000),
		LayoutMaxTicks:    utils.GetEnvAsInt("LAYOUT_MAX_TICKS", 1000),
		LayoutTimeout:     utils.GetEnvAsDuration("LAYOUT_TIMEOUT", 30*time.Second),
		MaxSimulations:    utils.GetEnvAsInt("MAX_SIMULATIONS", 100),
		SimulationIdleTTL: utils.GetEnvAsDuration("SIMULATION_IDLE_TTL", 15*time.Minute),
		JanitorInterval:   utils.GetEnvAsDuration("JANITOR_INTERVAL", time.Minute),
		StreamEveryNTicks: utils.GetEnvAsInt("STREAM_EVERY_N_TICKS", 1),
		StreamBufferSize:  utils.GetEnvAsInt("STREAM_BUFFER_SIZE", 16),
		CacheMaxSizeMB:    utils.GetEnvAsInt("CACHE_MAX_SIZE_MB", 64),
		CacheMaxEntries:   int64(utils.GetEnvAsInt("CACHE_MAX_ENTRIES", 1000)),
		CacheTTL:          utils.GetEnvAsDuration("CACHE_TTL", 10*time.Minute),
		// Security settings with sensible defaults
		RateLimitGlobal:      utils.GetEnvAsFloat("RATE_LIMIT_GLOBAL", 100.0),
		RateLimitGlobalBurst: utils.GetEnvAsInt("RATE_LIMIT_GLOBAL_BURST", 200),
		RateLimitPerIP:       utils.GetEnvAsFloat("RATE_LIMIT_PER_IP", 10.0),
		RateLimitPerIPBurst:  utils.GetEnvAsInt("RATE_LIMIT_PER_IP_BURST", 20),
		EnableRateLimit:      utils.GetEnvAsBool("ENABLE_RATE_LIMIT", true),
		// Observability settings
		LogLevel:          strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))),
		ServiceVersion:    strings.TrimSpace(os.Getenv("SERVICE_VERSION")),
		OTELEnabled:       utils.GetEnvAsBool("OTEL_ENABLED", false),
		OTELEndpoint:      strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		OTELSampleRate:    utils.GetEnvAsFloat("OTEL_TRACE_SAMPLE_RATE", 0.1),
		SentryDSN:         strings.TrimSpace(os.Getenv("SENTRY_DSN")),
		SentryEnvironment: strings.TrimSpace(os.Getenv("SENTRY_ENVIRONMENT")),
		SentryRelease:     strings.TrimSpace(os.Getenv("SENTRY_RELEASE")),
		SentrySampleRate:  utils.GetEnvAsFloat("SENTRY_SAMPLE_RATE", 1.0),
		MetricsInterval:   utils.GetEnvAsDuration("METRICS_INTERVAL", 15*time.Second),
	}
	if cached.ServerAddr == "" {
		cached.ServerAddr = ":8000"
	}
	if cached.LogLevel == "" {
		cached.LogLevel = "info"
	}
	if cached.ServiceVersion == "" {
		cached.ServiceVersion = "dev"
	}
	if cached.SentryRelease == "" {
		cached.SentryRelease = cached.ServiceVersion
	}
	if cached.SentryEnvironment == "" {
		if env := os.Getenv("ENV"); env != "" {
			cached.SentryEnvironment = env
		} else {
			cached.SentryEnvironment = "development"
		}
	}
	if cached.FrameInterval <= 0 {
		cached.FrameInterval = 16 * time.Millisecond
	}
	if cached.StreamEveryNTicks < 1 {
		cached.StreamEveryNTicks = 1
	}

	// Parse CORS allowed origins
	corsOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if corsOrigins == "" {
		// Default to common development origins
		cached.CORSAllowedOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	} else {
		cached.CORSAllowedOrigins = strings.Split(corsOrigins, ",")
		for i := range cached.CORSAllowedOrigins {
			cached.CORSAllowedOrigins[i] = strings.TrimSpace(cached.CORSAllowedOrigins[i])
		}
	}

	if path := strings.TrimSpace(os.Getenv("LAYOUT_PARAMS_FILE")); path != "" {
		if p, err := LoadParamsFile(path, cached.Layout); err == nil {
			cached.Layout = p
		}
	}

	return cached
}

// ResetForTest clears cached config; for use in tests only.
func ResetForTest() { cached = nil }

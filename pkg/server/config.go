package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

// Config holds server settings. Zero fields take the defaults of
// DefaultConfig.
type Config struct {
	// Addr is the listen address. Default: ":8080".
	Addr string

	// ReadHeaderTimeout bounds reading request headers. Default: 5s.
	ReadHeaderTimeout time.Duration

	// WriteTimeout bounds a single websocket write. Default: 10s.
	WriteTimeout time.Duration

	// IdleTimeout is the keep-alive timeout for HTTP connections. Default: 120s.
	IdleTimeout time.Duration

	// ShutdownTimeout bounds graceful shutdown. Default: 10s.
	ShutdownTimeout time.Duration

	// PingInterval is the time between websocket pings. A session that
	// does not answer within two intervals is closed. Default: 30s.
	PingInterval time.Duration

	// SendBuffer is the number of frames queued per session. Default: 16.
	SendBuffer int

	// MaxMessageSize limits inbound websocket messages. Default: 64KB.
	MaxMessageSize int64

	// MaxBodySize limits request bodies. Default: 1MB.
	MaxBodySize int64

	// MetricsPath is where Prometheus metrics are served. Default: "/metrics".
	MetricsPath string

	// CheckOrigin validates websocket origins. Default: same host only.
	CheckOrigin func(r *http.Request) bool

	// Registry receives the server metrics and is served on MetricsPath.
	// Default: a fresh registry.
	Registry *prometheus.Registry

	// TracerProvider supplies request spans. Default: the global provider.
	TracerProvider trace.TracerProvider

	// Logger is the server logger. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		PingInterval:      30 * time.Second,
		SendBuffer:        16,
		MaxMessageSize:    64 * 1024,
		MaxBodySize:       1 << 20,
		MetricsPath:       "/metrics",
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Addr == "" {
		c.Addr = d.Addr
	}
	if c.ReadHeaderTimeout <= 0 {
		c.ReadHeaderTimeout = d.ReadHeaderTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = d.IdleTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = d.PingInterval
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = d.SendBuffer
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = d.MaxMessageSize
	}
	if c.MaxBodySize <= 0 {
		c.MaxBodySize = d.MaxBodySize
	}
	if c.MetricsPath == "" {
		c.MetricsPath = d.MetricsPath
	}
	if c.Registry == nil {
		c.Registry = prometheus.NewRegistry()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the PrometheusObserver.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "reactor").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// FanoutBuckets are the histogram buckets for notification fan-out sizes.
	FanoutBuckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the PrometheusObserver.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithFanoutBuckets sets the fan-out histogram buckets.
func WithFanoutBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.FanoutBuckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace:     "reactor",
		FanoutBuckets: []float64{0, 1, 2, 4, 8, 16, 32, 64, 128},
		Registry:      prometheus.DefaultRegisterer,
	}
}

// FanoutKey is the Data key carrying the number of subscribers a
// notification was delivered to. Events carrying it feed the fan-out histogram.
const FanoutKey = "subscribers"

// PrometheusObserver turns events into Prometheus metrics:
//   - <ns>_events_total: counter by event type and level
//   - <ns>_failures_total: counter of error-level events by source
//   - <ns>_notify_fanout: histogram of subscribers reached per notification
type PrometheusObserver struct {
	events   *prometheus.CounterVec
	failures *prometheus.CounterVec
	fanout   prometheus.Histogram
}

// NewPrometheusObserver registers the metrics with the configured registry.
// Registering twice against the same registry panics, as with promauto.
func NewPrometheusObserver(opts ...MetricsOption) *PrometheusObserver {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)

	return &PrometheusObserver{
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "events_total",
			Help:        "Total number of reactive events by type and level",
			ConstLabels: config.ConstLabels,
		}, []string{"type", "level"}),

		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "failures_total",
			Help:        "Total number of error-level events by source",
			ConstLabels: config.ConstLabels,
		}, []string{"source"}),

		fanout: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "notify_fanout",
			Help:        "Number of subscribers reached by a single notification",
			ConstLabels: config.ConstLabels,
			Buckets:     config.FanoutBuckets,
		}),
	}
}

func (o *PrometheusObserver) OnEvent(_ context.Context, event Event) {
	o.events.WithLabelValues(string(event.Type), event.Level.String()).Inc()

	if event.Level >= LevelError {
		o.failures.WithLabelValues(event.Source).Inc()
	}

	if n, ok := event.Data[FanoutKey].(int); ok {
		o.fanout.Observe(float64(n))
	}
}

package observe

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/derive/pkg/reactive"
)

// MetricsConfig configures the Prometheus observer.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "derive").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for recomputation duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus observer.
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

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
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
		Namespace: "derive",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Prometheus is an observer that records node lifecycle metrics.
//
// Metrics collected (with the default namespace):
//   - derive_nodes_created_total: Counter of created nodes by kind
//   - derive_nodes_destroyed_total: Counter of destroyed nodes by kind
//   - derive_nodes_live: Gauge of nodes created and not yet destroyed, by kind
//   - derive_recomputations_total: Counter of evaluations by kind and result
//     (changed, unchanged, failed)
//   - derive_recompute_duration_seconds: Histogram of evaluation time by kind
//   - derive_self_references_total: Counter of recursion guard hits
//
// Labels never include node names, which are unbounded.
type Prometheus struct {
	created        *prometheus.CounterVec
	destroyed      *prometheus.CounterVec
	live           *prometheus.GaugeVec
	recomputations *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	selfReferences prometheus.Counter
}

// NewPrometheus registers the metrics and returns the observer.
// Registering twice with the same registry panics.
func NewPrometheus(opts ...MetricsOption) *Prometheus {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Prometheus{
		created: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "nodes_created_total",
			Help:        "Total number of reactive nodes created",
			ConstLabels: config.ConstLabels,
		}, []string{"kind"}),

		destroyed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "nodes_destroyed_total",
			Help:        "Total number of reactive nodes destroyed",
			ConstLabels: config.ConstLabels,
		}, []string{"kind"}),

		live: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "nodes_live",
			Help:        "Number of reactive nodes not yet destroyed",
			ConstLabels: config.ConstLabels,
		}, []string{"kind"}),

		recomputations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "recomputations_total",
			Help:        "Total number of derived and effect evaluations",
			ConstLabels: config.ConstLabels,
		}, []string{"kind", "result"}),

		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "recompute_duration_seconds",
			Help:        "Evaluation duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"kind"}),

		selfReferences: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "self_references_total",
			Help:        "Total number of deriveds caught reading themselves",
			ConstLabels: config.ConstLabels,
		}),
	}
}

func (p *Prometheus) OnCreate(info reactive.NodeInfo) {
	kind := info.Kind.String()
	p.created.WithLabelValues(kind).Inc()
	p.live.WithLabelValues(kind).Inc()
}

func (p *Prometheus) OnUpdate(info reactive.NodeInfo) func(reactive.UpdateResult) {
	kind := info.Kind.String()
	return func(res reactive.UpdateResult) {
		p.duration.WithLabelValues(kind).Observe(res.Duration.Seconds())
		p.recomputations.WithLabelValues(kind, result(res)).Inc()
	}
}

func (p *Prometheus) OnDestroy(info reactive.NodeInfo) {
	kind := info.Kind.String()
	p.destroyed.WithLabelValues(kind).Inc()
	p.live.WithLabelValues(kind).Dec()
}

func (p *Prometheus) OnSelfReference(reactive.NodeInfo) {
	p.selfReferences.Inc()
}

// result categorizes an evaluation for the result label.
func result(res reactive.UpdateResult) string {
	switch {
	case res.Err != nil:
		return "failed"
	case res.Changed:
		return "changed"
	default:
		return "unchanged"
	}
}

package head

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the Prometheus instruments for the engine.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "helmet").
	Namespace string

	// Subsystem is the metrics subsystem (default: "head").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for reconcile duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registerer is the Prometheus registerer to register with.
	// Default: prometheus.DefaultRegisterer
	Registerer prometheus.Registerer
}

// Metrics holds the Prometheus instruments a Binder records. A nil
// *Metrics is valid and records nothing, so instrumentation stays
// optional.
type Metrics struct {
	acquires          *prometheus.CounterVec
	releases          *prometheus.CounterVec
	liveDeclarations  prometheus.Gauge
	reconcileDuration *prometheus.HistogramVec
	domRejections     *prometheus.CounterVec
	skips             *prometheus.CounterVec
}

// NewMetrics registers the engine's instruments with cfg.Registerer and
// returns them. Zero-value fields fall back to defaults. Registering the
// same names twice against one registerer panics, so create at most one
// Metrics per registerer and share it; DefaultMetrics does this for the
// default registerer.
func NewMetrics(cfg MetricsConfig) *Metrics {
	if cfg.Namespace == "" {
		cfg.Namespace = "helmet"
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = "head"
	}
	if cfg.Buckets == nil {
		cfg.Buckets = prometheus.DefBuckets
	}
	if cfg.Registerer == nil {
		cfg.Registerer = prometheus.DefaultRegisterer
	}

	factory := promauto.With(cfg.Registerer)

	return &Metrics{
		acquires: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "acquires_total",
			Help:        "Total registry acquisitions by tag and freshness",
			ConstLabels: cfg.ConstLabels,
		}, []string{"tag", "fresh"}),

		releases: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "releases_total",
			Help:        "Total registry releases by tag and whether the holder was last",
			ConstLabels: cfg.ConstLabels,
		}, []string{"tag", "last"}),

		liveDeclarations: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "live_declarations",
			Help:        "Number of declarations currently materialised in the head",
			ConstLabels: cfg.ConstLabels,
		}),

		reconcileDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "reconcile_duration_seconds",
			Help:        "Duration of mount and unmount passes in seconds",
			ConstLabels: cfg.ConstLabels,
			Buckets:     cfg.Buckets,
		}, []string{"op"}),

		domRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "dom_rejections_total",
			Help:        "Total declarations dropped because a document operation failed",
			ConstLabels: cfg.ConstLabels,
		}, []string{"stage"}),

		skips: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "skips_total",
			Help:        "Total reconcile passes skipped before running",
			ConstLabels: cfg.ConstLabels,
		}, []string{"reason"}),
	}
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns process-wide instruments registered against the
// default Prometheus registerer, creating them on first use.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		defaultMetrics = NewMetrics(MetricsConfig{})
	})
	return defaultMetrics
}

// RecordAcquire counts one registry acquisition.
func (m *Metrics) RecordAcquire(tag string, fresh bool) {
	if m == nil {
		return
	}
	m.acquires.WithLabelValues(tag, strconv.FormatBool(fresh)).Inc()
}

// RecordRelease counts one registry release.
func (m *Metrics) RecordRelease(tag string, last bool) {
	if m == nil {
		return
	}
	m.releases.WithLabelValues(tag, strconv.FormatBool(last)).Inc()
}

// RecordSkip counts a reconcile pass that never ran.
func (m *Metrics) RecordSkip(reason string) {
	if m == nil {
		return
	}
	m.skips.WithLabelValues(reason).Inc()
}

// RecordRejection counts a declaration dropped by a document failure.
func (m *Metrics) RecordRejection(stage string) {
	if m == nil {
		return
	}
	m.domRejections.WithLabelValues(stage).Inc()
}

// RecordReconcile observes the duration of one mount or unmount pass.
func (m *Metrics) RecordReconcile(op string, d time.Duration) {
	if m == nil {
		return
	}
	m.reconcileDuration.WithLabelValues(op).Observe(d.Seconds())
}

// SetLive records the registry's current entry count.
func (m *Metrics) SetLive(n int) {
	if m == nil {
		return
	}
	m.liveDeclarations.Set(float64(n))
}

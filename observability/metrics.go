package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MarketplaceMetrics records the outcome of every unit of work executed by
// the marketplace host.
type MarketplaceMetrics struct {
	requests      *prometheus.CounterVec
	rejections    *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	instructions  *prometheus.CounterVec
	liveOfferings prometheus.Gauge
}

var (
	marketplaceMetricsOnce sync.Once
	marketplaceRegistry    *MarketplaceMetrics
)

// Marketplace returns the lazily-initialised metrics registry for the
// marketplace host.
func Marketplace() *MarketplaceMetrics {
	marketplaceMetricsOnce.Do(func() {
		marketplaceRegistry = &MarketplaceMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftmarket",
				Subsystem: "host",
				Name:      "requests_total",
				Help:      "Total marketplace invocations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftmarket",
				Subsystem: "host",
				Name:      "rejections_total",
				Help:      "Rolled back invocations segmented by operation and error reason.",
			}, []string{"operation", "reason"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "nftmarket",
				Subsystem: "host",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for marketplace invocations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			instructions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftmarket",
				Subsystem: "host",
				Name:      "instructions_total",
				Help:      "Outbound instructions returned by committed settlements.",
			}, []string{"kind"}),
			liveOfferings: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "nftmarket",
				Subsystem: "store",
				Name:      "live_offerings",
				Help:      "Number of offerings currently held in escrow.",
			}),
		}
		prometheus.MustRegister(
			marketplaceRegistry.requests,
			marketplaceRegistry.rejections,
			marketplaceRegistry.latency,
			marketplaceRegistry.instructions,
			marketplaceRegistry.liveOfferings,
		)
	})
	return marketplaceRegistry
}

// ObserveCommit records a committed invocation.
func (m *MarketplaceMetrics) ObserveCommit(operation string, duration time.Duration) {
	if m == nil {
		return
	}
	if operation == "" {
		operation = "unknown"
	}
	m.requests.WithLabelValues(operation, "committed").Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveRejection records a rolled back invocation. Reasons should be stable
// strings such as "insufficient_funds" so dashboards remain consistent.
func (m *MarketplaceMetrics) ObserveRejection(operation, reason string, duration time.Duration) {
	if m == nil {
		return
	}
	if operation == "" {
		operation = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.requests.WithLabelValues(operation, "rejected").Inc()
	m.rejections.WithLabelValues(operation, reason).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordInstruction counts an outbound instruction of the given kind.
func (m *MarketplaceMetrics) RecordInstruction(kind string) {
	if m == nil {
		return
	}
	m.instructions.WithLabelValues(kind).Inc()
}

// SetLiveOfferings sets the live offering gauge.
func (m *MarketplaceMetrics) SetLiveOfferings(n int) {
	if m == nil {
		return
	}
	m.liveOfferings.Set(float64(n))
}

// AddLiveOfferings adjusts the live offering gauge by delta.
func (m *MarketplaceMetrics) AddLiveOfferings(delta int) {
	if m == nil {
		return
	}
	m.liveOfferings.Add(float64(delta))
}

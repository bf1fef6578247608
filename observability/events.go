package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"nftmarket/core/events"
)

type eventMetrics struct {
	emitted *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking committed marketplace events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftmarket",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of committed marketplace events segmented by type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(eventRegistry.emitted)
	})
	return eventRegistry
}

// RecordEvent increments the counter for the supplied event type.
func (m *eventMetrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(eventType)
	if normalized == "" {
		normalized = "unknown"
	}
	m.emitted.WithLabelValues(normalized).Inc()
}

// Emit lets the registry be plugged into an emitter fan-out.
func (m *eventMetrics) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	m.RecordEvent(evt.EventType())
}

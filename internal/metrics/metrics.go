// Package metrics registers the Prometheus instruments for the store server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the instruments shared by the ingestion service and the
// stream registry. A nil *Metrics disables instrumentation entirely.
type Metrics struct {
	registry *prometheus.Registry

	RecordsIngested        prometheus.Counter
	IngestFailures         prometheus.Counter
	BroadcastsTotal        prometheus.Counter
	SubscriberSendFailures prometheus.Counter
	SubscribersConnected   prometheus.Gauge
}

// New creates and registers the instrument set on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		RecordsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "roadwatch",
			Subsystem: "ingest",
			Name:      "records_total",
			Help:      "Classified records persisted by the store server.",
		}),
		IngestFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "roadwatch",
			Subsystem: "ingest",
			Name:      "failures_total",
			Help:      "Batch submissions aborted by a storage failure.",
		}),
		BroadcastsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "roadwatch",
			Subsystem: "stream",
			Name:      "broadcasts_total",
			Help:      "Payloads fanned out to stream subscribers.",
		}),
		SubscriberSendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "roadwatch",
			Subsystem: "stream",
			Name:      "send_failures_total",
			Help:      "Subscriber writes that failed and dropped the connection.",
		}),
		SubscribersConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "roadwatch",
			Subsystem: "stream",
			Name:      "subscribers_connected",
			Help:      "Currently connected stream subscribers.",
		}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		m.RecordsIngested,
		m.IngestFailures,
		m.BroadcastsTotal,
		m.SubscriberSendFailures,
		m.SubscribersConnected,
	)

	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

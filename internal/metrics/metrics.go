// Package metrics defines the relay's Prometheus metric set.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. Collectors are registered against
// the given registerer; passing nil leaves them unregistered, which is
// convenient in tests.
type Metrics struct {
	EventsProduced *prometheus.CounterVec
	EventsDropped  prometheus.Counter
	EventsSent     *prometheus.CounterVec
	SendFailures   *prometheus.CounterVec
	EventsSpilled  prometheus.Counter
	EventsRequeued prometheus.Counter
	EventsEvicted  *prometheus.CounterVec
	StoragePauses  prometheus.Counter

	FastDepth  prometheus.Gauge
	SpoolDepth prometheus.Gauge
	SpoolBytes prometheus.Gauge

	SendDuration          prometheus.Histogram
	StorageCommitDuration prometheus.Histogram
	StorageCommitBytes    prometheus.Counter
}

// New creates and registers the relay metric set.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		EventsProduced: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_events_produced_total",
				Help: "Events offered to the fast buffer",
			},
			[]string{"status"},
		),
		EventsDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "relay_events_dropped_total",
				Help: "Events rejected because the fast buffer was full",
			},
		),
		EventsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_events_sent_total",
				Help: "Events delivered through the transport",
			},
			[]string{"source"},
		),
		SendFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_send_failures_total",
				Help: "Transport send failures",
			},
			[]string{"source"},
		),
		EventsSpilled: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "relay_events_spilled_total",
				Help: "Events rerouted into the spool after a failed send",
			},
		),
		EventsRequeued: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "relay_events_requeued_total",
				Help: "Spool events moved back to the tail after a failed send",
			},
		),
		EventsEvicted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_events_evicted_total",
				Help: "Spool entries discarded by retention",
			},
			[]string{"reason"},
		),
		StoragePauses: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "relay_storage_pauses_total",
				Help: "Dispatch pauses caused by an unavailable spool store",
			},
		),
		FastDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "relay_fast_depth",
				Help: "Events currently in the fast buffer",
			},
		),
		SpoolDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "relay_spool_depth",
				Help: "Events currently in the spool",
			},
		),
		SpoolBytes: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "relay_spool_bytes",
				Help: "Approximate spool byte footprint",
			},
		),
		SendDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "relay_send_duration_seconds",
				Help:    "Duration of transport send attempts",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
		),
		StorageCommitDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "relay_storage_commit_duration_seconds",
				Help:    "Duration of spool store batch commits",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
		),
		StorageCommitBytes: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "relay_storage_commit_bytes_total",
				Help: "Bytes committed to the spool store",
			},
		),
	}
}

// IncProduced counts an admission attempt by outcome.
func (m *Metrics) IncProduced(accepted bool) {
	status := "accepted"
	if !accepted {
		status = "dropped"
		m.EventsDropped.Inc()
	}
	m.EventsProduced.WithLabelValues(status).Inc()
}

// IncSent counts a delivered event by source tier.
func (m *Metrics) IncSent(source string) {
	m.EventsSent.WithLabelValues(source).Inc()
}

// IncSendFailure counts a failed send by source tier.
func (m *Metrics) IncSendFailure(source string) {
	m.SendFailures.WithLabelValues(source).Inc()
}

// AddEvicted counts retention evictions by reason.
func (m *Metrics) AddEvicted(reason string, n int) {
	if n > 0 {
		m.EventsEvicted.WithLabelValues(reason).Add(float64(n))
	}
}

// ObserveCommit implements the storage commit observer.
func (m *Metrics) ObserveCommit(elapsed time.Duration, bytes int) {
	m.StorageCommitDuration.Observe(elapsed.Seconds())
	m.StorageCommitBytes.Add(float64(bytes))
}

// Package metrics exposes transfer metrics in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "planetdl"

// Metrics records transfer activity. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry *prometheus.Registry

	transfersTotal  *prometheus.CounterVec
	bytesTotal      *prometheus.CounterVec
	durationSeconds *prometheus.HistogramVec
	inProgress      prometheus.Gauge
	queueDepth      prometheus.Gauge
}

// New creates metrics registered on their own registry, so several clients
// in one process do not collide.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.transfersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_total",
			Help:      "Finished transfers by routing tier and outcome.",
		},
		[]string{"tier", "outcome"},
	)

	m.bytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_written_total",
			Help:      "Bytes accepted by sinks.",
		},
		[]string{"tier"},
	)

	// Planet downloads take hours; buckets run from 1s to about 9h.
	m.durationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transfer_duration_seconds",
			Help:      "Transfer duration from probe to terminal outcome.",
			Buckets:   prometheus.ExponentialBuckets(1, 3, 11),
		},
		[]string{"tier", "outcome"},
	)

	m.inProgress = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "transfers_in_progress",
		Help:      "Transfers currently streaming.",
	})

	m.queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "scheduler_queue_depth",
		Help:      "Jobs waiting for a worker.",
	})

	m.registry.MustRegister(
		m.transfersTotal,
		m.bytesTotal,
		m.durationSeconds,
		m.inProgress,
		m.queueDepth,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// TransferStarted marks one more transfer in progress
func (m *Metrics) TransferStarted() {
	if m == nil {
		return
	}
	m.inProgress.Inc()
}

// TransferFinished records a terminal outcome
func (m *Metrics) TransferFinished(tier, outcome string, written uint64, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.inProgress.Dec()
	m.transfersTotal.WithLabelValues(tier, outcome).Inc()
	m.bytesTotal.WithLabelValues(tier).Add(float64(written))
	m.durationSeconds.WithLabelValues(tier, outcome).Observe(elapsed.Seconds())
}

// SetQueueDepth records the number of queued scheduler jobs
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// Registry returns the registry the metrics are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

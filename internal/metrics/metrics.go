// Package metrics instruments scans with Prometheus collectors on a private registry.
package metrics

import (
	"SpectraGuard/internal/core/model"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "spectraguard"

// Metrics holds every collector exported by the service.
type Metrics struct {
	registry *prometheus.Registry

	scans        *prometheus.CounterVec
	scanDuration *prometheus.HistogramVec
	fileScore    prometheus.Histogram
	fileLabels   *prometheus.CounterVec
	findings     *prometheus.CounterVec
	packets      prometheus.Counter
	malformed    prometheus.Counter
	truncated    prometheus.Counter
	queueDepth   prometheus.Gauge
	writerErrors *prometheus.CounterVec
	alerts       prometheus.Counter
}

// New registers the collectors on a fresh registry together with the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		scans: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Scans executed, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		scanDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Wall time of a scan, by kind.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"kind"}),
		fileScore: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "file_score",
			Help:      "Distribution of file verdict scores.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
		fileLabels: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "file_verdicts_total",
			Help:      "File verdicts, by label.",
		}, []string{"label"}),
		findings: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "traffic_findings_total",
			Help:      "Traffic findings, by kind and severity.",
		}, []string{"kind", "severity"}),
		packets: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_processed_total",
			Help:      "Packets counted into flows across all capture scans.",
		}),
		malformed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_malformed_total",
			Help:      "Packets skipped because their headers could not be decoded.",
		}),
		truncated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "captures_truncated_total",
			Help:      "Capture scans stopped at the packet limit.",
		}),
		queueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scan_queue_depth",
			Help:      "Scan jobs waiting for a worker.",
		}),
		writerErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "writer_errors_total",
			Help:      "Failed report writes, by writer.",
		}, []string{"writer"}),
		alerts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_sent_total",
			Help:      "Alert notifications sent.",
		}),
	}
}

// Registry exposes the registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveReport records a successful scan.
func (m *Metrics) ObserveReport(r *model.ScanReport, elapsed time.Duration) {
	kind := string(r.Kind)
	m.scans.WithLabelValues(kind, "ok").Inc()
	m.scanDuration.WithLabelValues(kind).Observe(elapsed.Seconds())

	if r.File != nil {
		m.fileScore.Observe(r.File.Score)
		m.fileLabels.WithLabelValues(string(r.File.Label)).Inc()
	}
	if r.Traffic != nil {
		s := r.Traffic.Summary
		m.packets.Add(float64(s.PacketCount))
		m.malformed.Add(float64(s.MalformedCount))
		if s.Truncated {
			m.truncated.Inc()
		}
		for _, f := range r.Traffic.Findings {
			m.findings.WithLabelValues(string(f.Kind), f.Severity).Inc()
		}
	}
}

// ObserveFailure records a rejected or failed scan.
func (m *Metrics) ObserveFailure(kind model.Kind, outcome string) {
	m.scans.WithLabelValues(string(kind), outcome).Inc()
}

// SetQueueDepth reports the number of queued scan jobs.
func (m *Metrics) SetQueueDepth(n int) {
	m.queueDepth.Set(float64(n))
}

// WriterError counts a failed write by the named writer.
func (m *Metrics) WriterError(writer string) {
	m.writerErrors.WithLabelValues(writer).Inc()
}

// AlertSent counts one notification.
func (m *Metrics) AlertSent() {
	m.alerts.Inc()
}

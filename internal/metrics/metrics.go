// Package metrics exposes Prometheus counters for uploads, bulk deletes
// and generated downloads. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "recombinant"

// Upload outcomes.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Metrics holds the collectors of one registry.
type Metrics struct {
	registry *prometheus.Registry

	uploads   *prometheus.CounterVec
	records   *prometheus.CounterVec
	deletes   *prometheus.CounterVec
	downloads *prometheus.CounterVec
}

// New registers all collectors, plus the Go and process collectors, on a
// fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Workbook uploads by dataset type, outcome and dry run.",
		}, []string{"dataset_type", "outcome", "dry_run"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_submitted_total",
			Help:      "Records sent to the datastore by resource.",
		}, []string{"resource"}),
		deletes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_deleted_total",
			Help:      "Records removed through bulk delete by resource.",
		}, []string{"resource"}),
		downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Generated templates, dictionaries and schema exports.",
		}, []string{"kind", "dataset_type"}),
	}
	reg.MustRegister(
		m.uploads, m.records, m.deletes, m.downloads,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Upload(datasetType, outcome string, dryRun bool) {
	if m == nil {
		return
	}
	dr := "false"
	if dryRun {
		dr = "true"
	}
	m.uploads.WithLabelValues(datasetType, outcome, dr).Inc()
}

func (m *Metrics) RecordsSubmitted(resource string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.records.WithLabelValues(resource).Add(float64(n))
}

func (m *Metrics) RecordsDeleted(resource string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.deletes.WithLabelValues(resource).Add(float64(n))
}

// Download counts a generated file; kind is template, dictionary or schema.
func (m *Metrics) Download(kind, datasetType string) {
	if m == nil {
		return
	}
	m.downloads.WithLabelValues(kind, datasetType).Inc()
}

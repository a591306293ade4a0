// Package metrics holds the publishing service's Prometheus collectors
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics manages the Prometheus metrics on a private registry
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests          *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	ShareTokensIssued     *prometheus.CounterVec
	ShareTokenRevocations *prometheus.CounterVec
	PreviewAuthorizations *prometheus.CounterVec
	ProjectPublishes      *prometheus.CounterVec
}

// New creates and registers the metrics
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitepub_http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sitepub_http_request_duration_seconds",
				Help:    "Latency of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		ShareTokensIssued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitepub_share_tokens_issued_total",
				Help: "Total number of share tokens issued.",
			},
			[]string{"duration"},
		),
		ShareTokenRevocations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitepub_share_token_revocations_total",
				Help: "Total number of share token revoke requests.",
			},
			[]string{"result"},
		),
		PreviewAuthorizations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitepub_preview_authorizations_total",
				Help: "Total number of preview access checks.",
			},
			[]string{"result"},
		),
		ProjectPublishes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitepub_project_publishes_total",
				Help: "Total number of project publish requests.",
			},
			[]string{"result"},
		),
	}
}

// RecordRequest records one served HTTP request
func (m *Metrics) RecordRequest(method, route, status string, duration time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordShareTokenIssued counts an issued share token
func (m *Metrics) RecordShareTokenIssued(duration string) {
	m.ShareTokensIssued.WithLabelValues(duration).Inc()
}

// RecordRevocation counts a revoke request by result
func (m *Metrics) RecordRevocation(result string) {
	m.ShareTokenRevocations.WithLabelValues(result).Inc()
}

// RecordPreviewAuthorization counts a preview access check by result
func (m *Metrics) RecordPreviewAuthorization(result string) {
	m.PreviewAuthorizations.WithLabelValues(result).Inc()
}

// RecordPublish counts a publish request by result
func (m *Metrics) RecordPublish(result string) {
	m.ProjectPublishes.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

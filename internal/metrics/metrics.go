// Package metrics owns the Prometheus collectors exported on /metrics.
//
// All recording methods are safe on a nil *Registry so components can be
// built without metrics in tests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "teamspend"

// Aggregation outcomes recorded by RecordAggregation.
const (
	OutcomeApplied          = "applied"
	OutcomeSkippedNoMember  = "skipped_member_missing"
	OutcomeSkippedNoWS      = "skipped_no_workspace"
	OutcomeSkippedWSMissing = "skipped_workspace_missing"
	OutcomeFailed           = "failed"
)

type Registry struct {
	reg *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	aggregations    *prometheus.CounterVec
	auditDrift      *prometheus.GaugeVec
	rateLimited     prometheus.Counter
	eventsPublished *prometheus.CounterVec
}

func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		aggregations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregation_updates_total",
			Help:      "Workspace total adjustments by direction and outcome.",
		}, []string{"direction", "outcome"}),
		auditDrift: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workspace_total_drift_cents",
			Help:      "Stored totalExpenses minus recomputed expense sum, per workspace.",
		}, []string{"workspace_id"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_requests_total",
			Help:      "Requests rejected by the per-IP rate limiter.",
		}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Domain events handed to the broker by type and result.",
		}, []string{"type", "result"}),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.httpRequests,
		r.httpDuration,
		r.aggregations,
		r.auditDrift,
		r.rateLimited,
		r.eventsPublished,
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Gatherer exposes the underlying registry for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

func (r *Registry) ObserveHTTP(method string, status int, d time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(method).Observe(d.Seconds())
}

// RecordAggregation counts one workspace total adjustment. direction is
// "increment" or "decrement".
func (r *Registry) RecordAggregation(direction, outcome string) {
	if r == nil {
		return
	}
	r.aggregations.WithLabelValues(direction, outcome).Inc()
}

func (r *Registry) SetDrift(workspaceID string, cents int64) {
	if r == nil {
		return
	}
	r.auditDrift.WithLabelValues(workspaceID).Set(float64(cents))
}

func (r *Registry) IncRateLimited() {
	if r == nil {
		return
	}
	r.rateLimited.Inc()
}

func (r *Registry) RecordPublish(eventType string, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.eventsPublished.WithLabelValues(eventType, result).Inc()
}

package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Template lifecycle metrics
	TemplateTransitionsTotal  *prometheus.CounterVec
	TemplateOperationDuration *prometheus.HistogramVec
	TemplatesByStatus         *prometheus.GaugeVec

	// Authorization metrics
	PermissionDecisionsTotal *prometheus.CounterVec
	MembershipLookupsTotal   *prometheus.CounterVec

	// Audit metrics
	AuditFailuresTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dpp_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dpp_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		TemplateTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dpp_template_transitions_total",
				Help: "Template lifecycle operations by event and outcome",
			},
			[]string{"event", "outcome"},
		),
		TemplateOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dpp_template_operation_duration_seconds",
				Help:    "Template operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		TemplatesByStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dpp_templates",
				Help: "Number of templates per lifecycle status",
			},
			[]string{"status"},
		),
		PermissionDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dpp_permission_decisions_total",
				Help: "Permission checks by permission and decision",
			},
			[]string{"permission", "decision"},
		),
		MembershipLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dpp_membership_lookups_total",
				Help: "Membership lookups by cache layer and result",
			},
			[]string{"layer", "result"},
		),
		AuditFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dpp_audit_failures_total",
				Help: "Audit records that could not be written",
			},
			[]string{"action"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.TemplateTransitionsTotal,
		m.TemplateOperationDuration,
		m.TemplatesByStatus,
		m.PermissionDecisionsTotal,
		m.MembershipLookupsTotal,
		m.AuditFailuresTotal,
	)

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordTransition records the outcome of a lifecycle operation
func (m *Metrics) RecordTransition(event, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.TemplateTransitionsTotal.WithLabelValues(event, outcome).Inc()
	m.TemplateOperationDuration.WithLabelValues(event).Observe(duration.Seconds())
}

// SetTemplateCount sets the gauge for one status
func (m *Metrics) SetTemplateCount(status string, count int) {
	if m == nil {
		return
	}
	m.TemplatesByStatus.WithLabelValues(status).Set(float64(count))
}

// RecordPermissionDecision records an allow or deny decision
func (m *Metrics) RecordPermissionDecision(permission string, allowed bool) {
	if m == nil {
		return
	}
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	m.PermissionDecisionsTotal.WithLabelValues(permission, decision).Inc()
}

// RecordMembershipLookup records a membership lookup at a cache layer
func (m *Metrics) RecordMembershipLookup(layer, result string) {
	if m == nil {
		return
	}
	m.MembershipLookupsTotal.WithLabelValues(layer, result).Inc()
}

// RecordAuditFailure records an audit write that failed
func (m *Metrics) RecordAuditFailure(action string) {
	if m == nil {
		return
	}
	m.AuditFailuresTotal.WithLabelValues(action).Inc()
}

// Handler returns the Prometheus scrape handler for a registry
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

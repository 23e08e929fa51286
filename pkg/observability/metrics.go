package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus metrics for the identity core
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Identity reconciliation metrics
	SignupsTotal       *prometheus.CounterVec
	LoginAttemptsTotal *prometheus.CounterVec
	LogoutsTotal       prometheus.Counter

	// Authorization metrics
	PermissionChecksTotal *prometheus.CounterVec
	AccessChecksTotal     *prometheus.CounterVec
	RoleChangesTotal      *prometheus.CounterVec
	GrantOperationsTotal  *prometheus.CounterVec

	// Store drift metrics. Local persistence failures are swallowed by
	// contract; this counter is how operators see them.
	StoreFailuresTotal *prometheus.CounterVec

	// Session metrics
	SessionFlagWritesTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics on a fresh registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracklet_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tracklet_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		SignupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracklet_signups_total",
				Help: "Total number of signup attempts by outcome",
			},
			[]string{"outcome"},
		),
		LoginAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracklet_login_attempts_total",
				Help: "Total number of login attempts by outcome",
			},
			[]string{"outcome"},
		),
		LogoutsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tracklet_logouts_total",
				Help: "Total number of logouts",
			},
		),

		PermissionChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracklet_permission_checks_total",
				Help: "Total number of capability checks by result",
			},
			[]string{"capability", "allowed"},
		),
		AccessChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracklet_access_checks_total",
				Help: "Total number of data-access checks by decision",
			},
			[]string{"decision"},
		),
		RoleChangesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracklet_role_changes_total",
				Help: "Total number of role change attempts by outcome",
			},
			[]string{"role", "outcome"},
		),
		GrantOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracklet_grant_operations_total",
				Help: "Total number of healthcare access grant operations",
			},
			[]string{"operation", "outcome"},
		),

		StoreFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracklet_store_failures_total",
				Help: "Local store failures that were logged and swallowed",
			},
			[]string{"store", "operation"},
		),

		SessionFlagWritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracklet_session_flag_writes_total",
				Help: "Session flag writes by operation",
			},
			[]string{"operation"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.SignupsTotal,
		m.LoginAttemptsTotal,
		m.LogoutsTotal,
		m.PermissionChecksTotal,
		m.AccessChecksTotal,
		m.RoleChangesTotal,
		m.GrantOperationsTotal,
		m.StoreFailuresTotal,
		m.SessionFlagWritesTotal,
	)

	return m
}

// Handler returns the /metrics HTTP handler for this registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, primarily for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// The Record helpers below are safe to call on a nil receiver so components
// can treat metrics as optional.

// RecordHTTPRequest counts a served request and observes its duration
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordStoreFailure counts a swallowed local persistence failure
func (m *Metrics) RecordStoreFailure(store, operation string) {
	if m == nil {
		return
	}
	m.StoreFailuresTotal.WithLabelValues(store, operation).Inc()
}

// RecordSignup counts a signup attempt by outcome
func (m *Metrics) RecordSignup(outcome string) {
	if m == nil {
		return
	}
	m.SignupsTotal.WithLabelValues(outcome).Inc()
}

// RecordLogin counts a login attempt by outcome
func (m *Metrics) RecordLogin(outcome string) {
	if m == nil {
		return
	}
	m.LoginAttemptsTotal.WithLabelValues(outcome).Inc()
}

// RecordLogout counts a logout
func (m *Metrics) RecordLogout() {
	if m == nil {
		return
	}
	m.LogoutsTotal.Inc()
}

// RecordPermissionCheck counts a capability check
func (m *Metrics) RecordPermissionCheck(capability string, allowed bool) {
	if m == nil {
		return
	}
	m.PermissionChecksTotal.WithLabelValues(capability, boolLabel(allowed)).Inc()
}

// RecordAccessCheck counts a data-access decision
func (m *Metrics) RecordAccessCheck(decision string) {
	if m == nil {
		return
	}
	m.AccessChecksTotal.WithLabelValues(decision).Inc()
}

// RecordRoleChange counts a role change attempt
func (m *Metrics) RecordRoleChange(role, outcome string) {
	if m == nil {
		return
	}
	m.RoleChangesTotal.WithLabelValues(role, outcome).Inc()
}

// RecordGrantOperation counts a grant or revoke
func (m *Metrics) RecordGrantOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.GrantOperationsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordSessionFlagWrite counts a session flag write
func (m *Metrics) RecordSessionFlagWrite(operation string) {
	if m == nil {
		return
	}
	m.SessionFlagWritesTotal.WithLabelValues(operation).Inc()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

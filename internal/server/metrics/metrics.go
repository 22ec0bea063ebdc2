// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// RequestsTotal counts HTTP requests by method, route and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessionguard_http_requests_total",
			Help: "HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration records HTTP request duration in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sessionguard_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// AccountOpsTotal counts account operations (register, login, logout,
	// delete, change_password) by outcome.
	AccountOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessionguard_account_operations_total",
			Help: "Account operations",
		},
		[]string{"operation", "outcome"},
	)

	// SessionsCreatedTotal counts sessions issued.
	SessionsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sessionguard_sessions_created_total",
			Help: "Sessions created",
		},
	)

	// SessionsExpiredTotal counts valid sessions moved to expired, by reason.
	SessionsExpiredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessionguard_sessions_expired_total",
			Help: "Sessions expired",
		},
		[]string{"reason"},
	)

	// GateRejectionsTotal counts requests refused by the auth gate or the
	// CSRF guard.
	GateRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessionguard_gate_rejections_total",
			Help: "Requests rejected by the auth gate or CSRF guard",
		},
		[]string{"reason"},
	)
)

// Outcome labels.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

// Expiry reasons.
const (
	ExpiredLogout   = "logout"
	ExpiredRevoked  = "revoked"
	ExpiredHorizon  = "horizon"
	ExpiredMismatch = "mismatch"
)

// Gate rejection reasons.
const (
	RejectNoToken = "no_token"
	RejectInvalid = "invalid_token"
	RejectCSRF    = "csrf"
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		AccountOpsTotal,
		SessionsCreatedTotal,
		SessionsExpiredTotal,
		GateRejectionsTotal,
	)
}

// Outcome maps an error to OutcomeOK or OutcomeFailed.
func Outcome(err error) string {
	if err != nil {
		return OutcomeFailed
	}
	return OutcomeOK
}

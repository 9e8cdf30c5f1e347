// Package metrics provides Prometheus metrics for token and session operations.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the auth service.
type Metrics struct {
	enabled  bool
	gatherer prometheus.Gatherer

	tokensIssuedTotal     *prometheus.CounterVec
	tokenIssueFailures    *prometheus.CounterVec
	verificationsTotal    *prometheus.CounterVec
	sessionEventsTotal    *prometheus.CounterVec
	blacklistChecksTotal  *prometheus.CounterVec
	storeErrorsTotal      *prometheus.CounterVec
	sweepRemovedKeysTotal prometheus.Counter
}

// New creates and registers metrics on reg. If enabled is false, or reg is
// nil, it returns a no-op Metrics instance.
func New(enabled bool, reg *prometheus.Registry) *Metrics {
	m := &Metrics{enabled: enabled && reg != nil}
	if !m.enabled {
		return m
	}
	m.gatherer = reg
	factory := promauto.With(reg)

	m.tokensIssuedTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_tokens_issued_total",
		Help: "Total tokens issued",
	}, []string{"type"})

	m.tokenIssueFailures = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_token_issue_failures_total",
		Help: "Total token issuance failures",
	}, []string{"type"})

	m.verificationsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_token_verifications_total",
		Help: "Total token verifications by outcome",
	}, []string{"type", "result"})

	m.sessionEventsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_session_events_total",
		Help: "Session lifecycle transitions",
	}, []string{"event", "result"})

	m.blacklistChecksTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_blacklist_checks_total",
		Help: "Blacklist lookups by result",
	}, []string{"result"})

	m.storeErrorsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_revocation_store_errors_total",
		Help: "Revocation store failures by operation",
	}, []string{"operation"})

	m.sweepRemovedKeysTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "auth_sweep_removed_keys_total",
		Help: "Residual keys removed by the periodic sweep",
	})

	return m
}

// RecordIssued records a successfully issued token.
func (m *Metrics) RecordIssued(tokenType string) {
	if m == nil || !m.enabled {
		return
	}
	m.tokensIssuedTotal.WithLabelValues(tokenType).Inc()
}

// RecordIssueFailure records a failed issuance.
func (m *Metrics) RecordIssueFailure(tokenType string) {
	if m == nil || !m.enabled {
		return
	}
	m.tokenIssueFailures.WithLabelValues(tokenType).Inc()
}

// RecordVerification records a verification outcome (valid, expired, invalid).
func (m *Metrics) RecordVerification(tokenType, result string) {
	if m == nil || !m.enabled {
		return
	}
	m.verificationsTotal.WithLabelValues(tokenType, result).Inc()
}

// RecordSessionEvent records a login/refresh/logout/invalidate outcome.
func (m *Metrics) RecordSessionEvent(event, result string) {
	if m == nil || !m.enabled {
		return
	}
	m.sessionEventsTotal.WithLabelValues(event, result).Inc()
}

func (m *Metrics) RecordBlacklistCheck(result string) {
	if m == nil || !m.enabled {
		return
	}
	m.blacklistChecksTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordStoreError(operation string) {
	if m == nil || !m.enabled {
		return
	}
	m.storeErrorsTotal.WithLabelValues(operation).Inc()
}

func (m *Metrics) RecordSweep(removed int) {
	if m == nil || !m.enabled || removed <= 0 {
		return
	}
	m.sweepRemovedKeysTotal.Add(float64(removed))
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || !m.enabled {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

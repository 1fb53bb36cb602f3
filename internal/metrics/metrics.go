package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	TokenVerificationFailures *prometheus.CounterVec
	SessionsCreated           prometheus.Counter
	SessionsRevoked           *prometheus.CounterVec
	SessionStoreErrors        *prometheus.CounterVec
	SessionFailOpen           prometheus.Counter
	TenantOverrides           *prometheus.CounterVec
	TenantContextMissing      *prometheus.CounterVec
	AuthenticateDuration      prometheus.Histogram
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer in
// main and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TokenVerificationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "academy_token_verification_failures_total",
			Help: "Token verification failures by kind",
		}, []string{"kind"}),
		SessionsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "academy_sessions_created_total",
			Help: "Total number of sessions created at login",
		}),
		SessionsRevoked: f.NewCounterVec(prometheus.CounterOpts{
			Name: "academy_sessions_revoked_total",
			Help: "Sessions revoked by reason",
		}, []string{"reason"}),
		SessionStoreErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "academy_session_store_errors_total",
			Help: "Session store failures by operation",
		}, []string{"op"}),
		SessionFailOpen: f.NewCounter(prometheus.CounterOpts{
			Name: "academy_session_fail_open_total",
			Help: "Read requests served on token validity while the session store was unavailable",
		}),
		TenantOverrides: f.NewCounterVec(prometheus.CounterOpts{
			Name: "academy_tenant_overrides_total",
			Help: "Writes whose caller-supplied tenant_id was replaced by the bound tenant",
		}, []string{"table"}),
		TenantContextMissing: f.NewCounterVec(prometheus.CounterOpts{
			Name: "academy_tenant_context_missing_total",
			Help: "Tenant-scoped data access attempted without a tenant context",
		}, []string{"table", "op"}),
		AuthenticateDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "academy_session_authenticate_duration_seconds",
			Help:    "Duration of per-request session authentication",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// session.Recorder

func (m *Metrics) VerificationFailed(kind string) {
	m.TokenVerificationFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) SessionCreated() {
	m.SessionsCreated.Inc()
}

func (m *Metrics) SessionRevoked(reason string) {
	m.SessionsRevoked.WithLabelValues(reason).Inc()
}

func (m *Metrics) StoreError(op string) {
	m.SessionStoreErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) FailOpen() {
	m.SessionFailOpen.Inc()
}

func (m *Metrics) ObserveAuthenticate(start time.Time) {
	m.AuthenticateDuration.Observe(time.Since(start).Seconds())
}

// isolation.Observer

func (m *Metrics) TenantOverride(_ context.Context, table, _, _ string) {
	m.TenantOverrides.WithLabelValues(table).Inc()
}

func (m *Metrics) MissingTenantContext(_ context.Context, table, op string) {
	m.TenantContextMissing.WithLabelValues(table, op).Inc()
}

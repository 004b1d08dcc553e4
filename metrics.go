package quickauth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcomes recorded on quickauth_requests_total.
const (
	OutcomeSuccess = "success"
	OutcomeInvalid = "invalid"
	OutcomeDenied  = "denied"
	OutcomeError   = "error"
)

// Metrics holds the Prometheus collectors updated by AuthService. A nil
// *Metrics records nothing.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	ProviderDuration *prometheus.HistogramVec
	EmailFailures    prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quickauth_requests_total",
				Help: "Total number of auth requests by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		ProviderDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quickauth_provider_request_duration_seconds",
				Help:    "Latency of identity provider calls",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		EmailFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "quickauth_email_failures_total",
				Help: "Password reset emails that could not be dispatched",
			},
		),
	}
	reg.MustRegister(m.RequestsTotal)
	reg.MustRegister(m.ProviderDuration)
	reg.MustRegister(m.EmailFailures)
	return m
}

func (m *Metrics) request(operation string, err error) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(operation, outcomeOf(err)).Inc()
}

func (m *Metrics) providerCall(provider string, start time.Time) {
	if m == nil {
		return
	}
	m.ProviderDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
}

func (m *Metrics) emailFailed() {
	if m == nil {
		return
	}
	m.EmailFailures.Inc()
}

func outcomeOf(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	ae, ok := AsAuthError(err)
	if !ok {
		return OutcomeError
	}
	switch ae.Kind {
	case KindValidation:
		return OutcomeInvalid
	case KindUpstream:
		return OutcomeError
	}
	return OutcomeDenied
}

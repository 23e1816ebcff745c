package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Failure classes reported by the renewal engine.
const (
	FailureFatal = "fatal" // unreadable cache or closed renewal window
	FailureSoft  = "soft"  // KDC unreachable, store failed; retried later
)

// RenewalMetrics instruments the renewal engine. A nil *RenewalMetrics is
// valid and records nothing.
type RenewalMetrics struct {
	attempts    prometheus.Counter
	failures    *prometheus.CounterVec
	lastSuccess prometheus.Gauge
}

// NewRenewalMetrics creates the renewal metric set, or returns nil when
// metrics are disabled.
func NewRenewalMetrics() *RenewalMetrics {
	reg := GetRegistry()
	if reg == nil {
		return nil
	}
	return &RenewalMetrics{
		attempts: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "krenewd_renewal_attempts_total",
			Help: "Total number of renewal attempts",
		}),
		failures: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "krenewd_renewal_failures_total",
			Help: "Total number of failed renewal attempts by failure class",
		}, []string{"class"}),
		lastSuccess: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "krenewd_last_successful_renewal_timestamp_seconds",
			Help: "Unix timestamp of the last successful renewal",
		}),
	}
}

// ObserveAttempt records one renewal attempt.
func (m *RenewalMetrics) ObserveAttempt() {
	if m != nil {
		m.attempts.Inc()
	}
}

// ObserveSuccess records a successful renewal.
func (m *RenewalMetrics) ObserveSuccess() {
	if m != nil {
		m.lastSuccess.Set(float64(time.Now().Unix()))
	}
}

// ObserveFailure records a failed renewal attempt of the given class.
func (m *RenewalMetrics) ObserveFailure(class string) {
	if m != nil {
		m.failures.WithLabelValues(class).Inc()
	}
}

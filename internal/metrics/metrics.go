// Package metrics exposes Prometheus collectors for issuance and check-in.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder is the set of collectors the services report to. A nil
// *Recorder is valid and records nothing.
type Recorder struct {
	validations      *prometheus.CounterVec
	validateDuration prometheus.Histogram
	issued           *prometheus.CounterVec
	authzDenials     *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		validations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkin_validations_total",
				Help: "Ticket scans by outcome",
			},
			[]string{"outcome"},
		),
		validateDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "checkin_validation_duration_seconds",
				Help:    "Time to validate a scanned ticket",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
			},
		),
		issued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tickets_issued_total",
				Help: "Tickets issued by result",
			},
			[]string{"result"},
		),
		authzDenials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "staff_authorization_denials_total",
				Help: "Staff authorization denials by reason",
			},
			[]string{"reason"},
		),
	}
	reg.MustRegister(r.validations, r.validateDuration, r.issued, r.authzDenials)
	return r
}

// TrackValidation records one scan outcome and its latency.
func (r *Recorder) TrackValidation(outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.validations.WithLabelValues(outcome).Inc()
	r.validateDuration.Observe(d.Seconds())
}

// TrackIssue records an issuance attempt.
func (r *Recorder) TrackIssue(result string) {
	if r == nil {
		return
	}
	r.issued.WithLabelValues(result).Inc()
}

// TrackDenial records a staff authorization denial.
func (r *Recorder) TrackDenial(reason string) {
	if r == nil {
		return
	}
	r.authzDenials.WithLabelValues(reason).Inc()
}

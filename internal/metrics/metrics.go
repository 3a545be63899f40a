// Package metrics exposes Prometheus collectors for sign-up attempts. Every method
// is safe to call on a nil *Metrics, which records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "enroll"

// Metrics groups the collectors shared by all engine instances in a process.
type Metrics struct {
	registry     *prometheus.Registry
	attempts     *prometheus.CounterVec
	steps        *prometheus.CounterVec
	provisions   *prometheus.CounterVec
	otpFetches   *prometheus.CounterVec
	otpWait      *prometheus.HistogramVec
	fieldCommits *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Sign-up attempts by final outcome.",
		}, []string{"outcome"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_outcomes_total",
			Help:      "Flow step outcomes.",
		}, []string{"step", "outcome"}),
		provisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mailbox",
			Name:      "provisions_total",
			Help:      "Mailbox provisioning calls by result.",
		}, []string{"result"}),
		otpFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "otp",
			Name:      "fetches_total",
			Help:      "Message retrieval attempts by capability and result.",
		}, []string{"capability", "result"}),
		otpWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "otp",
			Name:      "wait_seconds",
			Help:      "Time spent waiting for a code.",
			Buckets:   []float64{1, 3, 5, 10, 20, 30, 60, 90, 120, 180},
		}, []string{"result"}),
		fieldCommits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "form",
			Name:      "commits_total",
			Help:      "Field commits by the tier that verified them.",
		}, []string{"tier"}),
	}
	m.registry.MustRegister(
		m.attempts, m.steps, m.provisions, m.otpFetches, m.otpWait, m.fieldCommits,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Attempt(outcome string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Step(step, outcome string) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(step, outcome).Inc()
}

func (m *Metrics) Provision(ok bool) {
	if m == nil {
		return
	}
	m.provisions.WithLabelValues(result(ok)).Inc()
}

func (m *Metrics) Fetch(capability string, ok bool) {
	if m == nil {
		return
	}
	m.otpFetches.WithLabelValues(capability, result(ok)).Inc()
}

func (m *Metrics) OTPWait(found bool, d time.Duration) {
	if m == nil {
		return
	}
	label := "found"
	if !found {
		label = "absent"
	}
	m.otpWait.WithLabelValues(label).Observe(d.Seconds())
}

func (m *Metrics) FieldCommit(tier string) {
	if m == nil {
		return
	}
	m.fieldCommits.WithLabelValues(tier).Inc()
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

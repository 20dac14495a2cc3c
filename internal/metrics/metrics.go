// Package metrics holds the tenancy counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels.
const (
	OutcomeSuccess    = "success"
	OutcomeValidation = "validation"
	OutcomeNotFound   = "not_found"
	OutcomeConflict   = "conflict"
	OutcomePartial    = "partial_failure"
	OutcomeRemote     = "remote"
	OutcomeNoProperty = "no_property"
	OutcomeError      = "error"
)

// Compensation result labels.
const (
	CompensationRolledBack = "rolled_back"
	CompensationFailed     = "failed"
)

// Metrics holds all Prometheus metrics. A nil *Metrics records nothing.
type Metrics struct {
	OperationsTotal    *prometheus.CounterVec
	CompensationsTotal *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them on reg. A nil reg leaves
// them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kost_tenancy_operations_total",
				Help: "Total number of tenancy operations by outcome",
			},
			[]string{"op", "outcome"},
		),
		CompensationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kost_tenancy_compensations_total",
				Help: "Total number of compensating writes after a partial failure",
			},
			[]string{"op", "result"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.OperationsTotal, m.CompensationsTotal)
	}
	return m
}

// RecordOperation counts one finished operation.
func (m *Metrics) RecordOperation(op, outcome string) {
	if m == nil {
		return
	}
	m.OperationsTotal.WithLabelValues(op, outcome).Inc()
}

// RecordCompensation counts one compensation attempt.
func (m *Metrics) RecordCompensation(op string, rolledBack bool) {
	if m == nil {
		return
	}
	result := CompensationFailed
	if rolledBack {
		result = CompensationRolledBack
	}
	m.CompensationsTotal.WithLabelValues(op, result).Inc()
}

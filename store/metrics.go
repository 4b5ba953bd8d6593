package store

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "itinera"

// Metrics counts cache and maintenance activity. A nil *Metrics records
// nothing.
type Metrics struct {
	indexRebuilds       *prometheus.CounterVec
	ledgerReconciled    prometheus.Counter
	summaryLookups      *prometheus.CounterVec
	maintenanceFailures *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		indexRebuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "trip_index",
			Name:      "rebuilds_total",
			Help:      "Trip index rebuilds from a full prefix scan, by reason.",
		}, []string{"reason"}),
		ledgerReconciled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "pending_deletes",
			Name:      "reconciled_total",
			Help:      "Ledger entries dropped after the backend confirmed the delete.",
		}),
		summaryLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "summary",
			Name:      "lookups_total",
			Help:      "Summary cache lookups by result (hit, computed, unchanged, missing).",
		}, []string{"result"}),
		maintenanceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "maintenance",
			Name:      "failures_total",
			Help:      "Failed background maintenance tasks, by task.",
		}, []string{"task"}),
	}
	if reg != nil {
		reg.MustRegister(m.indexRebuilds, m.ledgerReconciled, m.summaryLookups, m.maintenanceFailures)
	}
	return m
}

func (m *Metrics) indexRebuilt(reason string) {
	if m == nil {
		return
	}
	m.indexRebuilds.WithLabelValues(reason).Inc()
}

func (m *Metrics) reconciled(n int) {
	if m == nil || n == 0 {
		return
	}
	m.ledgerReconciled.Add(float64(n))
}

func (m *Metrics) summaryLookup(result string) {
	if m == nil {
		return
	}
	m.summaryLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) maintenanceFailed(task string) {
	if m == nil {
		return
	}
	m.maintenanceFailures.WithLabelValues(task).Inc()
}

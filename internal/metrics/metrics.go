// Package metrics holds the engine's prometheus instrumentation, grounded on
// the teacher's internal/api promauto counters/histograms, generalized from
// HTTP-request metrics to engine-operation metrics (the core has no HTTP
// layer of its own — see spec §6).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "corebank_operations_total",
		Help: "Total engine operations processed, labeled by kind and outcome.",
	}, []string{"operation", "outcome"})

	OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "corebank_operation_duration_seconds",
		Help:    "Latency distribution of engine operations.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"operation"})

	RetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "corebank_retries_total",
		Help: "Total version-conflict retries, labeled by operation.",
	}, []string{"operation"})

	ReconciliationMismatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "corebank_reconciliation_mismatches_total",
		Help: "Total reconciliation runs that found cached and ledger balances diverged.",
	})
)

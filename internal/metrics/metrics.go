// Package metrics holds the Prometheus collectors for the desk.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RecordsSubmitted counts records appended by Submit.
var RecordsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "desk",
	Name:      "records_submitted_total",
	Help:      "Total records submitted by agents.",
})

// Transitions counts applied status transitions.
var Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "desk",
	Name:      "transitions_total",
	Help:      "Total status transitions applied, by source and target status.",
}, []string{"from", "to"})

// NotifyFailures counts push notifications that could not be delivered.
var NotifyFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "desk",
	Name:      "notify_failures_total",
	Help:      "Total push notifications that failed to send.",
})

// MalformedCharges counts charge values skipped during aggregation.
var MalformedCharges = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "desk",
	Name:      "malformed_charges_total",
	Help:      "Total charge values that could not be parsed during aggregation.",
})

// StoreErrors counts record store failures by operation.
var StoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "desk",
	Name:      "store_errors_total",
	Help:      "Total record store failures, by operation.",
}, []string{"op"})

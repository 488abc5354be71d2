// Package metrics holds the domain collectors exposed next to the gRPC ones.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "discovery"

var (
	// VotesCast counts stored votes by type.
	VotesCast = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "votes_cast_total",
		Help:      "Votes stored, by vote type.",
	}, []string{"type"})

	// MutualMatches counts likes that completed a mutual match.
	MutualMatches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mutual_matches_total",
		Help:      "Likes that completed a mutual match.",
	})

	// QueueRegenerations counts exhausted queues rebuilt from scratch.
	QueueRegenerations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "queue_regenerations_total",
		Help:      "Exhausted queues regenerated.",
	})

	// Rebalances counts profile create/delete passes over all queues.
	Rebalances = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rebalances_total",
		Help:      "Queue rebalances, by trigger.",
	}, []string{"trigger"})

	// Deliveries counts outbound alerts by kind and result.
	Deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "deliveries_total",
		Help:      "Outbound deliveries, by kind and result.",
	}, []string{"kind", "result"})
)

// Delivery results.
const (
	ResultOK     = "ok"
	ResultFailed = "failed"
)

// ObserveDelivery records one delivery attempt.
func ObserveDelivery(kind string, err error) {
	result := ResultOK
	if err != nil {
		result = ResultFailed
	}
	Deliveries.WithLabelValues(kind, result).Inc()
}

package snapshot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var queriesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "delegate",
		Subsystem: "snapshot",
		Name:      "queries_total",
		Help:      "GraphQL queries issued against the governance hub by outcome.",
	},
	[]string{"operation", "outcome"},
)

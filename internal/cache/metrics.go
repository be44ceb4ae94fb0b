package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	lookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "delegate",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by result (hit, miss, stale, coalesced).",
		},
		[]string{"cache", "result"},
	)

	loadErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "delegate",
			Subsystem: "cache",
			Name:      "load_errors_total",
			Help:      "Upstream loads that failed; the previous entry is kept.",
		},
		[]string{"cache"},
	)
)

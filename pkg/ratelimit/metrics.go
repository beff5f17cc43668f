package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rateLimitRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "validator_ratelimit_remaining",
		Help: "Requests remaining in the current server rate limit window",
	})

	rateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "validator_ratelimit_blocks_total",
		Help: "Total number of requests held until the rate limit window reset",
	})

	rateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "validator_ratelimit_throttles_total",
		Help: "Total number of requests throttled due to a low remaining quota",
	})

	rateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "validator_ratelimit_wait_seconds",
		Help:    "Time spent waiting before a request was allowed",
		Buckets: []float64{.001, .01, .05, .1, .5, 1, 5, 30},
	})
)

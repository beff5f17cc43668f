package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	outcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "validator_outcomes_total",
		Help: "Total validation outcomes by kind and reason or error code",
	}, []string{"kind", "code"})

	recordsInflight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "validator_records_inflight",
		Help: "Records currently being validated",
	})

	batchesCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "validator_batches_completed_total",
		Help: "Total batches with an outcome for every record",
	})

	pipelineDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "validator_pipeline_duration_seconds",
		Help:    "Wall time of a full pipeline run",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
	})
)

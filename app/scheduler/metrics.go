package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Delivery attempts partitioned by lane and outcome
	reportDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "measurement_report_deliveries_total",
			Help: "Report delivery attempts partitioned by lane and status code",
		},
		[]string{"lane", "status"},
	)

	// Wall time of one report delivery including both transactions
	reportDeliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "measurement_report_delivery_duration_seconds",
			Help:    "Report delivery latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"lane"},
	)

	// Candidate reports selected per lane run
	reportBatchCandidates = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "measurement_report_batch_candidates",
			Help:    "Number of pending reports selected by a lane run",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
		[]string{"lane"},
	)

	// Lane runs skipped because no encryption key was available
	reportBatchesWithoutKeys = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "measurement_report_batches_without_keys_total",
			Help: "Aggregate lane runs skipped because the encryption key pool was empty",
		},
		[]string{"lane"},
	)

	// Scheduler runs partitioned by job kind and whether they ran or were skipped
	reportingJobRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "measurement_reporting_job_runs_total",
			Help: "Reporting job runs partitioned by kind and result",
		},
		[]string{"kind", "result"},
	)
)

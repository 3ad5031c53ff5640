// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	LoanRiskTier = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_risk_tier_total",
			Help: "Applicants classified per risk tier",
		},
		[]string{"tier"},
	)

	LoanGrossPrincipal = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "loan_gross_principal",
			Help:    "Gross principal of priced loans",
			Buckets: []float64{1000, 5000, 10000, 25000, 50000, 100000, 250000, 500000, 1000000},
		},
	)

	FundingReservations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "funding_reservations_total",
			Help: "Investor funding reservation attempts by outcome",
		},
		[]string{"outcome"},
	)
)

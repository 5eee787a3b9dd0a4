package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Job metrics
	JobsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hutch_jobs_processed_total",
			Help: "Total number of jobs processed by job name",
		},
		[]string{"job"},
	)

	JobsFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hutch_jobs_failed_total",
			Help: "Total number of failed jobs by job name",
		},
		[]string{"job"},
	)

	JobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hutch_job_duration_seconds",
			Help:    "Job handler duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	// Restore sweep metrics
	RestoresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hutch_restores_total",
			Help: "Total number of machine restore attempts by result",
		},
		[]string{"result"},
	)

	RestoreSweepSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hutch_restore_sweep_skipped_total",
			Help: "Restore sweeps skipped because the lock was held elsewhere",
		},
	)

	// Certificate metrics
	CertificatesIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hutch_certificates_issued_total",
			Help: "Total number of certificates issued by authority",
		},
		[]string{"authority"},
	)

	CertificatesRenewalsQueued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hutch_certificate_renewals_queued_total",
			Help: "Total number of certificate renewals queued by the sweep",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(JobsProcessedTotal)
	prometheus.MustRegister(JobsFailedTotal)
	prometheus.MustRegister(JobDuration)
	prometheus.MustRegister(RestoresTotal)
	prometheus.MustRegister(RestoreSweepSkipped)
	prometheus.MustRegister(CertificatesIssuedTotal)
	prometheus.MustRegister(CertificatesRenewalsQueued)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	jobsSubmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdf2zh_jobs_submitted_total",
			Help: "Total number of translation jobs submitted.",
		},
		[]string{"service"},
	)

	jobsFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdf2zh_jobs_finished_total",
			Help: "Total number of translation jobs finished, by outcome.",
		},
		[]string{"service", "status"},
	)

	jobsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pdf2zh_jobs_active",
			Help: "Number of translation jobs currently running.",
		},
	)

	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pdf2zh_job_duration_seconds",
			Help:    "Translation job duration in seconds.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"service", "status"},
	)

	eventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdf2zh_job_events_total",
			Help: "Total number of job events published, by type.",
		},
		[]string{"type"},
	)

	jobsRegistered = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pdf2zh_jobs_registered",
			Help: "Number of jobs held in memory.",
		},
	)
)

func init() {
	prometheus.MustRegister(jobsSubmittedTotal)
	prometheus.MustRegister(jobsFinishedTotal)
	prometheus.MustRegister(jobsActive)
	prometheus.MustRegister(jobDuration)
	prometheus.MustRegister(eventsPublishedTotal)
	prometheus.MustRegister(jobsRegistered)
}

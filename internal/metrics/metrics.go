// Package metrics defines the Prometheus instrumentation for the scrape
// pipeline and avatar sessions.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	JobsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_jobs_submitted_total",
			Help: "Total number of scrape jobs submitted, labeled by mode.",
		},
		[]string{"mode"},
	)
	JobsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_jobs_finished_total",
			Help: "Total number of scrape jobs that reached a terminal state, labeled by outcome.",
		},
		[]string{"outcome"},
	)
	JobsByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "parley_jobs_by_status",
			Help: "Current number of jobs in each status.",
		},
		[]string{"status"},
	)
	PagesScraped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "parley_pages_scraped_total",
			Help: "Total number of pages scraped successfully.",
		},
	)
	PageScrapeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "parley_page_scrape_duration_seconds",
			Help:    "Duration of individual page scrape calls in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
	SummarizeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "parley_summarize_duration_seconds",
			Help:    "Duration of individual page summarization calls in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
	SessionsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_sessions_created_total",
			Help: "Total number of avatar sessions created, labeled by persona outcome.",
		},
		[]string{"persona"},
	)
	UpstreamErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_upstream_errors_total",
			Help: "Total number of upstream service failures, labeled by service.",
		},
		[]string{"service"},
	)
)

func init() {
	prometheus.MustRegister(JobsSubmitted)
	prometheus.MustRegister(JobsFinished)
	prometheus.MustRegister(JobsByStatus)
	prometheus.MustRegister(PagesScraped)
	prometheus.MustRegister(PageScrapeDuration)
	prometheus.MustRegister(SummarizeDuration)
	prometheus.MustRegister(SessionsCreated)
	prometheus.MustRegister(UpstreamErrors)
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

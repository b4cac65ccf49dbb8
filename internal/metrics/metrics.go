// Package metrics declares the Prometheus collectors exposed on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Survey submission results
const (
	ResultAccepted = "accepted"
	ResultInvalid  = "invalid"
	ResultCooldown = "cooldown"
	ResultError    = "error"
)

var (
	SurveySubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "survey_submissions_total",
			Help: "Survey submissions by result",
		},
		[]string{"result"},
	)

	OccupancyQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "occupancy_queries_total",
			Help: "Occupancy queries split by whether the window held any survey",
		},
		[]string{"has_data"},
	)

	OccupancyScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "occupancy_score",
			Help:    "Distribution of aggregated occupancy scores",
			Buckets: []float64{0, 25, 50, 75, 100},
		},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

func RecordSubmission(result string) {
	SurveySubmissions.WithLabelValues(result).Inc()
}

func RecordOccupancyQuery(score float64, samples int) {
	if samples == 0 {
		OccupancyQueries.WithLabelValues("false").Inc()
		return
	}
	OccupancyQueries.WithLabelValues("true").Inc()
	OccupancyScore.Observe(score)
}

func RecordAPIRequest(method, route, status string, duration time.Duration) {
	APIRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}

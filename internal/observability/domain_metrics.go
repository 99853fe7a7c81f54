package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	intentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nlqgate_intents_total",
			Help: "Total number of classified chat messages by intent type.",
		},
		[]string{"type"},
	)
	validationRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nlqgate_validation_rejections_total",
			Help: "Total number of statements rejected by the query validator, by failing check.",
		},
		[]string{"check"},
	)
	queryExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nlqgate_query_executions_total",
			Help: "Total number of query executions by outcome.",
		},
		[]string{"outcome"},
	)
	queryDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nlqgate_query_duration_seconds",
			Help:    "Query execution latency in seconds.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nlqgate_sessions_active",
			Help: "Current number of live conversation sessions.",
		},
	)
	sessionArchivesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nlqgate_session_archives_total",
			Help: "Total number of transcript archive uploads by outcome.",
		},
		[]string{"outcome"},
	)
	authFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nlqgate_auth_failures_total",
			Help: "Total number of rejected API keys by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		intentsTotal,
		validationRejectionsTotal,
		queryExecutionsTotal,
		queryDurationSeconds,
		sessionsActive,
		sessionArchivesTotal,
		authFailuresTotal,
	)
}

func IncrementIntent(intentType string) {
	intentsTotal.WithLabelValues(intentType).Inc()
}

func IncrementValidationRejection(check string) {
	validationRejectionsTotal.WithLabelValues(check).Inc()
}

// ObserveQueryExecution records one executor call. Outcome is one of
// success, failure or timeout.
func ObserveQueryExecution(outcome string, elapsed time.Duration) {
	queryExecutionsTotal.WithLabelValues(outcome).Inc()
	queryDurationSeconds.Observe(elapsed.Seconds())
}

func SetSessionsActive(count int) {
	if count < 0 {
		count = 0
	}
	sessionsActive.Set(float64(count))
}

func IncrementSessionArchive(outcome string) {
	sessionArchivesTotal.WithLabelValues(outcome).Inc()
}

func IncrementAuthFailure(reason string) {
	authFailuresTotal.WithLabelValues(reason).Inc()
}

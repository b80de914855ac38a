package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	TurnOutcomeAnswered          = "answered"
	TurnOutcomeStatementFailed   = "statement_failed"
	TurnOutcomeGenerationError   = "generation_error"
	TurnOutcomeStatementRejected = "statement_rejected"
	TurnOutcomeComposeFallback   = "compose_fallback"
)

var (
	chatTurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlchat_chat_turns_total",
			Help: "Total number of chat turns by outcome.",
		},
		[]string{"outcome"},
	)
	chatTurnDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sqlchat_chat_turn_duration_seconds",
			Help:    "End-to-end chat turn latency, including both model calls.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
	)
	generationFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlchat_generation_failures_total",
			Help: "Total number of failed SQL generation attempts.",
		},
	)
	statementFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlchat_statement_failures_total",
			Help: "Total number of generated statements rejected by the database.",
		},
	)
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sqlchat_active_sessions",
			Help: "Current count of open chat sessions.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		chatTurnsTotal,
		chatTurnDurationSeconds,
		generationFailuresTotal,
		statementFailuresTotal,
		activeSessions,
	)
}

func ObserveTurn(outcome string, elapsed time.Duration) {
	chatTurnsTotal.WithLabelValues(outcome).Inc()
	chatTurnDurationSeconds.Observe(elapsed.Seconds())
}

func IncrementGenerationFailure() {
	generationFailuresTotal.Inc()
}

func IncrementStatementFailure() {
	statementFailuresTotal.Inc()
}

func SetActiveSessions(count int) {
	if count < 0 {
		count = 0
	}
	activeSessions.Set(float64(count))
}

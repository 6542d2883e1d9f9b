package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeAnswered        = "answered"
	OutcomeNoResults       = "no_results"
	OutcomeRetrievalError  = "retrieval_error"
	OutcomeEnrichmentError = "enrichment_error"
	OutcomeSynthesisError  = "synthesis_error"
	OutcomeExecutionError  = "execution_error"
)

var (
	statsRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nbai_stats_requests_total",
			Help: "Total number of get_nba_stats invocations by outcome.",
		},
		[]string{"outcome"},
	)
	stageDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nbai_stage_duration_seconds",
			Help:    "Latency of each pipeline stage.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"},
	)
	tablesSelectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nbai_tables_selected_total",
			Help: "Number of times each table was chosen as a candidate.",
		},
		[]string{"table"},
	)
	queryRows = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nbai_query_rows",
			Help:    "Rows returned by executed statements.",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250, 1000},
		},
	)
	embeddingSnapshotStaleTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nbai_embedding_snapshot_stale_total",
			Help: "Loads of an embedding snapshot whose content hash no longer matches the catalog.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		statsRequestsTotal,
		stageDurationSeconds,
		tablesSelectedTotal,
		queryRows,
		embeddingSnapshotStaleTotal,
	)
}

func ObserveStatsOutcome(outcome string) {
	statsRequestsTotal.WithLabelValues(outcome).Inc()
}

func ObserveStage(stage string, elapsed time.Duration) {
	if elapsed < 0 {
		elapsed = 0
	}
	stageDurationSeconds.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func ObserveSelectedTables(names []string) {
	for _, name := range names {
		tablesSelectedTotal.WithLabelValues(name).Inc()
	}
}

func ObserveQueryRows(n int) {
	if n < 0 {
		n = 0
	}
	queryRows.Observe(float64(n))
}

func IncrementStaleSnapshot() {
	embeddingSnapshotStaleTotal.Inc()
}

package store

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transactionsInserted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stakewatch_store_transactions_inserted_total",
			Help: "Total number of transactions inserted into the store",
		},
	)

	transactionsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stakewatch_store_transactions_skipped_total",
			Help: "Total number of transactions skipped as duplicates on upsert",
		},
	)

	upsertDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stakewatch_store_upsert_duration_seconds",
			Help:    "Duration of transaction batch upserts",
			Buckets: prometheus.DefBuckets,
		},
	)

	checkpointWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stakewatch_store_checkpoint_writes_total",
			Help: "Total number of checkpoint writes",
		},
	)
)

func TransactionsInsertedAdd(n int) {
	transactionsInserted.Add(float64(n))
}

func TransactionsSkippedAdd(n int) {
	transactionsSkipped.Add(float64(n))
}

func UpsertDurationLog(duration time.Duration) {
	upsertDuration.Observe(duration.Seconds())
}

func CheckpointWriteInc() {
	checkpointWrites.Inc()
}

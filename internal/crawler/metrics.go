package crawler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	lastProcessedBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stakewatch_crawler_last_processed_block",
			Help: "Highest fully processed block number per contract",
		},
		[]string{"contract"},
	)

	chunksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stakewatch_crawler_chunks_processed_total",
			Help: "Total number of block chunks durably processed",
		},
		[]string{"contract"},
	)

	eventsIndexed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stakewatch_crawler_events_indexed_total",
			Help: "Total number of events indexed",
		},
		[]string{"contract"},
	)

	cycleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stakewatch_crawler_cycle_errors_total",
			Help: "Total number of crawl cycles aborted by an error",
		},
		[]string{"contract"},
	)

	cycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stakewatch_crawler_cycle_duration_seconds",
			Help:    "Duration of completed crawl cycles",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"contract"},
	)
)

func LastProcessedBlockSet(contract string, block uint64) {
	lastProcessedBlock.WithLabelValues(contract).Set(float64(block))
}

func ChunksProcessedInc(contract string) {
	chunksProcessed.WithLabelValues(contract).Inc()
}

func EventsIndexedAdd(contract string, n int) {
	eventsIndexed.WithLabelValues(contract).Add(float64(n))
}

func CycleErrorInc(contract string) {
	cycleErrors.WithLabelValues(contract).Inc()
}

func CycleDurationLog(contract string, duration time.Duration) {
	cycleDuration.WithLabelValues(contract).Observe(duration.Seconds())
}

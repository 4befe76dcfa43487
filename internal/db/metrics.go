package db

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "stakewatch"

var (
	maintenanceRuns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "maintenance_runs_total",
		Help:      "Total number of maintenance operations",
	})

	maintenanceOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "maintenance_outcomes_total",
		Help:      "Total number of maintenance operations by outcome",
	}, []string{"status"})

	maintenanceDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "maintenance_duration_seconds",
		Help:      "Duration of maintenance operations",
		Buckets:   prometheus.DefBuckets,
	})

	maintenanceLastRun = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "maintenance_last_run_timestamp",
		Help:      "Unix timestamp of last maintenance run",
	})

	maintenanceSpaceReclaimed = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "maintenance_space_reclaimed_bytes",
		Help:      "Bytes reclaimed by last maintenance operation",
	})

	walCheckpoints = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "wal_checkpoint_total",
		Help:      "Total number of WAL checkpoint operations",
	}, []string{"mode"})

	vacuumRuns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "vacuum_total",
		Help:      "Total number of VACUUM operations",
	})

	dbSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "db_size_bytes",
		Help:      "Database file size in bytes",
	}, []string{"type"})
)

// recordMaintenanceOutcome updates every maintenance metric in one place
// once a run has finished.
func recordMaintenanceOutcome(duration time.Duration, runErr error) {
	maintenanceDuration.Observe(duration.Seconds())
	maintenanceLastRun.Set(float64(time.Now().UTC().Unix()))

	status := "success"
	if runErr != nil {
		status = "error"
	}
	maintenanceOutcomes.WithLabelValues(status).Inc()
}

func recordMaintenanceStart() {
	maintenanceRuns.Inc()
}

func recordSpaceReclaimed(bytesReclaimed uint64) {
	maintenanceSpaceReclaimed.Set(float64(bytesReclaimed))
}

func recordWALCheckpoint(mode string) {
	walCheckpoints.WithLabelValues(strings.ToLower(mode)).Inc()
}

func recordVacuum() {
	vacuumRuns.Inc()
}

func recordDBSize(sizeBytes int64) {
	dbSize.WithLabelValues("total").Set(float64(sizeBytes))
}

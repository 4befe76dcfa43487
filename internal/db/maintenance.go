package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/stakewatch/stakewatch/internal/common"
	"github.com/stakewatch/stakewatch/internal/config"
	"github.com/stakewatch/stakewatch/internal/logger"
)

// Maintenance coordinates periodic SQLite housekeeping (WAL checkpoints
// and VACUUM) with normal database traffic.
type Maintenance interface {
	// Start begins background maintenance if enabled.
	Start(ctx context.Context) error
	// Stop stops background maintenance and waits for completion.
	Stop() error
	// AcquireOperationLock takes a shared lock for a database operation.
	// The returned release function must be called when the operation is done.
	AcquireOperationLock() func()
	// GetMetrics returns a snapshot of maintenance bookkeeping.
	GetMetrics() MaintenanceMetrics
	// RunMaintenance runs one maintenance pass immediately.
	RunMaintenance(ctx context.Context) error
}

// MaintenanceMetrics is a snapshot of the coordinator's bookkeeping.
type MaintenanceMetrics struct {
	LastMaintenanceTime  time.Time
	MaintenanceCount     uint64
	LastMaintenanceError error
}

// NewMaintenanceCoordinator builds the maintenance implementation for the
// given configuration. A nil configuration disables maintenance entirely.
func NewMaintenanceCoordinator(
	dbPath string,
	sqlDB *sql.DB,
	cfg *config.MaintenanceConfig,
	log *logger.Logger,
) Maintenance {
	if cfg == nil {
		return &NoOpMaintenance{}
	}

	return &MaintenanceCoordinator{
		sqlDB:  sqlDB,
		dbPath: dbPath,
		cfg:    *cfg,
		log:    log.WithComponent("db-maintenance"),
	}
}

// MaintenanceCoordinator serializes maintenance against regular database
// work using a RWMutex: store operations hold the read side, a maintenance
// pass takes the write side and therefore waits for in-flight operations
// and blocks new ones until it finishes.
type MaintenanceCoordinator struct {
	sqlDB  *sql.DB
	dbPath string
	cfg    config.MaintenanceConfig
	log    *logger.Logger

	opLock sync.RWMutex

	workerCtx    context.Context
	workerCancel context.CancelFunc
	workerWG     sync.WaitGroup

	statsMu sync.Mutex
	stats   MaintenanceMetrics
}

// Start runs an optional startup pass and launches the periodic worker.
func (m *MaintenanceCoordinator) Start(ctx context.Context) error {
	if !m.cfg.Enabled {
		m.log.Info("Background maintenance is disabled")
		return nil
	}

	m.workerCtx, m.workerCancel = context.WithCancel(ctx)

	if m.cfg.VacuumOnStartup {
		m.log.Info("Running startup maintenance")
		if err := m.RunMaintenance(m.workerCtx); err != nil {
			m.log.Warnf("Startup maintenance failed: %v", err)
		}
	}

	m.workerWG.Add(1)
	go m.loop(m.cfg.CheckInterval.Duration)

	m.log.Infof("Background maintenance started - interval: %v, checkpoint mode: %s",
		m.cfg.CheckInterval.Duration, m.cfg.WALCheckpointMode)

	return nil
}

// Stop cancels the worker and waits for any in-flight pass to finish.
func (m *MaintenanceCoordinator) Stop() error {
	if m.workerCancel == nil {
		return nil
	}

	m.log.Info("Stopping background maintenance...")
	m.workerCancel()
	m.workerWG.Wait()
	m.log.Info("Background maintenance stopped")

	return nil
}

func (m *MaintenanceCoordinator) loop(interval time.Duration) {
	defer m.workerWG.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.workerCtx.Done():
			return
		case <-ticker.C:
			m.log.Debug("Running periodic maintenance")
			if err := m.RunMaintenance(m.workerCtx); err != nil {
				m.log.Warnf("Periodic maintenance failed: %v", err)
			}
		}
	}
}

// AcquireOperationLock takes the shared side of the maintenance lock so
// that store operations can proceed concurrently with each other but
// never overlap a maintenance pass.
func (m *MaintenanceCoordinator) AcquireOperationLock() func() {
	m.opLock.RLock()
	return m.opLock.RUnlock
}

// RunMaintenance checkpoints the WAL and vacuums the database under the
// exclusive side of the operation lock.
func (m *MaintenanceCoordinator) RunMaintenance(ctx context.Context) error {
	m.log.Info("Starting database maintenance")
	start := time.Now().UTC()
	recordMaintenanceStart()

	m.opLock.Lock()
	defer m.opLock.Unlock()

	// The lock may have been held by a long operation; bail out if the
	// coordinator was stopped in the meantime.
	if ctx.Err() != nil {
		return ctx.Err()
	}

	sizeBefore, err := DBTotalSize(m.dbPath)
	if err != nil {
		m.log.Warnf("Failed to get initial DB size: %v", err)
	}

	var runErr error

	if err := m.checkpointWAL(); err != nil {
		m.log.Errorf("WAL checkpoint failed: %v", err)
		runErr = fmt.Errorf("WAL checkpoint failed: %w", err)
	}

	if err := Vacuum(m.sqlDB); err != nil {
		m.log.Warnf("VACUUM failed (may be expected in WAL mode): %v", err)
		if runErr == nil {
			runErr = fmt.Errorf("VACUUM failed: %w", err)
		}
	} else {
		recordVacuum()
		m.log.Info("VACUUM completed successfully")
	}

	sizeAfter, err := DBTotalSize(m.dbPath)
	if err != nil {
		m.log.Warnf("Failed to get final DB size: %v", err)
	}

	duration := time.Since(start)

	m.statsMu.Lock()
	m.stats.LastMaintenanceTime = time.Now().UTC()
	m.stats.MaintenanceCount++
	m.stats.LastMaintenanceError = runErr
	m.statsMu.Unlock()

	recordMaintenanceOutcome(duration, runErr)

	if runErr != nil {
		m.log.Warnf("Maintenance completed with errors in %v: %v", duration, runErr)
		return runErr
	}

	m.log.Infof("Maintenance completed successfully in %v.", duration)

	if sizeBefore > sizeAfter {
		reclaimed := uint64(sizeBefore - sizeAfter)
		recordSpaceReclaimed(reclaimed)
		m.log.Infof("Maintenance cleaned: %.2f MB", common.BytesToMB(reclaimed))
	}

	recordDBSize(sizeAfter)

	return nil
}

// GetMetrics returns a copy of the coordinator's bookkeeping.
func (m *MaintenanceCoordinator) GetMetrics() MaintenanceMetrics {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()

	return m.stats
}

// checkpointWAL runs a wal_checkpoint in the configured mode. It is a
// no-op when the database is not in WAL journal mode.
func (m *MaintenanceCoordinator) checkpointWAL() error {
	var mode string
	if err := m.sqlDB.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		return fmt.Errorf("failed to check journal mode: %w", err)
	}
	if !strings.EqualFold(mode, "wal") {
		m.log.Debug("Database not in WAL mode, skipping WAL checkpoint")
		return nil
	}

	checkpointSQL := fmt.Sprintf("PRAGMA wal_checkpoint(%s)", m.cfg.WALCheckpointMode)
	m.log.Debugf("Running: %s", checkpointSQL)

	var busyPages, logFrames, checkpointedFrames int
	if err := m.sqlDB.QueryRow(checkpointSQL).Scan(&busyPages, &logFrames, &checkpointedFrames); err != nil {
		return fmt.Errorf("failed to execute WAL checkpoint: %w", err)
	}

	m.log.Infof("WAL checkpoint complete - mode: %s, busy: %d, log_frames: %d, checkpointed: %d",
		m.cfg.WALCheckpointMode, busyPages, logFrames, checkpointedFrames)

	recordWALCheckpoint(m.cfg.WALCheckpointMode)

	if busyPages > 0 {
		m.log.Warnf("WAL checkpoint encountered %d busy pages (some pages not checkpointed)", busyPages)
	}

	return nil
}

// NoOpMaintenance satisfies Maintenance without doing anything. It is
// used when the maintenance section is absent from the configuration.
type NoOpMaintenance struct{}

func (m *NoOpMaintenance) Start(ctx context.Context) error          { return nil }
func (m *NoOpMaintenance) Stop() error                              { return nil }
func (m *NoOpMaintenance) RunMaintenance(ctx context.Context) error { return nil }
func (m *NoOpMaintenance) AcquireOperationLock() func()             { return func() {} }
func (m *NoOpMaintenance) GetMetrics() MaintenanceMetrics           { return MaintenanceMetrics{} }

package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stakewatch/stakewatch/internal/db"
	"github.com/stakewatch/stakewatch/internal/logger"
)

// ErrCheckpointNotFound is returned when no checkpoint exists for a contract.
var ErrCheckpointNotFound = errors.New("checkpoint not found")

// CheckpointStore persists per-contract crawl checkpoints.
type CheckpointStore struct {
	db                     *sql.DB
	log                    *logger.Logger
	maintenanceCoordinator db.Maintenance
}

// NewCheckpointStore creates a new SQLite-backed CheckpointStore.
func NewCheckpointStore(database *sql.DB, log *logger.Logger,
	maintenanceCoordinator db.Maintenance) *CheckpointStore {
	return &CheckpointStore{
		db:                     database,
		log:                    log.WithComponent("store"),
		maintenanceCoordinator: maintenanceCoordinator,
	}
}

// Get returns the last fully processed block for the given contract.
// Returns ErrCheckpointNotFound when the contract has never committed a chunk.
func (s *CheckpointStore) Get(contract common.Address) (uint64, error) {
	if s.maintenanceCoordinator != nil {
		unlock := s.maintenanceCoordinator.AcquireOperationLock()
		defer unlock()
	}

	var blockNumber uint64
	err := s.db.QueryRow(`
		SELECT block_number FROM checkpoints WHERE contract_address = ?
	`, contract.Hex()).Scan(&blockNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrCheckpointNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get checkpoint: %w", err)
	}

	return blockNumber, nil
}

// Set durably records the last fully processed block for the given contract.
// The write is committed before Set returns.
func (s *CheckpointStore) Set(contract common.Address, blockNumber uint64) error {
	if s.maintenanceCoordinator != nil {
		unlock := s.maintenanceCoordinator.AcquireOperationLock()
		defer unlock()
	}

	_, err := s.db.Exec(`
		INSERT INTO checkpoints (contract_address, block_number, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(contract_address) DO UPDATE SET
			block_number = excluded.block_number,
			updated_at = excluded.updated_at
	`, contract.Hex(), blockNumber, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to set checkpoint: %w", err)
	}

	CheckpointWriteInc()
	s.log.Debugf("saved checkpoint: contract=%s, block=%d", contract.Hex(), blockNumber)

	return nil
}

// Reset overwrites the checkpoint for a contract, typically to force a
// re-crawl from an earlier block. Already indexed events are deduplicated
// on re-insert, so resetting is safe.
func (s *CheckpointStore) Reset(contract common.Address, blockNumber uint64) error {
	if err := s.Set(contract, blockNumber); err != nil {
		return err
	}

	s.log.Warnf("checkpoint reset: contract=%s, block=%d", contract.Hex(), blockNumber)

	return nil
}

// LastCrawledBlock returns the minimum checkpoint across all contracts,
// i.e. the block up to which every tracked contract is guaranteed indexed.
// Returns nil when no contract has a checkpoint yet.
func (s *CheckpointStore) LastCrawledBlock() (*uint64, error) {
	if s.maintenanceCoordinator != nil {
		unlock := s.maintenanceCoordinator.AcquireOperationLock()
		defer unlock()
	}

	var blockNumber sql.NullInt64
	err := s.db.QueryRow(`SELECT MIN(block_number) FROM checkpoints`).Scan(&blockNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to get last crawled block: %w", err)
	}
	if !blockNumber.Valid {
		return nil, nil
	}

	block := uint64(blockNumber.Int64)

	return &block, nil
}

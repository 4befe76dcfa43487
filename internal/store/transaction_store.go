package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stakewatch/stakewatch/internal/db"
	"github.com/stakewatch/stakewatch/internal/logger"
	"github.com/russross/meddler"
)

const (
	// DefaultPageLimit is the page size used when the caller does not specify one.
	DefaultPageLimit = 10

	// MaxPageLimit is the maximum number of rows returned per page.
	MaxPageLimit = 100
)

// sortColumns whitelists the columns callers may sort by. Amount is stored
// as a decimal string, so it is cast for numeric ordering.
var sortColumns = map[string]string{
	"timestamp":    "timestamp",
	"block_number": "block_number",
	"amount":       "CAST(amount AS REAL)",
}

// ListParams controls pagination, ordering and filtering of transaction queries.
type ListParams struct {
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
	Search    string
	Address   *common.Address
}

// applyDefaults normalizes the params to safe values.
func (p *ListParams) applyDefaults() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if _, ok := sortColumns[p.SortBy]; !ok {
		p.SortBy = "timestamp"
	}
	if p.SortOrder != "asc" {
		p.SortOrder = "desc"
	}
}

// ListResult is one page of transactions plus pagination totals.
type ListResult struct {
	Docs       []*Transaction
	TotalDocs  int64
	TotalPages int64
}

// TransactionStore persists normalized staking events.
type TransactionStore struct {
	db                     *sql.DB
	log                    *logger.Logger
	maintenanceCoordinator db.Maintenance
}

// NewTransactionStore creates a new SQLite-backed TransactionStore.
func NewTransactionStore(database *sql.DB, log *logger.Logger,
	maintenanceCoordinator db.Maintenance) *TransactionStore {
	return &TransactionStore{
		db:                     database,
		log:                    log.WithComponent("store"),
		maintenanceCoordinator: maintenanceCoordinator,
	}
}

// UpsertBatch writes the given transactions in a single SQL transaction.
// Rows that already exist (same tx_hash and event_type) are skipped, so
// re-crawling a block range never produces duplicates. Returns the number
// of rows actually inserted.
func (s *TransactionStore) UpsertBatch(ctx context.Context, txs []*Transaction) (int, error) {
	if len(txs) == 0 {
		return 0, nil
	}

	if s.maintenanceCoordinator != nil {
		unlock := s.maintenanceCoordinator.AcquireOperationLock()
		defer unlock()
	}

	start := time.Now()

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := dbTx.Rollback(); err != nil && err != sql.ErrTxDone {
			s.log.Errorf("failed to rollback transaction: %v", err)
		}
	}()

	const upsertQuery = `
		INSERT INTO transactions
			(tx_hash, event_type, from_address, to_address, amount, block_number, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tx_hash, event_type) DO NOTHING
	`

	stmt, err := dbTx.PrepareContext(ctx, upsertQuery)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, t := range txs {
		res, err := stmt.ExecContext(ctx,
			t.TxHash.Hex(),
			t.EventType,
			t.FromAddress.Hex(),
			t.ToAddress.Hex(),
			t.Amount,
			t.BlockNumber,
			t.Timestamp,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to upsert transaction %s/%s: %w",
				t.TxHash.Hex(), t.EventType, err)
		}

		rows, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to get rows affected: %w", err)
		}
		inserted += int(rows)
	}

	if err := dbTx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	skipped := len(txs) - inserted
	TransactionsInsertedAdd(inserted)
	TransactionsSkippedAdd(skipped)
	UpsertDurationLog(time.Since(start))

	s.log.Debugf("upserted batch: total=%d, inserted=%d, skipped=%d",
		len(txs), inserted, skipped)

	return inserted, nil
}

// List returns one page of transactions ordered and filtered per params.
func (s *TransactionStore) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if s.maintenanceCoordinator != nil {
		unlock := s.maintenanceCoordinator.AcquireOperationLock()
		defer unlock()
	}

	params.applyDefaults()

	where, args := buildFilter(params)

	var totalDocs int64
	countQuery := "SELECT COUNT(*) FROM transactions" + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&totalDocs); err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}

	orderClause := fmt.Sprintf(" ORDER BY %s %s",
		sortColumns[params.SortBy], strings.ToUpper(params.SortOrder))
	pageQuery := "SELECT * FROM transactions" + where + orderClause + " LIMIT ? OFFSET ?"
	pageArgs := append(args, params.Limit, (params.Page-1)*params.Limit)

	var docs []*Transaction
	if err := meddler.QueryAll(s.db, &docs, pageQuery, pageArgs...); err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	if docs == nil {
		docs = []*Transaction{}
	}

	totalPages := totalDocs / int64(params.Limit)
	if totalDocs%int64(params.Limit) != 0 {
		totalPages++
	}

	return &ListResult{
		Docs:       docs,
		TotalDocs:  totalDocs,
		TotalPages: totalPages,
	}, nil
}

// ListByAddress returns one page of transactions sent by the given address.
func (s *TransactionStore) ListByAddress(ctx context.Context,
	address common.Address, params ListParams) (*ListResult, error) {
	params.Address = &address
	return s.List(ctx, params)
}

// MaxBlockNumber returns the highest block number among stored transactions,
// or 0 when the store is empty.
func (s *TransactionStore) MaxBlockNumber(ctx context.Context) (uint64, error) {
	if s.maintenanceCoordinator != nil {
		unlock := s.maintenanceCoordinator.AcquireOperationLock()
		defer unlock()
	}

	var maxBlock uint64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(block_number), 0) FROM transactions`).Scan(&maxBlock)
	if err != nil {
		return 0, fmt.Errorf("failed to get max block number: %w", err)
	}

	return maxBlock, nil
}

// MaxBlockNumberForContract returns the highest stored block number among
// events of the given contract, or 0 when none exist.
func (s *TransactionStore) MaxBlockNumberForContract(ctx context.Context,
	contract common.Address) (uint64, error) {
	if s.maintenanceCoordinator != nil {
		unlock := s.maintenanceCoordinator.AcquireOperationLock()
		defer unlock()
	}

	var maxBlock uint64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(block_number), 0) FROM transactions WHERE to_address = ? COLLATE NOCASE`,
		contract.Hex()).Scan(&maxBlock)
	if err != nil {
		return 0, fmt.Errorf("failed to get max block number for contract: %w", err)
	}

	return maxBlock, nil
}

// buildFilter assembles the WHERE clause for List queries.
func buildFilter(params ListParams) (string, []any) {
	var conditions []string
	var args []any

	if params.Address != nil {
		conditions = append(conditions, "from_address = ? COLLATE NOCASE")
		args = append(args, params.Address.Hex())
	}

	if params.Search != "" {
		conditions = append(conditions,
			"(tx_hash LIKE ? OR from_address LIKE ? OR event_type LIKE ?)")
		pattern := "%" + params.Search + "%"
		args = append(args, pattern, pattern, pattern)
	}

	if len(conditions) == 0 {
		return "", nil
	}

	return " WHERE " + strings.Join(conditions, " AND "), args
}

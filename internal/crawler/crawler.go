package crawler

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stakewatch/stakewatch/internal/config"
	"github.com/stakewatch/stakewatch/internal/logger"
	"github.com/stakewatch/stakewatch/internal/rpc"
	"github.com/stakewatch/stakewatch/internal/store"
)

// ChainClient is the chain access the crawler needs. Implemented by the
// rpc package and by mocks in tests.
type ChainClient interface {
	CurrentHeight(ctx context.Context) (uint64, error)
	GetLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error)
	BatchGetBlockTimestamps(ctx context.Context, blockNums []uint64) (map[uint64]uint64, error)
}

// CheckpointStore persists per-contract crawl progress.
type CheckpointStore interface {
	Get(contract common.Address) (uint64, error)
	Set(contract common.Address, blockNumber uint64) error
}

// TransactionStore persists normalized events.
type TransactionStore interface {
	UpsertBatch(ctx context.Context, txs []*store.Transaction) (int, error)
	MaxBlockNumberForContract(ctx context.Context, contract common.Address) (uint64, error)
}

// CrawlResult summarizes one crawl cycle for a contract.
type CrawlResult struct {
	ProcessedThrough uint64
	ChunksProcessed  int
	EventsIndexed    int
}

// Crawler scans block ranges for tracked contract events, normalizes them
// and stores them with checkpointed progress.
type Crawler struct {
	client       ChainClient
	checkpoints  CheckpointStore
	transactions TransactionStore
	cfg          config.CrawlerConfig
	log          *logger.Logger
}

// NewCrawler creates a new Crawler.
func NewCrawler(client ChainClient, checkpoints CheckpointStore,
	transactions TransactionStore, cfg config.CrawlerConfig, log *logger.Logger) *Crawler {
	return &Crawler{
		client:       client,
		checkpoints:  checkpoints,
		transactions: transactions,
		cfg:          cfg,
		log:          log.WithComponent("crawler"),
	}
}

// RunCycle crawls all new blocks for the given contract, chunk by chunk.
//
// The cycle reads the contract's checkpoint (seeding deploymentBlock-1 when
// none exists, without persisting the seed), compares against the current
// chain height and scans the gap in chunks of at most MaxBlocksPerQuery
// blocks. Each chunk is fully fetched, decoded and normalized before any
// write happens; the events are then upserted in one SQL transaction and
// only after that commit does the checkpoint advance to the chunk's upper
// bound. Any error aborts the cycle without advancing the checkpoint, so an
// interrupted cycle resumes exactly where the last durable chunk ended.
func (c *Crawler) RunCycle(ctx context.Context, contract *TrackedContract) (CrawlResult, error) {
	start := time.Now()

	last, err := c.checkpoints.Get(contract.Address)
	if errors.Is(err, store.ErrCheckpointNotFound) {
		// First cycle for this contract. The seed is not persisted: the
		// checkpoint table only ever holds fully processed chunks.
		last = contract.DeploymentBlock - 1
		c.log.Infof("no checkpoint for contract %s, starting from deployment block %d",
			contract.Name, contract.DeploymentBlock)
	} else if err != nil {
		CycleErrorInc(contract.Name)
		return CrawlResult{}, fmt.Errorf("failed to read checkpoint for %s: %w", contract.Name, err)
	}

	var height uint64
	err = c.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		height, err = c.client.CurrentHeight(ctx)
		return err
	})
	if err != nil {
		CycleErrorInc(contract.Name)
		return CrawlResult{}, fmt.Errorf("failed to get chain height: %w", err)
	}

	result := CrawlResult{ProcessedThrough: last}

	if height <= last {
		c.log.Debugf("contract %s up to date: checkpoint=%d, height=%d",
			contract.Name, last, height)
		return result, nil
	}

	c.log.Infof("crawling contract %s: blocks %d-%d", contract.Name, last+1, height)

	for last < height {
		if err := ctx.Err(); err != nil {
			CycleErrorInc(contract.Name)
			return result, err
		}

		to, indexed, err := c.processChunk(ctx, contract, last, height)
		if err != nil {
			CycleErrorInc(contract.Name)
			return result, fmt.Errorf("contract %s: chunk [%d, %d]: %w",
				contract.Name, last+1, to, err)
		}

		last = to
		result.ProcessedThrough = to
		result.ChunksProcessed++
		result.EventsIndexed += indexed

		LastProcessedBlockSet(contract.Name, to)
		ChunksProcessedInc(contract.Name)
		EventsIndexedAdd(contract.Name, indexed)
	}

	CycleDurationLog(contract.Name, time.Since(start))

	c.log.Infof("crawl cycle done for contract %s: through=%d, chunks=%d, events=%d",
		contract.Name, result.ProcessedThrough, result.ChunksProcessed, result.EventsIndexed)

	return result, nil
}

// processChunk fetches, normalizes and durably stores one chunk starting at
// last+1. When the RPC rejects the range as too large, the chunk is shrunk
// (to the provider's suggested range when one is given, halved otherwise)
// and retried. Returns the upper bound actually processed and the number of
// events indexed.
func (c *Crawler) processChunk(ctx context.Context, contract *TrackedContract,
	last, height uint64) (uint64, int, error) {
	from := last + 1
	span := c.cfg.MaxBlocksPerQuery

	for {
		to := min(last+span, height)

		logsByEvent, err := c.fetchChunkLogs(ctx, contract, from, to)
		if err != nil {
			tooMany, errData := rpc.IsTooManyResultsError(err)
			if !tooMany {
				return to, 0, err
			}

			newSpan := span / 2 //nolint:mnd
			if _, suggestedTo, ok := rpc.ParseSuggestedBlockRange(errData); ok && suggestedTo >= from {
				newSpan = suggestedTo - last
			}
			if newSpan < 1 || newSpan >= span {
				return to, 0, fmt.Errorf("cannot shrink block range below [%d, %d]: %w", from, to, err)
			}

			c.log.Warnf("too many results for blocks [%d, %d], shrinking chunk to %d blocks",
				from, to, newSpan)
			span = newSpan
			continue
		}

		txs, err := c.normalizeChunk(ctx, contract, logsByEvent)
		if err != nil {
			return to, 0, err
		}

		// Persist-then-checkpoint: the chunk's events must be durable
		// before the checkpoint may cover their blocks.
		inserted, err := c.transactions.UpsertBatch(ctx, txs)
		if err != nil {
			return to, 0, fmt.Errorf("failed to store events: %w", err)
		}

		if err := c.checkpoints.Set(contract.Address, to); err != nil {
			return to, 0, fmt.Errorf("failed to advance checkpoint: %w", err)
		}

		if skipped := len(txs) - inserted; skipped > 0 {
			c.log.Debugf("contract %s blocks [%d, %d]: %d events already indexed",
				contract.Name, from, to, skipped)
		}

		return to, inserted, nil
	}
}

// fetchChunkLogs queries the chunk once per tracked event type. All fetches
// must succeed before the chunk proceeds to normalization.
func (c *Crawler) fetchChunkLogs(ctx context.Context, contract *TrackedContract,
	from, to uint64) (map[int][]types.Log, error) {
	logsByEvent := make(map[int][]types.Log, len(contract.Events))

	for i, event := range contract.Events {
		query := ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(from),
			ToBlock:   new(big.Int).SetUint64(to),
			Addresses: []common.Address{contract.Address},
			Topics:    [][]common.Hash{{event.Topic}},
		}

		var logs []types.Log
		err := c.withTimeout(ctx, func(ctx context.Context) error {
			var err error
			logs, err = c.client.GetLogs(ctx, query)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s logs: %w", event.Event.Name, err)
		}

		logsByEvent[i] = logs
	}

	return logsByEvent, nil
}

// normalizeChunk decodes all fetched logs and resolves their block
// timestamps through a single batched header request per chunk.
func (c *Crawler) normalizeChunk(ctx context.Context, contract *TrackedContract,
	logsByEvent map[int][]types.Log) ([]*store.Transaction, error) {
	var raws []RawEvent
	blockSet := make(map[uint64]struct{})

	for i, logs := range logsByEvent {
		event := contract.Events[i]
		for _, log := range logs {
			if log.Removed {
				continue
			}

			raw, err := event.Decode(log)
			if err != nil {
				return nil, err
			}

			raws = append(raws, raw)
			blockSet[log.BlockNumber] = struct{}{}
		}
	}

	if len(raws) == 0 {
		return nil, nil
	}

	blockNums := make([]uint64, 0, len(blockSet))
	for num := range blockSet {
		blockNums = append(blockNums, num)
	}

	var timestamps map[uint64]uint64
	err := c.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		timestamps, err = c.client.BatchGetBlockTimestamps(ctx, blockNums)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch block timestamps: %w", err)
	}

	txs := make([]*store.Transaction, 0, len(raws))
	for _, raw := range raws {
		blockTime, ok := timestamps[raw.BlockNumber]
		if !ok {
			return nil, fmt.Errorf("missing timestamp for block %d", raw.BlockNumber)
		}

		tx, err := Normalize(raw, blockTime, contract.Address)
		if err != nil {
			return nil, err
		}

		txs = append(txs, tx)
	}

	return txs, nil
}

// VerifyConsistency checks that no stored event lies beyond the contract's
// checkpoint. A violation means a checkpoint write was lost and is logged
// at warn level rather than treated as fatal.
func (c *Crawler) VerifyConsistency(ctx context.Context, contract *TrackedContract) error {
	checkpoint, err := c.checkpoints.Get(contract.Address)
	if errors.Is(err, store.ErrCheckpointNotFound) {
		checkpoint = 0
	} else if err != nil {
		return fmt.Errorf("failed to read checkpoint: %w", err)
	}

	maxBlock, err := c.transactions.MaxBlockNumberForContract(ctx, contract.Address)
	if err != nil {
		return fmt.Errorf("failed to read max stored block: %w", err)
	}

	if maxBlock > checkpoint {
		c.log.Warnf("stored events beyond checkpoint for contract %s: max_block=%d, checkpoint=%d",
			contract.Name, maxBlock, checkpoint)
	}

	return nil
}

// withTimeout bounds an individual chain call with the configured request timeout.
func (c *Crawler) withTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	if c.cfg.RequestTimeout.Duration <= 0 {
		return fn(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout.Duration)
	defer cancel()

	return fn(ctx)
}

package rpc

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stakewatch/stakewatch/internal/config"
)

// Client wraps the Ethereum RPC client with the capabilities the crawler
// needs: chain height, event logs, and block timestamps. All calls go
// through the configured retry policy.
type Client struct {
	eth   *ethclient.Client
	rpc   *rpc.Client
	retry *config.RetryConfig
}

// NewClient creates a new RPC client connected to the given endpoint.
func NewClient(ctx context.Context, endpoint string, retry *config.RetryConfig) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	return &Client{
		eth:   ethclient.NewClient(rpcClient),
		rpc:   rpcClient,
		retry: retry,
	}, nil
}

// Close closes the RPC client connection.
func (c *Client) Close() {
	c.eth.Close()
}

// CurrentHeight returns the latest block number.
func (c *Client) CurrentHeight(ctx context.Context) (uint64, error) {
	const method = "eth_blockNumber"

	var height uint64
	err := c.withRetry(ctx, method, func() error {
		var err error
		height, err = c.eth.BlockNumber(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get current height: %w", err)
	}

	return height, nil
}

// GetLogs retrieves logs matching the given filter query.
func (c *Client) GetLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	const method = "eth_getLogs"

	var logs []types.Log
	err := c.withRetry(ctx, method, func() error {
		var err error
		logs, err = c.eth.FilterLogs(ctx, query)
		return err
	})
	if err != nil {
		return nil, err
	}

	return logs, nil
}

// GetBlockTimestamp returns the timestamp (seconds since epoch) of the given block.
func (c *Client) GetBlockTimestamp(ctx context.Context, blockNum uint64) (uint64, error) {
	const method = "eth_getBlockByNumber"

	var header *types.Header
	err := c.withRetry(ctx, method, func() error {
		var err error
		header, err = c.eth.HeaderByNumber(ctx, new(big.Int).SetUint64(blockNum))
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get header for block %d: %w", blockNum, err)
	}

	return header.Time, nil
}

// BatchGetBlockTimestamps retrieves the timestamps for multiple block numbers
// in batched eth_getBlockByNumber calls. The crawler uses this to resolve the
// timestamps of every unique block in a chunk with a single round trip.
func (c *Client) BatchGetBlockTimestamps(ctx context.Context, blockNums []uint64) (map[uint64]uint64, error) {
	const (
		method   = "eth_getBlockByNumber"
		maxBatch = 100
	)

	timestamps := make(map[uint64]uint64, len(blockNums))

	for i := 0; i < len(blockNums); i += maxBatch {
		end := min(i+maxBatch, len(blockNums))
		chunk := blockNums[i:end]

		batch := make([]rpc.BatchElem, len(chunk))
		results := make([]*types.Header, len(chunk))

		for j, blockNum := range chunk {
			batch[j] = rpc.BatchElem{
				Method: method,
				Args:   []any{toBlockNumArg(blockNum), false}, // false = don't include transactions
				Result: &results[j],
			}
		}

		err := c.withRetry(ctx, method, func() error {
			if err := c.rpc.BatchCallContext(ctx, batch); err != nil {
				return err
			}

			// Check for individual errors
			for _, elem := range batch {
				if elem.Error != nil {
					return elem.Error
				}
			}

			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to batch fetch block headers: %w", err)
		}

		for j, header := range results {
			if header == nil {
				return nil, fmt.Errorf("block %d not found", chunk[j])
			}
			timestamps[header.Number.Uint64()] = header.Time
		}
	}

	return timestamps, nil
}

// SubscribeNewHead subscribes to new chain head notifications.
// Only supported on websocket endpoints.
func (c *Client) SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error) {
	return c.eth.SubscribeNewHead(ctx, ch)
}

// withRetry executes fn with the configured retry policy and records metrics.
func (c *Client) withRetry(ctx context.Context, method string, fn func() error) error {
	recordRequest(method)
	start := time.Now()

	err := retryWithBackoff(ctx, c.retry, method, fn)
	observeCall(method, start, err)

	return err
}

// classifyError buckets an error for metrics labels.
func classifyError(err error) string {
	switch {
	case err == nil:
		return "none"
	case isTransient(err):
		return "transient"
	default:
		return "permanent"
	}
}

// toBlockNumArg converts a block number to hex format.
func toBlockNumArg(blockNum uint64) string {
	return fmt.Sprintf("0x%x", blockNum)
}

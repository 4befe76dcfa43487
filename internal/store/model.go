package store

import (
	"github.com/ethereum/go-ethereum/common"
)

// Transaction is a normalized staking event as stored in the database.
// Uses meddler tags for automatic struct-to-db mapping and JSON tags
// matching the query API response shape.
type Transaction struct {
	ID          int64          `meddler:"id,pk" json:"-"`
	TxHash      common.Hash    `meddler:"tx_hash,hash" json:"transactionHash"`
	EventType   string         `meddler:"event_type" json:"eventType"`
	FromAddress common.Address `meddler:"from_address,address" json:"fromAddress"`
	ToAddress   common.Address `meddler:"to_address,address" json:"toAddress"`
	Amount      string         `meddler:"amount" json:"amount"`
	BlockNumber uint64         `meddler:"block_number" json:"blockNumber"`
	Timestamp   uint64         `meddler:"timestamp" json:"timestamp"`
}

// Checkpoint records the highest fully processed block for a contract.
type Checkpoint struct {
	ContractAddress common.Address `meddler:"contract_address,address"`
	BlockNumber     uint64         `meddler:"block_number"`
	UpdatedAt       int64          `meddler:"updated_at"`
}

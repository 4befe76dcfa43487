package api

import (
	"time"

	"github.com/stakewatch/stakewatch/internal/store"
)

// TransactionPage is one page of transactions with pagination totals.
type TransactionPage struct {
	Docs       []*store.Transaction `json:"docs"`
	TotalPages int64                `json:"totalPages"`
	TotalDocs  int64                `json:"totalDocs"`
}

// LastCrawledBlockResponse reports the block up to which every tracked
// contract is indexed. Null until the first chunk has been committed.
type LastCrawledBlockResponse struct {
	LastCrawledBlock *uint64 `json:"lastCrawledBlock"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

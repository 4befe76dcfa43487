package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stakewatch/stakewatch/internal/logger"
	"github.com/stakewatch/stakewatch/internal/store"
)

// TransactionReader is the transaction query access the API needs.
type TransactionReader interface {
	List(ctx context.Context, params store.ListParams) (*store.ListResult, error)
	ListByAddress(ctx context.Context, address common.Address, params store.ListParams) (*store.ListResult, error)
}

// CheckpointReader exposes crawl progress to the API.
type CheckpointReader interface {
	LastCrawledBlock() (*uint64, error)
}

// Handler handles HTTP requests for the API.
type Handler struct {
	transactions TransactionReader
	checkpoints  CheckpointReader
	log          *logger.Logger
}

// NewHandler creates a new API handler.
func NewHandler(transactions TransactionReader, checkpoints CheckpointReader,
	log *logger.Logger) *Handler {
	return &Handler{
		transactions: transactions,
		checkpoints:  checkpoints,
		log:          log,
	}
}

// GetAllTransactions returns a page of all indexed transactions.
// @Summary List all transactions
// @Description Retrieve indexed staking events with pagination, sorting and free-text search
// @Tags Transactions
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size (max 100)" default(10)
// @Param sortBy query string false "Field to sort by" Enums(timestamp, amount, block_number) default(timestamp)
// @Param sortOrder query string false "Sort order" Enums(asc, desc) default(desc)
// @Param search query string false "Free-text search over tx hash, address and event type"
// @Success 200 {object} TransactionPage "Page of transactions"
// @Failure 400 {object} ErrorResponse "Invalid parameters"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /transactions/all [get]
func (h *Handler) GetAllTransactions(w http.ResponseWriter, r *http.Request) {
	params, err := parseListParams(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid query parameters", err)
		return
	}

	result, err := h.transactions.List(r.Context(), *params)
	if err != nil {
		h.log.Errorf("failed to list transactions: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to fetch transactions", err)
		return
	}

	respondJSON(w, http.StatusOK, pageResponse(result))
}

// GetUserTransactions returns a page of transactions sent by one address.
// @Summary List transactions for a user
// @Description Retrieve indexed staking events initiated by the given address
// @Tags Transactions
// @Produce json
// @Param address path string true "User address"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size (max 100)" default(10)
// @Param sortBy query string false "Field to sort by" Enums(timestamp, amount, block_number) default(timestamp)
// @Param sortOrder query string false "Sort order" Enums(asc, desc) default(desc)
// @Param search query string false "Free-text search over tx hash, address and event type"
// @Success 200 {object} TransactionPage "Page of transactions"
// @Failure 400 {object} ErrorResponse "Invalid parameters"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /transactions/user/{address} [get]
func (h *Handler) GetUserTransactions(w http.ResponseWriter, r *http.Request) {
	addressStr := r.PathValue("address")
	if !common.IsHexAddress(addressStr) {
		respondError(w, http.StatusBadRequest, "invalid address",
			fmt.Errorf("'%s' is not a valid address", addressStr))
		return
	}

	params, err := parseListParams(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid query parameters", err)
		return
	}

	result, err := h.transactions.ListByAddress(r.Context(), common.HexToAddress(addressStr), *params)
	if err != nil {
		h.log.Errorf("failed to list transactions for %s: %v", addressStr, err)
		respondError(w, http.StatusInternalServerError, "failed to fetch transactions", err)
		return
	}

	respondJSON(w, http.StatusOK, pageResponse(result))
}

// GetLastCrawledBlock reports how far the crawler has progressed.
// @Summary Get the last crawled block
// @Description Returns the lowest checkpoint across all tracked contracts, null before the first commit
// @Tags Transactions
// @Produce json
// @Success 200 {object} LastCrawledBlockResponse "Last crawled block"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /transactions/lastCrawledBlock [get]
func (h *Handler) GetLastCrawledBlock(w http.ResponseWriter, r *http.Request) {
	block, err := h.checkpoints.LastCrawledBlock()
	if err != nil {
		h.log.Errorf("failed to get last crawled block: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to fetch last crawled block", err)
		return
	}

	respondJSON(w, http.StatusOK, LastCrawledBlockResponse{LastCrawledBlock: block})
}

// Health returns the service health status.
// @Summary Health check
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse "Service is healthy"
// @Router /health [get]
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
	})
}

// parseListParams parses and validates pagination query parameters.
func parseListParams(r *http.Request) (*store.ListParams, error) {
	params := &store.ListParams{
		Page:      1,
		Limit:     store.DefaultPageLimit,
		SortBy:    "timestamp",
		SortOrder: "desc",
	}

	query := r.URL.Query()

	if pageStr := query.Get("page"); pageStr != "" {
		page, err := strconv.Atoi(pageStr)
		if err != nil || page < 1 {
			return nil, fmt.Errorf("invalid page: must be a positive integer")
		}
		params.Page = page
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 || limit > store.MaxPageLimit {
			return nil, fmt.Errorf("invalid limit: must be between 1 and %d", store.MaxPageLimit)
		}
		params.Limit = limit
	}

	if sortBy := query.Get("sortBy"); sortBy != "" {
		switch sortBy {
		case "timestamp", "amount", "block_number":
			params.SortBy = sortBy
		default:
			return nil, fmt.Errorf("invalid sortBy: must be 'timestamp', 'amount' or 'block_number'")
		}
	}

	if sortOrder := query.Get("sortOrder"); sortOrder != "" {
		sortOrder = strings.ToLower(sortOrder)
		if sortOrder != "asc" && sortOrder != "desc" {
			return nil, fmt.Errorf("invalid sortOrder: must be 'asc' or 'desc'")
		}
		params.SortOrder = sortOrder
	}

	params.Search = query.Get("search")

	return params, nil
}

func pageResponse(result *store.ListResult) TransactionPage {
	return TransactionPage{
		Docs:       result.Docs,
		TotalPages: result.TotalPages,
		TotalDocs:  result.TotalDocs,
	}
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")

	// Encode JSON first to catch any errors before writing status
	encoded, err := json.Marshal(data)
	if err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)

	if _, err := w.Write(encoded); err != nil {
		// Headers already sent, nothing left to do
		return
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := ErrorResponse{
		Message: message,
	}
	if err != nil {
		response.Error = err.Error()
	}
	respondJSON(w, status, response)
}

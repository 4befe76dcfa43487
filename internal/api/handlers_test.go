package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stakewatch/stakewatch/internal/config"
	"github.com/stakewatch/stakewatch/internal/logger"
	"github.com/stakewatch/stakewatch/internal/store"
	"github.com/stretchr/testify/require"
)

type fakeTransactionReader struct {
	lastParams  store.ListParams
	lastAddress *common.Address
	result      *store.ListResult
	err         error
}

func (f *fakeTransactionReader) List(_ context.Context, params store.ListParams) (*store.ListResult, error) {
	f.lastParams = params
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeTransactionReader) ListByAddress(_ context.Context,
	address common.Address, params store.ListParams) (*store.ListResult, error) {
	f.lastAddress = &address
	f.lastParams = params
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeCheckpointReader struct {
	block *uint64
	err   error
}

func (f *fakeCheckpointReader) LastCrawledBlock() (*uint64, error) {
	return f.block, f.err
}

func setupTestServer(t *testing.T, transactions *fakeTransactionReader,
	checkpoints *fakeCheckpointReader) *httptest.Server {
	t.Helper()

	log, err := logger.NewLogger("error", true)
	require.NoError(t, err)

	cfg := &config.APIConfig{Enabled: true}
	cfg.ApplyDefaults()

	server := NewServer(cfg, transactions, checkpoints, log)
	ts := httptest.NewServer(server.server.Handler)
	t.Cleanup(ts.Close)

	return ts
}

func emptyResult() *store.ListResult {
	return &store.ListResult{Docs: []*store.Transaction{}}
}

func getJSON(t *testing.T, url string, expStatus int, target any) {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, expStatus, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}

func TestGetAllTransactions(t *testing.T) {
	transactions := &fakeTransactionReader{
		result: &store.ListResult{
			Docs: []*store.Transaction{
				{
					TxHash:      common.HexToHash("0x01"),
					EventType:   "Deposited",
					FromAddress: common.HexToAddress("0x1111111111111111111111111111111111111111"),
					ToAddress:   common.HexToAddress("0x9999999999999999999999999999999999999999"),
					Amount:      "1000",
					BlockNumber: 120,
					Timestamp:   1700000120,
				},
			},
			TotalDocs:  11,
			TotalPages: 2,
		},
	}
	ts := setupTestServer(t, transactions, &fakeCheckpointReader{})

	var page TransactionPage
	getJSON(t, ts.URL+"/transactions/all", http.StatusOK, &page)

	require.Equal(t, int64(11), page.TotalDocs)
	require.Equal(t, int64(2), page.TotalPages)
	require.Len(t, page.Docs, 1)
	require.Equal(t, "Deposited", page.Docs[0].EventType)
	require.Equal(t, "1000", page.Docs[0].Amount)

	// Defaults applied when no query params given
	require.Equal(t, 1, transactions.lastParams.Page)
	require.Equal(t, store.DefaultPageLimit, transactions.lastParams.Limit)
	require.Equal(t, "timestamp", transactions.lastParams.SortBy)
	require.Equal(t, "desc", transactions.lastParams.SortOrder)
}

func TestGetAllTransactions_QueryParams(t *testing.T) {
	transactions := &fakeTransactionReader{result: emptyResult()}
	ts := setupTestServer(t, transactions, &fakeCheckpointReader{})

	var page TransactionPage
	getJSON(t, ts.URL+"/transactions/all?page=3&limit=25&sortBy=amount&sortOrder=ASC&search=Withdrawn",
		http.StatusOK, &page)

	require.Equal(t, 3, transactions.lastParams.Page)
	require.Equal(t, 25, transactions.lastParams.Limit)
	require.Equal(t, "amount", transactions.lastParams.SortBy)
	require.Equal(t, "asc", transactions.lastParams.SortOrder)
	require.Equal(t, "Withdrawn", transactions.lastParams.Search)
}

func TestGetAllTransactions_InvalidParams(t *testing.T) {
	ts := setupTestServer(t, &fakeTransactionReader{result: emptyResult()}, &fakeCheckpointReader{})

	testCases := []struct {
		name  string
		query string
	}{
		{name: "page zero", query: "page=0"},
		{name: "page not a number", query: "page=abc"},
		{name: "limit zero", query: "limit=0"},
		{name: "limit too large", query: "limit=101"},
		{name: "unknown sortBy", query: "sortBy=gas_used"},
		{name: "unknown sortOrder", query: "sortOrder=sideways"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var errResp ErrorResponse
			getJSON(t, ts.URL+"/transactions/all?"+tc.query, http.StatusBadRequest, &errResp)
			require.Equal(t, "invalid query parameters", errResp.Message)
			require.NotEmpty(t, errResp.Error)
		})
	}
}

func TestGetAllTransactions_StoreError(t *testing.T) {
	transactions := &fakeTransactionReader{err: errors.New("database locked")}
	ts := setupTestServer(t, transactions, &fakeCheckpointReader{})

	var errResp ErrorResponse
	getJSON(t, ts.URL+"/transactions/all", http.StatusInternalServerError, &errResp)
	require.Equal(t, "failed to fetch transactions", errResp.Message)
	require.Equal(t, "database locked", errResp.Error)
}

func TestGetUserTransactions(t *testing.T) {
	transactions := &fakeTransactionReader{result: emptyResult()}
	ts := setupTestServer(t, transactions, &fakeCheckpointReader{})

	var page TransactionPage
	getJSON(t, ts.URL+"/transactions/user/0x1111111111111111111111111111111111111111",
		http.StatusOK, &page)

	require.NotNil(t, transactions.lastAddress)
	require.Equal(t,
		common.HexToAddress("0x1111111111111111111111111111111111111111"),
		*transactions.lastAddress)
}

func TestGetUserTransactions_InvalidAddress(t *testing.T) {
	ts := setupTestServer(t, &fakeTransactionReader{result: emptyResult()}, &fakeCheckpointReader{})

	var errResp ErrorResponse
	getJSON(t, ts.URL+"/transactions/user/not-an-address", http.StatusBadRequest, &errResp)
	require.Equal(t, "invalid address", errResp.Message)
}

func TestGetLastCrawledBlock(t *testing.T) {
	block := uint64(12345)
	ts := setupTestServer(t, &fakeTransactionReader{}, &fakeCheckpointReader{block: &block})

	var resp LastCrawledBlockResponse
	getJSON(t, ts.URL+"/transactions/lastCrawledBlock", http.StatusOK, &resp)
	require.NotNil(t, resp.LastCrawledBlock)
	require.Equal(t, uint64(12345), *resp.LastCrawledBlock)
}

func TestGetLastCrawledBlock_Null(t *testing.T) {
	ts := setupTestServer(t, &fakeTransactionReader{}, &fakeCheckpointReader{})

	resp, err := http.Get(ts.URL + "/transactions/lastCrawledBlock")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var raw map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	require.Equal(t, "null", string(raw["lastCrawledBlock"]))
}

func TestGetLastCrawledBlock_Error(t *testing.T) {
	ts := setupTestServer(t, &fakeTransactionReader{},
		&fakeCheckpointReader{err: errors.New("database locked")})

	var errResp ErrorResponse
	getJSON(t, ts.URL+"/transactions/lastCrawledBlock", http.StatusInternalServerError, &errResp)
	require.Equal(t, "failed to fetch last crawled block", errResp.Message)
}

func TestHealth(t *testing.T) {
	ts := setupTestServer(t, &fakeTransactionReader{}, &fakeCheckpointReader{})

	var resp HealthResponse
	getJSON(t, ts.URL+"/health", http.StatusOK, &resp)
	require.Equal(t, "ok", resp.Status)
	require.False(t, resp.Timestamp.IsZero())
}

func TestUnknownRouteReturns404(t *testing.T) {
	ts := setupTestServer(t, &fakeTransactionReader{}, &fakeCheckpointReader{})

	resp, err := http.Get(ts.URL + "/transactions")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

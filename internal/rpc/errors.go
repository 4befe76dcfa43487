package rpc

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/stakewatch/stakewatch/internal/common"
)

// Providers cap eth_getLogs result sets and reject oversized queries with
// messages like:
//
//	Query returned more than 20000 results. Try with this block range [0x7dfd25, 0x7e0fcc].
var (
	tooManyResultsRE = regexp.MustCompile(`Query returned more than \d+ results`)
	blockRangeRE     = regexp.MustCompile(`\[(0x[0-9a-fA-F]+),\s*(0x[0-9a-fA-F]+)\]`)
)

// IsTooManyResultsError reports whether err is a provider's "too many
// results" rejection. The provider's message is returned so the caller can
// extract the suggested block range from it.
func IsTooManyResultsError(err error) (bool, string) {
	var dataErr rpc.DataError
	if err == nil || !errors.As(err, &dataErr) {
		return false, ""
	}

	msg := fmt.Sprintf("%v", dataErr.ErrorData())

	return tooManyResultsRE.MatchString(msg), msg
}

// ParseSuggestedBlockRange extracts the block range a provider suggested
// in a "too many results" message. ok is false when the message carries no
// parseable range.
func ParseSuggestedBlockRange(msg string) (fromBlock, toBlock uint64, ok bool) {
	groups := blockRangeRE.FindStringSubmatch(msg)
	if len(groups) != 3 {
		return 0, 0, false
	}

	from, errFrom := common.ParseUint64orHex(&groups[1])
	to, errTo := common.ParseUint64orHex(&groups[2])
	if errFrom != nil || errTo != nil {
		return 0, 0, false
	}

	return from, to, true
}

package common

import (
	"strconv"
	"strings"
)

// ParseUint64orHex parses a block number that may be given either as a
// decimal string or as 0x-prefixed hex, the two encodings JSON-RPC
// providers use. A nil input parses as zero.
func ParseUint64orHex(val *string) (uint64, error) {
	if val == nil {
		return 0, nil
	}

	if hex, ok := strings.CutPrefix(*val, "0x"); ok {
		return strconv.ParseUint(hex, 16, 64)
	}

	return strconv.ParseUint(*val, 10, 64)
}

// ToLowerWithTrim normalizes user-supplied identifiers such as log levels
// and contract names.
func ToLowerWithTrim(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// BytesToMB converts a byte count to megabytes for log output.
func BytesToMB(bytes uint64) float64 {
	return float64(bytes) / float64(1024*1024)
}

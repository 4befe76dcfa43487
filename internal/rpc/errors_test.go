package rpc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubDataError struct {
	msg  string
	data any
}

func (e *stubDataError) Error() string  { return e.msg }
func (e *stubDataError) ErrorData() any { return e.data }

func dataErr(msg string) error {
	return &stubDataError{msg: msg, data: msg}
}

func TestIsTooManyResultsError(t *testing.T) {
	t.Parallel()

	providerMsg := "Query returned more than 10000 results. " +
		"Try with this block range [0x112a880, 0x112bc00]."

	match, data := IsTooManyResultsError(nil)
	require.False(t, match)
	require.Empty(t, data)

	match, data = IsTooManyResultsError(errors.New("connection refused"))
	require.False(t, match)
	require.Empty(t, data)

	// A DataError still has to carry the provider's result-cap message.
	match, data = IsTooManyResultsError(dataErr("execution reverted"))
	require.False(t, match)
	require.Equal(t, "execution reverted", data)

	match, data = IsTooManyResultsError(dataErr(providerMsg))
	require.True(t, match)
	require.Equal(t, providerMsg, data)

	// Wrapped DataErrors are unwrapped.
	wrapped := errors.Join(errors.New("eth_getLogs failed"), dataErr(providerMsg))
	match, _ = IsTooManyResultsError(wrapped)
	require.True(t, match)
}

func TestParseSuggestedBlockRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		errData  string
		wantFrom uint64
		wantTo   uint64
		wantOK   bool
	}{
		{
			name: "empty",
		},
		{
			name:    "no range in message",
			errData: "Query returned more than 10000 results.",
		},
		{
			name:     "provider suggested range",
			errData:  "Query returned more than 10000 results. Try with this block range [0x112a880, 0x112bc00].",
			wantFrom: 0x112a880,
			wantTo:   0x112bc00,
			wantOK:   true,
		},
		{
			name:     "whitespace between bounds",
			errData:  "Try with this block range [0x10,   0x2f].",
			wantFrom: 16,
			wantTo:   47,
			wantOK:   true,
		},
		{
			name:    "bounds without brackets",
			errData: "Try with this block range 0x10, 0x2f.",
		},
		{
			name:     "first range wins",
			errData:  "ranges [0x10, 0x20] then [0x30, 0x40]",
			wantFrom: 0x10,
			wantTo:   0x20,
			wantOK:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			from, to, ok := ParseSuggestedBlockRange(tt.errData)
			require.Equal(t, tt.wantOK, ok)
			require.Equal(t, tt.wantFrom, from)
			require.Equal(t, tt.wantTo, to)
		})
	}
}

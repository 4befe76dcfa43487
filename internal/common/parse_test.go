package common

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseUint64orHex(t *testing.T) {
	tests := []struct {
		name    string
		input   *string
		want    uint64
		wantErr bool
	}{
		{name: "nil input", input: nil, want: 0},
		{name: "decimal block number", input: strPtr("18000000"), want: 18000000},
		{name: "hex block number", input: strPtr("0x112a880"), want: 0x112a880},
		{name: "uppercase hex", input: strPtr("0xFF"), want: 0xFF},
		{name: "zero", input: strPtr("0"), want: 0},
		{name: "mixed garbage", input: strPtr("12abc"), wantErr: true},
		{name: "bad hex digits", input: strPtr("0xzz"), wantErr: true},
		{name: "empty string", input: strPtr(""), wantErr: true},
		{name: "negative", input: strPtr("-1"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseUint64orHex(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestToLowerWithTrim(t *testing.T) {
	require.Equal(t, "debug", ToLowerWithTrim("  DEBUG "))
	require.Equal(t, "crawler", ToLowerWithTrim("Crawler"))
	require.Equal(t, "", ToLowerWithTrim("   "))
}

func TestBytesToMB(t *testing.T) {
	require.Equal(t, float64(0), BytesToMB(0))
	require.Equal(t, float64(1), BytesToMB(1024*1024))
	require.Equal(t, 2.5, BytesToMB(2*1024*1024+512*1024))
}

func strPtr(s string) *string {
	return &s
}

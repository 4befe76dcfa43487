package crawler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseEventSignature(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		signature string
		expErr    bool
		expName   string
		expParams []EventParam
	}{
		{
			name:      "full form with indexed",
			signature: "Deposited(address indexed user, uint256 amount)",
			expName:   "Deposited",
			expParams: []EventParam{
				{Name: "user", Type: "address", Indexed: true},
				{Name: "amount", Type: "uint256", Indexed: false},
			},
		},
		{
			name:      "named without indexed",
			signature: "APRUpdated(uint256 newBaseAPR)",
			expName:   "APRUpdated",
			expParams: []EventParam{
				{Name: "newBaseAPR", Type: "uint256", Indexed: false},
			},
		},
		{
			name:      "types only get positional names",
			signature: "Transfer(address,address,uint256)",
			expName:   "Transfer",
			expParams: []EventParam{
				{Name: "param0", Type: "address", Indexed: false},
				{Name: "param1", Type: "address", Indexed: false},
				{Name: "param2", Type: "uint256", Indexed: false},
			},
		},
		{
			name:      "no parameters",
			signature: "Paused()",
			expName:   "Paused",
			expParams: []EventParam{},
		},
		{
			name:      "empty signature",
			signature: "",
			expErr:    true,
		},
		{
			name:      "missing parenthesis",
			signature: "Deposited",
			expErr:    true,
		},
		{
			name:      "lowercase event name",
			signature: "deposited(address user)",
			expErr:    true,
		},
		{
			name:      "invalid type",
			signature: "Deposited(notatype user)",
			expErr:    true,
		},
		{
			name:      "duplicate parameter names",
			signature: "Deposited(address user, uint256 user)",
			expErr:    true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			sig, err := ParseEventSignature(tc.signature)
			if tc.expErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.expName, sig.Name)
			require.Equal(t, tc.expParams, sig.Params)
		})
	}
}

func TestEventSignature_ABIEvent(t *testing.T) {
	t.Parallel()

	sig, err := ParseEventSignature("Deposited(address indexed user, uint256 amount)")
	require.NoError(t, err)

	event, err := sig.ABIEvent()
	require.NoError(t, err)
	require.Equal(t, "Deposited", event.Name)
	require.Len(t, event.Inputs, 2)
	require.True(t, event.Inputs[0].Indexed)
	require.False(t, event.Inputs[1].Indexed)

	// Topic is the keccak hash of the canonical signature
	require.Equal(t, "Deposited(address,uint256)", event.Sig)
	require.NotZero(t, event.ID)

	// Same canonical signature yields the same topic regardless of names
	other, err := ParseEventSignature("Deposited(address,uint256)")
	require.NoError(t, err)
	otherEvent, err := other.ABIEvent()
	require.NoError(t, err)
	require.Equal(t, event.ID, otherEvent.ID)
}

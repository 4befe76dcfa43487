package crawler

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stakewatch/stakewatch/internal/store"
)

// RawEvent is a decoded contract event before normalization.
type RawEvent struct {
	Name        string
	Args        map[string]any
	TxHash      common.Hash
	BlockNumber uint64
}

// Decode unpacks a chain log into a RawEvent using the event's ABI.
func (e *EventDef) Decode(log types.Log) (RawEvent, error) {
	if len(log.Topics) == 0 || log.Topics[0] != e.Topic {
		return RawEvent{}, fmt.Errorf("log topic does not match event %s", e.Event.Name)
	}

	args := make(map[string]any)

	var indexed abi.Arguments
	for _, arg := range e.Event.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}

	if len(indexed) > 0 {
		if len(log.Topics)-1 != len(indexed) {
			return RawEvent{}, fmt.Errorf("event %s: expected %d indexed topics, got %d",
				e.Event.Name, len(indexed), len(log.Topics)-1)
		}
		if err := abi.ParseTopicsIntoMap(args, indexed, log.Topics[1:]); err != nil {
			return RawEvent{}, fmt.Errorf("event %s: failed to parse topics: %w",
				e.Event.Name, err)
		}
	}

	if len(log.Data) > 0 {
		if err := e.Event.Inputs.UnpackIntoMap(args, log.Data); err != nil {
			return RawEvent{}, fmt.Errorf("event %s: failed to unpack data: %w",
				e.Event.Name, err)
		}
	}

	return RawEvent{
		Name:        e.Event.Name,
		Args:        args,
		TxHash:      log.TxHash,
		BlockNumber: log.BlockNumber,
	}, nil
}

// Normalize maps a decoded event into the flat transaction record.
//
// The subject address is taken from the "user" argument, falling back to
// "owner" for NFT ownership events. An event carrying neither is malformed
// and fails the whole chunk rather than being silently skipped.
//
// The amount is taken from "amount", falling back to "reward", then
// "newBaseAPR", then the literal "0" for purely informational events.
// Values are kept in chain-native integer units as decimal strings.
func Normalize(raw RawEvent, blockTime uint64, contractAddr common.Address) (*store.Transaction, error) {
	from, err := subjectAddress(raw.Args)
	if err != nil {
		return nil, fmt.Errorf("event %s in tx %s: %w", raw.Name, raw.TxHash.Hex(), err)
	}

	return &store.Transaction{
		TxHash:      raw.TxHash,
		EventType:   raw.Name,
		FromAddress: from,
		ToAddress:   contractAddr,
		Amount:      amountString(raw.Args),
		BlockNumber: raw.BlockNumber,
		Timestamp:   blockTime,
	}, nil
}

// subjectAddress extracts the user-facing address from event arguments.
func subjectAddress(args map[string]any) (common.Address, error) {
	for _, key := range []string{"user", "owner"} {
		if v, ok := args[key]; ok {
			addr, ok := v.(common.Address)
			if !ok {
				return common.Address{}, fmt.Errorf("argument %q is not an address", key)
			}
			return addr, nil
		}
	}

	return common.Address{}, fmt.Errorf("no user or owner argument")
}

// amountString extracts the value amount from event arguments.
func amountString(args map[string]any) string {
	for _, key := range []string{"amount", "reward", "newBaseAPR"} {
		if v, ok := args[key]; ok {
			return stringifyNumeric(v)
		}
	}

	return "0"
}

// stringifyNumeric renders an ABI-decoded numeric value as a decimal string.
func stringifyNumeric(v any) string {
	switch n := v.(type) {
	case *big.Int:
		return n.String()
	case uint64:
		return strconv.FormatUint(n, 10)
	case uint32:
		return strconv.FormatUint(uint64(n), 10)
	case uint16:
		return strconv.FormatUint(uint64(n), 10)
	case uint8:
		return strconv.FormatUint(uint64(n), 10)
	case int64:
		return strconv.FormatInt(n, 10)
	case int32:
		return strconv.FormatInt(int64(n), 10)
	case int16:
		return strconv.FormatInt(int64(n), 10)
	case int8:
		return strconv.FormatInt(int64(n), 10)
	default:
		return fmt.Sprintf("%v", v)
	}
}

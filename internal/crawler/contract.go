package crawler

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stakewatch/stakewatch/internal/config"
)

// EventDef is one tracked event type on a contract.
type EventDef struct {
	Signature *EventSignature
	Event     abi.Event
	Topic     common.Hash
}

// TrackedContract is a staking contract the crawler scans for events.
type TrackedContract struct {
	Name            string
	Address         common.Address
	DeploymentBlock uint64
	Events          []EventDef
}

// NewTrackedContract builds a TrackedContract from its configuration,
// parsing every event signature into its ABI form.
func NewTrackedContract(cfg config.ContractConfig) (*TrackedContract, error) {
	if !common.IsHexAddress(cfg.Address) {
		return nil, fmt.Errorf("invalid contract address: %s", cfg.Address)
	}

	events := make([]EventDef, 0, len(cfg.Events))
	for _, sig := range cfg.Events {
		parsed, err := ParseEventSignature(sig)
		if err != nil {
			return nil, fmt.Errorf("contract %s: %w", cfg.Name, err)
		}

		event, err := parsed.ABIEvent()
		if err != nil {
			return nil, fmt.Errorf("contract %s: %w", cfg.Name, err)
		}

		events = append(events, EventDef{
			Signature: parsed,
			Event:     event,
			Topic:     event.ID,
		})
	}

	return &TrackedContract{
		Name:            cfg.Name,
		Address:         common.HexToAddress(cfg.Address),
		DeploymentBlock: cfg.DeploymentBlock,
		Events:          events,
	}, nil
}

// TrackedContractsFromConfig builds all tracked contracts from configuration.
func TrackedContractsFromConfig(cfgs []config.ContractConfig) ([]*TrackedContract, error) {
	contracts := make([]*TrackedContract, 0, len(cfgs))
	for _, cfg := range cfgs {
		contract, err := NewTrackedContract(cfg)
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, contract)
	}

	return contracts, nil
}

package chain

import (
	"fmt"

	"github.com/aman-zulfiqar/uniswap-event-mirror/internal/models"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/core/types"
)

// DecodeLog decodes a pair log into its named arguments. Indexed arguments
// come from topics, the rest from data.
func DecodeLog(kind models.EventKind, log types.Log) (map[string]any, error) {
	ev, ok := PairABI.Events[kind.String()]
	if !ok {
		return nil, fmt.Errorf("event %q not in pair abi", kind)
	}
	if len(log.Topics) == 0 || log.Topics[0] != ev.ID {
		return nil, fmt.Errorf("log topic does not match %s event", kind)
	}

	args := make(map[string]any, len(ev.Inputs))
	if err := PairABI.UnpackIntoMap(args, ev.Name, log.Data); err != nil {
		return nil, fmt.Errorf("unpack %s data: %w", kind, err)
	}

	var indexed abi.Arguments
	for _, in := range ev.Inputs {
		if in.Indexed {
			indexed = append(indexed, in)
		}
	}
	if len(indexed) > 0 {
		if len(log.Topics)-1 < len(indexed) {
			return nil, fmt.Errorf("%s log has %d topics, want %d", kind, len(log.Topics), len(indexed)+1)
		}
		if err := abi.ParseTopicsIntoMap(args, indexed, log.Topics[1:]); err != nil {
			return nil, fmt.Errorf("parse %s topics: %w", kind, err)
		}
	}
	return args, nil
}

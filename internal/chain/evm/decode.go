package evm

import (
	"github.com/devblac/warden/internal/bridge"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/core/types"
)

// Decode turns a log into a RawEvent using the event's ABI. A decode failure
// is carried on the event as a mapping error rather than failing the fetch.
func Decode(role bridge.Role, event abi.Event, log types.Log) bridge.RawEvent {
	ev := bridge.RawEvent{
		ID: bridge.EventID{
			Chain:    role,
			Block:    log.BlockNumber,
			LogIndex: log.Index,
		},
		Contract:  log.Address,
		Name:      event.Name,
		TxHash:    log.TxHash,
		BlockHash: log.BlockHash,
	}

	if len(log.Topics) == 0 || log.Topics[0] != event.ID {
		ev.Err = bridge.MappingErrorf("%s: log topic does not match %s", ev.ID, event.Sig)
		return ev
	}

	args := map[string]any{}
	indexed, nonIndexed := splitIndexed(event.Inputs)
	if len(log.Topics)-1 != len(indexed) {
		ev.Err = bridge.MappingErrorf("%s: %s expects %d indexed topics, log has %d", ev.ID, event.Name, len(indexed), len(log.Topics)-1)
		return ev
	}
	if err := abi.ParseTopicsIntoMap(args, indexed, log.Topics[1:]); err != nil {
		ev.Err = bridge.MappingErrorf("%s: parse topics: %v", ev.ID, err)
		return ev
	}
	if err := nonIndexed.UnpackIntoMap(args, log.Data); err != nil {
		ev.Err = bridge.MappingErrorf("%s: unpack data: %v", ev.ID, err)
		return ev
	}
	ev.Args = args
	return ev
}

func splitIndexed(args abi.Arguments) (indexed abi.Arguments, nonIndexed abi.Arguments) {
	for _, a := range args {
		if a.Indexed {
			indexed = append(indexed, a)
		} else {
			nonIndexed = append(nonIndexed, a)
		}
	}
	return indexed, nonIndexed
}

package evm

import (
	"math/big"
	"testing"

	"github.com/devblac/warden/internal/bridge"
	"github.com/devblac/warden/internal/bridge/bridgetest"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

func TestDecodeDeposit(t *testing.T) {
	a := bridgetest.MustABI(bridgetest.SourceABI)
	event := a.Events["Deposit"]

	token := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	recipient := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	amount := big.NewInt(5)

	lg := types.Log{
		Address:     common.HexToAddress("0x00000000000000000000000000000000000000a1"),
		Topics:      []common.Hash{event.ID, addrTopic(token), addrTopic(recipient)},
		Data:        common.LeftPadBytes(amount.Bytes(), 32),
		TxHash:      common.HexToHash("0xabc"),
		BlockNumber: 101,
		Index:       3,
	}

	ev := Decode(bridge.Source, event, lg)
	if ev.Err != nil {
		t.Fatalf("decode error: %v", ev.Err)
	}
	if ev.ID != (bridge.EventID{Chain: bridge.Source, Block: 101, LogIndex: 3}) {
		t.Fatalf("unexpected id %v", ev.ID)
	}
	if ev.Name != "Deposit" {
		t.Fatalf("unexpected name: %s", ev.Name)
	}
	if got := ev.Args["token"].(common.Address); got != token {
		t.Fatalf("token %s", got.Hex())
	}
	if got := ev.Args["recipient"].(common.Address); got != recipient {
		t.Fatalf("recipient %s", got.Hex())
	}
	if got := ev.Args["amount"].(*big.Int); got.Cmp(amount) != 0 {
		t.Fatalf("unexpected amount %s", got)
	}
}

func TestDecodeMalformedLogCarriesMappingError(t *testing.T) {
	a := bridgetest.MustABI(bridgetest.SourceABI)
	event := a.Events["Deposit"]

	tests := []struct {
		name string
		log  types.Log
	}{
		{"wrong_topic", types.Log{Topics: []common.Hash{common.HexToHash("0x01")}}},
		{"missing_indexed", types.Log{Topics: []common.Hash{event.ID}}},
		{"short_data", types.Log{
			Topics: []common.Hash{event.ID, addrTopic(common.Address{1}), addrTopic(common.Address{2})},
			Data:   []byte{0x01},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := Decode(bridge.Source, event, tt.log)
			if bridge.Classify(ev.Err) != bridge.KindMapping {
				t.Fatalf("expected mapping error, got %v", ev.Err)
			}
		})
	}
}

func addrTopic(addr common.Address) common.Hash {
	return common.BytesToHash(common.LeftPadBytes(addr.Bytes(), 32))
}

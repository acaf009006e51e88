// Package bridgetest holds fixtures shared by the warden's package tests:
// bridge ABIs and an in-memory ChainClient.
package bridgetest

import (
	"context"
	"math/big"
	"strings"
	"sync"

	"github.com/devblac/warden/internal/bridge"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// SourceABI is the lock side: Deposit events in, withdraw calls out.
const SourceABI = `[
	{"type":"event","name":"Deposit","inputs":[
		{"name":"token","type":"address","indexed":true},
		{"name":"recipient","type":"address","indexed":true},
		{"name":"amount","type":"uint256","indexed":false}
	]},
	{"type":"event","name":"Withdrawal","inputs":[
		{"name":"token","type":"address","indexed":true},
		{"name":"recipient","type":"address","indexed":true},
		{"name":"amount","type":"uint256","indexed":false}
	]},
	{"type":"function","name":"deposit","stateMutability":"nonpayable","outputs":[],"inputs":[
		{"name":"_token","type":"address"},
		{"name":"_recipient","type":"address"},
		{"name":"_amount","type":"uint256"}
	]},
	{"type":"function","name":"withdraw","stateMutability":"nonpayable","outputs":[],"inputs":[
		{"name":"_token","type":"address"},
		{"name":"_recipient","type":"address"},
		{"name":"_amount","type":"uint256"}
	]}
]`

// DestinationABI is the mint side: Unwrap events in, wrap calls out.
const DestinationABI = `[
	{"type":"event","name":"Wrap","inputs":[
		{"name":"underlying_token","type":"address","indexed":true},
		{"name":"wrapped_token","type":"address","indexed":true},
		{"name":"to","type":"address","indexed":true},
		{"name":"amount","type":"uint256","indexed":false}
	]},
	{"type":"event","name":"Unwrap","inputs":[
		{"name":"underlying_token","type":"address","indexed":true},
		{"name":"wrapped_token","type":"address","indexed":true},
		{"name":"frm","type":"address","indexed":false},
		{"name":"to","type":"address","indexed":true},
		{"name":"amount","type":"uint256","indexed":false}
	]},
	{"type":"function","name":"wrap","stateMutability":"nonpayable","outputs":[],"inputs":[
		{"name":"_underlying_token","type":"address"},
		{"name":"_recipient","type":"address"},
		{"name":"_amount","type":"uint256"}
	]},
	{"type":"function","name":"unwrap","stateMutability":"nonpayable","outputs":[],"inputs":[
		{"name":"_wrapped_token","type":"address"},
		{"name":"_recipient","type":"address"},
		{"name":"_amount","type":"uint256"}
	]}
]`

// EscrowABI is a token-escrow bridge observed through Transfer events.
const EscrowABI = `[
	{"type":"event","name":"Transfer","inputs":[
		{"name":"from","type":"address","indexed":true},
		{"name":"to","type":"address","indexed":true},
		{"name":"value","type":"uint256","indexed":false}
	]},
	{"type":"function","name":"mint","stateMutability":"nonpayable","outputs":[],"inputs":[
		{"name":"_recipient","type":"address"},
		{"name":"_amount","type":"uint256"}
	]},
	{"type":"function","name":"withdraw","stateMutability":"nonpayable","outputs":[],"inputs":[
		{"name":"_recipient","type":"address"},
		{"name":"_amount","type":"uint256"}
	]}
]`

// MustABI parses an ABI constant, panicking on error.
func MustABI(s string) *abi.ABI {
	a, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return &a
}

// Event builds a RawEvent with the given identity and args.
func Event(chain bridge.Role, block uint64, logIndex uint, name string, args map[string]any) bridge.RawEvent {
	return bridge.RawEvent{
		ID:   bridge.EventID{Chain: chain, Block: block, LogIndex: logIndex},
		Name: name,
		Args: args,
	}
}

// Submitted is a transaction accepted by a FakeClient.
type Submitted struct {
	Tx   *types.Transaction
	Hash common.Hash
}

// FakeClient is an in-memory ChainClient. Errors set on the Err* fields are
// returned by the matching call until cleared.
type FakeClient struct {
	mu sync.Mutex

	ID       *big.Int
	Head     uint64
	Logs     []bridge.RawEvent
	Nonces   map[common.Address]uint64
	GasPrice *big.Int
	Receipts map[common.Hash]*bridge.Receipt

	ErrHead   error
	ErrEvents error
	ErrNonce  error
	ErrFee    error
	ErrSubmit error

	// FailSubmit fails only the n-th Submit call (1-based) with the mapped error.
	FailSubmit map[int]error

	Sent         []Submitted
	SubmitCalls  int
	NonceQueries int
	EventQueries []bridge.EventQuery
}

// NewFakeClient returns a client at the given head with a 1 gwei gas price.
func NewFakeClient(chainID int64, head uint64) *FakeClient {
	return &FakeClient{
		ID:       big.NewInt(chainID),
		Head:     head,
		Nonces:   map[common.Address]uint64{},
		GasPrice: big.NewInt(1_000_000_000),
		Receipts: map[common.Hash]*bridge.Receipt{},
	}
}

func (f *FakeClient) ChainID() *big.Int { return f.ID }

func (f *FakeClient) HeadHeight(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ErrHead != nil {
		return 0, f.ErrHead
	}
	return f.Head, nil
}

func (f *FakeClient) Events(_ context.Context, q bridge.EventQuery) ([]bridge.RawEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.EventQueries = append(f.EventQueries, q)
	if f.ErrEvents != nil {
		return nil, f.ErrEvents
	}
	var out []bridge.RawEvent
	for _, ev := range f.Logs {
		if ev.Name == q.Event.Name && q.Window.Contains(ev.ID.Block) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *FakeClient) NextSequence(_ context.Context, account common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.NonceQueries++
	if f.ErrNonce != nil {
		return 0, f.ErrNonce
	}
	return f.Nonces[account], nil
}

func (f *FakeClient) FeeLevel(context.Context) (bridge.FeeHint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ErrFee != nil {
		return bridge.FeeHint{}, f.ErrFee
	}
	return bridge.FeeHint{GasPrice: new(big.Int).Set(f.GasPrice)}, nil
}

// Submit decodes the signed transaction, bumps the sender's nonce and records it.
func (f *FakeClient) Submit(_ context.Context, signedTx []byte) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SubmitCalls++
	if f.ErrSubmit != nil {
		return common.Hash{}, f.ErrSubmit
	}
	if err := f.FailSubmit[f.SubmitCalls]; err != nil {
		return common.Hash{}, err
	}
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(signedTx); err != nil {
		return common.Hash{}, bridge.Permanent(err, "decode tx")
	}
	from, err := types.Sender(types.LatestSignerForChainID(f.ID), tx)
	if err != nil {
		return common.Hash{}, bridge.Permanent(err, "recover sender")
	}
	if tx.Nonce() != f.Nonces[from] {
		return common.Hash{}, bridge.Permanent(errNonce, "submit")
	}
	f.Nonces[from]++
	f.Sent = append(f.Sent, Submitted{Tx: tx, Hash: tx.Hash()})
	return tx.Hash(), nil
}

func (f *FakeClient) Receipt(_ context.Context, hash common.Hash) (*bridge.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Receipts[hash], nil
}

// SentCount returns how many transactions were accepted.
func (f *FakeClient) SentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Sent)
}

type nonceError struct{}

func (nonceError) Error() string { return "nonce mismatch" }

var errNonce = nonceError{}

package bridge

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// EventQuery selects logs of one event type emitted by one contract.
type EventQuery struct {
	Chain   Role
	Address common.Address
	Event   abi.Event
	Window  BlockWindow
}

// Receipt is the execution outcome of a mined transaction.
type Receipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	Success     bool
}

// ChainClient is the capability set the relayer needs from one ledger.
// Implementations bound every call by a timeout and mark failures with
// Transient or Permanent.
type ChainClient interface {
	ChainID() *big.Int
	HeadHeight(ctx context.Context) (uint64, error)
	Events(ctx context.Context, q EventQuery) ([]RawEvent, error)
	NextSequence(ctx context.Context, account common.Address) (uint64, error)
	FeeLevel(ctx context.Context) (FeeHint, error)
	Submit(ctx context.Context, signedTx []byte) (common.Hash, error)
	// Receipt returns (nil, nil) while the transaction is not yet mined.
	Receipt(ctx context.Context, txHash common.Hash) (*Receipt, error)
}

// Signer signs transactions without exposing key material.
type Signer interface {
	Address() common.Address
	Sign(ctx context.Context, tx *types.Transaction, chainID *big.Int) ([]byte, error)
}

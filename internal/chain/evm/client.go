package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/devblac/warden/internal/bridge"
	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

const defaultTimeout = 10 * time.Second

// Backend captures the subset of ethclient used by the warden.
type Backend interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Client adapts an EVM node to bridge.ChainClient. Every call is bounded by
// the configured timeout and its failures are classified transient or permanent.
type Client struct {
	backend Backend
	role    bridge.Role
	chainID *big.Int
	timeout time.Duration
}

var _ bridge.ChainClient = (*Client)(nil)

// Dial connects to rpcURL and checks that the node serves the expected chain id.
func Dial(ctx context.Context, role bridge.Role, rpcURL string, chainID uint64, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c, err := ethclient.DialContext(dialCtx, rpcURL)
	if err != nil {
		return nil, classify(err, fmt.Sprintf("dial %s rpc", role))
	}
	got, err := c.ChainID(dialCtx)
	if err != nil {
		c.Close()
		return nil, classify(err, fmt.Sprintf("%s chain id", role))
	}
	if got.Uint64() != chainID {
		c.Close()
		return nil, bridge.ConfigErrorf("%s rpc serves chain id %s, config expects %d", role, got, chainID)
	}
	return NewClient(c, role, got, timeout), nil
}

// NewClient wraps an existing backend.
func NewClient(backend Backend, role bridge.Role, chainID *big.Int, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		backend: backend,
		role:    role,
		chainID: new(big.Int).Set(chainID),
		timeout: timeout,
	}
}

// Role returns the ledger this client talks to.
func (c *Client) Role() bridge.Role { return c.role }

func (c *Client) ChainID() *big.Int { return new(big.Int).Set(c.chainID) }

// Close releases the backend connection when it holds one.
func (c *Client) Close() {
	if cl, ok := c.backend.(interface{ Close() }); ok {
		cl.Close()
	}
}

func (c *Client) HeadHeight(ctx context.Context) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	latest, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, classify(err, "latest header")
	}
	return latest.Number.Uint64(), nil
}

// Events fetches and decodes logs of q.Event emitted by q.Address inside q.Window.
// Logs that fail to decode are returned with Err set so the caller can report
// them individually.
func (c *Client) Events(ctx context.Context, q bridge.EventQuery) ([]bridge.RawEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	logs, err := c.backend.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(q.Window.From),
		ToBlock:   new(big.Int).SetUint64(q.Window.To),
		Addresses: []common.Address{q.Address},
		Topics:    [][]common.Hash{{q.Event.ID}},
	})
	if err != nil {
		return nil, classify(err, fmt.Sprintf("filter %s logs %s", q.Event.Name, q.Window))
	}

	events := make([]bridge.RawEvent, 0, len(logs))
	for _, lg := range logs {
		if lg.Removed {
			continue
		}
		events = append(events, Decode(c.role, q.Event, lg))
	}
	return events, nil
}

// NextSequence returns the pending nonce so transactions still in the pool count.
func (c *Client) NextSequence(ctx context.Context, account common.Address) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	n, err := c.backend.PendingNonceAt(ctx, account)
	if err != nil {
		return 0, classify(err, "pending nonce")
	}
	return n, nil
}

func (c *Client) FeeLevel(ctx context.Context) (bridge.FeeHint, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	price, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return bridge.FeeHint{}, classify(err, "gas price")
	}
	return bridge.FeeHint{GasPrice: price}, nil
}

// Submit broadcasts an RLP/typed-envelope encoded signed transaction.
func (c *Client) Submit(ctx context.Context, signedTx []byte) (common.Hash, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(signedTx); err != nil {
		return common.Hash{}, bridge.Permanent(err, "decode signed tx")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.backend.SendTransaction(ctx, tx); err != nil {
		return common.Hash{}, classify(err, "send transaction")
	}
	return tx.Hash(), nil
}

func (c *Client) Receipt(ctx context.Context, txHash common.Hash) (*bridge.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	r, err := c.backend.TransactionReceipt(ctx, txHash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, "transaction receipt")
	}
	var block uint64
	if r.BlockNumber != nil {
		block = r.BlockNumber.Uint64()
	}
	return &bridge.Receipt{
		TxHash:      txHash,
		BlockNumber: block,
		Success:     r.Status == types.ReceiptStatusSuccessful,
	}, nil
}

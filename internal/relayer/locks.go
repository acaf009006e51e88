package relayer

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// NonceLocks serializes sequence acquisition through submit per signer
// account and chain. Share one instance between directions.
type NonceLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewNonceLocks returns an empty lock set.
func NewNonceLocks() *NonceLocks {
	return &NonceLocks{locks: map[string]*sync.Mutex{}}
}

// Lock blocks until the (chain, account) lock is held and returns its release.
func (l *NonceLocks) Lock(chainID *big.Int, account common.Address) (unlock func()) {
	key := fmt.Sprintf("%s/%s", chainID, account.Hex())

	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

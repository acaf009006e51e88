// Package signer keeps the warden's private keys behind bridge.Signer so the
// relay path never handles raw key material.
package signer

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/devblac/warden/internal/bridge"
	"github.com/devblac/warden/internal/config"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// KeySigner signs with an in-process secp256k1 key.
type KeySigner struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

var _ bridge.Signer = (*KeySigner)(nil)

// NewKeySigner wraps an existing key.
func NewKeySigner(key *ecdsa.PrivateKey) *KeySigner {
	return &KeySigner{key: key, addr: crypto.PubkeyToAddress(key.PublicKey)}
}

// LoadKeyFile reads a hex private key (optionally 0x-prefixed) from path.
func LoadKeyFile(path string) (*KeySigner, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, bridge.ConfigErrorf("read key file: %v", err)
	}
	hexKey := strings.TrimPrefix(strings.TrimSpace(string(raw)), "0x")
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		// never echo the file content
		return nil, bridge.ConfigErrorf("key file %s does not hold a valid secp256k1 key", path)
	}
	return NewKeySigner(key), nil
}

func (s *KeySigner) Address() common.Address { return s.addr }

func (s *KeySigner) Sign(_ context.Context, tx *types.Transaction, chainID *big.Int) ([]byte, error) {
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}
	return signed.MarshalBinary()
}

// KeystoreSigner signs with an account from an encrypted go-ethereum keystore.
type KeystoreSigner struct {
	ks       *keystore.KeyStore
	account  accounts.Account
	password string
}

var _ bridge.Signer = (*KeystoreSigner)(nil)

// OpenKeystore locates address inside the keystore directory and verifies the
// password decrypts it.
func OpenKeystore(dir, address, password string) (*KeystoreSigner, error) {
	if !common.IsHexAddress(address) {
		return nil, bridge.ConfigErrorf("keystore address %q is not a hex address", address)
	}
	ks := keystore.NewKeyStore(dir, keystore.StandardScryptN, keystore.StandardScryptP)
	acct, err := ks.Find(accounts.Account{Address: common.HexToAddress(address)})
	if err != nil {
		return nil, bridge.ConfigErrorf("keystore %s: account %s: %v", dir, address, err)
	}
	if err := ks.Unlock(acct, password); err != nil {
		return nil, bridge.ConfigErrorf("keystore %s: unlock %s: %v", dir, address, err)
	}
	_ = ks.Lock(acct.Address)
	return &KeystoreSigner{ks: ks, account: acct, password: password}, nil
}

func (s *KeystoreSigner) Address() common.Address { return s.account.Address }

func (s *KeystoreSigner) Sign(_ context.Context, tx *types.Transaction, chainID *big.Int) ([]byte, error) {
	signed, err := s.ks.SignTxWithPassphrase(s.account, s.password, tx, chainID)
	if err != nil {
		return nil, fmt.Errorf("keystore sign tx: %w", err)
	}
	return signed.MarshalBinary()
}

// Keyring maps configured key ids to signers.
type Keyring struct {
	signers map[string]bridge.Signer
}

// Open loads every configured key. resolve turns config-relative paths into
// usable ones.
func Open(keys []config.Key, resolve func(string) string) (*Keyring, error) {
	if resolve == nil {
		resolve = func(p string) string { return p }
	}
	signers := make(map[string]bridge.Signer, len(keys))
	for _, k := range keys {
		var (
			s   bridge.Signer
			err error
		)
		switch strings.ToLower(k.Type) {
		case "key_file":
			s, err = LoadKeyFile(resolve(k.Path))
		case "keystore":
			s, err = OpenKeystore(resolve(k.Dir), k.Address, k.Password)
		default:
			err = bridge.ConfigErrorf("unsupported key type %q", k.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", k.ID, err)
		}
		signers[k.ID] = s
	}
	return &Keyring{signers: signers}, nil
}

// Get returns the signer for id.
func (k *Keyring) Get(id string) (bridge.Signer, error) {
	s, ok := k.signers[id]
	if !ok {
		return nil, bridge.ConfigErrorf("no signer for key id %q", id)
	}
	return s, nil
}

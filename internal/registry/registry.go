// Package registry resolves a chain role to the bridge contract deployed on
// it: address, ABI-derived capability set, and the key that signs for it.
package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/devblac/warden/internal/bridge"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Contract is the resolved, read-only description of one bridge contract.
type Contract struct {
	Role        bridge.Role
	Address     common.Address
	ABI         *abi.ABI
	SignerKeyID string
}

// HasEvent reports whether the ABI declares the event.
func (c Contract) HasEvent(name string) bool {
	_, ok := c.ABI.Events[name]
	return ok
}

// HasFunction reports whether the ABI declares a callable method.
func (c Contract) HasFunction(name string) bool {
	_, ok := c.ABI.Methods[name]
	return ok
}

// Event returns the event definition or a config error.
func (c Contract) Event(name string) (abi.Event, error) {
	ev, ok := c.ABI.Events[name]
	if !ok {
		return abi.Event{}, bridge.ConfigErrorf("%s contract %s has no event %s", c.Role, c.Address.Hex(), name)
	}
	return ev, nil
}

// Registry holds one Contract per role.
type Registry struct {
	contracts map[bridge.Role]Contract
}

// entry mirrors one role in contract_info.json. ABI is either the JSON array
// itself or a string path to an ABI file.
type entry struct {
	Address string          `json:"address"`
	ABI     json.RawMessage `json:"abi"`
}

// Load reads a contract_info.json file ({"source": {...}, "destination": {...}})
// and binds each role to its signer key id. All problems are config errors.
func Load(path string, signerKeys map[bridge.Role]string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, bridge.ConfigErrorf("read contract info: %v", err)
	}
	var entries map[string]entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, bridge.ConfigErrorf("parse contract info %s: %v", path, err)
	}

	reg := &Registry{contracts: map[bridge.Role]Contract{}}
	for _, role := range bridge.Roles {
		e, ok := entries[role.String()]
		if !ok {
			return nil, bridge.ConfigErrorf("contract info has no %s entry", role)
		}
		c, err := buildContract(role, e, filepath.Dir(path), signerKeys[role])
		if err != nil {
			return nil, err
		}
		reg.contracts[role] = c
	}
	return reg, nil
}

// Resolve returns the contract for role.
func (r *Registry) Resolve(role bridge.Role) (Contract, error) {
	c, ok := r.contracts[role]
	if !ok {
		return Contract{}, bridge.ConfigErrorf("no contract configured for %s", role)
	}
	return c, nil
}

func buildContract(role bridge.Role, e entry, baseDir, keyID string) (Contract, error) {
	parsed, err := parseABI(e.ABI, baseDir)
	if err != nil {
		return Contract{}, bridge.ConfigErrorf("%s abi: %v", role, err)
	}
	if !common.IsHexAddress(e.Address) {
		return Contract{}, bridge.ConfigErrorf("%s address %q is not a hex address", role, e.Address)
	}
	c := Contract{
		Role:        role,
		Address:     common.HexToAddress(e.Address),
		ABI:         parsed,
		SignerKeyID: keyID,
	}
	return c, validate(c)
}

func validate(c Contract) error {
	if !c.Role.Valid() {
		return bridge.ConfigErrorf("unknown role %s", c.Role)
	}
	if c.Address == (common.Address{}) {
		return bridge.ConfigErrorf("%s contract address is missing", c.Role)
	}
	if c.ABI == nil || (len(c.ABI.Events) == 0 && len(c.ABI.Methods) == 0) {
		return bridge.ConfigErrorf("%s contract abi is missing or empty", c.Role)
	}
	if c.SignerKeyID == "" {
		return bridge.ConfigErrorf("%s contract has no signer key id", c.Role)
	}
	return nil
}

func parseABI(raw json.RawMessage, baseDir string) (*abi.ABI, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("abi is required")
	}
	if raw[0] == '"' {
		var path string
		if err := json.Unmarshal(raw, &path); err != nil {
			return nil, err
		}
		return LoadABIFile(resolve(baseDir, path))
	}
	a, err := abi.JSON(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// LoadABIFile parses an ABI JSON file. Hardhat/Foundry artifacts that wrap
// the ABI under an "abi" key are accepted too.
func LoadABIFile(path string) (*abi.ABI, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read abi %s: %w", path, err)
	}
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var artifact struct {
			ABI json.RawMessage `json:"abi"`
		}
		if err := json.Unmarshal(data, &artifact); err == nil && len(artifact.ABI) > 0 {
			data = artifact.ABI
		}
	}
	a, err := abi.JSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse abi %s: %w", path, err)
	}
	return &a, nil
}

func resolve(baseDir, p string) string {
	if filepath.IsAbs(p) || strings.TrimSpace(baseDir) == "" {
		return p
	}
	return filepath.Join(baseDir, p)
}

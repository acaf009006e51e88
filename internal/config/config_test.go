package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/devblac/warden/internal/bridge"
)

const baseYAML = `
version: 1
contract_info: contract_info.json
chains:
  source:
    rpc_url: ${SOURCE_RPC}
    chain_id: 43113
    signer_key_id: warden
  destination:
    rpc_url: ${DEST_RPC}
    chain_id: 97
    signer_key_id: warden
    max_gas_price: "20000000000"
keys:
  - id: warden
    type: key_file
    path: secret_key.txt
sinks:
  - id: ops
    type: slack
    webhook_url: https://hooks.slack.test
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return cfgPath
}

func TestLoadInterpolatesEnvAndValidates(t *testing.T) {
	cfgPath := writeConfig(t, baseYAML)
	t.Setenv("SOURCE_RPC", "http://source-rpc")
	t.Setenv("DEST_RPC", "http://dest-rpc")

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("expected load to succeed: %v", err)
	}

	if got := cfg.Chains.Source.RPCURL; got != "http://source-rpc" {
		t.Fatalf("rpc_url not interpolated, got %q", got)
	}
	if cfg.Global.WindowSize != bridge.DefaultWindowSize {
		t.Fatalf("window default not applied: %d", cfg.Global.WindowSize)
	}
	if cfg.Chains.Source.GasLimit != 2_000_000 {
		t.Fatalf("gas limit default not applied: %d", cfg.Chains.Source.GasLimit)
	}
	if got := cfg.Chain(bridge.Destination).Events; len(got) != 1 || got[0] != "Unwrap" {
		t.Fatalf("destination events default: %v", got)
	}
	ceiling, err := cfg.Chains.Destination.GasPriceCeiling()
	if err != nil || ceiling.String() != "20000000000" {
		t.Fatalf("ceiling %v err %v", ceiling, err)
	}
	if got := cfg.Resolve("contract_info.json"); got != filepath.Join(filepath.Dir(cfgPath), "contract_info.json") {
		t.Fatalf("resolve: %s", got)
	}
}

func TestLoadFailsOnMissingEnv(t *testing.T) {
	cfgPath := writeConfig(t, baseYAML)
	t.Setenv("SOURCE_RPC", "http://source-rpc")

	_, err := Load(cfgPath)
	if err == nil {
		t.Fatalf("expected missing env to fail")
	}
	if bridge.Classify(err) != bridge.KindConfig {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	cfgPath := writeConfig(t, baseYAML)
	envBody := "SOURCE_RPC=http://from-dotenv\nDEST_RPC=http://dest-dotenv\n"
	if err := os.WriteFile(filepath.Join(filepath.Dir(cfgPath), ".env"), []byte(envBody), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Cleanup(func() {
		os.Unsetenv("SOURCE_RPC")
		os.Unsetenv("DEST_RPC")
	})

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Chains.Source.RPCURL != "http://from-dotenv" {
		t.Fatalf("dotenv not applied: %q", cfg.Chains.Source.RPCURL)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Version:      1,
			ContractInfo: "contract_info.json",
			Chains: Chains{
				Source:      Chain{RPCURL: "http://s", ChainID: 1, SignerKeyID: "k"},
				Destination: Chain{RPCURL: "http://d", ChainID: 2, SignerKeyID: "k"},
			},
			Keys: []Key{{ID: "k", Type: "key_file", Path: "key.txt"}},
		}
	}
	if err := valid().Validate(); err != nil {
		t.Fatalf("baseline should validate: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"no_version", func(c *Config) { c.Version = 0 }},
		{"no_contract_info", func(c *Config) { c.ContractInfo = "" }},
		{"unknown_key", func(c *Config) { c.Chains.Destination.SignerKeyID = "other" }},
		{"no_rpc", func(c *Config) { c.Chains.Source.RPCURL = "" }},
		{"no_chain_id", func(c *Config) { c.Chains.Source.ChainID = 0 }},
		{"bad_ceiling", func(c *Config) { c.Chains.Source.MaxGasPrice = "lots" }},
		{"bad_timeout", func(c *Config) { c.Global.RPCTimeout = "soon" }},
		{"negative_limit", func(c *Config) { c.Global.MaxActionsPerPass = -1 }},
		{"bad_key_type", func(c *Config) { c.Keys[0].Type = "hsm" }},
		{"keystore_without_dir", func(c *Config) { c.Keys[0] = Key{ID: "k", Type: "keystore"} }},
		{"dup_key", func(c *Config) { c.Keys = append(c.Keys, c.Keys[0]) }},
		{"bad_sink", func(c *Config) { c.Sinks = []Sink{{ID: "s", Type: "pager"}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			if err := c.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

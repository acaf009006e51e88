package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/devblac/warden/internal/bridge"
	"github.com/spf13/cobra"
)

var (
	flagInitDir   string
	flagInitForce bool
)

func init() {
	initCmd.Flags().StringVar(&flagInitDir, "dir", ".", "Directory to write the sample files into")
	initCmd.Flags().BoolVar(&flagInitForce, "force", false, "Overwrite existing files")
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a sample config, contract info and ABIs",
	RunE: func(cmd *cobra.Command, args []string) error {
		written, err := scaffold(flagInitDir, flagInitForce)
		for _, p := range written {
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", p)
		}
		return err
	},
}

// scaffold writes the sample project into dir and returns the paths written.
// Existing files are left alone unless force is set.
func scaffold(dir string, force bool) ([]string, error) {
	files := []struct {
		name string
		body string
		mode os.FileMode
	}{
		{"config.yaml", sampleConfig, 0o644},
		{"contract_info.json", sampleContractInfo, 0o644},
		{filepath.Join("abi", "source.json"), sampleSourceABI, 0o644},
		{filepath.Join("abi", "destination.json"), sampleDestinationABI, 0o644},
	}

	var written []string
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if !force {
			if _, err := os.Stat(path); err == nil {
				return written, bridge.ConfigErrorf("%s already exists (use --force to overwrite)", path)
			}
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return written, fmt.Errorf("create %s: %w", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, []byte(f.body), f.mode); err != nil {
			return written, fmt.Errorf("write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}

// Avalanche Fuji holds the locked asset; BSC testnet holds the wrapped one.
const (
	sampleSourceRPC      = "https://api.avax-test.network/ext/bc/C/rpc"
	sampleDestinationRPC = "https://data-seed-prebsc-1-s1.binance.org:8545"
)

const sampleConfig = `version: 1

global:
  db_path: warden.db
  window_size: 5
  rpc_timeout: 10s
  # 0 relays every event in the window per pass; 1 relays one event per pass.
  max_actions_per_pass: 0
  # audit_log: warden-audit.jsonl

contract_info: contract_info.json

chains:
  source:
    rpc_url: ` + sampleSourceRPC + `
    chain_id: 43113
    confirmations: 0
    # start_block: latest-100
    signer_key_id: relayer
    events: [Deposit]
  destination:
    rpc_url: ` + sampleDestinationRPC + `
    chain_id: 97
    confirmations: 0
    signer_key_id: relayer
    events: [Unwrap]
    # where:
    #   - amount >= 1e15

keys:
  - id: relayer
    type: key_file
    path: secret_key.txt

sinks: []
#  - id: ops
#    type: slack
#    webhook_url: https://hooks.slack.com/services/XXX
`

const sampleContractInfo = `{
  "source": {
    "address": "0x1111111111111111111111111111111111111111",
    "abi": "abi/source.json"
  },
  "destination": {
    "address": "0x2222222222222222222222222222222222222222",
    "abi": "abi/destination.json"
  }
}
`

const sampleSourceABI = `[
  {"type":"event","name":"Deposit","inputs":[
    {"name":"token","type":"address","indexed":true},
    {"name":"recipient","type":"address","indexed":true},
    {"name":"amount","type":"uint256","indexed":false}
  ]},
  {"type":"function","name":"withdraw","stateMutability":"nonpayable","outputs":[],"inputs":[
    {"name":"_token","type":"address"},
    {"name":"_recipient","type":"address"},
    {"name":"_amount","type":"uint256"}
  ]}
]
`

const sampleDestinationABI = `[
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
  ]}
]
`

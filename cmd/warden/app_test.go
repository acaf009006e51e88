package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/devblac/warden/internal/bridge"
	"github.com/devblac/warden/internal/config"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rpcServer answers eth_chainId and counts every request it receives.
type rpcServer struct {
	*httptest.Server
	calls atomic.Int32
}

func newRPCServer(t *testing.T, chainID uint64) *rpcServer {
	t.Helper()
	s := &rpcServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.calls.Add(1)
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		var result any
		if req.Method == "eth_chainId" {
			result = hexutil.EncodeUint64(chainID)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result})
	}))
	t.Cleanup(s.Close)
	return s
}

// writeProject scaffolds a project pointed at src and dst, applies edits to
// config.yaml and makes it the active --config.
func writeProject(t *testing.T, src, dst *rpcServer, withKey bool, edits ...[2]string) string {
	t.Helper()
	dir := t.TempDir()
	_, err := scaffold(dir, false)
	require.NoError(t, err)

	path := filepath.Join(dir, "config.yaml")
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	body := strings.NewReplacer(sampleSourceRPC, src.URL, sampleDestinationRPC, dst.URL).Replace(string(raw))
	for _, e := range edits {
		require.Contains(t, body, e[0])
		body = strings.Replace(body, e[0], e[1], 1)
	}
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	if withKey {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		hexKey := common.Bytes2Hex(crypto.FromECDSA(key))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "secret_key.txt"), []byte(hexKey), 0o600))
	}

	prev := cfgPath
	cfgPath = path
	t.Cleanup(func() { cfgPath = prev })
	return dir
}

func TestSetupRelayRejectsConfigBeforeRPC(t *testing.T) {
	tests := []struct {
		name    string
		withKey bool
		edit    [2]string
	}{
		{name: "missing_key_file"},
		{name: "bad_where", withKey: true, edit: [2]string{"    events: [Unwrap]\n", "    events: [Unwrap]\n    where: [\"amount\"]\n"}},
		{name: "bad_start_block", withKey: true, edit: [2]string{"    # start_block: latest-100\n", "    start_block: soon\n"}},
		{name: "event_not_in_abi", withKey: true, edit: [2]string{"events: [Deposit]", "events: [Withdrawal]"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, dst := newRPCServer(t, 43113), newRPCServer(t, 97)
			var edits [][2]string
			if tt.edit[0] != "" {
				edits = append(edits, tt.edit)
			}
			writeProject(t, src, dst, tt.withKey, edits...)

			_, _, err := setupRelay(context.Background(), nil)
			require.Error(t, err)
			assert.Equal(t, bridge.KindConfig, bridge.Classify(err), "%v", err)
			assert.Zero(t, src.calls.Load()+dst.calls.Load(), "no rpc before the config error")
		})
	}
}

func TestSetupRelayDialsBothChains(t *testing.T) {
	src, dst := newRPCServer(t, 43113), newRPCServer(t, 97)
	writeProject(t, src, dst, true)

	a, r, err := setupRelay(context.Background(), nil)
	require.NoError(t, err)
	defer a.Close()
	assert.NotNil(t, r)
	assert.Positive(t, src.calls.Load())
	assert.Positive(t, dst.calls.Load())
	assert.Len(t, a.chainClients(), 2)
}

func TestSetupRelayChainIDMismatch(t *testing.T) {
	src, dst := newRPCServer(t, 43113), newRPCServer(t, 56)
	writeProject(t, src, dst, true)

	_, _, err := setupRelay(context.Background(), nil)
	assert.Equal(t, bridge.KindConfig, bridge.Classify(err), "%v", err)
}

func TestValidateResolvesContractsBeforeRPC(t *testing.T) {
	src, dst := newRPCServer(t, 43113), newRPCServer(t, 97)
	writeProject(t, src, dst, true)

	var out bytes.Buffer
	validateCmd.SetOut(&out)
	validateCmd.SetContext(context.Background())
	err := validateCmd.RunE(validateCmd, nil)

	// the test server has no headers, so only the head lookup fails
	require.Error(t, err)
	assert.Contains(t, out.String(), "- source contract 0x1111111111111111111111111111111111111111")
	assert.Contains(t, out.String(), "capabilities OK")
	assert.Contains(t, out.String(), "- destination rpc: chainId 97, head ERROR")
}

func TestLoggerWritesConsoleToOneStream(t *testing.T) {
	src, dst := newRPCServer(t, 43113), newRPCServer(t, 97)
	dir := writeProject(t, src, dst, false, [2]string{"  # audit_log: warden-audit.jsonl\n", "  audit_log: warden-audit.jsonl\n"})
	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)

	var console strings.Builder
	log, closer, err := newLogger(cfg, &console)
	require.NoError(t, err)
	log.Info("relayed", "idempotency_key", "source:1:0")
	require.NoError(t, closer.Close())

	assert.Contains(t, console.String(), "source:1:0")
	audit, err := os.ReadFile(filepath.Join(dir, "warden-audit.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, string(audit), `"idempotency_key":"source:1:0"`)

	console.Reset()
	log, _, err = newLogger(&config.Config{}, &console)
	require.NoError(t, err)
	log.Info("plain")
	assert.Contains(t, console.String(), "plain")
}

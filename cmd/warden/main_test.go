package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/devblac/warden/internal/bridge"
	"github.com/devblac/warden/internal/config"
	"github.com/devblac/warden/internal/registry"
	"github.com/devblac/warden/internal/relayer"
	"github.com/devblac/warden/internal/storage"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScaffoldWritesLoadableProject(t *testing.T) {
	dir := t.TempDir()
	written, err := scaffold(dir, false)
	require.NoError(t, err)
	assert.Len(t, written, 4)

	cfg, err := config.Load(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, uint64(43113), cfg.Chains.Source.ChainID)
	assert.Equal(t, uint64(97), cfg.Chains.Destination.ChainID)

	reg, err := registry.Load(cfg.Resolve(cfg.ContractInfo), map[bridge.Role]string{
		bridge.Source:      "relayer",
		bridge.Destination: "relayer",
	})
	require.NoError(t, err)

	chains := map[bridge.Role]relayer.Chain{}
	for _, role := range bridge.Roles {
		c, err := reg.Resolve(role)
		require.NoError(t, err)
		chains[role] = relayer.Chain{Contract: c, Events: cfg.Chain(role).Events}
	}
	for _, role := range bridge.Roles {
		assert.NoError(t, relayer.CheckCapabilities(role, chains[role], chains[role.Counterpart()]), role.String())
	}

	_, err = scaffold(dir, false)
	assert.Equal(t, bridge.KindConfig, bridge.Classify(err))

	_, err = scaffold(dir, true)
	assert.NoError(t, err)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 2, exitCode(bridge.ConfigErrorf("bad")))
	assert.Equal(t, 3, exitCode(bridge.Permanent(errors.New("rejected"), "submit")))
	assert.Equal(t, 1, exitCode(bridge.Transient(errors.New("timeout"), "head")))
	assert.Equal(t, 1, exitCode(errors.New("boom")))
}

func TestParseDirections(t *testing.T) {
	dirs, err := parseDirections("both")
	require.NoError(t, err)
	assert.Equal(t, bridge.Roles, dirs)

	dirs, err = parseDirections("Destination")
	require.NoError(t, err)
	assert.Equal(t, []bridge.Role{bridge.Destination}, dirs)

	_, err = parseDirections("sideways")
	assert.Equal(t, bridge.KindConfig, bridge.Classify(err))
}

func sampleRecords() []bridge.SubmissionRecord {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return []bridge.SubmissionRecord{
		{
			Key:       bridge.EventID{Chain: bridge.Source, Block: 101, LogIndex: 2},
			TxHash:    common.HexToHash("0xaa"),
			Status:    bridge.StatusPending,
			Target:    bridge.Destination,
			Function:  "wrap",
			Nonce:     7,
			SourceTx:  common.HexToHash("0xbb"),
			CreatedAt: at,
			UpdatedAt: at,
		},
	}
}

func TestWriteSubmissionsCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeSubmissions(&buf, "csv", sampleRecords()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, "source:101:2", rows[1][0])
	assert.Equal(t, "wrap", rows[1][6])
	assert.Equal(t, "7", rows[1][8])
	assert.Equal(t, "pending", rows[1][9])
}

func TestWriteSubmissionsJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeSubmissions(&buf, "JSON", sampleRecords()))

	var rows []exportRow
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "destination", rows[0].Target)
	assert.Equal(t, uint64(101), rows[0].Block)
	assert.Equal(t, "2024-05-01T12:00:00Z", rows[0].CreatedAt)

	err := writeSubmissions(&buf, "xml", nil)
	assert.Equal(t, bridge.KindConfig, bridge.Classify(err))
}

func TestParseStatus(t *testing.T) {
	st, err := parseStatus("Failed")
	require.NoError(t, err)
	assert.Equal(t, bridge.StatusFailed, st)

	st, err = parseStatus("")
	require.NoError(t, err)
	assert.Empty(t, st)

	_, err = parseStatus("lost")
	assert.Error(t, err)
}

func TestPrintState(t *testing.T) {
	var buf bytes.Buffer
	printState(&buf, []storage.Cursor{{Chain: "source", Height: 105, UpdatedAt: time.Unix(0, 0)}},
		map[bridge.SubmissionStatus]int{bridge.StatusPending: 2})

	out := buf.String()
	assert.Contains(t, out, "source       105")
	assert.Contains(t, out, "pending      2")
	assert.Contains(t, out, "failed       0")
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	require.NoError(t, versionCmd.RunE(versionCmd, nil))
	assert.Contains(t, buf.String(), "warden ")
	assert.Contains(t, buf.String(), runtime.Version())
}

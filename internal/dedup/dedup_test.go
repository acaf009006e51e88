package dedup

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/devblac/warden/internal/bridge"
	"github.com/devblac/warden/internal/storage"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(block uint64, tx string) bridge.SubmissionRecord {
	return bridge.SubmissionRecord{
		Key:      bridge.EventID{Chain: bridge.Source, Block: block},
		TxHash:   common.HexToHash(tx),
		Status:   bridge.StatusPending,
		Target:   bridge.Destination,
		Function: "wrap",
	}
}

func guards(t *testing.T) map[string]Guard {
	store, err := storage.Open(filepath.Join(t.TempDir(), "warden.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return map[string]Guard{
		"sql":    NewSQLGuard(store),
		"memory": NewMemoryGuard(),
	}
}

func TestGuardRecordsOnce(t *testing.T) {
	for name, g := range guards(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rec := record(100, "0x01")

			handled, err := g.AlreadyHandled(ctx, rec.Key)
			require.NoError(t, err)
			assert.False(t, handled)

			require.NoError(t, g.Record(ctx, rec))

			handled, err = g.AlreadyHandled(ctx, rec.Key)
			require.NoError(t, err)
			assert.True(t, handled)

			err = g.Record(ctx, record(100, "0x02"))
			assert.True(t, IsAlreadyRecorded(err), "got %v", err)

			other := rec.Key
			other.LogIndex = 1
			handled, err = g.AlreadyHandled(ctx, other)
			require.NoError(t, err)
			assert.False(t, handled, "log index is part of the identity")
		})
	}
}

func TestFailedRecordIsNotHandled(t *testing.T) {
	for name, g := range guards(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rec := record(7, "0x01")
			rec.Status = bridge.StatusFailed
			require.NoError(t, g.Record(ctx, rec))

			handled, err := g.AlreadyHandled(ctx, rec.Key)
			require.NoError(t, err)
			assert.False(t, handled)

			require.NoError(t, g.Record(ctx, record(7, "0x02")), "failed submissions may be retried")
		})
	}
}

func TestSQLGuardSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "warden.db")

	store, err := storage.Open(path)
	require.NoError(t, err)
	require.NoError(t, NewSQLGuard(store).Record(ctx, record(3, "0x03")))
	require.NoError(t, store.Close())

	store, err = storage.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	handled, err := NewSQLGuard(store).AlreadyHandled(ctx, record(3, "").Key)
	require.NoError(t, err)
	assert.True(t, handled)
}

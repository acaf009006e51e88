package relayer

import (
	"context"
	"testing"
	"time"

	"github.com/devblac/warden/internal/bridge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcileSettlesReceipts(t *testing.T) {
	h := newHarness(t, setup{})
	ctx := context.Background()
	h.src.Logs = []bridge.RawEvent{deposit(101, 0, 1), deposit(102, 0, 2), deposit(103, 0, 3)}

	res, err := h.relayer.RunPass(ctx, bridge.Source)
	require.NoError(t, err)
	require.Len(t, res.Submitted, 3)

	h.dst.Receipts[res.Submitted[0].TxHash] = &bridge.Receipt{TxHash: res.Submitted[0].TxHash, BlockNumber: 51, Success: true}
	h.dst.Receipts[res.Submitted[1].TxHash] = &bridge.Receipt{TxHash: res.Submitted[1].TxHash, BlockNumber: 51, Success: false}

	rc := NewReconciler(h.store, map[bridge.Role]bridge.ChainClient{
		bridge.Source:      h.src,
		bridge.Destination: h.dst,
	}, nil)
	out, err := rc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileResult{Checked: 3, Confirmed: 1, Failed: 1, Pending: 1}, out)

	confirmed, _, _ := h.store.GetSubmission(ctx, res.Submitted[0].Key)
	assert.Equal(t, bridge.StatusConfirmed, confirmed.Status)

	// a reverted action no longer blocks relaying the event again
	handled, err := h.guard.AlreadyHandled(ctx, res.Submitted[1].Key)
	require.NoError(t, err)
	assert.False(t, handled)

	h.src.Head = 106
	again, err := h.relayer.RunPass(ctx, bridge.Source)
	require.NoError(t, err)
	require.Len(t, again.Submitted, 1)
	assert.Equal(t, res.Submitted[1].Key, again.Submitted[0].Key)
}

func TestWaitGivesUpWhilePending(t *testing.T) {
	h := newHarness(t, setup{})
	ctx := context.Background()
	h.src.Logs = []bridge.RawEvent{deposit(101, 0, 1)}
	res, err := h.relayer.RunPass(ctx, bridge.Source)
	require.NoError(t, err)

	rc := NewReconciler(h.store, map[bridge.Role]bridge.ChainClient{bridge.Destination: h.dst}, nil)
	out, err := rc.Wait(ctx, 2, time.Millisecond)
	assert.True(t, IsStillPending(err), "got %v", err)
	assert.Equal(t, ReconcileResult{Checked: 1, Pending: 1}, out)

	h.dst.Receipts[res.Submitted[0].TxHash] = &bridge.Receipt{Success: true}
	out, err = rc.Wait(ctx, 2, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, ReconcileResult{Checked: 1, Confirmed: 1}, out)
}

func TestReconcileMissingClientIsConfigError(t *testing.T) {
	h := newHarness(t, setup{})
	ctx := context.Background()
	h.src.Logs = []bridge.RawEvent{deposit(101, 0, 1)}
	_, err := h.relayer.RunPass(ctx, bridge.Source)
	require.NoError(t, err)

	rc := NewReconciler(h.store, nil, nil)
	_, err = rc.Wait(ctx, 3, time.Millisecond)
	assert.Equal(t, bridge.KindConfig, bridge.Classify(err))
}

package relayer

import (
	"context"
	"log/slog"
	"time"

	"github.com/avast/retry-go"
	"github.com/cockroachdb/errors"
	"github.com/devblac/warden/internal/bridge"
)

// SubmissionStore lists and updates submission records.
type SubmissionStore interface {
	ListSubmissions(ctx context.Context, status bridge.SubmissionStatus) ([]bridge.SubmissionRecord, error)
	UpdateSubmissionStatus(ctx context.Context, id bridge.EventID, status bridge.SubmissionStatus) error
}

// Reconciler settles pending submissions against on-chain receipts.
type Reconciler struct {
	store   SubmissionStore
	clients map[bridge.Role]bridge.ChainClient
	log     *slog.Logger
}

// NewReconciler returns a reconciler over store using clients by target chain.
func NewReconciler(store SubmissionStore, clients map[bridge.Role]bridge.ChainClient, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{store: store, clients: clients, log: log}
}

// ReconcileResult counts what one reconcile round found.
type ReconcileResult struct {
	Checked   int
	Confirmed int
	Failed    int
	Pending   int
}

var errStillPending = errors.New("submissions still pending")

// Reconcile checks every pending record once. Confirmed receipts mark the
// record confirmed; reverted ones mark it failed so the event may be relayed
// again.
func (r *Reconciler) Reconcile(ctx context.Context) (ReconcileResult, error) {
	var res ReconcileResult
	pending, err := r.store.ListSubmissions(ctx, bridge.StatusPending)
	if err != nil {
		return res, err
	}
	for _, rec := range pending {
		res.Checked++
		client, ok := r.clients[rec.Target]
		if !ok {
			return res, bridge.ConfigErrorf("no client for %s", rec.Target)
		}
		receipt, err := client.Receipt(ctx, rec.TxHash)
		if err != nil {
			return res, errors.Wrapf(err, "receipt for %s", rec.Key)
		}
		if receipt == nil {
			res.Pending++
			continue
		}
		status := bridge.StatusConfirmed
		if !receipt.Success {
			status = bridge.StatusFailed
		}
		if err := r.store.UpdateSubmissionStatus(ctx, rec.Key, status); err != nil {
			return res, err
		}
		if status == bridge.StatusConfirmed {
			res.Confirmed++
		} else {
			res.Failed++
			r.log.Warn("submission reverted", "idempotency_key", rec.Key.String(), "tx", rec.TxHash.Hex(), "block", receipt.BlockNumber)
		}
	}
	return res, nil
}

// Wait reconciles until nothing is pending, retrying up to attempts times
// with delay between rounds. Transient RPC errors are retried too.
func (r *Reconciler) Wait(ctx context.Context, attempts uint, delay time.Duration) (ReconcileResult, error) {
	var total ReconcileResult
	err := retry.Do(func() error {
		res, err := r.Reconcile(ctx)
		total.Confirmed += res.Confirmed
		total.Failed += res.Failed
		total.Pending = res.Pending
		// a settled record leaves the pending set, so each record counts once
		total.Checked = total.Confirmed + total.Failed + total.Pending
		if err != nil {
			if bridge.Retryable(err) {
				return err
			}
			return retry.Unrecoverable(err)
		}
		if res.Pending > 0 {
			return errStillPending
		}
		return nil
	},
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			r.log.Debug("reconcile retry", "attempt", n+1, "err", err)
		}),
	)
	return total, err
}

// IsStillPending reports whether Wait gave up with records still pending.
func IsStillPending(err error) bool {
	return errors.Is(err, errStillPending)
}

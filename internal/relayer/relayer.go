// Package relayer runs scan-and-relay passes: it reads bridge events from one
// chain and settles each on the counterpart chain exactly once.
package relayer

import (
	"context"
	"log/slog"
	"math/big"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/devblac/warden/internal/bridge"
	"github.com/devblac/warden/internal/cursor"
	"github.com/devblac/warden/internal/dedup"
	"github.com/devblac/warden/internal/mapper"
	"github.com/devblac/warden/internal/metrics"
	"github.com/devblac/warden/internal/notify"
	"github.com/devblac/warden/internal/registry"
	"github.com/ethereum/go-ethereum/core/types"
)

// DefaultGasLimit is used when a chain sets no gas limit.
const DefaultGasLimit uint64 = 2_000_000

const notifyTimeout = 10 * time.Second

// Chain is everything the relayer needs about one side of the bridge.
type Chain struct {
	Client        bridge.ChainClient
	Contract      registry.Contract
	Signer        bridge.Signer
	Events        []string
	Confirmations uint64
	GasLimit      uint64
	// MaxGasPrice caps the fee level; nil means no ceiling.
	MaxGasPrice *big.Int
}

// Options configures a Relayer.
type Options struct {
	Chains map[bridge.Role]Chain
	Mapper *mapper.Mapper
	Cursor *cursor.EventCursor
	Guard  dedup.Guard
	Locks  *NonceLocks
	// MaxActionsPerPass bounds submissions per pass; 0 drains the window.
	MaxActionsPerPass int

	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Notifier notify.Sender
}

// Relayer executes passes for either direction. Passes for different
// directions may run concurrently.
type Relayer struct {
	chains     map[bridge.Role]Chain
	mapper     *mapper.Mapper
	cursor     *cursor.EventCursor
	guard      dedup.Guard
	locks      *NonceLocks
	maxActions int
	log        *slog.Logger
	metrics    *metrics.Metrics
	notifier   notify.Sender
	skipped    *skipLog
}

// New validates opts and builds a relayer.
func New(opts Options) (*Relayer, error) {
	for _, role := range bridge.Roles {
		c, ok := opts.Chains[role]
		if !ok || c.Client == nil || c.Signer == nil || c.Contract.ABI == nil {
			return nil, bridge.ConfigErrorf("chain %s is not fully configured", role)
		}
	}
	if opts.Mapper == nil || opts.Cursor == nil || opts.Guard == nil {
		return nil, bridge.ConfigErrorf("mapper, cursor and guard are required")
	}
	if opts.MaxActionsPerPass < 0 {
		return nil, bridge.ConfigErrorf("max_actions_per_pass must be >= 0")
	}
	locks := opts.Locks
	if locks == nil {
		locks = NewNonceLocks()
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Relayer{
		chains:     opts.Chains,
		mapper:     opts.Mapper,
		cursor:     opts.Cursor,
		guard:      opts.Guard,
		locks:      locks,
		maxActions: opts.MaxActionsPerPass,
		log:        log,
		metrics:    opts.Metrics,
		notifier:   opts.Notifier,
		skipped:    newSkipLog(),
	}, nil
}

// Outcome is the terminal state of a pass.
type Outcome string

const (
	NoEvents Outcome = "no_events"
	Recorded Outcome = "recorded"
	Reported Outcome = "reported"
)

// Failure is one problem surfaced by a pass. Event is nil for failures that
// are not tied to a single event.
type Failure struct {
	Event  *bridge.EventID
	Window bridge.BlockWindow
	Kind   bridge.Kind
	Err    error
}

// PassResult summarizes one pass.
type PassResult struct {
	Direction  bridge.Role
	Window     bridge.BlockWindow
	Outcome    Outcome
	Seen       int
	Duplicates int
	Submitted  []bridge.SubmissionRecord
	Failures   []Failure
	// CursorTo is the height the cursor was advanced to, if Advanced.
	CursorTo uint64
	Advanced bool
}

// nonceState tracks the signer sequence within a pass.
type nonceState struct {
	next  uint64
	valid bool
}

// RunPass scans the chain dir watches and relays what it finds to the
// counterpart chain. The returned error is the failure that made the pass
// Reported; mapping errors on single events do not.
func (r *Relayer) RunPass(ctx context.Context, dir bridge.Role) (PassResult, error) {
	res := PassResult{Direction: dir}
	if !dir.Valid() {
		return r.abort(ctx, &res, bridge.ConfigErrorf("invalid direction %s", dir))
	}
	watched, target := r.chains[dir], r.chains[dir.Counterpart()]

	if err := CheckCapabilities(dir, watched, target); err != nil {
		return r.abort(ctx, &res, err)
	}

	head, err := watched.Client.HeadHeight(ctx)
	if err != nil {
		return r.abort(ctx, &res, err)
	}
	safe := uint64(0)
	if head > watched.Confirmations {
		safe = head - watched.Confirmations
	}
	res.Window, err = r.cursor.Window(ctx, dir, safe)
	if err != nil {
		return r.abort(ctx, &res, err)
	}
	r.skipped.prune(dir, res.Window.From)

	events, err := r.fetch(ctx, dir, watched, res.Window)
	if err != nil {
		return r.abort(ctx, &res, err)
	}
	res.Seen = len(events)
	r.metrics.EventsSeen(dir.String(), len(events))

	if len(events) == 0 {
		return r.finish(ctx, &res, res.Window.To)
	}

	advanceTo := res.Window.To
	var (
		nonce  nonceState
		unlock func()
	)
	defer func() {
		if unlock != nil {
			unlock()
		}
	}()

	for i, ev := range events {
		if err := ctx.Err(); err != nil {
			return r.abort(ctx, &res, bridge.Transient(err, "pass interrupted"))
		}

		handled, err := r.guard.AlreadyHandled(ctx, ev.ID)
		if err != nil {
			return r.abortEvent(ctx, &res, ev.ID, errors.Wrap(err, "dedup check"))
		}
		if handled {
			res.Duplicates++
			r.metrics.DuplicateSkipped(dir.String())
			r.log.Debug("already handled", "direction", dir, "idempotency_key", ev.ID.String())
			continue
		}

		action, err := r.mapper.Map(ev)
		if err != nil {
			r.reportEvent(ctx, &res, ev.ID, err)
			continue
		}
		if action == nil {
			continue
		}

		if unlock == nil {
			unlock = r.locks.Lock(target.Client.ChainID(), target.Signer.Address())
		}
		rec, err := r.relay(ctx, target, ev, action, &nonce)
		if err != nil {
			return r.abortEvent(ctx, &res, ev.ID, err)
		}
		res.Submitted = append(res.Submitted, rec)
		r.metrics.ActionSubmitted(dir.String())
		r.log.Info("relayed",
			"direction", dir,
			"idempotency_key", ev.ID.String(),
			"function", rec.Function,
			"tx", rec.TxHash.Hex(),
			"nonce", rec.Nonce,
		)

		if r.maxActions > 0 && len(res.Submitted) >= r.maxActions && i < len(events)-1 {
			// later events in the window still need a pass
			if ev.ID.Block == 0 {
				return r.finishWithoutAdvance(&res)
			}
			advanceTo = ev.ID.Block - 1
			break
		}
	}

	return r.finish(ctx, &res, advanceTo)
}

// CheckCapabilities returns a config error unless every watched event is in
// the watched ABI with a relay rule and the target ABI has the functions
// those rules call.
func CheckCapabilities(dir bridge.Role, watched, target Chain) error {
	if len(watched.Events) == 0 {
		return bridge.ConfigErrorf("%s: no events to watch", dir)
	}
	for _, name := range watched.Events {
		if !watched.Contract.HasEvent(name) {
			return bridge.ConfigErrorf("%s contract %s has no event %s", dir, watched.Contract.Address.Hex(), name)
		}
		if !mapper.Supported(dir, name) {
			return bridge.ConfigErrorf("%s: no relay rule for event %s", dir, name)
		}
	}
	for _, fn := range mapper.Functions(dir, watched.Events) {
		if !target.Contract.HasFunction(fn) {
			return bridge.ConfigErrorf("%s contract %s has no function %s", dir.Counterpart(), target.Contract.Address.Hex(), fn)
		}
	}
	return nil
}

func (r *Relayer) fetch(ctx context.Context, dir bridge.Role, watched Chain, window bridge.BlockWindow) ([]bridge.RawEvent, error) {
	var out []bridge.RawEvent
	for _, name := range watched.Events {
		event, err := watched.Contract.Event(name)
		if err != nil {
			return nil, err
		}
		evs, err := watched.Client.Events(ctx, bridge.EventQuery{
			Chain:   dir,
			Address: watched.Contract.Address,
			Event:   event,
			Window:  window,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "fetch %s %s", name, window)
		}
		out = append(out, evs...)
	}
	bridge.SortEvents(out)
	return out, nil
}

// relay builds, signs and submits one action, then records it. Once the
// transaction is handed to the node, cancellation of ctx is ignored so the
// pass reaches the record step.
func (r *Relayer) relay(ctx context.Context, target Chain, ev bridge.RawEvent, action *bridge.ActionDescriptor, nonce *nonceState) (bridge.SubmissionRecord, error) {
	data, err := target.Contract.ABI.Pack(action.Function, action.Args...)
	if err != nil {
		return bridge.SubmissionRecord{}, bridge.ConfigErrorf("pack %s for %s: %v", action.Function, action.IdempotencyKey, err)
	}

	signer := target.Signer
	if !nonce.valid || r.maxActions == 1 {
		n, err := target.Client.NextSequence(ctx, signer.Address())
		if err != nil {
			return bridge.SubmissionRecord{}, err
		}
		nonce.next, nonce.valid = n, true
	}

	fee, err := target.Client.FeeLevel(ctx)
	if err != nil {
		return bridge.SubmissionRecord{}, err
	}
	if fee.GasPrice == nil || fee.GasPrice.Sign() <= 0 {
		return bridge.SubmissionRecord{}, bridge.Transient(errors.New("node suggested no gas price"), "fee level")
	}
	if target.MaxGasPrice != nil && fee.GasPrice.Cmp(target.MaxGasPrice) > 0 {
		return bridge.SubmissionRecord{}, bridge.Transient(
			errors.Newf("gas price %s above ceiling %s", fee.GasPrice, target.MaxGasPrice), "fee level")
	}

	gasLimit := target.GasLimit
	if gasLimit == 0 {
		gasLimit = DefaultGasLimit
	}
	to := target.Contract.Address
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce.next,
		To:       &to,
		Gas:      gasLimit,
		GasPrice: fee.GasPrice,
		Data:     data,
	})
	raw, err := signer.Sign(ctx, tx, target.Client.ChainID())
	if err != nil {
		return bridge.SubmissionRecord{}, bridge.Permanent(err, "sign")
	}

	dispatched := context.WithoutCancel(ctx)
	hash, err := target.Client.Submit(dispatched, raw)
	if err != nil {
		nonce.valid = false
		return bridge.SubmissionRecord{}, err
	}
	rec := bridge.SubmissionRecord{
		Key:      action.IdempotencyKey,
		TxHash:   hash,
		Status:   bridge.StatusPending,
		Target:   action.Target,
		Function: action.Function,
		Nonce:    nonce.next,
		SourceTx: ev.TxHash,
	}
	nonce.next++

	if err := r.guard.Record(dispatched, rec); err != nil {
		r.log.Error("submitted but not recorded; reconcile manually",
			"idempotency_key", rec.Key.String(), "tx", hash.Hex(), "err", err)
		return rec, errors.Wrapf(err, "record %s tx %s", rec.Key, hash.Hex())
	}
	return rec, nil
}

func (r *Relayer) finish(ctx context.Context, res *PassResult, to uint64) (PassResult, error) {
	moved, err := r.cursor.Advance(ctx, res.Direction, to)
	if err != nil {
		return r.abort(ctx, res, err)
	}
	res.CursorTo, res.Advanced = to, moved
	r.metrics.CursorHeight(res.Direction.String(), to)

	res.Outcome = NoEvents
	if len(res.Submitted) > 0 {
		res.Outcome = Recorded
	}
	r.metrics.Pass(res.Direction.String(), string(res.Outcome))
	r.log.Info("pass complete",
		"direction", res.Direction,
		"window", res.Window.String(),
		"outcome", res.Outcome,
		"seen", res.Seen,
		"submitted", len(res.Submitted),
		"duplicates", res.Duplicates,
		"event_failures", len(res.Failures),
		"cursor", to,
	)
	return *res, nil
}

func (r *Relayer) finishWithoutAdvance(res *PassResult) (PassResult, error) {
	res.Outcome = Recorded
	r.metrics.Pass(res.Direction.String(), string(res.Outcome))
	return *res, nil
}

func (r *Relayer) abort(ctx context.Context, res *PassResult, err error) (PassResult, error) {
	return r.fail(ctx, res, nil, err)
}

func (r *Relayer) abortEvent(ctx context.Context, res *PassResult, id bridge.EventID, err error) (PassResult, error) {
	return r.fail(ctx, res, &id, err)
}

func (r *Relayer) fail(ctx context.Context, res *PassResult, id *bridge.EventID, err error) (PassResult, error) {
	kind := bridge.Classify(err)
	res.Outcome = Reported
	res.Failures = append(res.Failures, Failure{Event: id, Window: res.Window, Kind: kind, Err: err})
	r.metrics.Error(string(kind))
	r.metrics.Pass(res.Direction.String(), string(Reported))

	attrs := []any{"direction", res.Direction, "window", res.Window.String(), "kind", kind, "err", err}
	if id != nil {
		attrs = append(attrs, "idempotency_key", id.String())
	}
	if len(res.Submitted) > 0 {
		attrs = append(attrs, "submitted_before_failure", len(res.Submitted))
	}
	r.log.Error("pass reported", attrs...)
	r.notify(ctx, *res, id, kind, err)
	return *res, err
}

// reportEvent surfaces a failure confined to one event; the pass continues.
// Overlapping windows see the same event again, so operators are notified
// only the first time.
func (r *Relayer) reportEvent(ctx context.Context, res *PassResult, id bridge.EventID, err error) {
	kind := bridge.Classify(err)
	res.Failures = append(res.Failures, Failure{Event: &id, Window: res.Window, Kind: kind, Err: err})
	if !r.skipped.first(id) {
		r.log.Debug("event skipped again", "direction", res.Direction, "idempotency_key", id.String(), "kind", kind)
		return
	}
	r.metrics.Error(string(kind))
	r.log.Warn("event skipped", "direction", res.Direction, "idempotency_key", id.String(), "kind", kind, "err", err)
	r.notify(ctx, *res, &id, kind, err)
}

func (r *Relayer) notify(ctx context.Context, res PassResult, id *bridge.EventID, kind bridge.Kind, err error) {
	if r.notifier == nil {
		return
	}
	report := notify.Report{
		Direction: res.Direction.String(),
		Outcome:   string(Reported),
		Window:    res.Window.String(),
		Kind:      string(kind),
		Error:     err.Error(),
	}
	if id != nil {
		report.Event = id.String()
	}
	if res.Outcome != Reported {
		report.Outcome = "event_skipped"
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if nerr := r.notifier.Send(nctx, report); nerr != nil {
		r.log.Warn("notify failed", "err", nerr)
	}
}

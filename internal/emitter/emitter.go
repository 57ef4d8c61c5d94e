package emitter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"tradesentry/internal/alerting"
	"tradesentry/internal/clock"
	"tradesentry/internal/gate"
	"tradesentry/internal/metrics"
	"tradesentry/internal/storage"
	"tradesentry/internal/throttle"
)

const lockStripes = 64

// Request is one throttle-gated emission attempt for a key.
type Request struct {
	Key        throttle.Key
	Price      decimal.Decimal
	Thresholds throttle.Thresholds
	Text       string
}

// Result reports what the pipeline did with a request.
type Result struct {
	Outcome   string
	Reason    string
	Delivered bool
}

// Options tune retry behaviour on the store boundary.
type Options struct {
	// ReadRetries bounds snapshot read attempts before the cycle is
	// skipped fail-closed.
	ReadRetries int
	// CommitRetries bounds commit attempts after a confirmed dispatch;
	// losing that commit would cause a duplicate next cycle, so this is
	// the one retry that matters most.
	CommitRetries int
	// RetryBackoff is the pause between retry attempts.
	RetryBackoff time.Duration
}

func (o *Options) fill() {
	if o.ReadRetries <= 0 {
		o.ReadRetries = 3
	}
	if o.CommitRetries <= 0 {
		o.CommitRetries = 5
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 200 * time.Millisecond
	}
}

// Emitter converts an already-computed trading signal into at most one
// external side effect per meaningful change. The decide, dispatch, and
// commit steps for one key run under a striped per-key mutex so two
// concurrent evaluations can never both observe "allow" and both
// dispatch; independent keys proceed in parallel.
type Emitter struct {
	store    throttle.SnapshotStore
	events   storage.EventStore
	keeper   *gate.Gatekeeper
	notifier alerting.Notifier
	clk      clock.Clock
	logger   zerolog.Logger
	opts     Options

	locks [lockStripes]sync.Mutex
}

// New constructs an Emitter.
func New(store throttle.SnapshotStore, events storage.EventStore, keeper *gate.Gatekeeper, notifier alerting.Notifier, clk clock.Clock, opts Options, logger zerolog.Logger) *Emitter {
	opts.fill()
	return &Emitter{
		store:    store,
		events:   events,
		keeper:   keeper,
		notifier: notifier,
		clk:      clk,
		logger:   logger.With().Str("component", "emitter").Logger(),
		opts:     opts,
	}
}

func (e *Emitter) lockFor(key throttle.Key) *sync.Mutex {
	return &e.locks[xxhash.Sum64String(key.String())%lockStripes]
}

// Emit runs the full decide → permit → dispatch → commit sequence.
//
// The snapshot only advances on a confirmed dispatch: a gatekeeper block
// or a channel failure leaves the previous snapshot untouched, so the
// next evaluation retries naturally. A deny is a normal result, not an
// error.
func (e *Emitter) Emit(ctx context.Context, req Request) (Result, error) {
	mu := e.lockFor(req.Key)
	mu.Lock()
	defer mu.Unlock()

	now := e.clk.Now()

	snap, err := e.readSnapshot(ctx, req.Key)
	if err != nil {
		// Fail closed: a degraded store must not cause runaway duplicate
		// emissions, so the cycle is skipped entirely.
		return Result{}, fmt.Errorf("read snapshot %s: %w", req.Key, err)
	}

	fingerprint := req.Thresholds.Fingerprint()
	decision := throttle.Decide(now, req.Price, fingerprint, req.Thresholds, snap)
	metrics.IncDecision(decision.Allow)

	if !decision.Allow {
		e.record(ctx, req, storage.OutcomeDenied, decision.Reason, now)
		return Result{Outcome: storage.OutcomeDenied, Reason: decision.Reason}, nil
	}

	if !e.keeper.Permit() {
		// Delivery suppressed by environment, and deliberately no commit:
		// the decision was correct, but a suppressed send does not count
		// as an emission for debounce purposes.
		e.record(ctx, req, storage.OutcomeBlocked, decision.Reason, now)
		e.logger.Info().Str("key", req.Key.String()).Str("origin", string(e.keeper.Origin())).Msg("dispatch blocked by environment gate")
		return Result{Outcome: storage.OutcomeBlocked, Reason: decision.Reason}, nil
	}

	if err := e.notifier.Send(ctx, req.Text, e.keeper.Tag()); err != nil {
		e.record(ctx, req, storage.OutcomeFailed, err.Error(), now)
		return Result{Outcome: storage.OutcomeFailed, Reason: decision.Reason}, fmt.Errorf("dispatch %s: %w", req.Key, err)
	}

	commit := throttle.Snapshot{
		Key:         req.Key,
		LastPrice:   req.Price,
		LastAt:      now,
		Fingerprint: fingerprint,
		ForceNext:   false,
	}
	if err := e.commitSnapshot(ctx, commit); err != nil {
		// The external side effect already happened; surface loudly so
		// the duplicate risk is visible.
		e.logger.Error().Err(err).Str("key", req.Key.String()).Msg("snapshot commit failed after confirmed dispatch")
		e.record(ctx, req, storage.OutcomeDelivered, decision.Reason+" (commit failed)", now)
		return Result{Outcome: storage.OutcomeDelivered, Reason: decision.Reason, Delivered: true}, err
	}

	e.record(ctx, req, storage.OutcomeDelivered, decision.Reason, now)
	return Result{Outcome: storage.OutcomeDelivered, Reason: decision.Reason, Delivered: true}, nil
}

// RecordIndeterminate audits an evaluation that failed upstream. The
// throttle treats indeterminate as deny: never emit on incomplete data.
func (e *Emitter) RecordIndeterminate(ctx context.Context, key throttle.Key, reason string) {
	e.record(ctx, Request{Key: key}, storage.OutcomeDenied, "evaluation indeterminate: "+reason, e.clk.Now())
}

func (e *Emitter) readSnapshot(ctx context.Context, key throttle.Key) (*throttle.Snapshot, error) {
	var lastErr error
	for attempt := 0; attempt < e.opts.ReadRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(e.opts.RetryBackoff):
			}
		}
		snap, err := e.store.Get(ctx, key)
		if err == nil {
			return snap, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (e *Emitter) commitSnapshot(ctx context.Context, snap throttle.Snapshot) error {
	var lastErr error
	for attempt := 0; attempt < e.opts.CommitRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(e.opts.RetryBackoff):
			}
		}
		err := e.store.Commit(ctx, snap)
		if err == nil {
			return nil
		}
		if err == throttle.ErrStaleCommit {
			// A newer emission already advanced the key; this commit is
			// obsolete, not a failure.
			e.logger.Warn().Str("key", snap.Key.String()).Msg("dropping stale snapshot commit")
			return nil
		}
		lastErr = err
	}
	return lastErr
}

func (e *Emitter) record(ctx context.Context, req Request, outcome, reason string, at time.Time) {
	metrics.IncEmission(string(req.Key.Side), outcome)
	if e.events == nil {
		return
	}
	event := storage.NewSignalEvent(req.Key, req.Price, outcome, reason, string(e.keeper.Origin()), at)
	if err := e.events.InsertEvent(ctx, event); err != nil {
		e.logger.Error().Err(err).Str("key", req.Key.String()).Str("outcome", outcome).Msg("failed to record signal event")
	}
}

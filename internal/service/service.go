package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"tradesentry/internal/alerting"
	"tradesentry/internal/clock"
	"tradesentry/internal/config"
	"tradesentry/internal/emitter"
	"tradesentry/internal/evaluator"
	"tradesentry/internal/gate"
	"tradesentry/internal/metrics"
	"tradesentry/internal/storage"
	"tradesentry/internal/throttle"
)

// Service wires the evaluator → throttle → gatekeeper → emitter pipeline
// and owns the housekeeping job bodies the coordinator drives.
type Service struct {
	cfg       *config.Config
	evaluator evaluator.SignalEvaluator
	emitter   *emitter.Emitter
	snapshots throttle.SnapshotStore
	events    storage.EventStore
	notifier  alerting.Notifier
	commands  alerting.CommandSource
	keeper    *gate.Gatekeeper
	clk       clock.Clock
	logger    zerolog.Logger

	cacheMu       sync.RWMutex
	snapshotCache []throttle.Snapshot
}

// New constructs the service.
func New(cfg *config.Config, eval evaluator.SignalEvaluator, emit *emitter.Emitter, snapshots throttle.SnapshotStore, events storage.EventStore, notifier alerting.Notifier, commands alerting.CommandSource, keeper *gate.Gatekeeper, clk clock.Clock, logger zerolog.Logger) *Service {
	return &Service{
		cfg:       cfg,
		evaluator: eval,
		emitter:   emit,
		snapshots: snapshots,
		events:    events,
		notifier:  notifier,
		commands:  commands,
		keeper:    keeper,
		clk:       clk,
		logger:    logger.With().Str("component", "service").Logger(),
	}
}

// SweepWatchlist evaluates every tracked symbol once and feeds any BUY or
// SELL view through the throttle pipeline. Evaluation failures are
// indeterminate: they are audited as denied and never emit.
func (s *Service) SweepWatchlist(ctx context.Context) error {
	watch := s.cfg.Watchlist
	metrics.SetTrackedSymbols(len(watch.Symbols))

	var failures int
	for _, symbol := range watch.Symbols {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.sweepSymbol(ctx, symbol, watch.Strategy, watch.RiskProfile); err != nil {
			failures++
			s.logger.Error().Err(err).Str("symbol", symbol).Msg("sweep failed for symbol")
		}
	}

	if failures == len(watch.Symbols) && failures > 0 {
		return fmt.Errorf("sweep failed for all %d symbols", failures)
	}
	return nil
}

func (s *Service) sweepSymbol(ctx context.Context, symbol, strategy, profile string) error {
	eval, err := s.evaluator.Evaluate(ctx, symbol, strategy)
	if err != nil {
		s.emitter.RecordIndeterminate(ctx, throttle.Key{Symbol: symbol, Strategy: strategy, Side: throttle.SideIndex}, err.Error())
		return err
	}

	thresholds := s.cfg.ResolveThresholds(symbol, strategy, profile)

	if eval.Buy {
		if err := s.emitSide(ctx, symbol, strategy, throttle.SideBuy, eval, thresholds); err != nil {
			return err
		}
	}
	if eval.Sell {
		if err := s.emitSide(ctx, symbol, strategy, throttle.SideSell, eval, thresholds); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) emitSide(ctx context.Context, symbol, strategy string, side throttle.Side, eval evaluator.Evaluation, thresholds throttle.Thresholds) error {
	key := throttle.Key{Symbol: symbol, Strategy: strategy, Side: side}
	result, err := s.emitter.Emit(ctx, emitter.Request{
		Key:        key,
		Price:      eval.Price,
		Thresholds: thresholds,
		Text:       renderSignalText(key, eval.Price, eval.Reasons),
	})
	if err != nil {
		return err
	}

	s.logger.Info().
		Str("key", key.String()).
		Str("price", eval.Price.String()).
		Str("outcome", result.Outcome).
		Str("reason", result.Reason).
		Msg("signal processed")
	return nil
}

// renderSignalText builds the outgoing alert body. The origin tag is
// prepended later by the notifier, never here.
func renderSignalText(key throttle.Key, price decimal.Decimal, reasons map[string]string) string {
	builder := strings.Builder{}
	fmt.Fprintf(&builder, "%s signal: %s @ %s\n", key.Side, key.Symbol, price.String())
	fmt.Fprintf(&builder, "Strategy: %s\n", key.Strategy)
	for name, detail := range reasons {
		fmt.Fprintf(&builder, "%s: %s\n", name, detail)
	}
	return strings.TrimRight(builder.String(), "\n")
}

// send delivers operational text through the notifier, honouring the
// environment gate the same way signal dispatch does.
func (s *Service) send(ctx context.Context, text string) error {
	if s.notifier == nil {
		return nil
	}
	if !s.keeper.Permit() {
		s.logger.Info().Str("origin", string(s.keeper.Origin())).Str("text", text).Msg("operational message suppressed by environment gate")
		return nil
	}
	return s.notifier.Send(ctx, text, s.keeper.Tag())
}

// CachedSnapshots returns the most recently refreshed snapshot listing
// for diagnostics endpoints; it may lag the store by one refresh window.
func (s *Service) CachedSnapshots() []throttle.Snapshot {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	out := make([]throttle.Snapshot, len(s.snapshotCache))
	copy(out, s.snapshotCache)
	return out
}

// RefreshSnapshotCache reloads the diagnostics cache from the store.
func (s *Service) RefreshSnapshotCache(ctx context.Context) error {
	snaps, err := s.snapshots.List(ctx)
	if err != nil {
		return fmt.Errorf("refresh snapshot cache: %w", err)
	}
	s.cacheMu.Lock()
	s.snapshotCache = snaps
	s.cacheMu.Unlock()
	return nil
}

// timeSince is a small helper for report windows.
func (s *Service) timeSince(d time.Duration) time.Time {
	return s.clk.Now().Add(-d)
}

package app

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"tradesentry/internal/emitter"
	"tradesentry/internal/throttle"
)

// SimulateSignal runs one price observation through the full decide →
// permit → dispatch → commit pipeline against the real stores, so an
// operator can exercise throttling and gating without waiting for the
// market.
func (a *App) SimulateSignal(ctx context.Context, symbol string, side throttle.Side, price decimal.Decimal) error {
	snapshots, events, closeStores, err := a.openStores(ctx)
	if err != nil {
		return err
	}
	if closeStores != nil {
		defer closeStores()
	}

	keeper := a.newGatekeeper()
	notifier := a.newNotifier()
	if notifier == nil {
		a.Logger.Warn().Msg("telegram not configured; simulated dispatch is a no-op")
	}

	emit := emitter.New(snapshots, events, keeper, orNopNotifier(notifier), a.clk, emitter.Options{}, a.Logger)

	watch := a.Config.Watchlist
	key := throttle.Key{Symbol: symbol, Strategy: watch.Strategy, Side: side}
	result, err := emit.Emit(ctx, emitter.Request{
		Key:        key,
		Price:      price,
		Thresholds: a.Config.ResolveThresholds(symbol, watch.Strategy, watch.RiskProfile),
		Text:       fmt.Sprintf("%s signal (simulated): %s @ %s", side, symbol, price.String()),
	})
	if err != nil {
		return err
	}

	a.Logger.Info().
		Str("key", key.String()).
		Str("outcome", result.Outcome).
		Str("reason", result.Reason).
		Bool("delivered", result.Delivered).
		Msg("simulation finished")
	return nil
}

package evaluator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"tradesentry/internal/clock"
	"tradesentry/internal/fetcher"
)

// MomentumOptions parameterise the reference-price evaluator.
type MomentumOptions struct {
	// TriggerPct is the move against the rolling reference that flips a
	// signal on, in percent.
	TriggerPct decimal.Decimal
	// Lookback bounds the age of the reference price; an older reference
	// is replaced by the current observation before comparing.
	Lookback time.Duration
}

// Momentum is a deliberately small SignalEvaluator: it compares the
// current price against a rolling per-symbol reference and signals SELL
// on a rise and BUY on a drop beyond the trigger. It exists so the
// pipeline runs end to end; production deployments plug in a real
// indicator engine behind the same interface.
type Momentum struct {
	opts   MomentumOptions
	prices fetcher.PriceFetcher
	clk    clock.Clock
	logger zerolog.Logger

	mu   sync.Mutex
	refs map[string]reference
}

type reference struct {
	price decimal.Decimal
	at    time.Time
}

// NewMomentum constructs the evaluator.
func NewMomentum(opts MomentumOptions, prices fetcher.PriceFetcher, clk clock.Clock, logger zerolog.Logger) *Momentum {
	if opts.Lookback <= 0 {
		opts.Lookback = time.Hour
	}
	if opts.TriggerPct.LessThanOrEqual(decimal.Zero) {
		opts.TriggerPct = decimal.NewFromFloat(2.0)
	}

	return &Momentum{
		opts:   opts,
		prices: prices,
		clk:    clk,
		logger: logger.With().Str("component", "momentum_evaluator").Logger(),
		refs:   make(map[string]reference),
	}
}

// Evaluate fetches the current price and compares it to the reference.
func (m *Momentum) Evaluate(ctx context.Context, symbol, strategy string) (Evaluation, error) {
	price, err := m.prices.FetchPrice(ctx, symbol)
	if err != nil {
		return Evaluation{}, fmt.Errorf("fetch price for %s: %w", symbol, err)
	}

	now := m.clk.Now()

	m.mu.Lock()
	ref, ok := m.refs[symbol]
	if !ok || now.Sub(ref.at) > m.opts.Lookback {
		m.refs[symbol] = reference{price: price, at: now}
		m.mu.Unlock()
		return Evaluation{Price: price, Reasons: map[string]string{"reference": "established"}}, nil
	}
	m.mu.Unlock()

	movePct := price.Sub(ref.price).Div(ref.price).Mul(decimal.NewFromInt(100))
	eval := Evaluation{
		Price: price,
		Reasons: map[string]string{
			"reference_price": ref.price.String(),
			"move_pct":        movePct.StringFixed(4),
			"trigger_pct":     m.opts.TriggerPct.String(),
		},
	}

	switch {
	case movePct.GreaterThanOrEqual(m.opts.TriggerPct):
		eval.Sell = true
	case movePct.LessThanOrEqual(m.opts.TriggerPct.Neg()):
		eval.Buy = true
	}

	if eval.Buy || eval.Sell {
		// Re-anchor so the next evaluation measures from here.
		m.mu.Lock()
		m.refs[symbol] = reference{price: price, at: now}
		m.mu.Unlock()
	}

	return eval, nil
}

var _ SignalEvaluator = (*Momentum)(nil)

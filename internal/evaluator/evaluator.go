package evaluator

import (
	"context"

	"github.com/shopspring/decimal"
)

// Evaluation is the raw trading view for one symbol at one instant. Buy
// and Sell are independent booleans; Reasons carries indicator context
// the throttle passes through untouched.
type Evaluation struct {
	Buy     bool
	Sell    bool
	Price   decimal.Decimal
	Reasons map[string]string
}

// SignalEvaluator supplies the BUY/SELL view the throttle pipeline acts
// on. Indicator computation lives behind this boundary; the throttle
// never recomputes it. An error means the view is indeterminate and the
// pipeline must not emit.
type SignalEvaluator interface {
	Evaluate(ctx context.Context, symbol, strategy string) (Evaluation, error)
}

package throttle

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Decision is the outcome of a debounce evaluation. A deny is a normal
// result, not an error; Reason is operator-facing either way.
type Decision struct {
	Allow  bool
	Reason string
}

var oneHundred = decimal.NewFromInt(100)

// Decide applies the debounce rules for one key. It is a pure read of the
// passed-in snapshot: safe to call repeatedly and concurrently, and it
// never mutates state. Clearing a force flag or storing the new
// fingerprint is the committer's job, so a failed dispatch leaves both
// intact for the next cycle.
//
// Rules, in priority order: no snapshot allows; a pending force flag
// allows; a fingerprint mismatch (operator edited thresholds since the
// last emission) allows; otherwise the evaluation allows when either the
// cooldown has elapsed or the price moved by at least the configured
// percentage. Time and magnitude are deliberately OR-ed: a large move
// should not wait out the cooldown, and an idle signal should eventually
// refresh at constant price.
func Decide(now time.Time, price decimal.Decimal, fingerprint string, th Thresholds, snap *Snapshot) Decision {
	if snap == nil {
		return Decision{Allow: true, Reason: "first signal for this key"}
	}
	if snap.ForceNext {
		return Decision{Allow: true, Reason: "forced by configuration change"}
	}
	if snap.Fingerprint != fingerprint {
		return Decision{Allow: true, Reason: "configuration changed since last emission"}
	}
	if snap.LastPrice.IsZero() || snap.LastAt.IsZero() {
		// A zero reference price makes the delta undefined; treat the key
		// as never emitted.
		return Decision{Allow: true, Reason: "no usable reference price"}
	}

	elapsed := now.Sub(snap.LastAt)
	if elapsed >= th.MinInterval {
		return Decision{Allow: true, Reason: fmt.Sprintf("cooldown elapsed (%s >= %s)", elapsed.Truncate(time.Second), th.MinInterval)}
	}

	deltaPct := price.Sub(snap.LastPrice).Abs().Div(snap.LastPrice).Mul(oneHundred)
	if deltaPct.GreaterThanOrEqual(th.MinPriceChangePct) {
		return Decision{Allow: true, Reason: fmt.Sprintf("price moved %s%% (>= %s%%)", deltaPct.StringFixed(4), th.MinPriceChangePct)}
	}

	return Decision{
		Allow: false,
		Reason: fmt.Sprintf("throttled: %s of %s cooldown elapsed, price moved %s%% of %s%% required",
			elapsed.Truncate(time.Second), th.MinInterval, deltaPct.StringFixed(4), th.MinPriceChangePct),
	}
}

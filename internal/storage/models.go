package storage

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradesentry/internal/throttle"
)

// Signal event outcomes. Every evaluation that reaches the emitter leaves
// exactly one of these in the audit log, so operators can distinguish "no
// signal" from "signal present but throttled/blocked".
const (
	OutcomeDelivered = "delivered"
	OutcomeBlocked   = "blocked"
	OutcomeDenied    = "denied"
	OutcomeFailed    = "failed"
)

// SignalEvent captures one pipeline outcome for auditing and diagnostics.
type SignalEvent struct {
	ID        uuid.UUID
	Symbol    string
	Strategy  string
	Side      throttle.Side
	Price     decimal.Decimal
	Outcome   string
	Reason    string
	Origin    string
	CreatedAt time.Time
}

// NewSignalEvent assigns an ID and timestamps the event.
func NewSignalEvent(key throttle.Key, price decimal.Decimal, outcome, reason, origin string, at time.Time) SignalEvent {
	return SignalEvent{
		ID:        uuid.New(),
		Symbol:    key.Symbol,
		Strategy:  key.Strategy,
		Side:      key.Side,
		Price:     price,
		Outcome:   outcome,
		Reason:    reason,
		Origin:    origin,
		CreatedAt: at,
	}
}

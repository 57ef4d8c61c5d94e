package throttle

import (
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/shopspring/decimal"
)

// Side identifies the emission channel a snapshot belongs to.
type Side string

const (
	SideBuy   Side = "BUY"
	SideSell  Side = "SELL"
	SideIndex Side = "INDEX"
)

// Key addresses exactly one throttle snapshot.
type Key struct {
	Symbol   string
	Strategy string
	Side     Side
}

// String renders the key in symbol/strategy/side form for logs and errors.
func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Symbol, k.Strategy, k.Side)
}

// Snapshot records the last committed emission for a key. Absence of a
// snapshot means nothing was ever emitted for that key.
type Snapshot struct {
	Key         Key
	LastPrice   decimal.Decimal
	LastAt      time.Time
	Fingerprint string
	ForceNext   bool
	UpdatedAt   time.Time
}

// Thresholds hold the resolved debounce configuration for one key.
type Thresholds struct {
	MinInterval       time.Duration
	MinPriceChangePct decimal.Decimal
}

// Fingerprint hashes the threshold configuration into an opaque token.
// Two resolutions with the same values always produce the same token, so
// a stored fingerprint detects operator edits between emissions.
func (t Thresholds) Fingerprint() string {
	sum := xxhash.Sum64String("interval=" + t.MinInterval.String() + ";change_pct=" + t.MinPriceChangePct.String())
	return fmt.Sprintf("%016x", sum)
}

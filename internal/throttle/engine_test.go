package throttle

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var testKey = Key{Symbol: "BTCUSDT", Strategy: "momentum", Side: SideBuy}

func testThresholds() Thresholds {
	return Thresholds{
		MinInterval:       5 * time.Minute,
		MinPriceChangePct: decimal.NewFromInt(1),
	}
}

func baseTime() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func TestDecideFirstSignalAllows(t *testing.T) {
	decision := Decide(baseTime(), decimal.NewFromInt(50000), "fp", testThresholds(), nil)
	if !decision.Allow {
		t.Fatalf("first signal must allow, got deny: %s", decision.Reason)
	}
}

func TestDecideForceNextAllows(t *testing.T) {
	th := testThresholds()
	snap := &Snapshot{
		Key:         testKey,
		LastPrice:   decimal.NewFromInt(50000),
		LastAt:      baseTime(),
		Fingerprint: th.Fingerprint(),
		ForceNext:   true,
	}

	// Same price one second later would otherwise be throttled.
	decision := Decide(baseTime().Add(time.Second), decimal.NewFromInt(50000), th.Fingerprint(), th, snap)
	if !decision.Allow {
		t.Fatalf("force flag must allow, got deny: %s", decision.Reason)
	}
	if !strings.Contains(decision.Reason, "forced") {
		t.Fatalf("reason should mention the force, got %q", decision.Reason)
	}
	if !snap.ForceNext {
		t.Fatal("Decide must not clear the force flag; that is the committer's job")
	}
}

func TestDecideFingerprintChangeAllows(t *testing.T) {
	th := testThresholds()
	snap := &Snapshot{
		Key:         testKey,
		LastPrice:   decimal.NewFromInt(50000),
		LastAt:      baseTime(),
		Fingerprint: th.Fingerprint(),
	}

	edited := Thresholds{MinInterval: 10 * time.Minute, MinPriceChangePct: th.MinPriceChangePct}
	decision := Decide(baseTime().Add(time.Second), decimal.NewFromInt(50000), edited.Fingerprint(), edited, snap)
	if !decision.Allow {
		t.Fatalf("fingerprint drift must allow, got deny: %s", decision.Reason)
	}
}

func TestDecideThrottlesInsideWindow(t *testing.T) {
	th := testThresholds()
	snap := &Snapshot{
		Key:         testKey,
		LastPrice:   decimal.NewFromInt(50000),
		LastAt:      baseTime(),
		Fingerprint: th.Fingerprint(),
	}

	decision := Decide(baseTime().Add(10*time.Second), decimal.NewFromInt(50000), th.Fingerprint(), th, snap)
	if decision.Allow {
		t.Fatal("unchanged price inside the cooldown must deny")
	}
	if !strings.Contains(decision.Reason, "cooldown") || !strings.Contains(decision.Reason, "%") {
		t.Fatalf("deny reason should name both thresholds, got %q", decision.Reason)
	}
}

func TestDecideElapsedAloneAllows(t *testing.T) {
	th := testThresholds()
	snap := &Snapshot{
		Key:         testKey,
		LastPrice:   decimal.NewFromInt(50000),
		LastAt:      baseTime(),
		Fingerprint: th.Fingerprint(),
	}

	// Zero price move, but past the cooldown.
	decision := Decide(baseTime().Add(6*time.Minute), decimal.NewFromInt(50000), th.Fingerprint(), th, snap)
	if !decision.Allow {
		t.Fatalf("elapsed cooldown alone must allow, got deny: %s", decision.Reason)
	}
}

func TestDecideDeltaAloneAllows(t *testing.T) {
	th := testThresholds()
	snap := &Snapshot{
		Key:         testKey,
		LastPrice:   decimal.NewFromInt(50000),
		LastAt:      baseTime(),
		Fingerprint: th.Fingerprint(),
	}

	// 2% move with no time elapsed at all.
	decision := Decide(baseTime(), decimal.NewFromInt(51000), th.Fingerprint(), th, snap)
	if !decision.Allow {
		t.Fatalf("price move alone must allow, got deny: %s", decision.Reason)
	}
}

func TestDecideZeroReferencePrice(t *testing.T) {
	th := testThresholds()
	snap := &Snapshot{
		Key:         testKey,
		LastPrice:   decimal.Zero,
		LastAt:      baseTime(),
		Fingerprint: th.Fingerprint(),
	}

	decision := Decide(baseTime().Add(time.Second), decimal.NewFromInt(50000), th.Fingerprint(), th, snap)
	if !decision.Allow {
		t.Fatalf("zero reference price must be treated as never emitted, got deny: %s", decision.Reason)
	}
}

// Timeline: 50000 at t+0 allows (first), 50000 at t+10s denies, 50010 at
// t+40s denies (0.02% < 1%), 51000 at t+360s allows on magnitude.
func TestDecideScenarioTimeline(t *testing.T) {
	th := testThresholds()
	fp := th.Fingerprint()
	start := baseTime()

	decision := Decide(start, decimal.NewFromInt(50000), fp, th, nil)
	if !decision.Allow {
		t.Fatalf("t+0: expected allow, got %q", decision.Reason)
	}

	snap := &Snapshot{Key: testKey, LastPrice: decimal.NewFromInt(50000), LastAt: start, Fingerprint: fp}

	decision = Decide(start.Add(10*time.Second), decimal.NewFromInt(50000), fp, th, snap)
	if decision.Allow {
		t.Fatal("t+10s: expected deny")
	}

	decision = Decide(start.Add(40*time.Second), decimal.NewFromInt(50010), fp, th, snap)
	if decision.Allow {
		t.Fatal("t+40s: expected deny, 0.02%% is below the 1%% threshold")
	}

	decision = Decide(start.Add(360*time.Second), decimal.NewFromInt(51000), fp, th, snap)
	if !decision.Allow {
		t.Fatalf("t+360s: expected allow on 2%% move, got %q", decision.Reason)
	}
}

func TestFingerprintStability(t *testing.T) {
	a := Thresholds{MinInterval: 5 * time.Minute, MinPriceChangePct: decimal.NewFromInt(1)}
	b := Thresholds{MinInterval: 5 * time.Minute, MinPriceChangePct: decimal.NewFromInt(1)}
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatal("equal thresholds must produce equal fingerprints")
	}

	c := Thresholds{MinInterval: 5 * time.Minute, MinPriceChangePct: decimal.NewFromInt(2)}
	if a.Fingerprint() == c.Fingerprint() {
		t.Fatal("different thresholds must produce different fingerprints")
	}
}

package calls

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func submitCall(t *testing.T, store *memStore, clock Clock, draft Draft) int64 {
	t.Helper()
	svc := NewIngestService(store, clock, nil, time.Minute, 0)
	result, err := svc.Submit(context.Background(), draft)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if !result.Created {
		t.Fatalf("Submission unexpectedly deduplicated")
	}
	return result.ID
}

func newTestResolver(store *memStore, oracle *fakeOracle, clock Clock) *Resolver {
	return NewResolver(store, oracle, clock, nil, zerolog.Nop())
}

func TestResolveTickFullRide(t *testing.T) {
	store := newMemStore()
	clock := newManualClock(testStart)
	id := submitCall(t, store, clock, longDraft())

	oracle := &fakeOracle{prices: map[string]float64{"BTCUSDT": 121}}
	resolver := newTestResolver(store, oracle, clock)

	result, err := resolver.ResolveTick(context.Background())
	if err != nil {
		t.Fatalf("ResolveTick failed: %v", err)
	}
	if result.Resolved != 1 || result.Checked != 1 {
		t.Errorf("Expected 1 resolved / 1 checked, got %+v", result)
	}

	call := store.get(id)
	if call.Status != StatusResolved {
		t.Fatalf("Expected resolved, got %s", call.Status)
	}
	if !call.TP0Hit || !call.TP1Hit || !call.TP2Hit || !call.TP3Hit {
		t.Error("Expected all take profits hit")
	}
	if call.SLHit {
		t.Error("Stop loss should not be hit")
	}
	if call.BestTPReached != 3 {
		t.Errorf("Expected best TP 3, got %d", call.BestTPReached)
	}
	if call.ExitPrice == nil || *call.ExitPrice != 121 {
		t.Errorf("Expected exit price 121, got %v", call.ExitPrice)
	}
	if call.ProfitPct == nil || *call.ProfitPct != 21.00 {
		t.Errorf("Expected profit 21.00, got %v", call.ProfitPct)
	}
	if !call.Win() {
		t.Error("Expected a win")
	}
}

func TestResolveTickStopLoss(t *testing.T) {
	store := newMemStore()
	clock := newManualClock(testStart)
	id := submitCall(t, store, clock, longDraft())

	oracle := &fakeOracle{prices: map[string]float64{"BTCUSDT": 89}}
	resolver := newTestResolver(store, oracle, clock)

	if _, err := resolver.ResolveTick(context.Background()); err != nil {
		t.Fatalf("ResolveTick failed: %v", err)
	}

	call := store.get(id)
	if call.Status != StatusResolved || !call.SLHit {
		t.Fatalf("Expected resolved with SL hit, got status=%s sl_hit=%v", call.Status, call.SLHit)
	}
	if call.TP0Hit || call.TP1Hit {
		t.Error("No take profit should be hit on a straight stop-out")
	}
	if call.BestTPReached != 0 {
		t.Errorf("Expected best TP 0, got %d", call.BestTPReached)
	}
	if call.ProfitPct == nil || *call.ProfitPct != -11.00 {
		t.Errorf("Expected profit -11.00, got %v", call.ProfitPct)
	}
	if call.Win() {
		t.Error("A stopped-out call is never a win")
	}
}

func TestResolveTickShort(t *testing.T) {
	store := newMemStore()
	clock := newManualClock(testStart)
	id := submitCall(t, store, clock, shortDraft())

	oracle := &fakeOracle{prices: map[string]float64{"ETHUSDT": 84}}
	resolver := newTestResolver(store, oracle, clock)

	if _, err := resolver.ResolveTick(context.Background()); err != nil {
		t.Fatalf("ResolveTick failed: %v", err)
	}

	call := store.get(id)
	if call.Status != StatusResolved || call.SLHit {
		t.Fatalf("Expected clean short resolution, got status=%s sl_hit=%v", call.Status, call.SLHit)
	}
	if call.BestTPReached != 3 {
		t.Errorf("Expected best TP 3, got %d", call.BestTPReached)
	}
	// SHORT profit: (100 - 84) / 100 = 16%
	if call.ProfitPct == nil || *call.ProfitPct != 16.00 {
		t.Errorf("Expected profit 16.00, got %v", call.ProfitPct)
	}
	// TP1 crossing marks tp0_hit even though the draft carried no TP0
	if !call.TP0Hit {
		t.Error("Expected tp0_hit implied by TP1 crossing")
	}
}

func TestResolveTickStopLossEvaluatedFirst(t *testing.T) {
	store := newMemStore()
	clock := newManualClock(testStart)

	// Wide gap down on a short: price above the stop, even though it would
	// also be above entry. The stop must win.
	draft := shortDraft()
	id := submitCall(t, store, clock, draft)

	oracle := &fakeOracle{prices: map[string]float64{"ETHUSDT": 112}}
	resolver := newTestResolver(store, oracle, clock)

	if _, err := resolver.ResolveTick(context.Background()); err != nil {
		t.Fatalf("ResolveTick failed: %v", err)
	}

	call := store.get(id)
	if !call.SLHit {
		t.Fatal("Expected stop loss hit")
	}
	if call.TP1Hit || call.TP2Hit || call.TP3Hit {
		t.Error("No TP may be marked once the stop fired on this tick")
	}
	if call.ProfitPct == nil || *call.ProfitPct != -12.00 {
		t.Errorf("Expected profit -12.00, got %v", call.ProfitPct)
	}
}

func TestResolveTickPartialProgressThenExpiry(t *testing.T) {
	store := newMemStore()
	clock := newManualClock(testStart)
	id := submitCall(t, store, clock, longDraft())

	oracle := &fakeOracle{prices: map[string]float64{"BTCUSDT": 106}}
	resolver := newTestResolver(store, oracle, clock)

	// First tick: TP1 reached, call stays active
	if _, err := resolver.ResolveTick(context.Background()); err != nil {
		t.Fatalf("First tick failed: %v", err)
	}
	call := store.get(id)
	if call.Status != StatusActive || !call.TP1Hit || call.TP2Hit {
		t.Fatalf("Expected active with TP1 only, got status=%s tp1=%v tp2=%v", call.Status, call.TP1Hit, call.TP2Hit)
	}
	if call.BestTPReached != 1 {
		t.Errorf("Expected best TP 1, got %d", call.BestTPReached)
	}

	// Past the TTL the call expires, keeping its accumulated flags and
	// never getting a profit figure
	clock.Advance(DefaultCallTTL + time.Minute)
	result, err := resolver.ResolveTick(context.Background())
	if err != nil {
		t.Fatalf("Expiry tick failed: %v", err)
	}
	if result.Expired != 1 {
		t.Errorf("Expected 1 expired, got %+v", result)
	}

	call = store.get(id)
	if call.Status != StatusExpired {
		t.Fatalf("Expected expired, got %s", call.Status)
	}
	if !call.TP1Hit || call.BestTPReached != 1 {
		t.Error("Expiry must keep accumulated TP progress")
	}
	if call.ProfitPct != nil || call.ExitPrice != nil {
		t.Error("Expired calls carry no exit price or profit")
	}
	if call.ResolvedAt == nil {
		t.Error("Expired calls still record a resolution time")
	}
	if !call.Win() {
		t.Error("TP1 without SL counts as a win even on expiry")
	}
}

func TestResolveTickExpiryBeforePricing(t *testing.T) {
	store := newMemStore()
	clock := newManualClock(testStart)
	id := submitCall(t, store, clock, longDraft())

	// Price would resolve the call, but the deadline has passed
	oracle := &fakeOracle{prices: map[string]float64{"BTCUSDT": 121}}
	resolver := newTestResolver(store, oracle, clock)

	clock.Advance(DefaultCallTTL)
	if _, err := resolver.ResolveTick(context.Background()); err != nil {
		t.Fatalf("ResolveTick failed: %v", err)
	}

	call := store.get(id)
	if call.Status != StatusExpired {
		t.Errorf("Expected expiry to preempt pricing, got %s", call.Status)
	}
	if call.TP3Hit {
		t.Error("Expired call must not consume the price snapshot")
	}
}

func TestResolveTickUnpricedSymbolSkipped(t *testing.T) {
	store := newMemStore()
	clock := newManualClock(testStart)
	btc := submitCall(t, store, clock, longDraft())
	eth := submitCall(t, store, clock, shortDraft())

	// Oracle only knows ETH this tick
	oracle := &fakeOracle{prices: map[string]float64{"ETHUSDT": 84}}
	resolver := newTestResolver(store, oracle, clock)

	result, err := resolver.ResolveTick(context.Background())
	if err != nil {
		t.Fatalf("ResolveTick failed: %v", err)
	}
	if result.Checked != 2 || result.Resolved != 1 {
		t.Errorf("Expected checked=2 resolved=1, got %+v", result)
	}

	if call := store.get(btc); call.Status != StatusActive || call.TP0Hit {
		t.Error("Unpriced call must be left untouched")
	}
	if call := store.get(eth); call.Status != StatusResolved {
		t.Error("Priced call must still resolve")
	}
}

func TestResolveTickCommitFailureAbortsTick(t *testing.T) {
	store := newMemStore()
	clock := newManualClock(testStart)
	id := submitCall(t, store, clock, longDraft())

	oracle := &fakeOracle{prices: map[string]float64{"BTCUSDT": 121}}
	resolver := newTestResolver(store, oracle, clock)

	store.commitErr = errors.New("connection reset")
	if _, err := resolver.ResolveTick(context.Background()); err == nil {
		t.Fatal("Expected commit failure to surface from ResolveTick")
	}

	// Nothing may be persisted when the commit fails
	call := store.get(id)
	if call.Status != StatusActive {
		t.Fatalf("Expected call to stay active, got %s", call.Status)
	}
	if call.TP0Hit || call.TP1Hit || call.TP2Hit || call.TP3Hit || call.SLHit {
		t.Error("No flags may be set on a failed commit")
	}
	if call.ExitPrice != nil || call.ProfitPct != nil || call.ResolvedAt != nil {
		t.Error("No resolution fields may be set on a failed commit")
	}

	// The next tick retries cleanly once the store recovers
	store.commitErr = nil
	if _, err := resolver.ResolveTick(context.Background()); err != nil {
		t.Fatalf("Retry tick failed: %v", err)
	}
	if call := store.get(id); call.Status != StatusResolved || !call.TP3Hit {
		t.Errorf("Expected resolution on retry, got status=%s tp3=%v", call.Status, call.TP3Hit)
	}
}

func TestResolveTickIdempotentAtSamePrice(t *testing.T) {
	store := newMemStore()
	clock := newManualClock(testStart)
	submitCall(t, store, clock, longDraft())

	oracle := &fakeOracle{prices: map[string]float64{"BTCUSDT": 106}}
	resolver := newTestResolver(store, oracle, clock)

	if _, err := resolver.ResolveTick(context.Background()); err != nil {
		t.Fatalf("First tick failed: %v", err)
	}
	commitsAfterFirst := store.commits

	// Same price again: nothing changed, nothing committed
	if _, err := resolver.ResolveTick(context.Background()); err != nil {
		t.Fatalf("Second tick failed: %v", err)
	}
	if store.commits != commitsAfterFirst {
		t.Errorf("Unchanged tick must not commit, commits went %d -> %d", commitsAfterFirst, store.commits)
	}
}

package calls

import (
	"context"
	"errors"
	"testing"
	"time"
)

var testStart = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func longDraft() Draft {
	return Draft{
		Symbol:     "BTCUSDT",
		Side:       SideLong,
		EntryPrice: 100,
		StopLoss:   90,
		TP0:        102,
		TP1:        105,
		TP2:        110,
		TP3:        120,
		Confidence: 75,
	}
}

func shortDraft() Draft {
	return Draft{
		Symbol:     "ETHUSDT",
		Side:       SideShort,
		EntryPrice: 100,
		StopLoss:   110,
		TP1:        95,
		TP2:        90,
		TP3:        85,
		Confidence: 60,
	}
}

func TestSubmitCreatesActiveCall(t *testing.T) {
	store := newMemStore()
	clock := newManualClock(testStart)
	svc := NewIngestService(store, clock, nil, 0, 0)

	result, err := svc.Submit(context.Background(), longDraft())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if !result.Created {
		t.Fatal("Expected call to be created")
	}

	call := store.get(result.ID)
	if call == nil {
		t.Fatal("Call not found in store")
	}
	if call.Status != StatusActive {
		t.Errorf("Expected status active, got %s", call.Status)
	}
	if !call.CreatedAt.Equal(testStart) {
		t.Errorf("Expected created_at %v, got %v", testStart, call.CreatedAt)
	}
	if want := testStart.Add(DefaultCallTTL); !call.ExpiresAt.Equal(want) {
		t.Errorf("Expected expires_at %v, got %v", want, call.ExpiresAt)
	}
}

func TestSubmitNormalizesSymbol(t *testing.T) {
	store := newMemStore()
	svc := NewIngestService(store, newManualClock(testStart), nil, 0, 0)

	draft := longDraft()
	draft.Symbol = " btc usdt "
	result, err := svc.Submit(context.Background(), draft)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if call := store.get(result.ID); call.Symbol != "BTCUSDT" {
		t.Errorf("Expected normalized symbol BTCUSDT, got %q", call.Symbol)
	}
}

func TestSubmitDedupWindow(t *testing.T) {
	store := newMemStore()
	clock := newManualClock(testStart)
	svc := NewIngestService(store, clock, nil, 4*time.Hour, 0)

	first, err := svc.Submit(context.Background(), longDraft())
	if err != nil {
		t.Fatalf("First submit failed: %v", err)
	}

	// Same symbol and side inside the window is a duplicate
	clock.Advance(time.Hour)
	dup, err := svc.Submit(context.Background(), longDraft())
	if err != nil {
		t.Fatalf("Duplicate submit errored: %v", err)
	}
	if dup.Created {
		t.Error("Expected duplicate to be rejected")
	}
	if dup.ID != first.ID {
		t.Errorf("Expected duplicate to reference call %d, got %d", first.ID, dup.ID)
	}

	// Opposite side on the same symbol is allowed
	short := longDraft()
	short.Side = SideShort
	short.StopLoss = 110
	short.TP0 = 0
	short.TP1 = 95
	short.TP2 = 90
	short.TP3 = 85
	if result, err := svc.Submit(context.Background(), short); err != nil || !result.Created {
		t.Errorf("Expected opposite side to be accepted, got created=%v err=%v", result.Created, err)
	}

	// Past the window the same call is accepted again
	clock.Advance(4 * time.Hour)
	if result, err := svc.Submit(context.Background(), longDraft()); err != nil || !result.Created {
		t.Errorf("Expected submission outside window to be accepted, got created=%v err=%v", result.Created, err)
	}
}

func TestSubmitDedupWindowEdge(t *testing.T) {
	store := newMemStore()
	clock := newManualClock(testStart)
	svc := NewIngestService(store, clock, nil, 4*time.Hour, 0)

	first, err := svc.Submit(context.Background(), longDraft())
	if err != nil {
		t.Fatalf("First submit failed: %v", err)
	}

	// Exactly on the window boundary is still a duplicate
	clock.Advance(4 * time.Hour)
	result, err := svc.Submit(context.Background(), longDraft())
	if err != nil {
		t.Fatalf("Edge submit errored: %v", err)
	}
	if result.Created {
		t.Error("Submission exactly at the window edge must deduplicate")
	}
	if result.ID != first.ID {
		t.Errorf("Expected edge duplicate to reference call %d, got %d", first.ID, result.ID)
	}

	// One second past the boundary is a new call
	clock.Advance(time.Second)
	if result, err := svc.Submit(context.Background(), longDraft()); err != nil || !result.Created {
		t.Errorf("Expected submission past the edge to be accepted, got created=%v err=%v", result.Created, err)
	}
}

func TestSubmitValidation(t *testing.T) {
	svc := NewIngestService(newMemStore(), newManualClock(testStart), nil, 0, 0)

	cases := []struct {
		name   string
		mutate func(*Draft)
	}{
		{"empty symbol", func(d *Draft) { d.Symbol = "  " }},
		{"bad side", func(d *Draft) { d.Side = "SIDEWAYS" }},
		{"long SL above entry", func(d *Draft) { d.StopLoss = 101 }},
		{"long tp0 below entry", func(d *Draft) { d.TP0 = 99 }},
		{"long tp0 above tp1", func(d *Draft) { d.TP0 = 106 }},
		{"long unordered TPs", func(d *Draft) { d.TP2 = 104 }},
		{"confidence above 100", func(d *Draft) { d.Confidence = 101 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			draft := longDraft()
			tc.mutate(&draft)

			_, err := svc.Submit(context.Background(), draft)
			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("Expected ValidationError, got %v", err)
			}
		})
	}
}

func TestSubmitShortValidation(t *testing.T) {
	svc := NewIngestService(newMemStore(), newManualClock(testStart), nil, 0, 0)

	// Valid short passes
	if _, err := svc.Submit(context.Background(), shortDraft()); err != nil {
		t.Fatalf("Valid short rejected: %v", err)
	}

	// Short with SL below entry fails
	bad := shortDraft()
	bad.Symbol = "SOLUSDT"
	bad.StopLoss = 95
	var verr ValidationError
	if _, err := svc.Submit(context.Background(), bad); !errors.As(err, &verr) {
		t.Errorf("Expected ValidationError for short SL below entry, got %v", err)
	}

	// Short with ascending TPs fails
	bad = shortDraft()
	bad.Symbol = "SOLUSDT"
	bad.TP2 = 96
	if _, err := svc.Submit(context.Background(), bad); !errors.As(err, &verr) {
		t.Errorf("Expected ValidationError for short ascending TPs, got %v", err)
	}
}

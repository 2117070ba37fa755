package calls

import (
	"context"
	"testing"
	"time"
)

func addTerminal(store *memStore, c TradeCall) {
	store.mu.Lock()
	defer store.mu.Unlock()
	c.ID = store.nextID
	store.nextID++
	store.calls = append(store.calls, c)
}

func resolvedCall(symbol string, side Side, confidence int, createdAt time.Time, profit float64, tpHits int, slHit bool) TradeCall {
	c := TradeCall{
		Symbol:     symbol,
		Side:       side,
		EntryPrice: 100,
		Confidence: confidence,
		Status:     StatusResolved,
		SLHit:      slHit,
		CreatedAt:  createdAt,
		ExpiresAt:  createdAt.Add(DefaultCallTTL),
	}
	if tpHits >= 1 {
		c.TP0Hit, c.TP1Hit = true, true
		c.BestTPReached = 1
	}
	if tpHits >= 2 {
		c.TP2Hit = true
		c.BestTPReached = 2
	}
	if tpHits >= 3 {
		c.TP3Hit = true
		c.BestTPReached = 3
	}
	p := profit
	c.ProfitPct = &p
	return c
}

func TestStatsEmptyStore(t *testing.T) {
	agg := NewAggregator(newMemStore())

	report, err := agg.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}

	if report.TotalCalls != 0 || report.WinRate != 0 || report.SLRate != 0 || report.AvgProfit != 0 {
		t.Errorf("Empty store must produce all-zero rates, got %+v", report)
	}
	if len(report.Weekly) != 0 {
		t.Errorf("Expected no weekly entries, got %d", len(report.Weekly))
	}
	for name, bucket := range report.ConfidenceBuckets {
		if bucket.Total != 0 || bucket.WinRate != 0 {
			t.Errorf("Bucket %s must be zero, got %+v", name, bucket)
		}
	}
}

func TestStatsRatesAndAverages(t *testing.T) {
	store := newMemStore()
	week1 := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC) // ISO 2026-W10
	week2 := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC) // ISO 2026-W11

	// Two wins, one stop-out
	addTerminal(store, resolvedCall("BTCUSDT", SideLong, 85, week1, 21.00, 3, false))
	addTerminal(store, resolvedCall("ETHUSDT", SideShort, 60, week1, 16.00, 3, false))
	addTerminal(store, resolvedCall("SOLUSDT", SideLong, 45, week2, -11.00, 0, true))

	// One still-active call only affects the gross counts
	addTerminal(store, TradeCall{
		Symbol: "XRPUSDT", Side: SideLong, Status: StatusActive,
		Confidence: 70, CreatedAt: week2, ExpiresAt: week2.Add(DefaultCallTTL),
	})

	agg := NewAggregator(store)
	report, err := agg.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}

	if report.TotalCalls != 4 || report.ActiveCalls != 1 || report.ResolvedCalls != 3 {
		t.Errorf("Unexpected counts: %+v", report)
	}

	// 2 of 3 terminal calls hit TP1..TP3, 1 hit SL
	if report.TP1Rate != 66.7 || report.TP3Rate != 66.7 {
		t.Errorf("Expected TP rates 66.7, got tp1=%v tp3=%v", report.TP1Rate, report.TP3Rate)
	}
	if report.SLRate != 33.3 {
		t.Errorf("Expected SL rate 33.3, got %v", report.SLRate)
	}
	if report.WinRate != 66.7 {
		t.Errorf("Expected win rate 66.7, got %v", report.WinRate)
	}

	// (21 + 16 - 11) / 3 = 8.67
	if report.AvgProfit != 8.67 {
		t.Errorf("Expected avg profit 8.67, got %v", report.AvgProfit)
	}

	if report.LongTotal != 2 || report.ShortTotal != 1 {
		t.Errorf("Expected 2 long / 1 short, got %d / %d", report.LongTotal, report.ShortTotal)
	}
	if report.LongWinRate != 50.0 || report.ShortWinRate != 100.0 {
		t.Errorf("Expected long 50.0 / short 100.0, got %v / %v", report.LongWinRate, report.ShortWinRate)
	}
}

func TestStatsConfidenceBuckets(t *testing.T) {
	store := newMemStore()
	created := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	addTerminal(store, resolvedCall("AUSDT", SideLong, 0, created, 5, 1, false))    // 0-49, win
	addTerminal(store, resolvedCall("BUSDT", SideLong, 49, created, -5, 0, true))   // 0-49, loss
	addTerminal(store, resolvedCall("CUSDT", SideLong, 50, created, 5, 1, false))   // 50-64, win
	addTerminal(store, resolvedCall("DUSDT", SideLong, 65, created, 5, 1, false))   // 65-79, win
	addTerminal(store, resolvedCall("EUSDT", SideLong, 80, created, -5, 0, true))   // 80-100, loss
	addTerminal(store, resolvedCall("FUSDT", SideLong, 100, created, 5, 1, false))  // 80-100, win

	agg := NewAggregator(store)
	report, err := agg.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}

	expected := map[string]BucketStats{
		"0-49":   {WinRate: 50.0, Total: 2},
		"50-64":  {WinRate: 100.0, Total: 1},
		"65-79":  {WinRate: 100.0, Total: 1},
		"80-100": {WinRate: 50.0, Total: 2},
	}
	for name, want := range expected {
		got, ok := report.ConfidenceBuckets[name]
		if !ok {
			t.Errorf("Missing bucket %s", name)
			continue
		}
		if got != want {
			t.Errorf("Bucket %s: expected %+v, got %+v", name, want, got)
		}
	}
}

func TestStatsWeeklySeries(t *testing.T) {
	store := newMemStore()

	// Deliberately inserted out of order; the series must come back sorted.
	// Jan 1 2027 falls in ISO week 2026-W53.
	weekLate := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	weekEarly := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	addTerminal(store, resolvedCall("BTCUSDT", SideLong, 70, weekLate, 5, 1, false))
	addTerminal(store, resolvedCall("ETHUSDT", SideLong, 70, weekEarly, 5, 1, false))
	addTerminal(store, resolvedCall("SOLUSDT", SideLong, 70, weekEarly, -5, 0, true))

	agg := NewAggregator(store)
	report, err := agg.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}

	if len(report.Weekly) != 2 {
		t.Fatalf("Expected 2 weeks, got %d", len(report.Weekly))
	}
	if report.Weekly[0].Week != "2026-W10" || report.Weekly[1].Week != "2026-W53" {
		t.Errorf("Weeks out of order: %+v", report.Weekly)
	}
	if report.Weekly[0].Total != 2 || report.Weekly[0].Wins != 1 || report.Weekly[0].WinRate != 50.0 {
		t.Errorf("Unexpected first week: %+v", report.Weekly[0])
	}
	if report.Weekly[1].Total != 1 || report.Weekly[1].WinRate != 100.0 {
		t.Errorf("Unexpected second week: %+v", report.Weekly[1])
	}
}

func TestBucketBoundaries(t *testing.T) {
	cases := []struct {
		confidence int
		bucket     string
	}{
		{0, "0-49"}, {49, "0-49"},
		{50, "50-64"}, {64, "50-64"},
		{65, "65-79"}, {79, "65-79"},
		{80, "80-100"}, {100, "80-100"},
	}
	for _, tc := range cases {
		if got := bucketFor(tc.confidence); got != tc.bucket {
			t.Errorf("bucketFor(%d): expected %s, got %s", tc.confidence, tc.bucket, got)
		}
	}
}

func TestISOWeekKey(t *testing.T) {
	cases := []struct {
		date time.Time
		key  string
	}{
		{time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), "2026-W10"},
		{time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), "2026-W53"},
		{time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), "2026-W01"},
	}
	for _, tc := range cases {
		if got := isoWeekKey(tc.date); got != tc.key {
			t.Errorf("isoWeekKey(%v): expected %s, got %s", tc.date, tc.key, got)
		}
	}
}

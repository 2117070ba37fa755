package calls

import (
	"context"
	"fmt"
	"math"
	"time"

	"crypto-calls-dashboard/internal/events"

	"github.com/rs/zerolog"
)

// PriceSource provides a best-effort spot price snapshot for a set of
// symbols. Missing entries mean "price unavailable" and are a normal,
// non-fatal outcome.
type PriceSource interface {
	Snapshot(ctx context.Context, symbols []string) map[string]float64
}

// TickResult summarizes one resolution tick
type TickResult struct {
	Resolved int `json:"resolved"`
	Expired  int `json:"expired"`
	Checked  int `json:"checked"`
}

// Resolver advances every active call's state machine against one price
// snapshot per tick.
type Resolver struct {
	store  CallStore
	oracle PriceSource
	clock  Clock
	bus    *events.EventBus
	logger zerolog.Logger
}

// NewResolver creates a resolution engine. bus may be nil.
func NewResolver(store CallStore, oracle PriceSource, clock Clock, bus *events.EventBus, logger zerolog.Logger) *Resolver {
	if clock == nil {
		clock = SystemClock()
	}
	return &Resolver{
		store:  store,
		oracle: oracle,
		clock:  clock,
		bus:    bus,
		logger: logger,
	}
}

// ResolveTick loads the active calls, expires the ones past their deadline,
// applies one price snapshot to the rest, and commits every transition in a
// single atomic batch. Symbols the oracle could not price are skipped this
// tick and retried on the next one.
func (r *Resolver) ResolveTick(ctx context.Context) (TickResult, error) {
	active, err := r.store.ListActive(ctx)
	if err != nil {
		return TickResult{}, fmt.Errorf("failed to load active calls: %w", err)
	}

	now := r.clock.Now()

	var expired []*TradeCall
	var live []*TradeCall
	for i := range active {
		call := &active[i]
		if !call.ExpiresAt.After(now) {
			expireCall(call, now)
			expired = append(expired, call)
		} else {
			live = append(live, call)
		}
	}

	var snapshot map[string]float64
	if len(live) > 0 {
		snapshot = r.oracle.Snapshot(ctx, distinctSymbols(live))
	}

	updates := make([]*TradeCall, 0, len(expired)+len(live))
	updates = append(updates, expired...)

	resolved := 0
	for _, call := range live {
		price, ok := snapshot[call.Symbol]
		if !ok {
			continue
		}
		if applyPrice(call, price, now) {
			updates = append(updates, call)
			if call.Status == StatusResolved {
				resolved++
			}
		}
	}

	if len(updates) > 0 {
		if err := r.store.CommitTick(ctx, updates); err != nil {
			return TickResult{}, fmt.Errorf("failed to commit resolution tick: %w", err)
		}
	}

	result := TickResult{
		Resolved: resolved,
		Expired:  len(expired),
		Checked:  len(live),
	}

	r.publishTick(updates, result)

	r.logger.Info().
		Int("checked", result.Checked).
		Int("resolved", result.Resolved).
		Int("expired", result.Expired).
		Int("priced_symbols", len(snapshot)).
		Msg("resolution tick completed")

	return result, nil
}

func (r *Resolver) publishTick(updates []*TradeCall, result TickResult) {
	if r.bus == nil {
		return
	}

	for _, call := range updates {
		switch call.Status {
		case StatusResolved:
			r.bus.PublishData(events.EventCallResolved, map[string]interface{}{
				"id":         call.ID,
				"symbol":     call.Symbol,
				"side":       string(call.Side),
				"sl_hit":     call.SLHit,
				"best_tp":    call.BestTPReached,
				"profit_pct": call.ProfitPct,
				"call":       call,
			})
		case StatusExpired:
			r.bus.PublishData(events.EventCallExpired, map[string]interface{}{
				"id":     call.ID,
				"symbol": call.Symbol,
				"call":   call,
			})
		}
	}

	r.bus.PublishData(events.EventTickCompleted, map[string]interface{}{
		"resolved": result.Resolved,
		"expired":  result.Expired,
		"checked":  result.Checked,
	})
}

// expireCall marks a call expired without consulting prices. Hit flags keep
// whatever state they accumulated while the call was active.
func expireCall(c *TradeCall, now time.Time) {
	c.Status = StatusExpired
	resolvedAt := now
	c.ResolvedAt = &resolvedAt
}

// applyPrice advances a single live call against the current price P and
// reports whether anything changed. The stop loss is evaluated before any
// take profit: a price that crossed both between polls counts as a loss,
// because a single poll cannot reconstruct intra-tick ordering.
func applyPrice(c *TradeCall, price float64, now time.Time) bool {
	before := *c

	reached := func(level float64) bool {
		if c.Side == SideShort {
			return price <= level
		}
		return price >= level
	}
	stopped := func() bool {
		if c.Side == SideShort {
			return price >= c.StopLoss
		}
		return price <= c.StopLoss
	}

	if stopped() {
		c.SLHit = true
		finalize(c, price, now)
	} else {
		if c.TP0 != 0 && reached(c.TP0) {
			c.TP0Hit = true
		}
		if reached(c.TP1) {
			c.TP1Hit = true
			c.TP0Hit = true // crossing TP1 implies TP0, even when TP0 was not provided
			if c.BestTPReached < 1 {
				c.BestTPReached = 1
			}
		}
		if reached(c.TP2) {
			c.TP2Hit = true
			if c.BestTPReached < 2 {
				c.BestTPReached = 2
			}
		}
		if reached(c.TP3) {
			c.TP3Hit = true
			c.BestTPReached = 3
			finalize(c, price, now)
		}
	}

	return before.Status != c.Status ||
		before.TP0Hit != c.TP0Hit || before.TP1Hit != c.TP1Hit ||
		before.TP2Hit != c.TP2Hit || before.TP3Hit != c.TP3Hit ||
		before.SLHit != c.SLHit || before.BestTPReached != c.BestTPReached
}

// finalize moves a call to resolved with its exit price and signed profit
func finalize(c *TradeCall, price float64, now time.Time) {
	c.Status = StatusResolved
	exit := price
	c.ExitPrice = &exit

	var pct float64
	if c.Side == SideShort {
		pct = (c.EntryPrice - price) / c.EntryPrice * 100
	} else {
		pct = (price - c.EntryPrice) / c.EntryPrice * 100
	}
	pct = round2(pct)
	c.ProfitPct = &pct

	resolvedAt := now
	c.ResolvedAt = &resolvedAt
}

func distinctSymbols(live []*TradeCall) []string {
	seen := make(map[string]bool, len(live))
	symbols := make([]string, 0, len(live))
	for _, call := range live {
		if !seen[call.Symbol] {
			seen[call.Symbol] = true
			symbols = append(symbols, call.Symbol)
		}
	}
	return symbols
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Package calls implements the trade-call lifecycle engine: ingestion of
// candidate trading signals, resolution of active calls against live exchange
// prices, and aggregation of historical performance statistics.
package calls

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Side is the direction of a trade call
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Status is the lifecycle state of a trade call
type Status string

const (
	StatusActive   Status = "active"
	StatusResolved Status = "resolved"
	StatusExpired  Status = "expired"
)

// TradeCall represents one directional bet on an instrument with a
// pre-declared risk/reward structure. Once Status leaves StatusActive the
// record is read-only.
type TradeCall struct {
	ID             int64      `json:"id"`
	Symbol         string     `json:"symbol"`
	Side           Side       `json:"side"`
	EntryPrice     float64    `json:"entry_price"`
	StopLoss       float64    `json:"stop_loss"`
	TP0            float64    `json:"tp0,omitempty"` // optional, 0 = not provided
	TP1            float64    `json:"tp1"`
	TP2            float64    `json:"tp2"`
	TP3            float64    `json:"tp3"`
	Confidence     int        `json:"confidence"`
	Reason         string     `json:"reason,omitempty"`
	RSI4H          *float64   `json:"rsi4h,omitempty"`
	HasConvergence *bool      `json:"has_convergence,omitempty"`
	RR             *float64   `json:"rr,omitempty"`
	Status         Status     `json:"status"`
	TP0Hit         bool       `json:"tp0_hit"`
	TP1Hit         bool       `json:"tp1_hit"`
	TP2Hit         bool       `json:"tp2_hit"`
	TP3Hit         bool       `json:"tp3_hit"`
	SLHit          bool       `json:"sl_hit"`
	BestTPReached  int        `json:"best_tp_reached"`
	ExitPrice      *float64   `json:"exit_price,omitempty"`
	ProfitPct      *float64   `json:"profit_pct,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	ExpiresAt      time.Time  `json:"expires_at"`
}

// Terminal reports whether the call has reached a final state
func (c *TradeCall) Terminal() bool {
	return c.Status != StatusActive
}

// Win reports whether a terminal call counts as a win: TP1 reached without
// the stop loss being hit.
func (c *TradeCall) Win() bool {
	return c.TP1Hit && !c.SLHit
}

// Draft is an inbound trade-call submission before validation
type Draft struct {
	Symbol         string   `json:"symbol" binding:"required"`
	Side           Side     `json:"side" binding:"required"`
	EntryPrice     float64  `json:"entry_price" binding:"required,gt=0"`
	StopLoss       float64  `json:"stop_loss" binding:"required,gt=0"`
	TP0            float64  `json:"tp0"`
	TP1            float64  `json:"tp1" binding:"required,gt=0"`
	TP2            float64  `json:"tp2" binding:"required,gt=0"`
	TP3            float64  `json:"tp3" binding:"required,gt=0"`
	Confidence     int      `json:"confidence" binding:"min=0,max=100"`
	Reason         string   `json:"reason"`
	RSI4H          *float64 `json:"rsi4h"`
	HasConvergence *bool    `json:"has_convergence"`
	RR             *float64 `json:"rr"`
}

// ValidationError marks a malformed submission. It is never written to the
// store and surfaces as a 4xx response.
type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string {
	return e.Msg
}

func invalidf(format string, args ...interface{}) error {
	return ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NormalizeSymbol returns the canonical form of an exchange pair: uppercase,
// no spaces.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(symbol), " ", ""))
}

// Validate checks the ordering invariants of a draft. For a LONG the levels
// must satisfy stop_loss < entry < tp0 <= tp1 < tp2 < tp3 (tp0 optional); for
// a SHORT every comparison is inverted.
func (d *Draft) Validate() error {
	if NormalizeSymbol(d.Symbol) == "" {
		return invalidf("symbol is required")
	}

	switch d.Side {
	case SideLong:
		if d.StopLoss >= d.EntryPrice {
			return invalidf("LONG stop_loss %.8f must be below entry_price %.8f", d.StopLoss, d.EntryPrice)
		}
		if d.TP0 != 0 && (d.TP0 <= d.EntryPrice || d.TP0 > d.TP1) {
			return invalidf("LONG tp0 must satisfy entry_price < tp0 <= tp1")
		}
		if d.TP1 <= d.EntryPrice || d.TP2 <= d.TP1 || d.TP3 <= d.TP2 {
			return invalidf("LONG take profits must satisfy entry_price < tp1 < tp2 < tp3")
		}
	case SideShort:
		if d.StopLoss <= d.EntryPrice {
			return invalidf("SHORT stop_loss %.8f must be above entry_price %.8f", d.StopLoss, d.EntryPrice)
		}
		if d.TP0 != 0 && (d.TP0 > d.EntryPrice || d.TP0 < d.TP1) {
			return invalidf("SHORT tp0 must satisfy entry_price >= tp0 >= tp1")
		}
		if d.TP1 > d.EntryPrice || d.TP2 >= d.TP1 || d.TP3 >= d.TP2 {
			return invalidf("SHORT take profits must satisfy entry_price >= tp1 > tp2 > tp3")
		}
	default:
		return invalidf("side must be LONG or SHORT, got %q", d.Side)
	}

	if d.Confidence < 0 || d.Confidence > 100 {
		return invalidf("confidence must be in [0, 100], got %d", d.Confidence)
	}

	return nil
}

// Counts holds gross call counts by status
type Counts struct {
	Total    int `json:"total"`
	Active   int `json:"active"`
	Resolved int `json:"resolved"`
	Expired  int `json:"expired"`
}

// CallStore is the persistence contract the lifecycle engine requires.
// All mutating operations are atomic: a failed commit leaves the store in
// its previous state.
type CallStore interface {
	// CreateCall atomically checks for a recent duplicate with the same
	// symbol and side and, if none exists, inserts the call and backfills its
	// ID. When a duplicate exists inside the window it is returned and the
	// call is not inserted (first-writer-wins).
	CreateCall(ctx context.Context, call *TradeCall, dedupWindow time.Duration) (*TradeCall, error)

	// ListCalls returns calls ordered by created_at descending. An empty
	// status means no status filter.
	ListCalls(ctx context.Context, status Status, limit, offset int) ([]TradeCall, error)

	// ListActive returns all calls with status active
	ListActive(ctx context.Context) ([]TradeCall, error)

	// CommitTick atomically applies a batch of resolution updates. Calls
	// already terminal in the store are left untouched; no partial batch is
	// ever visible to readers.
	CommitTick(ctx context.Context, updates []*TradeCall) error

	// StatsView returns gross counts and all terminal calls from a single
	// consistent read view.
	StatsView(ctx context.Context) (Counts, []TradeCall, error)
}

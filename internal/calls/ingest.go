package calls

import (
	"context"
	"fmt"
	"time"

	"crypto-calls-dashboard/internal/events"
)

// DefaultDedupWindow is the sliding window on created_at inside which a second
// submission with the same symbol and side is rejected.
const DefaultDedupWindow = 4 * time.Hour

// DefaultCallTTL is how long after creation an unresolved call expires
const DefaultCallTTL = 72 * time.Hour

// SubmitResult is the outcome of a trade-call submission
type SubmitResult struct {
	Created bool   `json:"created"`
	ID      int64  `json:"id"`
	Message string `json:"message,omitempty"`
}

// IngestService validates and admits new trade-call submissions
type IngestService struct {
	store       CallStore
	clock       Clock
	bus         *events.EventBus
	dedupWindow time.Duration
	callTTL     time.Duration
}

// NewIngestService creates an ingestion service. bus may be nil when no
// event fan-out is wanted. Zero durations fall back to the defaults.
func NewIngestService(store CallStore, clock Clock, bus *events.EventBus, dedupWindow, callTTL time.Duration) *IngestService {
	if clock == nil {
		clock = SystemClock()
	}
	if dedupWindow <= 0 {
		dedupWindow = DefaultDedupWindow
	}
	if callTTL <= 0 {
		callTTL = DefaultCallTTL
	}
	return &IngestService{
		store:       store,
		clock:       clock,
		bus:         bus,
		dedupWindow: dedupWindow,
		callTTL:     callTTL,
	}
}

// Submit validates a draft and inserts it unless a call with the same symbol
// and side was created inside the dedup window. A duplicate is not an error:
// the result carries created=false and the existing call's ID.
func (s *IngestService) Submit(ctx context.Context, draft Draft) (SubmitResult, error) {
	if err := draft.Validate(); err != nil {
		return SubmitResult{}, err
	}

	now := s.clock.Now()
	call := &TradeCall{
		Symbol:         NormalizeSymbol(draft.Symbol),
		Side:           draft.Side,
		EntryPrice:     draft.EntryPrice,
		StopLoss:       draft.StopLoss,
		TP0:            draft.TP0,
		TP1:            draft.TP1,
		TP2:            draft.TP2,
		TP3:            draft.TP3,
		Confidence:     draft.Confidence,
		Reason:         draft.Reason,
		RSI4H:          draft.RSI4H,
		HasConvergence: draft.HasConvergence,
		RR:             draft.RR,
		Status:         StatusActive,
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.callTTL),
	}

	existing, err := s.store.CreateCall(ctx, call, s.dedupWindow)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("failed to create trade call: %w", err)
	}

	if existing != nil {
		return SubmitResult{
			Created: false,
			ID:      existing.ID,
			Message: "duplicate",
		}, nil
	}

	if s.bus != nil {
		s.bus.PublishData(events.EventCallCreated, map[string]interface{}{
			"id":         call.ID,
			"symbol":     call.Symbol,
			"side":       string(call.Side),
			"entry":      call.EntryPrice,
			"confidence": call.Confidence,
			"call":       call,
		})
	}

	return SubmitResult{Created: true, ID: call.ID}, nil
}

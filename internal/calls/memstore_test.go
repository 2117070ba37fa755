package calls

import (
	"context"
	"sync"
	"time"
)

// manualClock is a hand-advanced clock for deterministic tests
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock(now time.Time) *manualClock {
	return &manualClock{now: now}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// memStore is an in-memory CallStore for tests
type memStore struct {
	mu     sync.Mutex
	calls  []TradeCall
	nextID int64

	commitErr error
	commits   int
}

func newMemStore() *memStore {
	return &memStore{nextID: 1}
}

func (m *memStore) CreateCall(ctx context.Context, call *TradeCall, dedupWindow time.Duration) (*TradeCall, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := call.CreatedAt.Add(-dedupWindow)
	var newest *TradeCall
	for i := range m.calls {
		c := &m.calls[i]
		if c.Symbol == call.Symbol && c.Side == call.Side && !c.CreatedAt.Before(cutoff) {
			if newest == nil || c.CreatedAt.After(newest.CreatedAt) {
				newest = c
			}
		}
	}
	if newest != nil {
		dup := *newest
		return &dup, nil
	}

	call.ID = m.nextID
	m.nextID++
	m.calls = append(m.calls, *call)
	return nil, nil
}

func (m *memStore) ListCalls(ctx context.Context, status Status, limit, offset int) ([]TradeCall, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var filtered []TradeCall
	for i := len(m.calls) - 1; i >= 0; i-- {
		if status == "" || m.calls[i].Status == status {
			filtered = append(filtered, m.calls[i])
		}
	}
	if offset >= len(filtered) {
		return nil, nil
	}
	filtered = filtered[offset:]
	if limit < len(filtered) {
		filtered = filtered[:limit]
	}
	return filtered, nil
}

func (m *memStore) ListActive(ctx context.Context) ([]TradeCall, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var active []TradeCall
	for _, c := range m.calls {
		if c.Status == StatusActive {
			active = append(active, c)
		}
	}
	return active, nil
}

func (m *memStore) CommitTick(ctx context.Context, updates []*TradeCall) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.commitErr != nil {
		return m.commitErr
	}
	m.commits++

	for _, u := range updates {
		for i := range m.calls {
			if m.calls[i].ID == u.ID && m.calls[i].Status == StatusActive {
				m.calls[i] = *u
			}
		}
	}
	return nil
}

func (m *memStore) StatsView(ctx context.Context) (Counts, []TradeCall, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var counts Counts
	var terminal []TradeCall
	for _, c := range m.calls {
		counts.Total++
		switch c.Status {
		case StatusActive:
			counts.Active++
		case StatusResolved:
			counts.Resolved++
			terminal = append(terminal, c)
		case StatusExpired:
			counts.Expired++
			terminal = append(terminal, c)
		}
	}
	return counts, terminal, nil
}

func (m *memStore) get(id int64) *TradeCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.calls {
		if m.calls[i].ID == id {
			c := m.calls[i]
			return &c
		}
	}
	return nil
}

// fakeOracle returns a fixed price map regardless of the requested symbols
type fakeOracle struct {
	prices map[string]float64
}

func (f *fakeOracle) Snapshot(ctx context.Context, symbols []string) map[string]float64 {
	out := make(map[string]float64)
	for _, s := range symbols {
		if p, ok := f.prices[s]; ok {
			out[s] = p
		}
	}
	return out
}

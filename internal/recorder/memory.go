package recorder

import "sync"

// Memory keeps every record in order. Used by tests and for determinism
// comparisons between runs.
type Memory struct {
	mu        sync.Mutex
	Trades    []TradeRecord
	Snapshots []SnapshotRecord
	Flushed   bool
	Closed    bool
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) RecordTrade(r TradeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Trades = append(m.Trades, r)
	return nil
}

func (m *Memory) RecordSnapshot(r SnapshotRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Snapshots = append(m.Snapshots, r)
	return nil
}

func (m *Memory) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Flushed = true
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// TradePrices returns the recorded trade prices in tick order.
func (m *Memory) TradePrices() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	prices := make([]int64, len(m.Trades))
	for i, t := range m.Trades {
		prices[i] = t.Price
	}
	return prices
}

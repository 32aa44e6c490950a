package types

import "time"

// Snapshot is a read-only view of the portfolio handed to scheduled callbacks.
// Maps are copies owned by the snapshot; mutating them has no effect on the
// portfolio.
type Snapshot struct {
	Time       time.Time
	Cash       float64
	TotalValue float64
	Settled    map[string]int64
	Pending    map[string]int64
	Prices     map[string]float64
}

// Shares returns settled plus pending shares of symbol.
func (s Snapshot) Shares(symbol string) int64 {
	return s.Settled[symbol] + s.Pending[symbol]
}

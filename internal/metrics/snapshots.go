package metrics

import (
	"sync"
	"time"
)

// DefaultHistoryLimit bounds the retained snapshot history.
const DefaultHistoryLimit = 1000

// PortfolioSnapshot is one point-in-time portfolio valuation.
type PortfolioSnapshot struct {
	Timestamp      time.Time `json:"timestamp"`
	TotalValue     float64   `json:"total_value"`
	CashBalance    float64   `json:"cash_balance"`
	InvestedValue  float64   `json:"invested_value"`
	TotalPnL       float64   `json:"total_pnl"`
	PositionsCount int       `json:"positions_count"`
}

// History retains the trailing snapshots with FIFO eviction, oldest first.
type History struct {
	mu    sync.RWMutex
	buf   []PortfolioSnapshot
	limit int
}

// NewHistory creates a bounded history; limit <= 0 uses DefaultHistoryLimit.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{
		buf:   make([]PortfolioSnapshot, 0, limit),
		limit: limit,
	}
}

// Append records a snapshot, evicting the oldest entry on overflow.
func (h *History) Append(s PortfolioSnapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.buf) >= h.limit {
		h.buf = h.buf[1:]
	}
	h.buf = append(h.buf, s)
}

// Snapshots returns a copy of the retained history in time order.
func (h *History) Snapshots() []PortfolioSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]PortfolioSnapshot, len(h.buf))
	copy(out, h.buf)
	return out
}

// Len reports the number of retained snapshots.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.buf)
}

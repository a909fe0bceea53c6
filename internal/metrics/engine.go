package metrics

import (
	"log"
	"math"
	"sync"
	"time"
)

// tradingYear is the annualization window in snapshots.
const tradingYear = 252

// PortfolioMetrics is the derived aggregate over positions and snapshot
// history. Percentages are relative to initial capital.
type PortfolioMetrics struct {
	TotalValue           float64   `json:"total_value"`
	CashBalance          float64   `json:"cash_balance"`
	InvestedValue        float64   `json:"invested_value"`
	RealizedPnL          float64   `json:"realized_pnl"`
	UnrealizedPnL        float64   `json:"unrealized_pnl"`
	TotalPnL             float64   `json:"total_pnl"`
	RealizedPnLPercent   float64   `json:"realized_pnl_percent"`
	UnrealizedPnLPercent float64   `json:"unrealized_pnl_percent"`
	TotalPnLPercent      float64   `json:"total_pnl_percent"`
	DailyPnL             float64   `json:"daily_pnl"`
	SharpeRatio          float64   `json:"sharpe_ratio"`
	MaxDrawdown          float64   `json:"max_drawdown"`
	Volatility           float64   `json:"volatility"`
	LastUpdated          time.Time `json:"last_updated"`
}

// Engine owns the snapshot history and caches the last computed metrics.
type Engine struct {
	mu             sync.RWMutex
	history        *History
	initialCapital float64
	last           PortfolioMetrics
}

// NewEngine creates a metrics engine seeded with the initial capital.
func NewEngine(initialCapital float64, historyLimit int) *Engine {
	return &Engine{
		history:        NewHistory(historyLimit),
		initialCapital: initialCapital,
	}
}

// Observe appends a snapshot to the history.
func (e *Engine) Observe(s PortfolioSnapshot) {
	e.history.Append(s)
}

// History exposes the retained snapshots (read-only copies).
func (e *Engine) History() []PortfolioSnapshot {
	return e.history.Snapshots()
}

// Recompute derives fresh metrics from the snapshot history plus the current
// ledger P&L figures and caches the result.
func (e *Engine) Recompute(realized, unrealized float64, now time.Time) PortfolioMetrics {
	m := Compute(e.history.Snapshots(), e.initialCapital, realized, unrealized, now)
	e.mu.Lock()
	e.last = m
	e.mu.Unlock()
	return m
}

// Last returns the most recently computed metrics.
func (e *Engine) Last() PortfolioMetrics {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.last
}

// Compute derives PortfolioMetrics from an ordered snapshot sequence. Each
// metric is computed independently: a degenerate input zeroes that metric
// without affecting the others.
func Compute(snaps []PortfolioSnapshot, initialCapital, realized, unrealized float64, now time.Time) PortfolioMetrics {
	m := PortfolioMetrics{
		RealizedPnL:   realized,
		UnrealizedPnL: unrealized,
		TotalPnL:      realized + unrealized,
		LastUpdated:   now,
	}

	if n := len(snaps); n > 0 {
		latest := snaps[n-1]
		m.TotalValue = latest.TotalValue
		m.CashBalance = latest.CashBalance
		m.InvestedValue = latest.InvestedValue
	}

	if initialCapital > 0 {
		m.RealizedPnLPercent = sanitize(realized / initialCapital * 100)
		m.UnrealizedPnLPercent = sanitize(unrealized / initialCapital * 100)
		m.TotalPnLPercent = sanitize(m.TotalPnL / initialCapital * 100)
	}

	returns := trailingReturns(snaps, tradingYear)
	mean, std := meanStd(returns)
	if std > 0 {
		m.SharpeRatio = sanitize(mean / std * math.Sqrt(tradingYear))
	}
	m.Volatility = sanitize(std * math.Sqrt(tradingYear) * 100)
	m.MaxDrawdown = maxDrawdown(snaps)
	m.DailyPnL = dailyPnL(snaps)

	return m
}

// trailingReturns computes simple returns over the last window+1 snapshots.
func trailingReturns(snaps []PortfolioSnapshot, window int) []float64 {
	if len(snaps) < 2 {
		return nil
	}
	start := 0
	if len(snaps) > window {
		start = len(snaps) - window
	}
	tail := snaps[start:]

	returns := make([]float64, 0, len(tail)-1)
	for i := 1; i < len(tail); i++ {
		prev := tail[i-1].TotalValue
		if prev <= 0 {
			continue
		}
		returns = append(returns, (tail[i].TotalValue-prev)/prev)
	}
	return returns
}

func meanStd(values []float64) (mean, std float64) {
	n := len(values)
	if n == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(n)

	if n < 2 {
		return mean, 0
	}
	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(n - 1)
	return mean, math.Sqrt(variance)
}

// maxDrawdown scans the entire history (not windowed) for the deepest
// peak-to-trough decline, in percent.
func maxDrawdown(snaps []PortfolioSnapshot) float64 {
	var peak, worst float64
	for _, s := range snaps {
		if s.TotalValue > peak {
			peak = s.TotalValue
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - s.TotalValue) / peak * 100; dd > worst {
			worst = dd
		}
	}
	return sanitize(worst)
}

// dailyPnL is the latest total value minus the last snapshot taken on a
// previous UTC calendar day, 0 when no prior-day snapshot exists.
func dailyPnL(snaps []PortfolioSnapshot) float64 {
	if len(snaps) == 0 {
		return 0
	}
	latest := snaps[len(snaps)-1]
	today := latest.Timestamp.UTC().Truncate(24 * time.Hour)
	for i := len(snaps) - 2; i >= 0; i-- {
		if snaps[i].Timestamp.UTC().Before(today) {
			return sanitize(latest.TotalValue - snaps[i].TotalValue)
		}
	}
	return 0
}

// sanitize replaces NaN/Inf with 0 so one bad metric never poisons the rest.
func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		log.Printf("metrics: discarding non-finite value")
		return 0
	}
	return v
}

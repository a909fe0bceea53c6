package cooldown

import (
	"log"
	"sort"
	"sync"
	"time"

	"tradectl/internal/signals"
)

const sellHistoryWindow = 24 * time.Hour

// Config holds per-signal-type cooldown durations. Unknown signal types fall
// back to MinTradeInterval.
type Config struct {
	BuyCooldown      time.Duration `yaml:"buy_cooldown"`
	SellCooldown     time.Duration `yaml:"sell_cooldown"`
	HoldCooldown     time.Duration `yaml:"hold_cooldown"`
	MinTradeInterval time.Duration `yaml:"min_trade_interval"`
	MaxSellsPerHour  int           `yaml:"max_sells_per_hour"` // 0 disables the limit
}

// DefaultConfig returns conservative retail-grade cooldowns.
func DefaultConfig() Config {
	return Config{
		BuyCooldown:      30 * time.Minute,
		SellCooldown:     15 * time.Minute,
		HoldCooldown:     5 * time.Minute,
		MinTradeInterval: 10 * time.Minute,
		MaxSellsPerHour:  4,
	}
}

// Status is the observable throttle state for one symbol and signal type.
type Status struct {
	Symbol           string        `json:"symbol"`
	SignalType       signals.Type  `json:"signal_type"`
	Remaining        time.Duration `json:"remaining"`
	IsActive         bool          `json:"is_active"`
	SellsLastHour    int           `json:"sells_last_hour"`
	SellLimitReached bool          `json:"sell_limit_reached"`
	LastTradeTime    *time.Time    `json:"last_trade_time,omitempty"`
}

// symbolState mirrors the persisted per-symbol throttle record.
type symbolState struct {
	lastTrade          time.Time
	sellHistory        []time.Time
	lastSellConfidence float64
	hasSellConfidence  bool
}

// Manager is the per-symbol throttle state machine. The timer value is
// derived on read: a symbol is COOLING while remaining > 0 and READY
// otherwise. A symbol with no recorded trade is always READY.
type Manager struct {
	mu     sync.RWMutex
	cfg    Config
	states map[string]*symbolState
	store  Store // nil disables persistence
}

// NewManager creates a manager; store may be nil to disable durability.
func NewManager(cfg Config, store Store) *Manager {
	return &Manager{
		cfg:    cfg,
		states: make(map[string]*symbolState),
		store:  store,
	}
}

// Restore loads persisted state from the store. A missing or corrupt file is
// non-fatal: the manager simply starts empty.
func (m *Manager) Restore() error {
	if m.store == nil {
		return nil
	}
	st, err := m.store.Load()
	if err != nil {
		log.Printf("cooldown: restore failed, starting empty: %v", err)
		return err
	}
	if st == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = st
	log.Printf("cooldown: restored state for %d symbols", len(st))
	return nil
}

// RecordTrade marks the symbol as just traded. SELL trades are appended to
// the 24 h sell history and the confidence is remembered. State is persisted
// after every call; persistence failure degrades to in-memory only.
func (m *Manager) RecordTrade(symbol string, sig signals.Type, now time.Time, confidence float64) {
	m.mu.Lock()
	st := m.states[symbol]
	if st == nil {
		st = &symbolState{}
		m.states[symbol] = st
	}
	st.lastTrade = now
	if sig == signals.Sell {
		st.sellHistory = append(st.sellHistory, now)
		st.sellHistory = pruneBefore(st.sellHistory, now.Add(-sellHistoryWindow))
		st.lastSellConfidence = confidence
		st.hasSellConfidence = true
	}
	m.mu.Unlock()

	m.persist()
}

func (m *Manager) persist() {
	if m.store == nil {
		return
	}
	m.mu.RLock()
	snapshot := make(map[string]*symbolState, len(m.states))
	for sym, st := range m.states {
		cp := *st
		cp.sellHistory = append([]time.Time(nil), st.sellHistory...)
		snapshot[sym] = &cp
	}
	m.mu.RUnlock()

	if err := m.store.Save(snapshot); err != nil {
		log.Printf("cooldown: persist failed (continuing in memory): %v", err)
	}
}

// Status reports the throttle state for one symbol and signal type at time now.
func (m *Manager) Status(symbol string, sig signals.Type, now time.Time) Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Status{Symbol: symbol, SignalType: sig}
	st := m.states[symbol]
	if st == nil || st.lastTrade.IsZero() {
		return s
	}

	lt := st.lastTrade
	s.LastTradeTime = &lt

	if remaining := m.duration(sig) - now.Sub(st.lastTrade); remaining > 0 {
		s.Remaining = remaining
		s.IsActive = true
	}

	hourAgo := now.Add(-time.Hour)
	for _, ts := range st.sellHistory {
		if ts.After(hourAgo) {
			s.SellsLastHour++
		}
	}
	if m.cfg.MaxSellsPerHour > 0 && sig == signals.Sell && s.SellsLastHour >= m.cfg.MaxSellsPerHour {
		s.SellLimitReached = true
	}
	return s
}

// StatusAll reports the throttle state of every tracked symbol plus any extra
// symbols the caller wants included even when never traded.
func (m *Manager) StatusAll(sig signals.Type, now time.Time, extra ...string) map[string]Status {
	m.mu.RLock()
	symbols := make([]string, 0, len(m.states)+len(extra))
	for sym := range m.states {
		symbols = append(symbols, sym)
	}
	m.mu.RUnlock()

	out := make(map[string]Status, len(symbols))
	for _, sym := range symbols {
		out[sym] = m.Status(sym, sig, now)
	}
	for _, sym := range extra {
		if _, seen := out[sym]; !seen {
			out[sym] = m.Status(sym, sig, now)
		}
	}
	return out
}

// LastSellConfidence returns the confidence of the most recent SELL, if any.
func (m *Manager) LastSellConfidence(symbol string) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := m.states[symbol]
	if st == nil || !st.hasSellConfidence {
		return 0, false
	}
	return st.lastSellConfidence, true
}

func (m *Manager) duration(sig signals.Type) time.Duration {
	switch sig {
	case signals.Buy:
		return m.cfg.BuyCooldown
	case signals.Sell:
		return m.cfg.SellCooldown
	case signals.Hold:
		return m.cfg.HoldCooldown
	default:
		return m.cfg.MinTradeInterval
	}
}

func pruneBefore(history []time.Time, cutoff time.Time) []time.Time {
	i := sort.Search(len(history), func(i int) bool { return history[i].After(cutoff) })
	if i == 0 {
		return history
	}
	return append(history[:0], history[i:]...)
}

package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"tradectl/internal/cooldown"
	"tradectl/internal/events"
	"tradectl/internal/ledger"
	"tradectl/internal/market"
	"tradectl/internal/metrics"
	"tradectl/internal/monitor"
	"tradectl/internal/risk"
	"tradectl/internal/signals"
)

// recentDecisions bounds the in-memory decision log served over the API.
const recentDecisions = 200

// Recorder persists executed transactions and portfolio snapshots. A nil
// recorder disables durability (dry runs).
type Recorder interface {
	SaveTransaction(ctx context.Context, tx ledger.Transaction) error
	SaveSnapshot(ctx context.Context, s metrics.PortfolioSnapshot) error
}

// Config holds engine-level tunables.
type Config struct {
	// CommissionRate is the broker fee as a fraction of trade notional.
	CommissionRate float64
	// SnapshotInterval paces the periodic portfolio snapshot in Run.
	SnapshotInterval time.Duration
	// Symbols is the configured trading universe, used for status reporting.
	Symbols []string
}

// Deps are the engine's collaborators. Bus, System and Recorder may be nil.
type Deps struct {
	Ledger    *ledger.Ledger
	Cooldowns *cooldown.Manager
	Gate      *risk.Gate
	Metrics   *metrics.Engine
	Prices    *market.Resolver
	Bus       *events.Bus
	System    *monitor.SystemMetrics
	Recorder  Recorder
}

// Engine runs the signal-to-trade pipeline: cooldown check, risk sizing,
// ledger mutation, cooldown recording and portfolio refresh. Signals for
// different symbols are processed concurrently; signals for the same symbol
// are serialized by a per-symbol lock.
type Engine struct {
	cfg       Config
	book      *ledger.Ledger
	cooldowns *cooldown.Manager
	gate      *risk.Gate
	metrics   *metrics.Engine
	prices    *market.Resolver
	bus       *events.Bus
	system    *monitor.SystemMetrics
	recorder  Recorder

	lockMu   sync.Mutex
	symLocks map[string]*sync.Mutex

	decMu     sync.RWMutex
	decisions []Decision
}

// New wires an engine from its dependencies.
func New(cfg Config, d Deps) *Engine {
	if cfg.SnapshotInterval <= 0 {
		cfg.SnapshotInterval = time.Minute
	}
	return &Engine{
		cfg:       cfg,
		book:      d.Ledger,
		cooldowns: d.Cooldowns,
		gate:      d.Gate,
		metrics:   d.Metrics,
		prices:    d.Prices,
		bus:       d.Bus,
		system:    d.System,
		recorder:  d.Recorder,
		symLocks:  make(map[string]*sync.Mutex),
	}
}

// Run consumes signals and price ticks from the bus until ctx is cancelled,
// taking a periodic portfolio snapshot in between.
func (e *Engine) Run(ctx context.Context) error {
	sigCh, unsubSig := e.bus.Subscribe(events.TopicSignal, 64)
	defer unsubSig()
	tickCh, unsubTick := e.bus.Subscribe(events.TopicPriceTick, 256)
	defer unsubTick()

	ticker := time.NewTicker(e.cfg.SnapshotInterval)
	defer ticker.Stop()

	log.Printf("✓ trading engine started (snapshot interval: %v)", e.cfg.SnapshotInterval)
	for {
		select {
		case <-ctx.Done():
			log.Println("trading engine stopped")
			return ctx.Err()
		case msg := <-sigCh:
			if sig, ok := msg.(signals.TradingSignal); ok {
				e.Decide(ctx, sig)
			}
		case msg := <-tickCh:
			if tick, ok := msg.(events.PriceTick); ok {
				e.prices.Observe(tick.Symbol, tick.Price)
			}
		case now := <-ticker.C:
			e.refreshPortfolio(ctx, now, e.priceOf)
		}
	}
}

// Decide runs one signal through the full pipeline and returns the explicit
// outcome. Business rejections (hold, cooldown, risk limits) are ordinary
// decisions, never errors.
func (e *Engine) Decide(ctx context.Context, sig signals.TradingSignal) Decision {
	var hist *monitor.LatencyHistogram
	if e.system != nil {
		hist = e.system.DecisionLatency
		e.system.IncrementSignals()
	}
	timer := monitor.NewTimer(hist)
	defer timer.Stop()

	lock := e.symbolLock(sig.Symbol)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now()

	if sig.Signal == signals.Hold {
		return e.reject(sig, ReasonHold, now)
	}

	cd := e.cooldowns.Status(sig.Symbol, sig.Signal, now)
	if cd.IsActive || cd.SellLimitReached {
		return e.reject(sig, ReasonCooldown, now)
	}

	var avgCost float64
	if pos, ok := e.book.PositionFor(sig.Symbol, 0); ok {
		avgCost = pos.AveragePrice
	}
	price := e.prices.Resolve(ctx, sig.Symbol, avgCost)

	// Mark the traded symbol at the just-resolved price so the exposure
	// computation and the sizing decision see the same quote.
	priceOf := func(s string) float64 {
		if s == sig.Symbol {
			return price
		}
		return e.priceOf(s)
	}

	cash := e.book.Cash()
	invested := e.book.InvestedValue(priceOf)
	sizing := e.gate.Size(sig, risk.Inputs{
		PortfolioValue:  cash + invested,
		CashBalance:     cash,
		CurrentExposure: invested,
		CurrentPrice:    price,
		HeldQuantity:    e.book.HeldQuantity(sig.Symbol),
	})
	if !sizing.Allowed() {
		return e.reject(sig, sizing.Reason, now)
	}

	kind := ledger.KindBuy
	if sig.Signal == signals.Sell {
		kind = ledger.KindSell
	}
	tx := ledger.Transaction{
		ID:         uuid.NewString(),
		Symbol:     sig.Symbol,
		Kind:       kind,
		Quantity:   sizing.Quantity,
		Price:      price,
		Commission: sizing.Notional * e.cfg.CommissionRate,
		Timestamp:  now,
		Notes:      fmt.Sprintf("signal %s confidence=%.2f", sig.Source, sig.Confidence),
	}

	res, err := e.book.Apply(tx)
	if err != nil {
		log.Printf("❌ engine: ledger rejected %s %s: %v", tx.Kind, tx.Symbol, err)
		return e.reject(sig, risk.ReasonRiskLimit, now)
	}
	if res.Oversold > 0 {
		log.Printf("⚠️ engine: %s sell exceeded held quantity by %.4f", sig.Symbol, res.Oversold)
		if e.bus != nil {
			e.bus.Publish(events.TopicRiskAlert, map[string]any{
				"symbol":   sig.Symbol,
				"oversold": res.Oversold,
			})
		}
	}

	e.cooldowns.RecordTrade(sig.Symbol, sig.Signal, now, sig.Confidence)

	if e.recorder != nil {
		if err := e.recorder.SaveTransaction(ctx, tx); err != nil {
			log.Printf("engine: persist transaction %s failed: %v", tx.ID, err)
		}
	}

	e.refreshPortfolio(ctx, now, priceOf)

	d := Decision{
		Signal:        sig,
		Outcome:       OutcomeExecuted,
		Quantity:      sizing.Quantity,
		Price:         price,
		TransactionID: tx.ID,
		DecidedAt:     now,
	}
	e.record(d)
	if e.system != nil {
		e.system.IncrementExecuted()
	}
	if e.bus != nil {
		e.bus.Publish(events.TopicDecision, d)
		e.bus.Publish(events.TopicTradeExecuted, tx)
	}
	log.Printf("✅ %s %s qty=%.0f @ %.2f (realized %+.2f)",
		tx.Kind, tx.Symbol, tx.Quantity, tx.Price, res.RealizedPnL)
	return d
}

func (e *Engine) reject(sig signals.TradingSignal, reason string, at time.Time) Decision {
	d := rejected(sig, reason, at)
	e.record(d)
	if e.system != nil {
		e.system.IncrementRejected()
	}
	if e.bus != nil {
		e.bus.Publish(events.TopicDecision, d)
	}
	return d
}

// refreshPortfolio appends a snapshot and recomputes portfolio metrics.
func (e *Engine) refreshPortfolio(ctx context.Context, now time.Time, priceOf func(string) float64) {
	cash := e.book.Cash()
	invested := e.book.InvestedValue(priceOf)
	realized := e.book.TotalRealizedPnL()
	unrealized := e.book.UnrealizedPnL(priceOf)

	snap := metrics.PortfolioSnapshot{
		Timestamp:      now,
		TotalValue:     cash + invested,
		CashBalance:    cash,
		InvestedValue:  invested,
		TotalPnL:       realized + unrealized,
		PositionsCount: len(e.book.Positions(priceOf)),
	}
	e.metrics.Observe(snap)
	e.metrics.Recompute(realized, unrealized, now)

	if e.recorder != nil {
		if err := e.recorder.SaveSnapshot(ctx, snap); err != nil {
			log.Printf("engine: persist snapshot failed: %v", err)
		}
	}
}

// priceOf marks a symbol at the last observed tick, falling back to the
// position's cost basis when the stream has not quoted it yet.
func (e *Engine) priceOf(symbol string) float64 {
	if p, ok := e.prices.LastKnown(symbol); ok {
		return p
	}
	if pos, ok := e.book.PositionFor(symbol, 0); ok {
		return pos.AveragePrice
	}
	return 0
}

func (e *Engine) symbolLock(symbol string) *sync.Mutex {
	e.lockMu.Lock()
	defer e.lockMu.Unlock()
	l := e.symLocks[symbol]
	if l == nil {
		l = &sync.Mutex{}
		e.symLocks[symbol] = l
	}
	return l
}

func (e *Engine) record(d Decision) {
	e.decMu.Lock()
	defer e.decMu.Unlock()
	if len(e.decisions) >= recentDecisions {
		e.decisions = e.decisions[1:]
	}
	e.decisions = append(e.decisions, d)
}

// Decisions returns a copy of the recent decision log, oldest first.
func (e *Engine) Decisions() []Decision {
	e.decMu.RLock()
	defer e.decMu.RUnlock()
	out := make([]Decision, len(e.decisions))
	copy(out, e.decisions)
	return out
}

// Positions returns open positions marked at the freshest available prices.
func (e *Engine) Positions() []ledger.Position {
	return e.book.Positions(e.priceOf)
}

// Transactions returns a copy of the ledger's transaction log.
func (e *Engine) Transactions() []ledger.Transaction {
	return e.book.Transactions()
}

// PortfolioMetrics recomputes and returns fresh portfolio metrics.
func (e *Engine) PortfolioMetrics() metrics.PortfolioMetrics {
	return e.metrics.Recompute(
		e.book.TotalRealizedPnL(),
		e.book.UnrealizedPnL(e.priceOf),
		time.Now(),
	)
}

// CooldownStatus reports throttle state across the trading universe.
func (e *Engine) CooldownStatus(sig signals.Type) map[string]cooldown.Status {
	return e.cooldowns.StatusAll(sig, time.Now(), e.cfg.Symbols...)
}

// CooldownReport renders the human-readable cooldown summary.
func (e *Engine) CooldownReport(sig signals.Type) string {
	return e.cooldowns.Report(sig, time.Now(), e.cfg.Symbols...)
}

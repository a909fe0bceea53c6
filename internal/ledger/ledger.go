package ledger

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Ledger maintains the append-only transaction log, per-symbol FIFO lot
// queues, realized P&L, and the cash balance. Cash changes only through
// BUY (qty*price+commission out) and SELL (qty*price-commission in).
//
// All mutating operations go through a single mutex; broker sync replaces
// the whole book in one swap instead of mutating it in place.
type Ledger struct {
	mu      sync.RWMutex
	initial float64
	b       *book
}

// book holds the swappable ledger state.
type book struct {
	cash     float64
	txs      []Transaction
	lots     map[string][]lot
	realized map[string]float64
	oversold map[string]float64
}

func newBook(cash float64) *book {
	return &book{
		cash:     cash,
		lots:     make(map[string][]lot),
		realized: make(map[string]float64),
		oversold: make(map[string]float64),
	}
}

// New creates a ledger seeded with the initial capital as cash.
func New(initialCapital float64) *Ledger {
	return &Ledger{
		initial: initialCapital,
		b:       newBook(initialCapital),
	}
}

// Apply validates and records a transaction, updating lots, realized P&L and
// cash. Selling more than held is tolerated: the queue is drained and the
// unmatched remainder is reported in ApplyResult.Oversold.
func (l *Ledger) Apply(tx Transaction) (ApplyResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.apply(tx)
}

func (b *book) apply(tx Transaction) (ApplyResult, error) {
	var res ApplyResult

	switch tx.Kind {
	case KindBuy, KindSell:
		if tx.Quantity <= 0 || tx.Price <= 0 {
			return res, fmt.Errorf("%w: %s %s qty=%v price=%v",
				ErrInvalidTransaction, tx.Kind, tx.Symbol, tx.Quantity, tx.Price)
		}
	case KindDividend, KindCommission:
		// Informational entries from broker history; recorded verbatim.
	default:
		return res, fmt.Errorf("%w: unknown kind %q", ErrInvalidTransaction, tx.Kind)
	}

	b.txs = append(b.txs, tx)

	switch tx.Kind {
	case KindBuy:
		b.cash -= tx.Quantity*tx.Price + tx.Commission
		b.pushLot(tx)
	case KindSell:
		b.cash += tx.Quantity*tx.Price - tx.Commission
		res = b.consume(tx)
	}
	return res, nil
}

// pushLot inserts a purchase lot keeping the queue in timestamp order so
// out-of-order broker history still consumes first-in first-out.
func (b *book) pushLot(tx Transaction) {
	nl := lot{
		qty:  tx.Quantity,
		cost: tx.Price + tx.Commission/tx.Quantity,
		ts:   tx.Timestamp,
	}
	queue := b.lots[tx.Symbol]
	i := sort.Search(len(queue), func(i int) bool { return queue[i].ts.After(nl.ts) })
	queue = append(queue, lot{})
	copy(queue[i+1:], queue[i:])
	queue[i] = nl
	b.lots[tx.Symbol] = queue
}

// consume drains lots front-first for a SELL, accumulating realized P&L.
// The sell commission is charged against the realized result once.
func (b *book) consume(tx Transaction) ApplyResult {
	var res ApplyResult
	remaining := tx.Quantity
	queue := b.lots[tx.Symbol]

	for remaining > 0 && len(queue) > 0 {
		front := &queue[0]
		matched := remaining
		if front.qty < matched {
			matched = front.qty
		}
		res.RealizedPnL += (tx.Price - front.cost) * matched
		res.Consumed += matched
		remaining -= matched
		front.qty -= matched
		if front.qty <= 0 {
			queue = queue[1:]
		}
	}

	if len(queue) == 0 {
		delete(b.lots, tx.Symbol)
	} else {
		b.lots[tx.Symbol] = queue
	}

	res.RealizedPnL -= tx.Commission
	res.Oversold = remaining
	if remaining > 0 {
		b.oversold[tx.Symbol] += remaining
	}
	b.realized[tx.Symbol] += res.RealizedPnL
	return res
}

// PositionFor derives the current position for a symbol marked to the given
// price. The second return value is false when no lots remain.
func (l *Ledger) PositionFor(symbol string, currentPrice float64) (Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.b.position(symbol, currentPrice)
}

func (b *book) position(symbol string, currentPrice float64) (Position, bool) {
	queue := b.lots[symbol]
	if len(queue) == 0 {
		return Position{}, false
	}

	var qty, costBasis float64
	last := queue[0].ts
	for _, lt := range queue {
		qty += lt.qty
		costBasis += lt.qty * lt.cost
		if lt.ts.After(last) {
			last = lt.ts
		}
	}
	if qty <= 0 {
		return Position{}, false
	}

	p := Position{
		Symbol:       symbol,
		Quantity:     qty,
		AveragePrice: costBasis / qty,
		CurrentPrice: currentPrice,
		MarketValue:  qty * currentPrice,
		LastUpdated:  last,
	}
	p.UnrealizedPnL = p.MarketValue - costBasis
	if costBasis > 0 {
		p.UnrealizedPnLPercent = p.UnrealizedPnL / costBasis * 100
	}
	return p, true
}

// Positions derives all open positions, priced via priceOf, sorted by symbol.
func (l *Ledger) Positions(priceOf func(symbol string) float64) []Position {
	l.mu.RLock()
	defer l.mu.RUnlock()

	symbols := make([]string, 0, len(l.b.lots))
	for s := range l.b.lots {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	out := make([]Position, 0, len(symbols))
	for _, s := range symbols {
		if p, ok := l.b.position(s, priceOf(s)); ok {
			out = append(out, p)
		}
	}
	return out
}

// RealizedPnL returns accumulated realized P&L for one symbol.
func (l *Ledger) RealizedPnL(symbol string) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.b.realized[symbol]
}

// TotalRealizedPnL sums realized P&L across all symbols.
func (l *Ledger) TotalRealizedPnL() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var sum float64
	for _, v := range l.b.realized {
		sum += v
	}
	return sum
}

// UnrealizedPnL sums unrealized P&L over all open positions priced via priceOf.
func (l *Ledger) UnrealizedPnL(priceOf func(symbol string) float64) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var sum float64
	for s := range l.b.lots {
		if p, ok := l.b.position(s, priceOf(s)); ok {
			sum += p.UnrealizedPnL
		}
	}
	return sum
}

// InvestedValue is the summed market value of open positions.
func (l *Ledger) InvestedValue(priceOf func(symbol string) float64) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var sum float64
	for s := range l.b.lots {
		if p, ok := l.b.position(s, priceOf(s)); ok {
			sum += p.MarketValue
		}
	}
	return sum
}

// Cash returns the current cash balance.
func (l *Ledger) Cash() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.b.cash
}

// InitialCapital returns the starting capital the ledger was seeded with.
func (l *Ledger) InitialCapital() float64 {
	return l.initial
}

// Oversold reports the cumulative unmatched sell quantity for a symbol.
func (l *Ledger) Oversold(symbol string) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.b.oversold[symbol]
}

// HeldQuantity returns the remaining lot quantity for a symbol (0 if flat).
func (l *Ledger) HeldQuantity(symbol string) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var qty float64
	for _, lt := range l.b.lots[symbol] {
		qty += lt.qty
	}
	return qty
}

// Transactions returns a copy of the transaction log in insertion order.
func (l *Ledger) Transactions() []Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Transaction, len(l.b.txs))
	copy(out, l.b.txs)
	return out
}

// ReplaceAll rebuilds the whole book from broker-provided history and cash,
// then swaps it in atomically. On any error the live book is left untouched.
func (l *Ledger) ReplaceAll(txs []Transaction, cash float64) error {
	sorted := make([]Transaction, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	nb := newBook(0)
	for _, tx := range sorted {
		if _, err := nb.apply(tx); err != nil {
			return fmt.Errorf("rebuild ledger from broker history: %w", err)
		}
	}
	// The broker balance is authoritative and already reflects every trade.
	nb.cash = cash

	l.mu.Lock()
	l.b = nb
	l.mu.Unlock()
	return nil
}

// LastTradeTime returns the newest transaction timestamp, zero when empty.
func (l *Ledger) LastTradeTime() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var last time.Time
	for _, tx := range l.b.txs {
		if tx.Timestamp.After(last) {
			last = tx.Timestamp
		}
	}
	return last
}

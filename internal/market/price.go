package market

import (
	"context"
	"log"
	"sync"
	"time"
)

// PriceSource is the market-data collaborator boundary.
type PriceSource interface {
	CurrentPrice(ctx context.Context, symbol string) (float64, error)
}

// DefaultFallbackPrice is the hard last-resort quote when every other source
// fails. It keeps the decision pipeline alive with an obviously stale value.
const DefaultFallbackPrice = 1.0

// Resolver answers price lookups through a degrading fallback chain:
// live source, then average cost basis, then last known price, then a hard
// default. It never fails; depth of the fallback is only logged.
type Resolver struct {
	mu        sync.RWMutex
	source    PriceSource // nil means no live source
	lastKnown map[string]float64
	timeout   time.Duration
	fallback  float64
}

// NewResolver creates a resolver over an optional live source.
func NewResolver(source PriceSource, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Resolver{
		source:    source,
		lastKnown: make(map[string]float64),
		timeout:   timeout,
		fallback:  DefaultFallbackPrice,
	}
}

// Observe records a price seen on the tick stream as the last known quote.
func (r *Resolver) Observe(symbol string, price float64) {
	if price <= 0 {
		return
	}
	r.mu.Lock()
	r.lastKnown[symbol] = price
	r.mu.Unlock()
}

// LastKnown returns the most recent observed price for a symbol.
func (r *Resolver) LastKnown(symbol string) (float64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.lastKnown[symbol]
	return p, ok
}

// Resolve returns a usable (possibly stale) price for the symbol. avgCost is
// the position's average cost basis, used as the first fallback; pass 0 when
// there is no open position.
func (r *Resolver) Resolve(ctx context.Context, symbol string, avgCost float64) float64 {
	if r.source != nil {
		cctx, cancel := context.WithTimeout(ctx, r.timeout)
		price, err := r.source.CurrentPrice(cctx, symbol)
		cancel()
		if err == nil && price > 0 {
			r.Observe(symbol, price)
			return price
		}
		if err != nil {
			log.Printf("market: live price for %s unavailable: %v", symbol, err)
		}
	}

	if avgCost > 0 {
		log.Printf("market: using cost basis %.2f as price for %s", avgCost, symbol)
		return avgCost
	}

	if last, ok := r.LastKnown(symbol); ok {
		log.Printf("market: ⚠️ using last known price %.2f for %s", last, symbol)
		return last
	}

	log.Printf("market: ⚠️ no price for %s at any depth, using hard default %.2f", symbol, r.fallback)
	return r.fallback
}

package market

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	"tradectl/internal/events"
)

// MockFeed generates synthetic random-walk ticks for local development and
// backtest-style dry runs. It also serves as a PriceSource.
type MockFeed struct {
	Bus        *events.Bus
	Symbols    []string
	StartPrice float64
	Step       float64
	Interval   time.Duration

	mu     sync.RWMutex
	prices map[string]float64
}

// Start launches the tick generator until the context is canceled.
func (m *MockFeed) Start(ctx context.Context) {
	if m.Bus == nil {
		log.Println("mock feed: bus not set")
		return
	}
	if len(m.Symbols) == 0 {
		m.Symbols = []string{"SBER"}
	}
	if m.StartPrice <= 0 {
		m.StartPrice = 100
	}
	if m.Step <= 0 {
		m.Step = 0.5
	}
	if m.Interval <= 0 {
		m.Interval = time.Second
	}

	m.mu.Lock()
	m.prices = make(map[string]float64, len(m.Symbols))
	for _, sym := range m.Symbols {
		m.prices[sym] = m.StartPrice
	}
	m.mu.Unlock()

	go func() {
		t := time.NewTicker(m.Interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				m.tick()
			}
		}
	}()
}

func (m *MockFeed) tick() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sym := range m.Symbols {
		price := m.prices[sym] + (rand.Float64()*2-1)*m.Step
		if price < m.Step {
			price = m.Step // keep the walk positive
		}
		m.prices[sym] = price
		m.Bus.Publish(events.TopicPriceTick, events.PriceTick{Symbol: sym, Price: price})
	}
}

// CurrentPrice implements PriceSource against the walk's latest values.
func (m *MockFeed) CurrentPrice(_ context.Context, symbol string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.prices[symbol]; ok {
		return p, nil
	}
	return 0, &UnknownSymbolError{Symbol: symbol}
}

// UnknownSymbolError reports a symbol the feed does not track.
type UnknownSymbolError struct {
	Symbol string
}

func (e *UnknownSymbolError) Error() string {
	return "unknown symbol " + e.Symbol
}

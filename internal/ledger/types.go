package ledger

import (
	"errors"
	"time"
)

// Kind classifies a transaction in the append-only log.
type Kind string

const (
	KindBuy        Kind = "BUY"
	KindSell       Kind = "SELL"
	KindDividend   Kind = "DIVIDEND"
	KindCommission Kind = "COMMISSION"
)

// ErrInvalidTransaction rejects transactions with non-positive quantity or
// price before any state is mutated.
var ErrInvalidTransaction = errors.New("invalid transaction: quantity and price must be positive")

// Transaction is a single immutable entry in the ledger's log. FIFO ordering
// is by Timestamp.
type Transaction struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Kind       Kind      `json:"kind"`
	Quantity   float64   `json:"quantity"`
	Price      float64   `json:"price"`
	Commission float64   `json:"commission"`
	Timestamp  time.Time `json:"timestamp"`
	Notes      string    `json:"notes,omitempty"`
}

// lot is one FIFO purchase record. Cost folds the buy commission into the
// unit price so realized P&L matches the cash actually spent.
type lot struct {
	qty  float64
	cost float64
	ts   time.Time
}

// Position is a derived, non-authoritative view over a symbol's lot queue
// marked to the supplied current price.
type Position struct {
	Symbol               string    `json:"symbol"`
	Quantity             float64   `json:"quantity"`
	AveragePrice         float64   `json:"average_price"`
	CurrentPrice         float64   `json:"current_price"`
	MarketValue          float64   `json:"market_value"`
	UnrealizedPnL        float64   `json:"unrealized_pnl"`
	UnrealizedPnLPercent float64   `json:"unrealized_pnl_percent"`
	LastUpdated          time.Time `json:"last_updated"`
}

// ApplyResult reports what a single Apply call did.
type ApplyResult struct {
	RealizedPnL float64 // realized on this transaction (SELL only)
	Consumed    float64 // quantity matched against existing lots
	Oversold    float64 // sell quantity that found no lot to consume
}

package broker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tradectl/internal/ledger"
)

// Client is the optional broker collaborator. When configured it is
// authoritative: local bookkeeping is fully replaced by its history.
type Client interface {
	GetBalance(ctx context.Context) (float64, error)
	GetPositions(ctx context.Context) (map[string]float64, error)
	GetOperations(ctx context.Context, since time.Time) ([]Operation, error)
}

// Operation is one transaction-like record from the broker ledger.
type Operation struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Type       string    `json:"type"` // buy, sell, dividend, commission
	Quantity   float64   `json:"quantity"`
	Price      float64   `json:"price"`
	Commission float64   `json:"commission"`
	Timestamp  time.Time `json:"timestamp"`
	Notes      string    `json:"notes,omitempty"`
}

// ToTransaction converts a broker operation into a ledger transaction.
func (o Operation) ToTransaction() (ledger.Transaction, error) {
	var kind ledger.Kind
	switch strings.ToLower(o.Type) {
	case "buy":
		kind = ledger.KindBuy
	case "sell":
		kind = ledger.KindSell
	case "dividend":
		kind = ledger.KindDividend
	case "commission", "broker_commission":
		kind = ledger.KindCommission
	default:
		return ledger.Transaction{}, fmt.Errorf("unsupported broker operation type %q", o.Type)
	}
	return ledger.Transaction{
		ID:         o.ID,
		Symbol:     o.Symbol,
		Kind:       kind,
		Quantity:   o.Quantity,
		Price:      o.Price,
		Commission: o.Commission,
		Timestamp:  o.Timestamp,
		Notes:      o.Notes,
	}, nil
}

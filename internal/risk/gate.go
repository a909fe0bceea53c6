package risk

import (
	"math"

	"tradectl/internal/signals"
)

// Rejection reason codes surfaced through engine decisions.
const (
	ReasonNoPosition        = "no_position"
	ReasonRiskLimit         = "risk_limit"
	ReasonInsufficientFunds = "insufficient_funds"
)

// Config defines the position-sizing and exposure parameters.
type Config struct {
	// PositionFraction of total portfolio value committed per BUY.
	PositionFraction float64
	// MaxRiskPerTrade caps the per-trade notional as a fraction of the
	// portfolio; 0 disables the extra cap.
	MaxRiskPerTrade float64
	// MaxTotalExposure caps aggregate open exposure as a fraction of the
	// portfolio (e.g. 0.8 for 80%).
	MaxTotalExposure float64
	// ConfidenceThreshold rejects signals below this model confidence.
	ConfidenceThreshold float64
}

// DefaultConfig returns the stock retail risk profile.
func DefaultConfig() Config {
	return Config{
		PositionFraction:    0.10,
		MaxRiskPerTrade:     0.15,
		MaxTotalExposure:    0.80,
		ConfidenceThreshold: 0.60,
	}
}

// Inputs is the portfolio context a sizing decision is computed from.
type Inputs struct {
	PortfolioValue  float64
	CashBalance     float64
	CurrentExposure float64
	CurrentPrice    float64
	HeldQuantity    float64
}

// Sizing is the explicit result of a sizing request. Quantity 0 with a
// Reason is an ordinary business rejection, never an error.
type Sizing struct {
	Quantity float64 `json:"quantity"`
	Notional float64 `json:"notional"`
	Reason   string  `json:"reason,omitempty"`
}

// Allowed reports whether the trade may proceed.
func (s Sizing) Allowed() bool { return s.Quantity > 0 }

// Gate sizes trades against the configured risk limits. Size is a pure
// function of its inputs; the caller applies the result.
type Gate struct {
	cfg Config
}

// NewGate creates a gate with the given configuration.
func NewGate(cfg Config) *Gate {
	return &Gate{cfg: cfg}
}

// Config returns the gate's configuration.
func (g *Gate) Config() Config { return g.cfg }

// Size computes the allowed trade quantity for a signal, 0 if disallowed.
//
// SELL closes the full existing position or is rejected with no_position.
// BUY commits PositionFraction of the portfolio, capped by MaxRiskPerTrade
// and available cash, subject to the aggregate exposure cap and the
// confidence threshold, converted to whole units at the current price.
func (g *Gate) Size(sig signals.TradingSignal, in Inputs) Sizing {
	switch sig.Signal {
	case signals.Sell:
		if in.HeldQuantity > 0 {
			return Sizing{
				Quantity: in.HeldQuantity,
				Notional: in.HeldQuantity * in.CurrentPrice,
			}
		}
		return Sizing{Reason: ReasonNoPosition}

	case signals.Buy:
		if sig.Confidence < g.cfg.ConfidenceThreshold {
			return Sizing{Reason: ReasonRiskLimit}
		}
		if in.PortfolioValue <= 0 {
			return Sizing{Reason: ReasonInsufficientFunds}
		}

		notional := in.PortfolioValue * g.cfg.PositionFraction
		if g.cfg.MaxRiskPerTrade > 0 {
			notional = math.Min(notional, in.PortfolioValue*g.cfg.MaxRiskPerTrade)
		}
		if in.CashBalance <= 0 {
			return Sizing{Reason: ReasonInsufficientFunds}
		}
		notional = math.Min(notional, in.CashBalance)

		if in.CurrentExposure+notional > in.PortfolioValue*g.cfg.MaxTotalExposure {
			return Sizing{Reason: ReasonRiskLimit}
		}

		if in.CurrentPrice <= 0 {
			return Sizing{Reason: ReasonRiskLimit}
		}
		qty := math.Floor(notional / in.CurrentPrice)
		if qty <= 0 {
			return Sizing{Reason: ReasonInsufficientFunds}
		}
		return Sizing{Quantity: qty, Notional: qty * in.CurrentPrice}
	}

	return Sizing{Reason: ReasonRiskLimit}
}

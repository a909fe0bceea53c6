package engine

import (
	"time"

	"tradectl/internal/signals"
)

// Outcome is the terminal state of one decision cycle.
type Outcome string

const (
	OutcomeExecuted Outcome = "EXECUTED"
	OutcomeRejected Outcome = "REJECTED"
)

// Rejection reasons produced by the engine itself; the risk gate contributes
// its own (no_position, risk_limit, insufficient_funds).
const (
	ReasonHold     = "hold"
	ReasonCooldown = "cooldown"
)

// Decision is the explicit result of processing one trading signal.
// Rejections are ordinary outcomes, never errors.
type Decision struct {
	Signal        signals.TradingSignal `json:"signal"`
	Outcome       Outcome               `json:"outcome"`
	Reason        string                `json:"reason,omitempty"`
	Quantity      float64               `json:"quantity,omitempty"`
	Price         float64               `json:"price,omitempty"`
	TransactionID string                `json:"transaction_id,omitempty"`
	DecidedAt     time.Time             `json:"decided_at"`
}

// Executed reports whether the decision resulted in a trade.
func (d Decision) Executed() bool { return d.Outcome == OutcomeExecuted }

func rejected(sig signals.TradingSignal, reason string, at time.Time) Decision {
	return Decision{
		Signal:    sig,
		Outcome:   OutcomeRejected,
		Reason:    reason,
		DecidedAt: at,
	}
}

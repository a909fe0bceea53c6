package signals

import (
	"fmt"
	"strings"
	"time"
)

// Type is the direction a signal recommends.
type Type string

const (
	Buy  Type = "BUY"
	Sell Type = "SELL"
	Hold Type = "HOLD"
)

// ParseType normalizes a raw action string into a signal Type.
func ParseType(s string) (Type, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY":
		return Buy, nil
	case "SELL":
		return Sell, nil
	case "HOLD":
		return Hold, nil
	}
	return "", fmt.Errorf("unknown signal type %q", s)
}

// TradingSignal is an immutable model-generated trading recommendation.
type TradingSignal struct {
	Symbol     string    `json:"symbol"`
	Signal     Type      `json:"signal"`
	Confidence float64   `json:"confidence"` // [0,1]
	Timestamp  time.Time `json:"timestamp"`
	Source     string    `json:"source"`
}

// Prediction is what an ensemble model emits per symbol before it is
// normalized into a TradingSignal.
type Prediction struct {
	Signal     string            `json:"signal"`
	Confidence float64           `json:"confidence"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

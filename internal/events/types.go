package events

// Topic enumerates the high-level event streams inside the controller.
type Topic string

const (
	TopicPriceTick     Topic = "price_tick"
	TopicSignal        Topic = "signal"
	TopicDecision      Topic = "decision"
	TopicTradeExecuted Topic = "trade_executed"
	TopicRiskAlert     Topic = "risk_alert"
	TopicSyncReport    Topic = "sync_report"
)

// PriceTick is the payload published on TopicPriceTick.
type PriceTick struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

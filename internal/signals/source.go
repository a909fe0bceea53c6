package signals

import (
	"context"
	"log"
	"math/rand"
	"time"

	"tradectl/internal/events"
)

// Source produces ensemble predictions per symbol. Implementations wrap the
// external model ensemble; the controller only consumes the result map.
type Source interface {
	Predict(ctx context.Context) (map[string]Prediction, error)
	Name() string
}

// Feed polls a Source on an interval and publishes normalized TradingSignals
// onto the bus. Malformed predictions are skipped, never fatal.
type Feed struct {
	Bus      *events.Bus
	Source   Source
	Interval time.Duration
}

// Start launches the polling loop until the context is canceled.
func (f *Feed) Start(ctx context.Context) {
	if f.Bus == nil || f.Source == nil {
		log.Println("signal feed: bus or source not set")
		return
	}
	if f.Interval <= 0 {
		f.Interval = 30 * time.Second
	}

	go func() {
		t := time.NewTicker(f.Interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				preds, err := f.Source.Predict(ctx)
				if err != nil {
					log.Printf("signal feed: %s predict failed: %v", f.Source.Name(), err)
					continue
				}
				now := time.Now()
				for symbol, p := range preds {
					typ, err := ParseType(p.Signal)
					if err != nil {
						log.Printf("signal feed: skipping %s: %v", symbol, err)
						continue
					}
					f.Bus.Publish(events.TopicSignal, TradingSignal{
						Symbol:     symbol,
						Signal:     typ,
						Confidence: clamp01(p.Confidence),
						Timestamp:  now,
						Source:     f.Source.Name(),
					})
				}
			}
		}
	}()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// RandomSource emits random predictions for dry runs and local development.
type RandomSource struct {
	Symbols []string
	rng     *rand.Rand
}

// NewRandomSource seeds a random source over the given symbols.
func NewRandomSource(symbols []string, seed int64) *RandomSource {
	return &RandomSource{
		Symbols: symbols,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

func (r *RandomSource) Name() string { return "random" }

// Predict returns a random BUY/SELL/HOLD per symbol with random confidence.
func (r *RandomSource) Predict(_ context.Context) (map[string]Prediction, error) {
	actions := []string{"BUY", "SELL", "HOLD"}
	out := make(map[string]Prediction, len(r.Symbols))
	for _, s := range r.Symbols {
		out[s] = Prediction{
			Signal:     actions[r.rng.Intn(len(actions))],
			Confidence: r.rng.Float64(),
			Metadata:   map[string]string{"generator": "random"},
		}
	}
	return out, nil
}

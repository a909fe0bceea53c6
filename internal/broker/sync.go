package broker

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"tradectl/internal/events"
	"tradectl/internal/ledger"
	"tradectl/internal/monitor"
)

// SyncService periodically replaces the local ledger with broker history.
// The replacement book is built fully off to the side and swapped in one
// step; any failure leaves local state untouched until the next cycle.
type SyncService struct {
	client   Client
	book     *ledger.Ledger
	bus      *events.Bus
	metrics  *monitor.SystemMetrics
	interval time.Duration
}

// SyncReport summarizes one completed synchronization.
type SyncReport struct {
	Timestamp     time.Time      `json:"timestamp"`
	Operations    int            `json:"operations"`
	CashBalance   float64        `json:"cash_balance"`
	PositionDiffs []PositionDiff `json:"position_diffs,omitempty"`
}

// PositionDiff is a post-sync mismatch between the rebuilt ledger and the
// broker's reported position quantity.
type PositionDiff struct {
	Symbol    string  `json:"symbol"`
	LocalQty  float64 `json:"local_qty"`
	BrokerQty float64 `json:"broker_qty"`
}

// NewSyncService wires a sync service; bus and metrics may be nil.
func NewSyncService(client Client, book *ledger.Ledger, bus *events.Bus, metrics *monitor.SystemMetrics, interval time.Duration) *SyncService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &SyncService{
		client:   client,
		book:     book,
		bus:      bus,
		metrics:  metrics,
		interval: interval,
	}
}

// Start launches the periodic sync loop. Failures are logged and retried on
// the next scheduled cycle only; there is no immediate retry.
func (s *SyncService) Start(ctx context.Context) {
	go func() {
		t := time.NewTicker(s.interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if report, err := s.Sync(ctx); err != nil {
					log.Printf("❌ broker sync failed (retry next cycle): %v", err)
					if s.metrics != nil {
						s.metrics.IncrementSyncFailures()
					}
				} else {
					log.Printf("🔄 broker sync complete: %d operations, cash=%.2f",
						report.Operations, report.CashBalance)
				}
			}
		}
	}()
	log.Printf("✓ broker sync started (interval: %v)", s.interval)
}

// Sync performs one synchronization pass.
func (s *SyncService) Sync(ctx context.Context) (*SyncReport, error) {
	cash, err := s.client.GetBalance(ctx)
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}

	ops, err := s.client.GetOperations(ctx, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("get operations: %w", err)
	}

	txs := make([]ledger.Transaction, 0, len(ops))
	for _, op := range ops {
		tx, err := op.ToTransaction()
		if err != nil {
			return nil, fmt.Errorf("convert operation %s: %w", op.ID, err)
		}
		txs = append(txs, tx)
	}

	// Everything above is read-only; the swap is the single mutation.
	if err := s.book.ReplaceAll(txs, cash); err != nil {
		return nil, err
	}

	report := &SyncReport{
		Timestamp:   time.Now(),
		Operations:  len(txs),
		CashBalance: cash,
	}
	s.verifyPositions(ctx, report)

	if s.bus != nil {
		s.bus.Publish(events.TopicSyncReport, *report)
	}
	return report, nil
}

// verifyPositions cross-checks rebuilt quantities against the broker's own
// position report. Diffs are informational; history stays authoritative.
func (s *SyncService) verifyPositions(ctx context.Context, report *SyncReport) {
	brokerPos, err := s.client.GetPositions(ctx)
	if err != nil {
		log.Printf("broker sync: position verification skipped: %v", err)
		return
	}
	for symbol, qty := range brokerPos {
		local := s.book.HeldQuantity(symbol)
		if math.Abs(local-qty) > 1e-4 {
			report.PositionDiffs = append(report.PositionDiffs, PositionDiff{
				Symbol:    symbol,
				LocalQty:  local,
				BrokerQty: qty,
			})
			log.Printf("⚠️ broker sync: %s local=%.4f broker=%.4f", symbol, local, qty)
		}
	}
}

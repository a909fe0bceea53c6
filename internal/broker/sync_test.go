package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"tradectl/internal/events"
	"tradectl/internal/ledger"
	"tradectl/internal/monitor"
)

type fakeClient struct {
	balance    float64
	balanceErr error
	positions  map[string]float64
	ops        []Operation
	opsErr     error
}

func (f *fakeClient) GetBalance(context.Context) (float64, error) {
	return f.balance, f.balanceErr
}

func (f *fakeClient) GetPositions(context.Context) (map[string]float64, error) {
	return f.positions, nil
}

func (f *fakeClient) GetOperations(context.Context, time.Time) ([]Operation, error) {
	return f.ops, f.opsErr
}

func TestSyncReplacesLocalState(t *testing.T) {
	book := ledger.New(1_000_000)
	now := time.Now()
	if _, err := book.Apply(ledger.Transaction{
		ID: "local-1", Symbol: "SBER", Kind: ledger.KindBuy,
		Quantity: 100, Price: 200, Timestamp: now,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	client := &fakeClient{
		balance:   750_000,
		positions: map[string]float64{"GAZP": 50},
		ops: []Operation{
			{ID: "b-1", Symbol: "GAZP", Type: "buy", Quantity: 50, Price: 150, Commission: 5, Timestamp: now.Add(-time.Hour)},
			{ID: "b-2", Symbol: "GAZP", Type: "dividend", Quantity: 50, Price: 7.5, Timestamp: now},
		},
	}
	svc := NewSyncService(client, book, events.NewBus(), monitor.NewSystemMetrics(), time.Minute)

	report, err := svc.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if report.Operations != 2 || report.CashBalance != 750_000 {
		t.Fatalf("report=%+v", report)
	}
	if len(report.PositionDiffs) != 0 {
		t.Fatalf("unexpected diffs: %+v", report.PositionDiffs)
	}

	if book.HeldQuantity("SBER") != 0 {
		t.Fatal("local-only SBER position must be discarded")
	}
	if book.HeldQuantity("GAZP") != 50 {
		t.Fatalf("GAZP qty=%v, want 50", book.HeldQuantity("GAZP"))
	}
	if book.Cash() != 750_000 {
		t.Fatalf("cash=%v, want broker 750000", book.Cash())
	}
}

func TestSyncFailureLeavesLedgerUntouched(t *testing.T) {
	book := ledger.New(1_000_000)
	now := time.Now()
	if _, err := book.Apply(ledger.Transaction{
		ID: "local-1", Symbol: "SBER", Kind: ledger.KindBuy,
		Quantity: 100, Price: 200, Timestamp: now,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cases := []*fakeClient{
		{balanceErr: errors.New("broker down")},
		{balance: 1, opsErr: errors.New("history unavailable")},
		{balance: 1, ops: []Operation{{ID: "x", Symbol: "GAZP", Type: "transfer", Quantity: 1, Price: 1, Timestamp: now}}},
	}
	for i, client := range cases {
		svc := NewSyncService(client, book, nil, nil, time.Minute)
		if _, err := svc.Sync(context.Background()); err == nil {
			t.Fatalf("case %d: expected sync error", i)
		}
		if book.HeldQuantity("SBER") != 100 {
			t.Fatalf("case %d: local state mutated by failed sync", i)
		}
		if book.Cash() != 1_000_000-100*200 {
			t.Fatalf("case %d: cash mutated by failed sync", i)
		}
	}
}

func TestSyncReportsPositionDiffs(t *testing.T) {
	book := ledger.New(0)
	client := &fakeClient{
		balance:   100,
		positions: map[string]float64{"SBER": 10},
		ops: []Operation{
			{ID: "b-1", Symbol: "SBER", Type: "buy", Quantity: 8, Price: 200, Timestamp: time.Now()},
		},
	}
	svc := NewSyncService(client, book, nil, nil, time.Minute)

	report, err := svc.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(report.PositionDiffs) != 1 {
		t.Fatalf("diffs=%+v, want one mismatch", report.PositionDiffs)
	}
	d := report.PositionDiffs[0]
	if d.Symbol != "SBER" || d.LocalQty != 8 || d.BrokerQty != 10 {
		t.Fatalf("diff=%+v", d)
	}
}

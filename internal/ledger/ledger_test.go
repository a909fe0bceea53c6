package ledger

import (
	"errors"
	"math"
	"testing"
	"time"
)

func tx(kind Kind, symbol string, qty, price, commission float64, at time.Time) Transaction {
	return Transaction{
		ID:         symbol + "-" + string(kind) + at.Format("150405.000"),
		Symbol:     symbol,
		Kind:       kind,
		Quantity:   qty,
		Price:      price,
		Commission: commission,
		Timestamp:  at,
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestFIFORealizedPnL(t *testing.T) {
	l := New(100000)
	t0 := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

	mustApply(t, l, tx(KindBuy, "SBER", 10, 100, 0, t0))
	mustApply(t, l, tx(KindBuy, "SBER", 5, 110, 0, t0.Add(time.Minute)))

	res, err := l.Apply(tx(KindSell, "SBER", 10, 120, 0, t0.Add(2*time.Minute)))
	if err != nil {
		t.Fatalf("Apply sell: %v", err)
	}
	if !almostEqual(res.RealizedPnL, (120-100)*10) {
		t.Fatalf("RealizedPnL=%v, want %v", res.RealizedPnL, (120-100)*10)
	}

	pos, ok := l.PositionFor("SBER", 120)
	if !ok {
		t.Fatal("expected remaining position")
	}
	if !almostEqual(pos.Quantity, 5) || !almostEqual(pos.AveragePrice, 110) {
		t.Fatalf("remaining lot qty=%v avg=%v, want 5 @ 110", pos.Quantity, pos.AveragePrice)
	}
}

func TestQuantityConservation(t *testing.T) {
	l := New(1e6)
	now := time.Now()

	steps := []struct {
		kind Kind
		qty  float64
	}{
		{KindBuy, 100},
		{KindBuy, 40},
		{KindSell, 70},
		{KindBuy, 10},
		{KindSell, 30},
	}

	var net float64
	for i, s := range steps {
		mustApply(t, l, tx(s.kind, "GAZP", s.qty, 150, 0, now.Add(time.Duration(i)*time.Second)))
		if s.kind == KindBuy {
			net += s.qty
		} else {
			net -= s.qty
		}
		if got := l.HeldQuantity("GAZP"); !almostEqual(got, net) {
			t.Fatalf("step %d: held=%v, want %v", i, got, net)
		}
	}
}

// Scenario from the portfolio accounting contract: 1,000,000 RUB capital,
// BUY SBER 100@200 (commission 10), SELL 30@220 (commission 6.6).
func TestCashAndRealizedScenario(t *testing.T) {
	l := New(1_000_000)
	t0 := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	mustApply(t, l, tx(KindBuy, "SBER", 100, 200, 10, t0))
	if !almostEqual(l.Cash(), 979_990) {
		t.Fatalf("cash after buy=%v, want 979990", l.Cash())
	}
	pos, _ := l.PositionFor("SBER", 200)
	if !almostEqual(pos.AveragePrice, 200.1) {
		t.Fatalf("avg price=%v, want 200.1", pos.AveragePrice)
	}

	res, err := l.Apply(tx(KindSell, "SBER", 30, 220, 6.6, t0.Add(time.Hour)))
	if err != nil {
		t.Fatalf("Apply sell: %v", err)
	}
	wantPnL := (220-200.1)*30 - 6.6
	if !almostEqual(res.RealizedPnL, wantPnL) {
		t.Fatalf("realized=%v, want %v", res.RealizedPnL, wantPnL)
	}
	if !almostEqual(l.Cash(), 986_583.4) {
		t.Fatalf("cash after sell=%v, want 986583.4", l.Cash())
	}
	pos, _ = l.PositionFor("SBER", 220)
	if !almostEqual(pos.Quantity, 70) {
		t.Fatalf("remaining qty=%v, want 70", pos.Quantity)
	}
	if !almostEqual(l.RealizedPnL("SBER"), wantPnL) {
		t.Fatalf("ledger realized=%v, want %v", l.RealizedPnL("SBER"), wantPnL)
	}
}

func TestOversellDrainsAndFlags(t *testing.T) {
	l := New(100000)
	now := time.Now()

	mustApply(t, l, tx(KindBuy, "LKOH", 10, 5000, 0, now))
	res, err := l.Apply(tx(KindSell, "LKOH", 15, 5100, 0, now.Add(time.Minute)))
	if err != nil {
		t.Fatalf("oversell must not fail: %v", err)
	}
	if !almostEqual(res.Consumed, 10) || !almostEqual(res.Oversold, 5) {
		t.Fatalf("consumed=%v oversold=%v, want 10/5", res.Consumed, res.Oversold)
	}
	if !almostEqual(res.RealizedPnL, (5100-5000)*10) {
		t.Fatalf("realized=%v, want %v", res.RealizedPnL, (5100-5000)*10)
	}
	if _, ok := l.PositionFor("LKOH", 5100); ok {
		t.Fatal("position should be flat after oversell")
	}
	if !almostEqual(l.Oversold("LKOH"), 5) {
		t.Fatalf("Oversold=%v, want 5", l.Oversold("LKOH"))
	}
}

func TestInvalidTransactionRejected(t *testing.T) {
	l := New(100000)
	now := time.Now()

	cases := []Transaction{
		tx(KindBuy, "SBER", 0, 100, 0, now),
		tx(KindBuy, "SBER", -5, 100, 0, now),
		tx(KindSell, "SBER", 10, 0, 0, now),
		tx(KindSell, "SBER", 10, -1, 0, now),
		{ID: "x", Symbol: "SBER", Kind: Kind("TRANSFER"), Quantity: 1, Price: 1, Timestamp: now},
	}
	for i, c := range cases {
		if _, err := l.Apply(c); !errors.Is(err, ErrInvalidTransaction) {
			t.Fatalf("case %d: err=%v, want ErrInvalidTransaction", i, err)
		}
	}

	if len(l.Transactions()) != 0 {
		t.Fatal("rejected transactions must not be recorded")
	}
	if !almostEqual(l.Cash(), 100000) {
		t.Fatalf("cash mutated by rejected transaction: %v", l.Cash())
	}
}

func TestWeightedAveragePrice(t *testing.T) {
	l := New(1e6)
	now := time.Now()

	mustApply(t, l, tx(KindBuy, "ROSN", 10, 100, 0, now))
	mustApply(t, l, tx(KindBuy, "ROSN", 30, 200, 0, now.Add(time.Second)))

	pos, _ := l.PositionFor("ROSN", 150)
	want := (10*100.0 + 30*200.0) / 40.0
	if !almostEqual(pos.AveragePrice, want) {
		t.Fatalf("avg=%v, want weighted mean %v", pos.AveragePrice, want)
	}
	if !almostEqual(pos.UnrealizedPnL, 40*150-(10*100+30*200)) {
		t.Fatalf("unrealized=%v", pos.UnrealizedPnL)
	}
}

func TestOutOfOrderBuysConsumeByTimestamp(t *testing.T) {
	l := New(1e6)
	t0 := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

	// The later purchase is applied first; FIFO must still consume the
	// earlier-dated lot.
	mustApply(t, l, tx(KindBuy, "NVTK", 10, 1200, 0, t0.Add(time.Hour)))
	mustApply(t, l, tx(KindBuy, "NVTK", 10, 1000, 0, t0))

	res, err := l.Apply(tx(KindSell, "NVTK", 10, 1300, 0, t0.Add(2*time.Hour)))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !almostEqual(res.RealizedPnL, (1300-1000)*10) {
		t.Fatalf("realized=%v, want %v (oldest lot first)", res.RealizedPnL, (1300-1000)*10)
	}
}

func TestReplaceAllSwapsAtomically(t *testing.T) {
	l := New(1e6)
	now := time.Now()
	mustApply(t, l, tx(KindBuy, "SBER", 100, 200, 0, now))

	broker := []Transaction{
		tx(KindBuy, "GAZP", 50, 150, 5, now.Add(-time.Hour)),
		tx(KindSell, "GAZP", 20, 160, 2, now),
		tx(KindDividend, "GAZP", 50, 7.5, 0, now.Add(time.Minute)),
	}
	if err := l.ReplaceAll(broker, 500000); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}

	if _, ok := l.PositionFor("SBER", 200); ok {
		t.Fatal("local-only position must vanish after broker sync")
	}
	if got := l.HeldQuantity("GAZP"); !almostEqual(got, 30) {
		t.Fatalf("GAZP qty=%v, want 30", got)
	}
	if !almostEqual(l.Cash(), 500000) {
		t.Fatalf("cash=%v, want broker-authoritative 500000", l.Cash())
	}
	if len(l.Transactions()) != 3 {
		t.Fatalf("log size=%d, want 3", len(l.Transactions()))
	}
}

func TestReplaceAllFailureLeavesStateUntouched(t *testing.T) {
	l := New(1e6)
	now := time.Now()
	mustApply(t, l, tx(KindBuy, "SBER", 100, 200, 0, now))

	bad := []Transaction{tx(KindBuy, "GAZP", -1, 150, 0, now)}
	if err := l.ReplaceAll(bad, 0); err == nil {
		t.Fatal("expected rebuild error")
	}

	if got := l.HeldQuantity("SBER"); !almostEqual(got, 100) {
		t.Fatalf("SBER qty=%v after failed sync, want 100", got)
	}
	if !almostEqual(l.Cash(), 1e6-100*200) {
		t.Fatalf("cash=%v after failed sync", l.Cash())
	}
}

func mustApply(t *testing.T, l *Ledger, transaction Transaction) {
	t.Helper()
	if _, err := l.Apply(transaction); err != nil {
		t.Fatalf("Apply(%s %s): %v", transaction.Kind, transaction.Symbol, err)
	}
}

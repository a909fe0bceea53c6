package monitor

import (
	"testing"
	"time"
)

func TestLatencyHistogramStats(t *testing.T) {
	h := NewLatencyHistogram(100)
	for _, v := range []float64{10, 20, 30, 40, 50} {
		h.Record(v)
	}

	stats := h.Stats()
	if stats.Count != 5 {
		t.Fatalf("count=%d, want 5", stats.Count)
	}
	if stats.Min != 10 || stats.Max != 50 {
		t.Errorf("min/max=%v/%v, want 10/50", stats.Min, stats.Max)
	}
	if stats.Avg != 30 {
		t.Errorf("avg=%v, want 30", stats.Avg)
	}
	if stats.P50 != 30 {
		t.Errorf("p50=%v, want 30", stats.P50)
	}
}

func TestLatencyHistogramEvictsOldest(t *testing.T) {
	h := NewLatencyHistogram(3)
	for _, v := range []float64{100, 1, 2, 3} {
		h.Record(v)
	}
	stats := h.Stats()
	if stats.Count != 3 {
		t.Fatalf("count=%d, want 3", stats.Count)
	}
	if stats.Max != 3 {
		t.Errorf("max=%v, the oldest sample must be gone", stats.Max)
	}
}

func TestLatencyHistogramEmpty(t *testing.T) {
	h := NewLatencyHistogram(10)
	if stats := h.Stats(); stats.Count != 0 {
		t.Fatalf("empty histogram stats=%+v", stats)
	}
}

func TestCountersAndSnapshot(t *testing.T) {
	m := NewSystemMetrics()
	m.IncrementSignals()
	m.IncrementSignals()
	m.IncrementExecuted()
	m.IncrementRejected()
	m.IncrementSyncFailures()
	m.IncrementAPI()
	m.IncrementAPIErrors()

	snap := m.GetSnapshot()
	if snap.SignalsReceived != 2 {
		t.Errorf("signals=%d, want 2", snap.SignalsReceived)
	}
	if snap.TradesExecuted != 1 || snap.TradesRejected != 1 {
		t.Errorf("executed/rejected=%d/%d, want 1/1", snap.TradesExecuted, snap.TradesRejected)
	}
	if snap.SyncFailures != 1 || snap.APIRequests != 1 || snap.APIErrors != 1 {
		t.Errorf("snapshot=%+v", snap)
	}
	if snap.GoroutineCount <= 0 {
		t.Error("goroutine count must be positive")
	}
}

func TestTimerRecordsIntoHistogram(t *testing.T) {
	h := NewLatencyHistogram(10)
	timer := NewTimer(h)
	time.Sleep(5 * time.Millisecond)
	elapsed := timer.Stop()

	if elapsed < 5*time.Millisecond {
		t.Fatalf("elapsed=%v, want at least 5ms", elapsed)
	}
	if stats := h.Stats(); stats.Count != 1 || stats.Max < 5 {
		t.Fatalf("stats=%+v", stats)
	}
}

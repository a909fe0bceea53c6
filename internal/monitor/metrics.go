package monitor

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// SystemMetrics tracks decision-loop and API telemetry.
type SystemMetrics struct {
	// Latency histograms
	DecisionLatency *LatencyHistogram
	APILatency      *LatencyHistogram

	// Counters
	signalsReceived uint64
	tradesExecuted  uint64
	tradesRejected  uint64
	syncFailures    uint64
	apiRequests     uint64
	apiErrors       uint64

	started time.Time
}

// NewSystemMetrics creates a metrics instance.
func NewSystemMetrics() *SystemMetrics {
	return &SystemMetrics{
		DecisionLatency: NewLatencyHistogram(1000),
		APILatency:      NewLatencyHistogram(1000),
		started:         time.Now(),
	}
}

// LatencyHistogram keeps a sliding window of latency samples with lazily
// recomputed summary statistics.
type LatencyHistogram struct {
	mu      sync.Mutex
	samples []float64
	maxSize int
	dirty   bool
	cached  LatencyStats
}

// LatencyStats holds computed latency statistics in milliseconds.
type LatencyStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Count int     `json:"count"`
}

// NewLatencyHistogram creates a sliding-window histogram of the given size.
func NewLatencyHistogram(size int) *LatencyHistogram {
	if size <= 0 {
		size = 1000
	}
	return &LatencyHistogram{
		samples: make([]float64, 0, size),
		maxSize: size,
		dirty:   true,
	}
}

// Record adds a latency sample in milliseconds, evicting the oldest on overflow.
func (h *LatencyHistogram) Record(latencyMs float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.samples) >= h.maxSize {
		h.samples = h.samples[1:]
	}
	h.samples = append(h.samples, latencyMs)
	h.dirty = true
}

// RecordDuration converts the duration to milliseconds and records it.
func (h *LatencyHistogram) RecordDuration(d time.Duration) {
	h.Record(float64(d.Nanoseconds()) / 1e6)
}

// Stats returns min/max/avg and percentiles, recomputing only when samples
// changed since the last call.
func (h *LatencyHistogram) Stats() LatencyStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.dirty && h.cached.Count > 0 {
		return h.cached
	}

	n := len(h.samples)
	if n == 0 {
		return LatencyStats{}
	}

	sorted := make([]float64, n)
	copy(sorted, h.samples)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	h.cached = LatencyStats{
		Min:   sorted[0],
		Max:   sorted[n-1],
		Avg:   sum / float64(n),
		P50:   sorted[n/2],
		P95:   sorted[int(float64(n)*0.95)],
		P99:   sorted[int(float64(n)*0.99)],
		Count: n,
	}
	h.dirty = false
	return h.cached
}

// IncrementSignals counts a received trading signal.
func (m *SystemMetrics) IncrementSignals() { atomic.AddUint64(&m.signalsReceived, 1) }

// IncrementExecuted counts an executed trade decision.
func (m *SystemMetrics) IncrementExecuted() { atomic.AddUint64(&m.tradesExecuted, 1) }

// IncrementRejected counts a rejected trade decision.
func (m *SystemMetrics) IncrementRejected() { atomic.AddUint64(&m.tradesRejected, 1) }

// IncrementSyncFailures counts a failed broker synchronization cycle.
func (m *SystemMetrics) IncrementSyncFailures() { atomic.AddUint64(&m.syncFailures, 1) }

// IncrementAPI counts an API request.
func (m *SystemMetrics) IncrementAPI() { atomic.AddUint64(&m.apiRequests, 1) }

// IncrementAPIErrors counts an API request that returned an error status.
func (m *SystemMetrics) IncrementAPIErrors() { atomic.AddUint64(&m.apiErrors, 1) }

// Snapshot is a point-in-time telemetry view.
type Snapshot struct {
	DecisionLatency LatencyStats `json:"decision_latency"`
	APILatency      LatencyStats `json:"api_latency"`
	SignalsReceived uint64       `json:"signals_received"`
	TradesExecuted  uint64       `json:"trades_executed"`
	TradesRejected  uint64       `json:"trades_rejected"`
	SyncFailures    uint64       `json:"sync_failures"`
	APIRequests     uint64       `json:"api_requests"`
	APIErrors       uint64       `json:"api_errors"`
	GoroutineCount  int          `json:"goroutine_count"`
	HeapAlloc       uint64       `json:"heap_alloc_bytes"`
	UptimeSeconds   float64      `json:"uptime_seconds"`
	Timestamp       time.Time    `json:"timestamp"`
}

// GetSnapshot returns the current telemetry snapshot.
func (m *SystemMetrics) GetSnapshot() Snapshot {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return Snapshot{
		DecisionLatency: m.DecisionLatency.Stats(),
		APILatency:      m.APILatency.Stats(),
		SignalsReceived: atomic.LoadUint64(&m.signalsReceived),
		TradesExecuted:  atomic.LoadUint64(&m.tradesExecuted),
		TradesRejected:  atomic.LoadUint64(&m.tradesRejected),
		SyncFailures:    atomic.LoadUint64(&m.syncFailures),
		APIRequests:     atomic.LoadUint64(&m.apiRequests),
		APIErrors:       atomic.LoadUint64(&m.apiErrors),
		GoroutineCount:  runtime.NumGoroutine(),
		HeapAlloc:       memStats.HeapAlloc,
		UptimeSeconds:   time.Since(m.started).Seconds(),
		Timestamp:       time.Now(),
	}
}

// Timer measures one operation and records into a histogram on Stop.
type Timer struct {
	start     time.Time
	histogram *LatencyHistogram
}

// NewTimer starts a timer recording into h.
func NewTimer(h *LatencyHistogram) *Timer {
	return &Timer{start: time.Now(), histogram: h}
}

// Stop records the elapsed time and returns it.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	if t.histogram != nil {
		t.histogram.RecordDuration(elapsed)
	}
	return elapsed
}

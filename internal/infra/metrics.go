package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	accountsFetched atomic.Uint64
	fetchErrors     atomic.Uint64
	decodeErrors    atomic.Uint64
	eventsProcessed atomic.Uint64
	fillsSeen       atomic.Uint64
	sequenceGaps    atomic.Uint64

	// Latency tracking
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64

	// Gauges
	activeConnections atomic.Int32
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordFetch records a successful RPC read of n accounts.
func (m *Metrics) RecordFetch(n int, latency time.Duration) {
	m.accountsFetched.Add(uint64(n))
	m.latencySumNs.Add(latency.Nanoseconds())
	m.latencyCount.Add(1)
}

// RecordFetchError records a failed RPC read.
func (m *Metrics) RecordFetchError() {
	m.fetchErrors.Add(1)
}

// RecordDecodeError records an account that could not be decoded.
func (m *Metrics) RecordDecodeError() {
	m.decodeErrors.Add(1)
}

// RecordEvent records a handled queue event.
func (m *Metrics) RecordEvent(fill bool) {
	m.eventsProcessed.Add(1)
	if fill {
		m.fillsSeen.Add(1)
	}
}

// RecordSequenceGap records events lost between two reads of a queue.
func (m *Metrics) RecordSequenceGap(missed uint64) {
	m.sequenceGaps.Add(missed)
}

// IncrementConnections increments active connections by 1.
func (m *Metrics) IncrementConnections() {
	m.activeConnections.Add(1)
}

// DecrementConnections decrements active connections by 1.
func (m *Metrics) DecrementConnections() {
	m.activeConnections.Add(-1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	AccountsFetched   uint64
	FetchErrors       uint64
	DecodeErrors      uint64
	EventsProcessed   uint64
	FillsSeen         uint64
	SequenceGaps      uint64
	AvgFetchLatencyNs int64
	ActiveConnections int32
	Timestamp         time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.latencyCount.Load()
	if count > 0 {
		avgLatency = m.latencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		AccountsFetched:   m.accountsFetched.Load(),
		FetchErrors:       m.fetchErrors.Load(),
		DecodeErrors:      m.decodeErrors.Load(),
		EventsProcessed:   m.eventsProcessed.Load(),
		FillsSeen:         m.fillsSeen.Load(),
		SequenceGaps:      m.sequenceGaps.Load(),
		AvgFetchLatencyNs: avgLatency,
		ActiveConnections: m.activeConnections.Load(),
		Timestamp:         time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.accountsFetched.Store(0)
	m.fetchErrors.Store(0)
	m.decodeErrors.Store(0)
	m.eventsProcessed.Store(0)
	m.fillsSeen.Store(0)
	m.sequenceGaps.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
	m.activeConnections.Store(0)
}

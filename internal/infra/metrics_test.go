package infra

import (
	"testing"
	"time"
)

func TestMetrics_RecordFetch(t *testing.T) {
	m := &Metrics{}

	m.RecordFetch(1, 1000)
	m.RecordFetch(2, 2000)
	m.RecordFetch(2, 3000)

	snap := m.Snapshot()

	if snap.AccountsFetched != 5 {
		t.Errorf("Expected 5 accounts, got %d", snap.AccountsFetched)
	}

	// Average latency: (1000 + 2000 + 3000) / 3 = 2000
	if snap.AvgFetchLatencyNs != 2000 {
		t.Errorf("Expected avg latency 2000, got %d", snap.AvgFetchLatencyNs)
	}
}

func TestMetrics_RecordEvent(t *testing.T) {
	m := &Metrics{}

	m.RecordEvent(true)
	m.RecordEvent(false)
	m.RecordEvent(true)
	m.RecordSequenceGap(4)

	snap := m.Snapshot()
	if snap.EventsProcessed != 3 {
		t.Errorf("Expected 3 events, got %d", snap.EventsProcessed)
	}
	if snap.FillsSeen != 2 {
		t.Errorf("Expected 2 fills, got %d", snap.FillsSeen)
	}
	if snap.SequenceGaps != 4 {
		t.Errorf("Expected 4 missed events, got %d", snap.SequenceGaps)
	}
}

func TestMetrics_Connections(t *testing.T) {
	m := &Metrics{}

	m.IncrementConnections()
	m.IncrementConnections()
	m.IncrementConnections()

	snap := m.Snapshot()
	if snap.ActiveConnections != 3 {
		t.Errorf("Expected 3 connections, got %d", snap.ActiveConnections)
	}

	m.DecrementConnections()
	snap = m.Snapshot()
	if snap.ActiveConnections != 2 {
		t.Errorf("Expected 2 connections, got %d", snap.ActiveConnections)
	}
}

func TestMetrics_Reset(t *testing.T) {
	m := &Metrics{}

	m.RecordFetch(1, time.Millisecond)
	m.RecordFetchError()
	m.RecordDecodeError()
	m.IncrementConnections()

	m.Reset()
	snap := m.Snapshot()

	if snap.AccountsFetched != 0 {
		t.Error("Expected 0 accounts after reset")
	}
	if snap.FetchErrors != 0 || snap.DecodeErrors != 0 {
		t.Error("Expected 0 errors after reset")
	}
	if snap.ActiveConnections != 0 {
		t.Error("Expected 0 connections after reset")
	}
}

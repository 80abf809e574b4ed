package monitor

import (
	"testing"
	"time"
)

func TestMetrics_Snapshot(t *testing.T) {
	m := New()

	m.RecordRequest(10*time.Millisecond, false)
	m.RecordRequest(20*time.Millisecond, true)

	s := m.Snapshot()
	if s.TotalRequests != 2 {
		t.Errorf("TotalRequests = %d, want 2", s.TotalRequests)
	}
	if s.ErrorCount != 1 {
		t.Errorf("ErrorCount = %d, want 1", s.ErrorCount)
	}
	if s.ErrorRate != 0.5 {
		t.Errorf("ErrorRate = %f, want 0.5", s.ErrorRate)
	}
	if s.AvgResponseTimeMS < 14 || s.AvgResponseTimeMS > 16 {
		t.Errorf("AvgResponseTimeMS = %f, want ~15", s.AvgResponseTimeMS)
	}
	if s.UptimeSeconds < 0 {
		t.Errorf("UptimeSeconds = %f, want >= 0", s.UptimeSeconds)
	}
}

func TestMetrics_EmptySnapshot(t *testing.T) {
	s := New().Snapshot()
	if s.TotalRequests != 0 || s.ErrorRate != 0 || s.AvgResponseTimeMS != 0 {
		t.Errorf("empty snapshot = %+v, want zero counters", s)
	}
}

// Package monitor keeps lightweight in-process service metrics for the
// detailed health endpoint. Counters are atomic, there is no external
// metrics backend.
package monitor

import (
	"sync/atomic"
	"time"
)

// Metrics accumulates request counters since process start.
type Metrics struct {
	started time.Time

	totalRequests atomic.Uint64
	errorCount    atomic.Uint64
	totalDuration atomic.Int64 // microseconds
}

// New creates a Metrics anchored at the current time.
func New() *Metrics {
	return &Metrics{started: time.Now()}
}

// RecordRequest records one finished request.
func (m *Metrics) RecordRequest(duration time.Duration, isError bool) {
	m.totalRequests.Add(1)
	m.totalDuration.Add(duration.Microseconds())
	if isError {
		m.errorCount.Add(1)
	}
}

// Snapshot is a point-in-time view of the counters.
type Snapshot struct {
	UptimeSeconds     float64 `json:"uptime_seconds"`
	TotalRequests     uint64  `json:"total_requests"`
	ErrorCount        uint64  `json:"error_count"`
	ErrorRate         float64 `json:"error_rate"`
	AvgResponseTimeMS float64 `json:"avg_response_time_ms"`
}

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() Snapshot {
	total := m.totalRequests.Load()
	errs := m.errorCount.Load()

	s := Snapshot{
		UptimeSeconds: time.Since(m.started).Seconds(),
		TotalRequests: total,
		ErrorCount:    errs,
	}
	if total > 0 {
		s.ErrorRate = float64(errs) / float64(total)
		s.AvgResponseTimeMS = float64(m.totalDuration.Load()) / float64(total) / 1000
	}
	return s
}

// Uptime returns the time since process start.
func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.started)
}

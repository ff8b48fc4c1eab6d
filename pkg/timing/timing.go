// Package timing provides per-cycle performance measurement for the relay core.
package timing

import (
	"fmt"
	"time"
)

// Metrics captures timing information for a single relay cycle.
type Metrics struct {
	// BackendConnect is the time spent establishing the backend TCP
	// connection (and, when configured, the upstream proxy handshake).
	BackendConnect time.Duration `json:"backend_connect"`

	// TTFB (Time To First Byte) is the time spent waiting for the backend's
	// status line after the request was fully sent.
	TTFB time.Duration `json:"ttfb"`

	// TotalTime is the total end-to-end cycle time.
	TotalTime time.Duration `json:"total_time"`
}

// Timer helps measure cycle timings.
type Timer struct {
	start        time.Time
	connectStart time.Time
	connectEnd   time.Time
	ttfbStart    time.Time
	ttfbEnd      time.Time
}

// NewTimer creates a new timing measurement session.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// StartConnect marks the beginning of the backend connect phase.
func (t *Timer) StartConnect() {
	t.connectStart = time.Now()
}

// EndConnect marks the end of the backend connect phase.
func (t *Timer) EndConnect() {
	t.connectEnd = time.Now()
}

// StartTTFB marks when the cycle starts waiting for the backend's first byte.
func (t *Timer) StartTTFB() {
	t.ttfbStart = time.Now()
}

// EndTTFB marks when the backend's first byte (status line) arrived.
func (t *Timer) EndTTFB() {
	t.ttfbEnd = time.Now()
}

// GetMetrics returns the calculated timing metrics.
func (t *Timer) GetMetrics() Metrics {
	m := Metrics{TotalTime: time.Since(t.start)}

	if !t.connectStart.IsZero() && !t.connectEnd.IsZero() {
		m.BackendConnect = t.connectEnd.Sub(t.connectStart)
	}
	if !t.ttfbStart.IsZero() && !t.ttfbEnd.IsZero() {
		m.TTFB = t.ttfbEnd.Sub(t.ttfbStart)
	}

	return m
}

// String provides a human-readable representation of the metrics.
func (m Metrics) String() string {
	return fmt.Sprintf("BackendConnect: %v, TTFB: %v, TotalTime: %v", m.BackendConnect, m.TTFB, m.TotalTime)
}

// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics collector for connection and record counters.
// Counters are registered lazily on first use and read as a snapshot.

package control

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metric names used by the server and the protocol layer.
const (
	MetricConnsAccepted   = "conns_accepted"
	MetricConnsRejected   = "conns_rejected"
	MetricConnsActive     = "conns_active"
	MetricHandshakes      = "handshakes"
	MetricHandshakeErrors = "handshake_errors"
	MetricFramesReceived  = "frames_received"
	MetricFramesSent      = "frames_sent"
	MetricFramesIgnored   = "frames_ignored"
	MetricDecodeErrors    = "decode_errors"
	MetricRecordsStored   = "records_stored"
	MetricRecordsRejected = "records_rejected"
	MetricStoreFailures   = "store_failures"
	MetricBytesReceived   = "bytes_received"
	MetricBytesSent       = "bytes_sent"
)

// Metrics holds named int64 counters safe for concurrent use.
type Metrics struct {
	mu       sync.RWMutex
	counters map[string]*atomic.Int64
	updated  atomic.Int64 // unix nanos of the last update
}

// NewMetrics creates an empty registry.
func NewMetrics() *Metrics {
	return &Metrics{
		counters: make(map[string]*atomic.Int64),
	}
}

func (m *Metrics) counter(key string) *atomic.Int64 {
	m.mu.RLock()
	c, ok := m.counters[key]
	m.mu.RUnlock()
	if ok {
		return c
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok = m.counters[key]; !ok {
		c = new(atomic.Int64)
		m.counters[key] = c
	}
	return c
}

// Add adds delta to key.
func (m *Metrics) Add(key string, delta int64) {
	m.counter(key).Add(delta)
	m.updated.Store(time.Now().UnixNano())
}

// Inc increments key by one.
func (m *Metrics) Inc(key string) { m.Add(key, 1) }

// Dec decrements key by one.
func (m *Metrics) Dec(key string) { m.Add(key, -1) }

// Get returns the current value of key.
func (m *Metrics) Get(key string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.counters[key]; ok {
		return c.Load()
	}
	return 0
}

// GetSnapshot returns the latest counter values.
func (m *Metrics) GetSnapshot() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]int64, len(m.counters))
	for k, c := range m.counters {
		out[k] = c.Load()
	}
	return out
}

// Updated returns the time of the last update, zero if none.
func (m *Metrics) Updated() time.Time {
	ns := m.updated.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

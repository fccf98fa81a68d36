package observability

import (
	"sync"
)

// Metrics provides basic in-memory counters for event consumers.
type Metrics struct {
	mu        sync.Mutex
	processed map[string]int64
	skipped   map[string]int64
	failed    map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		processed: make(map[string]int64),
		skipped:   make(map[string]int64),
		failed:    make(map[string]int64),
	}
}

// RecordProcessed counts an event newly applied by a consumer.
func (m *Metrics) RecordProcessed(consumer, eventType string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed[consumerKey(consumer, eventType)]++
}

// RecordSkipped counts an event skipped by the idempotency guard.
func (m *Metrics) RecordSkipped(consumer, eventType string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skipped[consumerKey(consumer, eventType)]++
}

// RecordFailed counts an event whose handling failed.
func (m *Metrics) RecordFailed(consumer, eventType string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed[consumerKey(consumer, eventType)]++
}

// Processed returns the processed count for a consumer/event type pair.
func (m *Metrics) Processed(consumer, eventType string) int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.processed[consumerKey(consumer, eventType)]
}

func consumerKey(consumer, eventType string) string {
	return consumer + "|" + eventType
}

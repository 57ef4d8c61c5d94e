package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryEventLog is a bounded in-process EventStore used when no database
// is configured. It keeps the newest maxEvents entries so suppressed and
// blocked signals stay observable even without persistence.
type MemoryEventLog struct {
	mu        sync.RWMutex
	events    []SignalEvent
	maxEvents int
}

// NewMemoryEventLog constructs the log; maxEvents <= 0 selects a default.
func NewMemoryEventLog(maxEvents int) *MemoryEventLog {
	if maxEvents <= 0 {
		maxEvents = 4096
	}
	return &MemoryEventLog{maxEvents: maxEvents}
}

// InsertEvent appends event, evicting the oldest entries past capacity.
func (m *MemoryEventLog) InsertEvent(ctx context.Context, event SignalEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	if overflow := len(m.events) - m.maxEvents; overflow > 0 {
		m.events = append(m.events[:0:0], m.events[overflow:]...)
	}
	return nil
}

// ListRecentEvents returns up to limit events, newest first.
func (m *MemoryEventLog) ListRecentEvents(ctx context.Context, limit int) ([]SignalEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 || limit > len(m.events) {
		limit = len(m.events)
	}
	out := make([]SignalEvent, 0, limit)
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.events[i])
	}
	return out, nil
}

// ListEventsBetween returns events within [from, to) in insertion order.
func (m *MemoryEventLog) ListEventsBetween(ctx context.Context, from, to time.Time) ([]SignalEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]SignalEvent, 0)
	for _, event := range m.events {
		if !event.CreatedAt.Before(from) && event.CreatedAt.Before(to) {
			out = append(out, event)
		}
	}
	return out, nil
}

// CountEventsByOutcome aggregates events since a cutoff, keyed by outcome.
func (m *MemoryEventLog) CountEventsByOutcome(ctx context.Context, since time.Time) (map[string]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[string]int64)
	for _, event := range m.events {
		if !event.CreatedAt.Before(since) {
			counts[event.Outcome]++
		}
	}
	return counts, nil
}

// DeleteEventsBefore prunes events older than the cutoff.
func (m *MemoryEventLog) DeleteEventsBefore(ctx context.Context, olderThan time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.events[:0]
	var removed int64
	for _, event := range m.events {
		if event.CreatedAt.Before(olderThan) {
			removed++
			continue
		}
		kept = append(kept, event)
	}
	m.events = kept
	return removed, nil
}

var _ EventStore = (*MemoryEventLog)(nil)

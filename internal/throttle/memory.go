package throttle

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MemoryStore is the in-process SnapshotStore used when no database is
// configured, and by tests. All operations are safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	snaps map[Key]Snapshot
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snaps: make(map[Key]Snapshot)}
}

// Get returns the snapshot for key, or nil when the key never emitted.
func (m *MemoryStore) Get(ctx context.Context, key Key) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.snaps[key]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

// Commit stores snap unless a newer snapshot already exists for the key.
func (m *MemoryStore) Commit(ctx context.Context, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.snaps[snap.Key]; ok && existing.LastAt.After(snap.LastAt) {
		return ErrStaleCommit
	}
	snap.UpdatedAt = time.Now().UTC()
	m.snaps[snap.Key] = snap
	return nil
}

// Reset clears the reference price and timestamp for key and arms the
// force flag so the next evaluation emits unconditionally. Resetting a
// key that never emitted creates the armed record.
func (m *MemoryStore) Reset(ctx context.Context, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.snaps[key]
	snap.Key = key
	snap.LastPrice = decimal.Zero
	snap.LastAt = time.Time{}
	snap.ForceNext = true
	snap.UpdatedAt = time.Now().UTC()
	m.snaps[key] = snap
	return nil
}

// Delete removes the snapshot for key, if any.
func (m *MemoryStore) Delete(ctx context.Context, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snaps, key)
	return nil
}

// List returns all snapshots ordered by key for stable output.
func (m *MemoryStore) List(ctx context.Context) ([]Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snaps := make([]Snapshot, 0, len(m.snaps))
	for _, snap := range m.snaps {
		snaps = append(snaps, snap)
	}
	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].Key.String() < snaps[j].Key.String()
	})
	return snaps, nil
}

var _ SnapshotStore = (*MemoryStore)(nil)

package throttle

import (
	"context"
	"errors"
)

var (
	// ErrStaleCommit indicates the stored snapshot advanced past the one
	// being committed; the caller must drop its commit, not overwrite.
	ErrStaleCommit = errors.New("throttle: snapshot advanced since read")
)

// SnapshotStore persists one snapshot per key. Get returns nil (and no
// error) for a key that never emitted. Commit is an optimistic per-key
// write: an attempt to commit a snapshot whose LastAt is older than the
// stored one fails with ErrStaleCommit, which keeps per-key emissions
// monotonically non-decreasing in time even when two evaluations race.
type SnapshotStore interface {
	Get(ctx context.Context, key Key) (*Snapshot, error)
	Commit(ctx context.Context, snap Snapshot) error
	Reset(ctx context.Context, key Key) error
	Delete(ctx context.Context, key Key) error
	List(ctx context.Context) ([]Snapshot, error)
}

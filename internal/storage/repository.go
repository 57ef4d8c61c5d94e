package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"tradesentry/internal/throttle"
)

const (
	getSnapshotSQL = `SELECT
        symbol,
        strategy,
        side,
        last_price,
        last_ts,
        fingerprint,
        force_next,
        updated_at
    FROM throttle_snapshots
    WHERE symbol = $1 AND strategy = $2 AND side = $3;`

	listSnapshotsSQL = `SELECT
        symbol,
        strategy,
        side,
        last_price,
        last_ts,
        fingerprint,
        force_next,
        updated_at
    FROM throttle_snapshots
    ORDER BY symbol, strategy, side;`

	commitSnapshotSQL = `INSERT INTO throttle_snapshots (
        symbol,
        strategy,
        side,
        last_price,
        last_ts,
        fingerprint,
        force_next,
        updated_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,now()
    )
    ON CONFLICT (symbol, strategy, side) DO UPDATE
    SET
        last_price  = EXCLUDED.last_price,
        last_ts     = EXCLUDED.last_ts,
        fingerprint = EXCLUDED.fingerprint,
        force_next  = EXCLUDED.force_next,
        updated_at  = now()
    WHERE throttle_snapshots.last_ts IS NULL
       OR throttle_snapshots.last_ts <= EXCLUDED.last_ts;`

	resetSnapshotSQL = `INSERT INTO throttle_snapshots (
        symbol,
        strategy,
        side,
        last_price,
        last_ts,
        fingerprint,
        force_next,
        updated_at
    ) VALUES (
        $1,$2,$3,NULL,NULL,'',TRUE,now()
    )
    ON CONFLICT (symbol, strategy, side) DO UPDATE
    SET
        last_price = NULL,
        last_ts    = NULL,
        force_next = TRUE,
        updated_at = now();`

	deleteSnapshotSQL = `DELETE FROM throttle_snapshots
    WHERE symbol = $1 AND strategy = $2 AND side = $3;`

	insertEventSQL = `INSERT INTO signal_events (
        id,
        symbol,
        strategy,
        side,
        price,
        outcome,
        reason,
        origin,
        created_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9
    );`

	listRecentEventsSQL = `SELECT
        id, symbol, strategy, side, price, outcome, reason, origin, created_at
    FROM signal_events
    ORDER BY created_at DESC
    LIMIT $1;`

	listEventsBetweenSQL = `SELECT
        id, symbol, strategy, side, price, outcome, reason, origin, created_at
    FROM signal_events
    WHERE created_at >= $1 AND created_at < $2
    ORDER BY created_at;`

	countEventsByOutcomeSQL = `SELECT outcome, COUNT(*)
    FROM signal_events
    WHERE created_at >= $1
    GROUP BY outcome;`

	deleteEventsBeforeSQL = `DELETE FROM signal_events WHERE created_at < $1;`
)

// Store aggregates Postgres access to throttle snapshots and the signal
// event audit log.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// Get returns the snapshot for key, or nil when the key never emitted.
func (s *Store) Get(ctx context.Context, key throttle.Key) (*throttle.Snapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	row := pool.QueryRow(ctx, getSnapshotSQL, key.Symbol, key.Strategy, string(key.Side))
	snap, err := scanSnapshot(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get snapshot %s: %w", key, err)
	}
	return &snap, nil
}

// Commit performs the optimistic per-key write. A snapshot older than the
// stored one is rejected with throttle.ErrStaleCommit.
func (s *Store) Commit(ctx context.Context, snap throttle.Snapshot) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var price interface{}
	if !snap.LastPrice.IsZero() {
		price = snap.LastPrice.String()
	}
	var ts interface{}
	if !snap.LastAt.IsZero() {
		ts = snap.LastAt
	}

	cmdTag, execErr := pool.Exec(ctx, commitSnapshotSQL,
		snap.Key.Symbol,
		snap.Key.Strategy,
		string(snap.Key.Side),
		price,
		ts,
		snap.Fingerprint,
		snap.ForceNext,
	)
	if execErr != nil {
		return fmt.Errorf("commit snapshot %s: %w", snap.Key, execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return throttle.ErrStaleCommit
	}
	return nil
}

// Reset clears the stored reference and arms the force flag in one
// statement, creating the row if the key never emitted.
func (s *Store) Reset(ctx context.Context, key throttle.Key) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, resetSnapshotSQL, key.Symbol, key.Strategy, string(key.Side)); execErr != nil {
		return fmt.Errorf("reset snapshot %s: %w", key, execErr)
	}
	return nil
}

// Delete removes the snapshot for key.
func (s *Store) Delete(ctx context.Context, key throttle.Key) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteSnapshotSQL, key.Symbol, key.Strategy, string(key.Side)); execErr != nil {
		return fmt.Errorf("delete snapshot %s: %w", key, execErr)
	}
	return nil
}

// List returns all snapshots in key order.
func (s *Store) List(ctx context.Context) ([]throttle.Snapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSnapshotsSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list snapshots: %w", queryErr)
	}
	defer rows.Close()

	snaps := make([]throttle.Snapshot, 0)
	for rows.Next() {
		snap, scanErr := scanSnapshot(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		snaps = append(snaps, snap)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return snaps, nil
}

// InsertEvent appends one audit event.
func (s *Store) InsertEvent(ctx context.Context, event SignalEvent) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, insertEventSQL,
		event.ID,
		event.Symbol,
		event.Strategy,
		string(event.Side),
		event.Price.String(),
		event.Outcome,
		event.Reason,
		event.Origin,
		event.CreatedAt,
	)
	if execErr != nil {
		return fmt.Errorf("insert signal event: %w", execErr)
	}
	return nil
}

// ListRecentEvents lists the most recent audit events.
func (s *Store) ListRecentEvents(ctx context.Context, limit int) ([]SignalEvent, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentEventsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent events: %w", queryErr)
	}
	defer rows.Close()

	return collectEvents(rows, limit)
}

// ListEventsBetween lists audit events within a time window.
func (s *Store) ListEventsBetween(ctx context.Context, from, to time.Time) ([]SignalEvent, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listEventsBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list events between: %w", queryErr)
	}
	defer rows.Close()

	return collectEvents(rows, 0)
}

// CountEventsByOutcome aggregates events since a cutoff, keyed by outcome.
func (s *Store) CountEventsByOutcome(ctx context.Context, since time.Time) (map[string]int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, countEventsByOutcomeSQL, since)
	if queryErr != nil {
		return nil, fmt.Errorf("count events by outcome: %w", queryErr)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var outcome string
		var count int64
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, err
		}
		counts[outcome] = count
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return counts, nil
}

// DeleteEventsBefore prunes historical audit events.
func (s *Store) DeleteEventsBefore(ctx context.Context, olderThan time.Time) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	cmdTag, execErr := pool.Exec(ctx, deleteEventsBeforeSQL, olderThan)
	if execErr != nil {
		return 0, fmt.Errorf("delete events before: %w", execErr)
	}
	return cmdTag.RowsAffected(), nil
}

func collectEvents(rows pgx.Rows, sizeHint int) ([]SignalEvent, error) {
	events := make([]SignalEvent, 0, sizeHint)
	for rows.Next() {
		var (
			event    SignalEvent
			side     string
			priceStr string
		)
		if err := rows.Scan(
			&event.ID,
			&event.Symbol,
			&event.Strategy,
			&side,
			&priceStr,
			&event.Outcome,
			&event.Reason,
			&event.Origin,
			&event.CreatedAt,
		); err != nil {
			return nil, err
		}
		event.Side = throttle.Side(side)

		price, convErr := decimal.NewFromString(priceStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse event price: %w", convErr)
		}
		event.Price = price

		events = append(events, event)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return events, nil
}

func scanSnapshot(row pgx.Row) (throttle.Snapshot, error) {
	var (
		symbol      string
		strategy    string
		side        string
		priceStr    sql.NullString
		lastTS      sql.NullTime
		fingerprint string
		forceNext   bool
		updatedAt   time.Time
	)

	if err := row.Scan(
		&symbol,
		&strategy,
		&side,
		&priceStr,
		&lastTS,
		&fingerprint,
		&forceNext,
		&updatedAt,
	); err != nil {
		return throttle.Snapshot{}, err
	}

	snap := throttle.Snapshot{
		Key:         throttle.Key{Symbol: symbol, Strategy: strategy, Side: throttle.Side(side)},
		Fingerprint: fingerprint,
		ForceNext:   forceNext,
		UpdatedAt:   updatedAt,
	}

	if priceStr.Valid {
		price, err := decimal.NewFromString(priceStr.String)
		if err != nil {
			return throttle.Snapshot{}, fmt.Errorf("parse snapshot price: %w", err)
		}
		snap.LastPrice = price
	}
	if lastTS.Valid {
		snap.LastAt = lastTS.Time
	}

	return snap, nil
}

var _ throttle.SnapshotStore = (*Store)(nil)
var _ EventStore = (*Store)(nil)

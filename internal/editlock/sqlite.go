package editlock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jun/gophdocs/backend/internal/model"
)

// SQLiteStore keeps edit locks in the doc_locks table created by storage.Migrate.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLiteStore on an opened database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Get(ctx context.Context, docID string) (*model.DocumentLock, error) {
	var (
		holder   sql.NullString
		acquired int64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT holder_id, acquired_at_ms FROM doc_locks WHERE doc_id = ?;
`, docID).Scan(&holder, &acquired)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select edit lock: %w", err)
	}
	return &model.DocumentLock{
		DocID:      docID,
		HolderID:   holder.String,
		AcquiredAt: acquired,
	}, nil
}

// Claim upserts the row in one statement; the DO UPDATE only fires when the
// existing row is claimable, so a zero row count means another holder is active.
func (s *SQLiteStore) Claim(ctx context.Context, docID, actorID string, now time.Time, window time.Duration) (*model.DocumentLock, bool, error) {
	nowMs := now.UnixMilli()
	cutoffMs := now.Add(-window).UnixMilli()

	// The row may disappear between a rejected upsert and the read-back.
	for attempt := 0; attempt < 3; attempt++ {
		res, err := s.db.ExecContext(ctx, `
INSERT INTO doc_locks(doc_id, holder_id, acquired_at_ms) VALUES(?, ?, ?)
ON CONFLICT(doc_id) DO UPDATE SET
  holder_id = excluded.holder_id,
  acquired_at_ms = excluded.acquired_at_ms
WHERE doc_locks.holder_id IS NULL
   OR doc_locks.holder_id = ''
   OR doc_locks.holder_id = excluded.holder_id
   OR doc_locks.acquired_at_ms <= ?;
`, docID, actorID, nowMs, cutoffMs)
		if err != nil {
			return nil, false, fmt.Errorf("upsert edit lock: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return nil, false, fmt.Errorf("upsert edit lock: %w", err)
		}
		if affected == 1 {
			return &model.DocumentLock{DocID: docID, HolderID: actorID, AcquiredAt: nowMs}, true, nil
		}

		current, err := s.Get(ctx, docID)
		if err != nil {
			return nil, false, err
		}
		if current != nil {
			return current, false, nil
		}
	}
	return nil, false, fmt.Errorf("upsert edit lock: row for %q kept changing", docID)
}

func (s *SQLiteStore) Release(ctx context.Context, docID, actorID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM doc_locks WHERE doc_id = ? AND holder_id = ?;`, docID, actorID)
	if err != nil {
		return false, fmt.Errorf("delete edit lock: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected == 1, nil
}

func (s *SQLiteStore) Clear(ctx context.Context, docID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM doc_locks WHERE doc_id = ?;`, docID); err != nil {
		return fmt.Errorf("clear edit lock: %w", err)
	}
	return nil
}

func (s *SQLiteStore) PurgeStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM doc_locks WHERE acquired_at_ms <= ?;`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("purge stale edit locks: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) CountActive(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM doc_locks
WHERE holder_id IS NOT NULL AND holder_id != '' AND acquired_at_ms > ?;
`, cutoff.UnixMilli()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count edit locks: %w", err)
	}
	return n, nil
}

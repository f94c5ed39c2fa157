package editlock

import (
	"context"
	"time"

	"github.com/jun/gophdocs/backend/internal/model"
)

// Store persists one edit lock per document.
// Implementations must make Claim and Release single atomic conditional
// operations; the service never reads then writes.
type Store interface {
	// Get returns the stored lock for a document, or nil if none exists.
	// Stale locks are returned as stored; staleness is decided by the caller.
	Get(ctx context.Context, docID string) (*model.DocumentLock, error)

	// Claim sets holder=actorID and acquired_at=now if the stored lock is
	// absent, holderless, held by actorID, or acquired at or before
	// now-window. When another holder's lock is still active it returns that
	// lock and claimed=false without modifying it.
	Claim(ctx context.Context, docID, actorID string, now time.Time, window time.Duration) (lock *model.DocumentLock, claimed bool, err error)

	// Release deletes the lock only if it is held by actorID.
	Release(ctx context.Context, docID, actorID string) (bool, error)

	// Clear deletes the lock unconditionally.
	Clear(ctx context.Context, docID string) error
}

// Purger is implemented by stores without native expiry.
type Purger interface {
	// PurgeStale deletes locks acquired at or before cutoff.
	PurgeStale(ctx context.Context, cutoff time.Time) (int64, error)

	// CountActive counts held locks acquired after cutoff.
	CountActive(ctx context.Context, cutoff time.Time) (int64, error)
}

// claimable reports whether a stored lock may be taken over by actorID.
func claimable(existing *model.DocumentLock, actorID string, cutoff time.Time) bool {
	if existing == nil || existing.HolderID == "" || existing.HolderID == actorID {
		return true
	}
	return existing.AcquiredAt <= cutoff.UnixMilli()
}

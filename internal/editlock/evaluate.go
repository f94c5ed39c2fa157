package editlock

import (
	"time"

	"github.com/jun/gophdocs/backend/internal/model"
)

// Evaluate decides what actorID sees for a stored lock at time now.
// A lock is active while now - acquired_at < window. A holderless record
// never grants exclusivity; lastEditorID is passed through for display.
func Evaluate(docID string, lock *model.DocumentLock, actorID, lastEditorID string, now time.Time, window time.Duration) model.LockStatus {
	status := model.LockStatus{DocID: docID, State: model.LockFree}
	if lock == nil {
		return status
	}

	acquired := lock.AcquiredTime()
	if now.Sub(acquired) >= window {
		return status
	}

	if lock.HolderID == "" {
		status.LastEditorID = lastEditorID
		return status
	}

	status.HolderID = lock.HolderID
	status.AcquiredAt = acquired
	status.ExpiresAt = acquired.Add(window)
	if lock.HolderID == actorID {
		status.State = model.LockHeldBySelf
	} else {
		status.State = model.LockHeldByOther
	}
	return status
}

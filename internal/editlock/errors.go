package editlock

import (
	"errors"
	"fmt"
	"time"
)

// ErrConflict is returned when a heartbeat or release is attempted on a lock
// actively held by someone else.
var ErrConflict = errors.New("edit lock held by another user")

// ConflictError names the holder that caused ErrConflict.
type ConflictError struct {
	DocID      string
	HolderID   string
	AcquiredAt time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("doc %s: %v (holder=%s)", e.DocID, ErrConflict, e.HolderID)
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

package model

import "time"

// LockState is the outcome of evaluating a document's edit lock for one actor.
type LockState string

const (
	LockFree        LockState = "free"
	LockHeldBySelf  LockState = "held_by_self"
	LockHeldByOther LockState = "held_by_other"
)

// DocumentLock represents the edit lock record stored for a document.
type DocumentLock struct {
	DocID      string `json:"doc_id" dynamodbav:"doc_id"`
	HolderID   string `json:"holder_id,omitempty" dynamodbav:"holder_id,omitempty"`
	AcquiredAt int64  `json:"acquired_at" dynamodbav:"acquired_at"` // Unix milliseconds of the last heartbeat
	ExpiresAt  int64  `json:"-" dynamodbav:"expires_at,omitempty"`  // TTL (Unix seconds), DynamoDB only
}

// AcquiredTime returns AcquiredAt as a time.Time.
func (l DocumentLock) AcquiredTime() time.Time {
	return time.UnixMilli(l.AcquiredAt)
}

// LockStatus is what a viewer learns about a document's edit lock.
type LockStatus struct {
	DocID        string    `json:"doc_id"`
	State        LockState `json:"state"`
	HolderID     string    `json:"holder_id,omitempty"`
	LastEditorID string    `json:"last_editor_id,omitempty"` // display only, never used for exclusivity
	AcquiredAt   time.Time `json:"acquired_at,omitzero"`
	ExpiresAt    time.Time `json:"expires_at,omitzero"`
}

// Document is the subset of a collaborative document the lock service needs.
type Document struct {
	ID           string `json:"id" dynamodbav:"doc_id"`
	Title        string `json:"title" dynamodbav:"title"`
	Slug         string `json:"slug,omitempty" dynamodbav:"slug,omitempty"`
	LastEditorID string `json:"last_editor_id,omitempty" dynamodbav:"last_editor_id,omitempty"`
}

// UserProfile is a directory entry used to display lock holders.
type UserProfile struct {
	UserID      string `json:"user_id" dynamodbav:"user_id"`
	DisplayName string `json:"display_name" dynamodbav:"display_name"`
}

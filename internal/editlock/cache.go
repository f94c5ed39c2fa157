package editlock

import (
	"context"

	"github.com/jun/gophdocs/backend/internal/model"
)

// RequestCache memoizes lock evaluations for one request and one actor.
// It must not outlive the request and is not safe for concurrent use.
type RequestCache struct {
	svc      *Service
	actorID  string
	statuses map[string]model.LockStatus
}

// NewRequestCache returns an empty cache bound to actorID.
func (s *Service) NewRequestCache(actorID string) *RequestCache {
	return &RequestCache{
		svc:      s,
		actorID:  actorID,
		statuses: make(map[string]model.LockStatus),
	}
}

// ActorID returns the actor the cache evaluates for.
func (c *RequestCache) ActorID() string {
	return c.actorID
}

// Status returns the lock status of docID, evaluating it at most once per request.
func (c *RequestCache) Status(ctx context.Context, docID string) (model.LockStatus, error) {
	if status, ok := c.statuses[docID]; ok {
		return status, nil
	}
	status, err := c.svc.Evaluate(ctx, docID, c.actorID)
	if err != nil {
		return model.LockStatus{}, err
	}
	c.statuses[docID] = status
	return status, nil
}

// Heartbeat renews the actor's lock and caches the resulting status.
func (c *RequestCache) Heartbeat(ctx context.Context, docID string) (model.LockStatus, error) {
	status, err := c.svc.Heartbeat(ctx, docID, c.actorID)
	if status.DocID != "" {
		c.statuses[docID] = status
	} else {
		delete(c.statuses, docID)
	}
	return status, err
}

// Release drops the actor's lock and invalidates the cached status.
func (c *RequestCache) Release(ctx context.Context, docID string) (bool, error) {
	delete(c.statuses, docID)
	return c.svc.Release(ctx, docID, c.actorID)
}

// ForceRelease clears the lock and invalidates the cached status.
func (c *RequestCache) ForceRelease(ctx context.Context, docID string) (string, error) {
	delete(c.statuses, docID)
	return c.svc.ForceRelease(ctx, docID, c.actorID)
}

// Package editlock implements advisory, time-boxed edit locks on documents.
//
// A lock records who last heartbeated a document and when. It is active while
// the last heartbeat is younger than the lock window; after that any editor
// may claim it. Stores perform claims and releases as single conditional
// operations so two editors cannot both win a race for the same document.
package editlock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jun/gophdocs/backend/internal/document"
	"github.com/jun/gophdocs/backend/internal/model"
	"github.com/jun/gophdocs/backend/internal/obs"
)

const (
	// DefaultHeartbeatInterval is how often an editing client is expected to heartbeat.
	DefaultHeartbeatInterval = 60 * time.Second

	// DefaultWindow is the lock window used when none is configured.
	DefaultWindow = 2 * DefaultHeartbeatInterval
)

// Service evaluates, renews and releases document edit locks.
type Service struct {
	store   Store
	docs    document.Store
	window  time.Duration
	now     func() time.Time
	logger  *slog.Logger
	metrics *obs.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *obs.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a Service. A non-positive window falls back to DefaultWindow.
func NewService(store Store, docs document.Store, window time.Duration, opts ...Option) *Service {
	if window <= 0 {
		window = DefaultWindow
	}
	s := &Service{
		store:  store,
		docs:   docs,
		window: window,
		now:    time.Now,
		logger: obs.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Window returns the configured lock window.
func (s *Service) Window() time.Duration {
	return s.window
}

// Evaluate reports whether docID is free, held by actorID or held by someone else.
// It returns document.ErrNotFound for unknown documents.
func (s *Service) Evaluate(ctx context.Context, docID, actorID string) (model.LockStatus, error) {
	start := time.Now()
	defer s.observe("evaluate", start)

	doc, err := s.docs.GetDocument(ctx, docID)
	if err != nil {
		return model.LockStatus{}, err
	}

	lock, err := s.store.Get(ctx, docID)
	if err != nil {
		s.logger.ErrorContext(ctx, "edit lock evaluate failed", "doc", docID, "actor", actorID, "error", err)
		return model.LockStatus{}, err
	}

	status := Evaluate(docID, lock, actorID, doc.LastEditorID, s.now(), s.window)
	if s.metrics != nil {
		s.metrics.EvaluateTotal.WithLabelValues(string(status.State)).Inc()
	}
	return status, nil
}

// Heartbeat claims or refreshes the lock on docID for actorID.
// If another actor holds an active lock the stored lock is left untouched and
// a *ConflictError is returned together with the HeldByOther status.
func (s *Service) Heartbeat(ctx context.Context, docID, actorID string) (status model.LockStatus, err error) {
	if docID == "" || actorID == "" {
		return model.LockStatus{}, fmt.Errorf("doc_id and actor_id required")
	}

	start := time.Now()
	result := "claimed"
	defer func() {
		s.record(ctx, "heartbeat", docID, actorID, result, start, err)
	}()

	doc, err := s.docs.GetDocument(ctx, docID)
	if err != nil {
		result = "error"
		if errors.Is(err, document.ErrNotFound) {
			result = "not_found"
		}
		return model.LockStatus{}, err
	}

	now := s.now()
	lock, claimed, err := s.store.Claim(ctx, docID, actorID, now, s.window)
	if err != nil {
		result = "error"
		return model.LockStatus{}, err
	}
	if lock == nil {
		result = "error"
		err = fmt.Errorf("doc %s: claim rejected but no current lock returned", docID)
		return model.LockStatus{}, err
	}

	status = Evaluate(docID, lock, actorID, doc.LastEditorID, now, s.window)
	if !claimed {
		result = "conflict"
		return status, &ConflictError{
			DocID:      docID,
			HolderID:   lock.HolderID,
			AcquiredAt: lock.AcquiredTime(),
		}
	}
	return status, nil
}

// Release drops actorID's lock on docID. Releasing a missing or stale lock is
// a no-op; releasing someone else's active lock is a no-op that also returns
// a *ConflictError.
func (s *Service) Release(ctx context.Context, docID, actorID string) (released bool, err error) {
	if docID == "" || actorID == "" {
		return false, fmt.Errorf("doc_id and actor_id required")
	}

	start := time.Now()
	result := "released"
	defer func() {
		s.record(ctx, "release", docID, actorID, result, start, err)
	}()

	released, err = s.store.Release(ctx, docID, actorID)
	if err != nil {
		result = "error"
		return false, err
	}
	if released {
		return true, nil
	}

	current, err := s.store.Get(ctx, docID)
	if err != nil {
		result = "error"
		return false, err
	}

	status := Evaluate(docID, current, actorID, "", s.now(), s.window)
	if status.State == model.LockHeldByOther {
		result = "conflict"
		return false, &ConflictError{
			DocID:      docID,
			HolderID:   status.HolderID,
			AcquiredAt: status.AcquiredAt,
		}
	}
	result = "noop"
	return false, nil
}

// ForceRelease clears the lock on docID whoever holds it and returns the
// displaced holder, if any. Callers must have authorized actorID first.
func (s *Service) ForceRelease(ctx context.Context, docID, actorID string) (displaced string, err error) {
	start := time.Now()
	defer s.observe("force_release", start)

	if _, err := s.docs.GetDocument(ctx, docID); err != nil {
		return "", err
	}

	current, err := s.store.Get(ctx, docID)
	if err != nil {
		return "", err
	}
	if current != nil {
		status := Evaluate(docID, current, actorID, "", s.now(), s.window)
		displaced = status.HolderID
	}

	if err := s.store.Clear(ctx, docID); err != nil {
		s.logger.ErrorContext(ctx, "edit lock force release failed", "doc", docID, "actor", actorID, "error", err)
		return "", err
	}

	if s.metrics != nil {
		s.metrics.ForceReleaseTotal.Inc()
	}
	s.logger.InfoContext(ctx, "edit lock force released",
		"op", "force_release",
		"doc", docID,
		"actor", actorID,
		"displaced", displaced,
	)
	return displaced, nil
}

func (s *Service) observe(op string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.OpLatencyMS.WithLabelValues(op).Observe(float64(time.Since(start).Milliseconds()))
}

func (s *Service) record(ctx context.Context, op, docID, actorID, result string, start time.Time, err error) {
	s.observe(op, start)
	if s.metrics != nil {
		switch op {
		case "heartbeat":
			s.metrics.HeartbeatTotal.WithLabelValues(result).Inc()
		case "release":
			s.metrics.ReleaseTotal.WithLabelValues(result).Inc()
		}
	}

	attrs := []any{
		"op", op,
		"doc", docID,
		"actor", actorID,
		"result", result,
		"latency_ms", time.Since(start).Milliseconds(),
	}
	if result == "error" {
		s.logger.ErrorContext(ctx, "edit lock operation failed", append(attrs, "error", err)...)
		return
	}
	s.logger.InfoContext(ctx, "edit lock operation", attrs...)
}

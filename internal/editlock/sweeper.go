package editlock

import (
	"context"
	"log/slog"
	"time"

	"github.com/jun/gophdocs/backend/internal/obs"
)

// Sweeper periodically deletes stale locks from stores without native expiry
// and publishes the number of active locks.
type Sweeper struct {
	store    Purger
	window   time.Duration
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger
	metrics  *obs.Metrics
}

// NewSweeper creates a Sweeper. A non-positive interval defaults to half the window.
func NewSweeper(store Purger, window, interval time.Duration, logger *slog.Logger, metrics *obs.Metrics) *Sweeper {
	if window <= 0 {
		window = DefaultWindow
	}
	if interval <= 0 {
		interval = window / 2
	}
	if logger == nil {
		logger = obs.NopLogger()
	}
	return &Sweeper{
		store:    store,
		window:   window,
		interval: interval,
		now:      time.Now,
		logger:   logger,
		metrics:  metrics,
	}
}

// Run sweeps immediately and then every interval until ctx is cancelled.
func (m *Sweeper) Run(ctx context.Context) {
	t := time.NewTicker(m.interval)
	defer t.Stop()

	m.SweepOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single purge and count.
func (m *Sweeper) SweepOnce(ctx context.Context) {
	start := time.Now()
	cutoff := m.now().Add(-m.window)

	active, countErr := m.store.CountActive(ctx, cutoff)
	if countErr == nil && m.metrics != nil {
		m.metrics.LocksActive.Set(float64(active))
	}

	purged, purgeErr := m.store.PurgeStale(ctx, cutoff)
	if purgeErr == nil && purged > 0 && m.metrics != nil {
		m.metrics.ExpiredTotal.Add(float64(purged))
	}

	if purged == 0 && countErr == nil && purgeErr == nil {
		return
	}
	attrs := []any{
		"op", "expire_sweep",
		"active", active,
		"purged", purged,
		"latency_ms", time.Since(start).Milliseconds(),
	}
	if countErr != nil {
		attrs = append(attrs, "count_err", countErr.Error())
	}
	if purgeErr != nil {
		attrs = append(attrs, "purge_err", purgeErr.Error())
		m.logger.ErrorContext(ctx, "edit lock sweep", attrs...)
		return
	}
	m.logger.InfoContext(ctx, "edit lock sweep", attrs...)
}

package editlock

import (
	"context"
	"sync"
	"time"

	"github.com/jun/gophdocs/backend/internal/model"
)

// MemoryStore implements Store using an in-memory map.
// Used for tests and single-process dev servers.
type MemoryStore struct {
	locks map[string]model.DocumentLock
	mu    sync.Mutex
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		locks: make(map[string]model.DocumentLock),
	}
}

func (m *MemoryStore) Get(ctx context.Context, docID string) (*model.DocumentLock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.locks[docID]
	if !ok {
		return nil, nil
	}
	return &existing, nil
}

func (m *MemoryStore) Claim(ctx context.Context, docID, actorID string, now time.Time, window time.Duration) (*model.DocumentLock, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.locks[docID]; ok {
		if !claimable(&existing, actorID, now.Add(-window)) {
			return &existing, false, nil
		}
	}

	lock := model.DocumentLock{
		DocID:      docID,
		HolderID:   actorID,
		AcquiredAt: now.UnixMilli(),
	}
	m.locks[docID] = lock
	return &lock, true, nil
}

func (m *MemoryStore) Release(ctx context.Context, docID, actorID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.locks[docID]
	if !ok || existing.HolderID != actorID {
		return false, nil
	}

	delete(m.locks, docID)
	return true, nil
}

func (m *MemoryStore) Clear(ctx context.Context, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.locks, docID)
	return nil
}

// Put stores a lock record as-is. Intended for seeding tests and fixtures.
func (m *MemoryStore) Put(lock model.DocumentLock) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.locks[lock.DocID] = lock
}

func (m *MemoryStore) PurgeStale(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var purged int64
	for id, lock := range m.locks {
		if lock.AcquiredAt <= cutoff.UnixMilli() {
			delete(m.locks, id)
			purged++
		}
	}
	return purged, nil
}

func (m *MemoryStore) CountActive(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var active int64
	for _, lock := range m.locks {
		if lock.HolderID != "" && lock.AcquiredAt > cutoff.UnixMilli() {
			active++
		}
	}
	return active, nil
}

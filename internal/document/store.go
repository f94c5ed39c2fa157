// Package document looks up the documents that edit locks refer to.
package document

import (
	"context"
	"errors"
	"sync"

	"github.com/jun/gophdocs/backend/internal/model"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("document not found")

// Store retrieves documents by ID.
type Store interface {
	// GetDocument returns the document or ErrNotFound.
	GetDocument(ctx context.Context, docID string) (*model.Document, error)
}

// MemoryStore implements Store with an in-memory map.
type MemoryStore struct {
	docs map[string]model.Document
	mu   sync.RWMutex
}

// NewMemoryStore creates a MemoryStore holding docs.
func NewMemoryStore(docs ...model.Document) *MemoryStore {
	m := &MemoryStore{docs: make(map[string]model.Document, len(docs))}
	for _, d := range docs {
		m.docs[d.ID] = d
	}
	return m
}

func (m *MemoryStore) GetDocument(ctx context.Context, docID string) (*model.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.docs[docID]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

// Put adds or replaces a document.
func (m *MemoryStore) Put(doc model.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.ID] = doc
}

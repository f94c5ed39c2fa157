// Package identity resolves actor IDs to human-readable display names.
package identity

import (
	"context"
	"errors"
	"sync"
)

// ErrUnknownActor is returned when a directory has no entry for an actor.
var ErrUnknownActor = errors.New("unknown actor")

// Directory looks up display names.
type Directory interface {
	DisplayName(ctx context.Context, actorID string) (string, error)
}

// StaticDirectory is a fixed actor -> name map, used in dev mode and tests.
type StaticDirectory struct {
	mu    sync.RWMutex
	names map[string]string
}

// NewStaticDirectory creates a StaticDirectory holding names.
func NewStaticDirectory(names map[string]string) *StaticDirectory {
	d := &StaticDirectory{names: make(map[string]string, len(names))}
	for id, name := range names {
		d.names[id] = name
	}
	return d
}

func (d *StaticDirectory) DisplayName(_ context.Context, actorID string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	name, ok := d.names[actorID]
	if !ok || name == "" {
		return "", ErrUnknownActor
	}
	return name, nil
}

// Set adds or replaces a name.
func (d *StaticDirectory) Set(actorID, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.names[actorID] = name
}

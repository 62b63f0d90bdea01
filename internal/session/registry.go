package session

import (
	"sync"

	"docuchat/internal/model"
)

// Registry tracks which documents each user currently has "on their desk".
// State is deliberately process-local: a restart clears every desk while the
// documents and history tables stay durable. Callers inject the registry
// instead of reaching for package-level state so per-user behavior stays
// testable.
type Registry struct {
	mu    sync.RWMutex
	desks map[int64][]model.Document
}

func NewRegistry() *Registry {
	return &Registry{desks: make(map[int64][]model.Document)}
}

// Attach adds a document to the user's desk and returns the resulting desk
// size. Attaching a document that is already present (same content hash) is
// a no-op; order of first attachment is preserved.
func (r *Registry) Attach(userID int64, doc model.Document) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	desk := r.desks[userID]
	for _, existing := range desk {
		if existing.ContentHash == doc.ContentHash {
			return len(desk)
		}
	}
	desk = append(desk, doc)
	r.desks[userID] = desk
	return len(desk)
}

// ActiveDocuments returns a copy of the user's desk in attachment order.
// Users without a session get an empty slice.
func (r *Registry) ActiveDocuments(userID int64) []model.Document {
	r.mu.RLock()
	defer r.mu.RUnlock()

	desk := r.desks[userID]
	out := make([]model.Document, len(desk))
	copy(out, desk)
	return out
}

// Clear drops the user's desk and reports whether one existed.
func (r *Registry) Clear(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.desks[userID]
	delete(r.desks, userID)
	return ok
}

package view

import (
	"errors"
	"sort"
	"sync"
)

// ErrViewNotFound is returned when a view does not exist.
var ErrViewNotFound = errors.New("view not found")

// Repository defines read access to view records.
// List methods return views ordered by viewed_at descending; the aggregation
// pipeline relies on this order and never re-sorts.
type Repository interface {
	// GetByID retrieves a single view.
	GetByID(id string) (*View, error)

	// ListByDocument retrieves all views of a document, archived included,
	// ordered by viewed_at descending.
	ListByDocument(documentID string) ([]*View, error)

	// ListByLink retrieves all views recorded through a link,
	// ordered by viewed_at descending.
	ListByLink(linkID string) ([]*View, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu    sync.RWMutex
	views map[string]*View
}

// NewInMemoryRepository creates a new in-memory view repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{views: make(map[string]*View)}
}

// Insert adds a view record.
func (r *InMemoryRepository) Insert(v *View) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	vCopy := *v
	r.views[v.ID] = &vCopy
	return nil
}

// GetByID retrieves a single view.
func (r *InMemoryRepository) GetByID(id string) (*View, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.views[id]
	if !ok {
		return nil, ErrViewNotFound
	}

	vCopy := *v
	return &vCopy, nil
}

// ListByDocument retrieves all views of a document, ordered by viewed_at descending.
func (r *InMemoryRepository) ListByDocument(documentID string) ([]*View, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*View
	for _, v := range r.views {
		if v.DocumentID == documentID {
			vCopy := *v
			result = append(result, &vCopy)
		}
	}

	sortByViewedAtDesc(result)
	return result, nil
}

// ListByLink retrieves all views recorded through a link, ordered by viewed_at descending.
func (r *InMemoryRepository) ListByLink(linkID string) ([]*View, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*View
	for _, v := range r.views {
		if v.LinkID != nil && *v.LinkID == linkID {
			vCopy := *v
			result = append(result, &vCopy)
		}
	}

	sortByViewedAtDesc(result)
	return result, nil
}

func sortByViewedAtDesc(views []*View) {
	sort.Slice(views, func(i, j int) bool {
		return views[i].ViewedAt.After(views[j].ViewedAt)
	})
}

package document

import (
	"errors"
	"sort"
	"sync"
)

var (
	// ErrDocumentNotFound is returned when a document does not exist.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrLinkNotFound is returned when a link does not exist.
	ErrLinkNotFound = errors.New("link not found")
)

// Repository defines read access to documents and their version history.
type Repository interface {
	// GetByID retrieves a document by ID.
	GetByID(id string) (*Document, error)

	// GetByTeam retrieves a document by ID scoped to a team.
	// Returns ErrDocumentNotFound if the document exists under a different team.
	GetByTeam(id, teamID string) (*Document, error)

	// ListVersions retrieves all versions of a document, ordered by created_at descending.
	ListVersions(documentID string) ([]*Version, error)
}

// LinkRepository defines read access to shareable links.
type LinkRepository interface {
	// GetByID retrieves a link by ID, including soft-deleted links.
	GetByID(id string) (*Link, error)
}

// InMemoryRepository is an in-memory implementation of Repository and LinkRepository.
// Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu        sync.RWMutex
	documents map[string]*Document
	versions  map[string][]*Version // document_id -> versions
	links     map[string]*Link
}

// NewInMemoryRepository creates a new in-memory document repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		documents: make(map[string]*Document),
		versions:  make(map[string][]*Version),
		links:     make(map[string]*Link),
	}
}

// Insert adds a document.
func (r *InMemoryRepository) Insert(doc *Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	docCopy := *doc
	r.documents[doc.ID] = &docCopy
	return nil
}

// InsertVersion adds a version to a document's history.
func (r *InMemoryRepository) InsertVersion(v *Version) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	vCopy := *v
	r.versions[v.DocumentID] = append(r.versions[v.DocumentID], &vCopy)
	return nil
}

// InsertLink adds a shareable link.
func (r *InMemoryRepository) InsertLink(l *Link) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	lCopy := *l
	r.links[l.ID] = &lCopy
	return nil
}

// GetByID retrieves a document by ID.
func (r *InMemoryRepository) GetByID(id string) (*Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.documents[id]
	if !ok {
		return nil, ErrDocumentNotFound
	}

	docCopy := *doc
	return &docCopy, nil
}

// GetByTeam retrieves a document by ID scoped to a team.
func (r *InMemoryRepository) GetByTeam(id, teamID string) (*Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.documents[id]
	if !ok || doc.TeamID != teamID {
		return nil, ErrDocumentNotFound
	}

	docCopy := *doc
	return &docCopy, nil
}

// ListVersions retrieves all versions of a document, ordered by created_at descending.
func (r *InMemoryRepository) ListVersions(documentID string) ([]*Version, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions := r.versions[documentID]
	result := make([]*Version, len(versions))
	for i, v := range versions {
		vCopy := *v
		result[i] = &vCopy
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

// GetLink retrieves a link by ID.
func (r *InMemoryRepository) GetLink(id string) (*Link, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.links[id]
	if !ok {
		return nil, ErrLinkNotFound
	}

	lCopy := *l
	return &lCopy, nil
}

// linkView adapts InMemoryRepository to the LinkRepository interface.
type linkView struct{ repo *InMemoryRepository }

// Links returns a LinkRepository view over the in-memory repository.
func (r *InMemoryRepository) Links() LinkRepository {
	return linkView{repo: r}
}

func (v linkView) GetByID(id string) (*Link, error) {
	return v.repo.GetLink(id)
}

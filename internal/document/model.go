// Package document provides document, version, and link models and repositories.
package document

import "time"

// Document type constants for the types this engine distinguishes.
const (
	TypePDF    = "pdf"
	TypeSheet  = "sheet"
	TypeVideo  = "video"
	TypeNotion = "notion"
)

// Document represents a shared document owned by a team.
type Document struct {
	ID        string    `json:"id"`
	TeamID    string    `json:"team_id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"` // "pdf", "sheet", "video", ...
	NumPages  *int      `json:"num_pages,omitempty"`
	File      string    `json:"file,omitempty"` // storage key of the uploaded file
	CreatedAt time.Time `json:"created_at"`
}

// IsVideo reports whether view engagement for this document is measured in
// watched seconds rather than per-page durations.
func (d *Document) IsVideo() bool {
	return d.Type == TypeVideo
}

// Version represents one revision of a document's content.
// Versions for a document form a total order by CreatedAt.
type Version struct {
	ID            string    `json:"id"`
	DocumentID    string    `json:"document_id"`
	VersionNumber int       `json:"version_number"` // monotonic per document
	CreatedAt     time.Time `json:"created_at"`
	NumPages      *int      `json:"num_pages,omitempty"` // paged documents only
	Type          *string   `json:"type,omitempty"`
	Length        *int      `json:"length,omitempty"` // video length in seconds
	IsPrimary     bool      `json:"is_primary"`
	File          string    `json:"file,omitempty"`
}

// Link represents a shareable link through which a document is viewed.
type Link struct {
	ID         string     `json:"id"`
	DocumentID string     `json:"document_id"`
	Name       *string    `json:"name,omitempty"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
}

// Deleted reports whether the link has been soft-deleted.
func (l *Link) Deleted() bool {
	return l.DeletedAt != nil
}

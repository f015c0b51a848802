// Package view provides the view (visitor session) model and repositories.
package view

import "time"

// View represents one recorded visit of a document through a shareable link.
// Views are created by the viewing flow and are read-only to the analytics engine.
type View struct {
	ID          string    `json:"id"`
	DocumentID  string    `json:"document_id"`
	LinkID      *string   `json:"link_id,omitempty"`
	LinkName    *string   `json:"link_name,omitempty"`
	ViewerEmail *string   `json:"viewer_email,omitempty"`
	ViewedAt    time.Time `json:"viewed_at"`
	IsArchived  bool      `json:"is_archived"`
}

package view

import (
	"database/sql"
	"fmt"
)

// PostgresRepository implements Repository using PostgreSQL.
// Views are joined with their link so rows carry the link name.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const viewColumns = `
	v.id, v.document_id, v.link_id, l.name, v.viewer_email, v.viewed_at, v.is_archived
`

// GetByID retrieves a single view.
func (r *PostgresRepository) GetByID(id string) (*View, error) {
	query := `
		SELECT ` + viewColumns + `
		FROM views v
		LEFT JOIN links l ON l.id = v.link_id
		WHERE v.id = $1
	`

	v, err := scanView(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, ErrViewNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get view: %w", err)
	}

	return v, nil
}

// ListByDocument retrieves all views of a document, ordered by viewed_at descending.
func (r *PostgresRepository) ListByDocument(documentID string) ([]*View, error) {
	query := `
		SELECT ` + viewColumns + `
		FROM views v
		LEFT JOIN links l ON l.id = v.link_id
		WHERE v.document_id = $1
		ORDER BY v.viewed_at DESC
	`

	return r.list(query, documentID)
}

// ListByLink retrieves all views recorded through a link, ordered by viewed_at descending.
func (r *PostgresRepository) ListByLink(linkID string) ([]*View, error) {
	query := `
		SELECT ` + viewColumns + `
		FROM views v
		LEFT JOIN links l ON l.id = v.link_id
		WHERE v.link_id = $1
		ORDER BY v.viewed_at DESC
	`

	return r.list(query, linkID)
}

func (r *PostgresRepository) list(query string, arg any) ([]*View, error) {
	rows, err := r.db.Query(query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list views: %w", err)
	}
	defer rows.Close()

	var views []*View
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan view: %w", err)
		}
		views = append(views, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate views: %w", err)
	}

	return views, nil
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanView(s scanner) (*View, error) {
	v := &View{}
	var linkID, linkName, viewerEmail sql.NullString

	if err := s.Scan(&v.ID, &v.DocumentID, &linkID, &linkName, &viewerEmail, &v.ViewedAt, &v.IsArchived); err != nil {
		return nil, err
	}

	if linkID.Valid {
		id := linkID.String
		v.LinkID = &id
	}
	if linkName.Valid {
		n := linkName.String
		v.LinkName = &n
	}
	if viewerEmail.Valid {
		e := viewerEmail.String
		v.ViewerEmail = &e
	}

	return v, nil
}

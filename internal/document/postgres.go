package document

import (
	"database/sql"
	"fmt"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID retrieves a document by ID.
func (r *PostgresRepository) GetByID(id string) (*Document, error) {
	query := `
		SELECT id, team_id, owner_id, name, type, num_pages, file, created_at
		FROM documents
		WHERE id = $1
	`

	return r.scanDocument(r.db.QueryRow(query, id))
}

// GetByTeam retrieves a document by ID scoped to a team.
func (r *PostgresRepository) GetByTeam(id, teamID string) (*Document, error) {
	query := `
		SELECT id, team_id, owner_id, name, type, num_pages, file, created_at
		FROM documents
		WHERE id = $1 AND team_id = $2
	`

	return r.scanDocument(r.db.QueryRow(query, id, teamID))
}

func (r *PostgresRepository) scanDocument(row *sql.Row) (*Document, error) {
	doc := &Document{}
	var numPages sql.NullInt64
	var file sql.NullString

	err := row.Scan(&doc.ID, &doc.TeamID, &doc.OwnerID, &doc.Name, &doc.Type, &numPages, &file, &doc.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	if numPages.Valid {
		n := int(numPages.Int64)
		doc.NumPages = &n
	}
	if file.Valid {
		doc.File = file.String
	}

	return doc, nil
}

// ListVersions retrieves all versions of a document, ordered by created_at descending.
func (r *PostgresRepository) ListVersions(documentID string) ([]*Version, error) {
	query := `
		SELECT id, document_id, version_number, created_at, num_pages, type, length, is_primary, file
		FROM document_versions
		WHERE document_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(query, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	var versions []*Version
	for rows.Next() {
		v := &Version{}
		var numPages, length sql.NullInt64
		var vType, file sql.NullString

		if err := rows.Scan(&v.ID, &v.DocumentID, &v.VersionNumber, &v.CreatedAt, &numPages, &vType, &length, &v.IsPrimary, &file); err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}

		if numPages.Valid {
			n := int(numPages.Int64)
			v.NumPages = &n
		}
		if vType.Valid {
			t := vType.String
			v.Type = &t
		}
		if length.Valid {
			l := int(length.Int64)
			v.Length = &l
		}
		if file.Valid {
			v.File = file.String
		}

		versions = append(versions, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate versions: %w", err)
	}

	return versions, nil
}

// PostgresLinkRepository implements LinkRepository using PostgreSQL.
type PostgresLinkRepository struct {
	db *sql.DB
}

// NewPostgresLinkRepository creates a new PostgresLinkRepository.
func NewPostgresLinkRepository(db *sql.DB) *PostgresLinkRepository {
	return &PostgresLinkRepository{db: db}
}

// GetByID retrieves a link by ID, including soft-deleted links.
func (r *PostgresLinkRepository) GetByID(id string) (*Link, error) {
	query := `
		SELECT id, document_id, name, deleted_at
		FROM links
		WHERE id = $1
	`

	l := &Link{}
	var name sql.NullString
	var deletedAt sql.NullTime

	err := r.db.QueryRow(query, id).Scan(&l.ID, &l.DocumentID, &name, &deletedAt)
	if err == sql.ErrNoRows {
		return nil, ErrLinkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	if name.Valid {
		n := name.String
		l.Name = &n
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		l.DeletedAt = &t
	}

	return l, nil
}

package team

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

// GetByID retrieves a team by ID.
func (r *PostgresRepository) GetByID(id string) (*Team, error) {
	query := `
		SELECT id, name, plan, stripe_customer_id
		FROM teams
		WHERE id = $1
	`

	return r.scanTeam(r.db.QueryRow(query, id))
}

// GetByStripeCustomer retrieves a team by its Stripe customer ID.
func (r *PostgresRepository) GetByStripeCustomer(customerID string) (*Team, error) {
	query := `
		SELECT id, name, plan, stripe_customer_id
		FROM teams
		WHERE stripe_customer_id = $1
	`

	return r.scanTeam(r.db.QueryRow(query, customerID))
}

func (r *PostgresRepository) scanTeam(row *sql.Row) (*Team, error) {
	t := &Team{}
	var stripeCustomerID sql.NullString

	err := row.Scan(&t.ID, &t.Name, &t.Plan, &stripeCustomerID)
	if err == sql.ErrNoRows {
		return nil, ErrTeamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team: %w", err)
	}

	if stripeCustomerID.Valid {
		t.StripeCustomerID = stripeCustomerID.String
	}

	return t, nil
}

// GetMember retrieves a user's membership in a team.
func (r *PostgresRepository) GetMember(teamID, userID string) (*Member, error) {
	query := `
		SELECT user_id, team_id, email, status, blocked_at
		FROM team_members
		WHERE team_id = $1 AND user_id = $2
	`

	m := &Member{}
	var email sql.NullString
	var blockedAt sql.NullTime

	err := r.db.QueryRow(query, teamID, userID).Scan(&m.UserID, &m.TeamID, &email, &m.Status, &blockedAt)
	if err == sql.ErrNoRows {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team member: %w", err)
	}

	if email.Valid {
		e := email.String
		m.Email = &e
	}
	if blockedAt.Valid {
		t := blockedAt.Time
		m.BlockedAt = &t
	}

	return m, nil
}

// ListActiveMemberEmails retrieves the emails of all active, unblocked members.
func (r *PostgresRepository) ListActiveMemberEmails(teamID string) ([]string, error) {
	query := `
		SELECT email
		FROM team_members
		WHERE team_id = $1 AND status = $2 AND blocked_at IS NULL AND email IS NOT NULL
	`

	rows, err := r.db.Query(query, teamID, StatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list member emails: %w", err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("failed to scan member email: %w", err)
		}
		if email != "" {
			emails = append(emails, email)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate member emails: %w", err)
	}

	return emails, nil
}

// UpdatePlan sets a team's subscription plan.
func (r *PostgresRepository) UpdatePlan(teamID, plan string) error {
	query := `
		UPDATE teams
		SET plan = $2
		WHERE id = $1
	`

	result, err := r.db.Exec(query, teamID, plan)
	if err != nil {
		return fmt.Errorf("failed to update team plan: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check plan update: %w", err)
	}
	if affected == 0 {
		return ErrTeamNotFound
	}

	return nil
}

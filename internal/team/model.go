// Package team provides team and membership models and repositories.
package team

import "time"

// Membership status constants.
const (
	StatusActive  = "active"
	StatusInvited = "invited"
	StatusBlocked = "blocked"
)

// Team represents a workspace owning documents and links.
// Plan is the raw subscription plan string (e.g. "free", "pro", "business",
// "pro+drtrial"); normalization happens in the plan package.
type Team struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Plan             string `json:"plan"`
	StripeCustomerID string `json:"stripe_customer_id,omitempty"`
}

// Member represents a user's membership in a team.
type Member struct {
	UserID    string     `json:"user_id"`
	TeamID    string     `json:"team_id"`
	Email     *string    `json:"email,omitempty"`
	Status    string     `json:"status"`
	BlockedAt *time.Time `json:"blocked_at,omitempty"`
}

// Active reports whether the member currently has access to the team.
func (m *Member) Active() bool {
	return m.Status == StatusActive && m.BlockedAt == nil
}

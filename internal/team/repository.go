package team

import (
	"errors"
	"sync"
)

var (
	// ErrTeamNotFound is returned when a team does not exist.
	ErrTeamNotFound = errors.New("team not found")

	// ErrMemberNotFound is returned when a user is not a member of a team.
	ErrMemberNotFound = errors.New("team member not found")
)

// Repository defines access to teams and their membership.
type Repository interface {
	// GetByID retrieves a team by ID.
	GetByID(id string) (*Team, error)

	// GetByStripeCustomer retrieves a team by its Stripe customer ID.
	GetByStripeCustomer(customerID string) (*Team, error)

	// GetMember retrieves a user's membership in a team.
	GetMember(teamID, userID string) (*Member, error)

	// ListActiveMemberEmails retrieves the emails of all active, unblocked
	// members of a team. Members without an email are omitted.
	ListActiveMemberEmails(teamID string) ([]string, error)

	// UpdatePlan sets a team's subscription plan.
	UpdatePlan(teamID, plan string) error
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu      sync.RWMutex
	teams   map[string]*Team
	members map[string][]*Member // team_id -> members
}

// NewInMemoryRepository creates a new in-memory team repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		teams:   make(map[string]*Team),
		members: make(map[string][]*Member),
	}
}

// Insert adds a team.
func (r *InMemoryRepository) Insert(t *Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tCopy := *t
	r.teams[t.ID] = &tCopy
	return nil
}

// InsertMember adds a membership record.
func (r *InMemoryRepository) InsertMember(m *Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	mCopy := *m
	if m.Email != nil {
		email := *m.Email
		mCopy.Email = &email
	}
	r.members[m.TeamID] = append(r.members[m.TeamID], &mCopy)
	return nil
}

// GetByID retrieves a team by ID.
func (r *InMemoryRepository) GetByID(id string) (*Team, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.teams[id]
	if !ok {
		return nil, ErrTeamNotFound
	}

	tCopy := *t
	return &tCopy, nil
}

// GetByStripeCustomer retrieves a team by its Stripe customer ID.
func (r *InMemoryRepository) GetByStripeCustomer(customerID string) (*Team, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, t := range r.teams {
		if t.StripeCustomerID != "" && t.StripeCustomerID == customerID {
			tCopy := *t
			return &tCopy, nil
		}
	}

	return nil, ErrTeamNotFound
}

// GetMember retrieves a user's membership in a team.
func (r *InMemoryRepository) GetMember(teamID, userID string) (*Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.members[teamID] {
		if m.UserID == userID {
			mCopy := *m
			return &mCopy, nil
		}
	}

	return nil, ErrMemberNotFound
}

// ListActiveMemberEmails retrieves the emails of all active, unblocked members.
func (r *InMemoryRepository) ListActiveMemberEmails(teamID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var emails []string
	for _, m := range r.members[teamID] {
		if m.Active() && m.Email != nil && *m.Email != "" {
			emails = append(emails, *m.Email)
		}
	}

	return emails, nil
}

// UpdatePlan sets a team's subscription plan.
func (r *InMemoryRepository) UpdatePlan(teamID, plan string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.teams[teamID]
	if !ok {
		return ErrTeamNotFound
	}

	t.Plan = plan
	return nil
}

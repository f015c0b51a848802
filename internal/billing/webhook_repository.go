// Package billing maps Stripe subscription state onto team plans and tracks
// processed webhook events for idempotency.
package billing

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrEventAlreadyProcessed is returned when attempting to process a duplicate webhook event.
var ErrEventAlreadyProcessed = errors.New("webhook event already processed")

// WebhookEvent represents a processed webhook event for idempotency tracking.
type WebhookEvent struct {
	ID          string
	EventID     string // Stripe event ID
	EventType   string // Stripe event type
	ProcessedAt time.Time
}

// WebhookRepository defines methods for webhook event tracking.
type WebhookRepository interface {
	// RecordEvent records a webhook event as processed.
	// Idempotent: calling with the same event_id again returns
	// ErrEventAlreadyProcessed.
	RecordEvent(eventID, eventType string) error

	// HasProcessed checks if an event has already been processed.
	HasProcessed(eventID string) (bool, error)
}

// InMemoryWebhookRepository implements WebhookRepository with in-memory storage.
type InMemoryWebhookRepository struct {
	mu     sync.RWMutex
	events map[string]*WebhookEvent // event_id -> WebhookEvent
}

// NewInMemoryWebhookRepository creates a new in-memory webhook repository.
func NewInMemoryWebhookRepository() *InMemoryWebhookRepository {
	return &InMemoryWebhookRepository{
		events: make(map[string]*WebhookEvent),
	}
}

// RecordEvent records a webhook event as processed.
func (r *InMemoryWebhookRepository) RecordEvent(eventID, eventType string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.events[eventID]; exists {
		return ErrEventAlreadyProcessed
	}

	r.events[eventID] = &WebhookEvent{
		ID:          uuid.New().String(),
		EventID:     eventID,
		EventType:   eventType,
		ProcessedAt: time.Now(),
	}
	return nil
}

// HasProcessed checks if an event has already been processed.
func (r *InMemoryWebhookRepository) HasProcessed(eventID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.events[eventID]
	return exists, nil
}

// PostgresWebhookRepository implements WebhookRepository backed by Postgres.
// Duplicate detection rides on the unique constraint over event_id.
type PostgresWebhookRepository struct {
	db *sql.DB
}

// NewPostgresWebhookRepository creates a Postgres-backed webhook repository.
func NewPostgresWebhookRepository(db *sql.DB) *PostgresWebhookRepository {
	return &PostgresWebhookRepository{db: db}
}

// RecordEvent records a webhook event as processed.
func (r *PostgresWebhookRepository) RecordEvent(eventID, eventType string) error {
	res, err := r.db.Exec(`
		INSERT INTO webhook_events (id, event_id, event_type, processed_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (event_id) DO NOTHING`,
		uuid.New().String(), eventID, eventType,
	)
	if err != nil {
		return fmt.Errorf("failed to record webhook event: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check webhook event insert: %w", err)
	}
	if rows == 0 {
		return ErrEventAlreadyProcessed
	}
	return nil
}

// HasProcessed checks if an event has already been processed.
func (r *PostgresWebhookRepository) HasProcessed(eventID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(
		`SELECT EXISTS(SELECT 1 FROM webhook_events WHERE event_id = $1)`,
		eventID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check webhook event: %w", err)
	}
	return exists, nil
}

package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront-orders/internal/core/database"
	"storefront-orders/internal/features/payments/domain"

	"github.com/jackc/pgx/v5"
)

const (
	processedExistsQuery = `SELECT EXISTS (SELECT 1 FROM processed_events WHERE event_id = $1)`

	insertProcessedQuery = `
		INSERT INTO processed_events (event_id, event_type, payment_reference)
		VALUES ($1, $2, $3)
		ON CONFLICT (event_id) DO NOTHING
`
	insertPendingQuery = `
		INSERT INTO pending_reconciliations (event_id, event_type, payment_reference, payload, last_error)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id) DO NOTHING
`
	selectPendingColumns = `
		SELECT event_id, event_type, payment_reference, payload, attempts, last_error, created_at, next_attempt_at
		FROM pending_reconciliations
`
	pendingByReferenceQuery = selectPendingColumns + `
		WHERE payment_reference = $1
		ORDER BY created_at
`
	duePendingQuery = selectPendingColumns + `
		WHERE next_attempt_at <= $1 AND attempts < $2
		ORDER BY next_attempt_at
		LIMIT $3
`
	deletePendingQuery     = `DELETE FROM pending_reconciliations WHERE event_id = $1`
	reschedulePendingQuery = `
		UPDATE pending_reconciliations
		SET attempts = attempts + 1, next_attempt_at = $2, last_error = $3
		WHERE event_id = $1
`
)

// PostgresEventStore implements ports.EventStore on processed_events and pending_reconciliations.
type PostgresEventStore struct {
	db *database.DB
}

// NewPostgresEventStore creates a new PostgresEventStore.
func NewPostgresEventStore(db *database.DB) *PostgresEventStore {
	return &PostgresEventStore{db: db}
}

func (s *PostgresEventStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	if err := s.db.Conn(ctx).QueryRow(ctx, processedExistsQuery, eventID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check processed event %s: %w", eventID, err)
	}
	return exists, nil
}

// MarkProcessed records the event. It does not abort the surrounding transaction on a repeat.
func (s *PostgresEventStore) MarkProcessed(ctx context.Context, event domain.Event) error {
	tag, err := s.db.Conn(ctx).Exec(ctx, insertProcessedQuery, event.ID, event.Type, event.PaymentReference)
	if err != nil {
		return fmt.Errorf("failed to record processed event %s: %w", event.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEventAlreadyProcessed
	}
	return nil
}

// Park stores the event for a later replay. Parking the same event twice is a no-op.
func (s *PostgresEventStore) Park(ctx context.Context, event domain.Event, reason string) error {
	payload := event.Payload
	if !json.Valid(payload) {
		payload = []byte("{}")
	}
	_, err := s.db.Conn(ctx).Exec(ctx, insertPendingQuery, event.ID, event.Type, event.PaymentReference, payload, reason)
	if err != nil {
		return fmt.Errorf("failed to park event %s: %w", event.ID, err)
	}
	return nil
}

func (s *PostgresEventStore) ParkedForReference(ctx context.Context, paymentReference string) ([]domain.PendingEvent, error) {
	rows, err := s.db.Conn(ctx).Query(ctx, pendingByReferenceQuery, paymentReference)
	if err != nil {
		return nil, fmt.Errorf("failed to load parked events: %w", err)
	}
	return collectPending(rows)
}

func (s *PostgresEventStore) DueParked(ctx context.Context, now time.Time, maxAttempts, limit int) ([]domain.PendingEvent, error) {
	rows, err := s.db.Conn(ctx).Query(ctx, duePendingQuery, now, maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load due parked events: %w", err)
	}
	return collectPending(rows)
}

func (s *PostgresEventStore) Resolve(ctx context.Context, eventID string) error {
	if _, err := s.db.Conn(ctx).Exec(ctx, deletePendingQuery, eventID); err != nil {
		return fmt.Errorf("failed to resolve parked event %s: %w", eventID, err)
	}
	return nil
}

func (s *PostgresEventStore) Reschedule(ctx context.Context, eventID string, next time.Time, lastErr string) error {
	if _, err := s.db.Conn(ctx).Exec(ctx, reschedulePendingQuery, eventID, next, lastErr); err != nil {
		return fmt.Errorf("failed to reschedule parked event %s: %w", eventID, err)
	}
	return nil
}

func collectPending(rows pgx.Rows) ([]domain.PendingEvent, error) {
	defer rows.Close()

	var events []domain.PendingEvent
	for rows.Next() {
		var p domain.PendingEvent
		if err := rows.Scan(&p.ID, &p.Type, &p.PaymentReference, &p.Payload, &p.Attempts, &p.LastError, &p.CreatedAt, &p.NextAttemptAt); err != nil {
			return nil, fmt.Errorf("failed to scan parked event: %w", err)
		}
		p.Kind = domain.KindForType(p.Type)
		events = append(events, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate parked events: %w", err)
	}
	return events, nil
}

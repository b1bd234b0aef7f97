package store

import (
	"context"
	"fmt"

	"food-order-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// InsertOutboxEvent queues an event in the same transaction as the order writes
func (t *Tx) InsertOutboxEvent(ctx context.Context, event *models.OutboxEvent) error {
	return insertOutboxEvent(ctx, t.tx, event)
}

func insertOutboxEvent(ctx context.Context, q sqlx.QueryerContext, event *models.OutboxEvent) error {
	if event.Status == "" {
		event.Status = models.OutboxStatusPending
	}
	err := q.QueryRowxContext(ctx, `
		INSERT INTO outbox_events (event_id, aggregate_id, event_type, payload, status)
		VALUES ($1, $2, $3, $4::jsonb, $5)
		RETURNING id, created_at`,
		event.EventID, event.AggregateID, event.EventType, event.Payload, event.Status,
	).Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to queue %s event: %w", event.EventType, err)
	}
	return nil
}

// RelayOutbox locks up to limit pending events, hands each to publish and
// records the outcome. Rows locked by another relay are skipped.
func (s *Store) RelayOutbox(ctx context.Context, limit int, publish func(models.OutboxEvent) error) (published, failed int, err error) {
	err = s.WithTx(ctx, func(tx *Tx) error {
		var events []models.OutboxEvent
		if err := tx.tx.SelectContext(ctx, &events, `
			SELECT id, event_id, aggregate_id, event_type, payload, status, attempts,
				last_error, created_at, published_at
			FROM outbox_events
			WHERE status = $1
			ORDER BY id
			LIMIT $2
			FOR UPDATE SKIP LOCKED`, models.OutboxStatusPending, limit); err != nil {
			return fmt.Errorf("failed to claim outbox events: %w", err)
		}

		for _, event := range events {
			if perr := publish(event); perr != nil {
				failed++
				if _, err := tx.tx.ExecContext(ctx, `
					UPDATE outbox_events SET attempts = attempts + 1, last_error = $1
					WHERE id = $2`, perr.Error(), event.ID); err != nil {
					return err
				}
				continue
			}
			published++
			if _, err := tx.tx.ExecContext(ctx, `
				UPDATE outbox_events
				SET status = $1, attempts = attempts + 1, last_error = NULL, published_at = NOW()
				WHERE id = $2`, models.OutboxStatusPublished, event.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return published, failed, nil
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}

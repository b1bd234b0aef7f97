package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"food-order-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Settle applies a settlement to the primary order, propagates it to every
// sibling still in a source state and, when the primary moved, queues event.
// Nothing is written unless the primary row was in a legal source state.
func (s *Store) Settle(ctx context.Context, st models.Settlement, event *models.OutboxEvent) (models.SettleResult, error) {
	var result models.SettleResult
	if err := st.Validate(); err != nil {
		return result, err
	}
	from := statusArray(models.SourcesFor(st.Status))

	err := s.WithTx(ctx, func(tx *Tx) error {
		res, err := tx.tx.ExecContext(ctx, `
			UPDATE orders
			SET payment_status = $1,
				payment_method = COALESCE(NULLIF($2, ''), payment_method),
				payment_transaction_id = COALESCE(NULLIF($3, ''), payment_transaction_id),
				payment_response = COALESCE($4::jsonb, payment_response),
				payment_error = NULLIF($5, ''),
				paid_at = $6,
				updated_at = NOW()
			WHERE id = $7 AND payment_status = ANY($8)`,
			st.Status, st.Method, st.TransactionID, nullString(st.PaymentResponse),
			st.PaymentError, st.PaidAt, st.OrderID, from)
		if err != nil {
			return fmt.Errorf("failed to settle order %d: %w", st.OrderID, err)
		}
		if result.Primary, err = res.RowsAffected(); err != nil {
			return err
		}
		if result.Primary == 0 {
			return nil
		}

		if result.Siblings, err = propagateGroup(ctx, tx.tx, st, st.OrderID); err != nil {
			return err
		}

		if event != nil {
			return insertOutboxEvent(ctx, tx.tx, event)
		}
		return nil
	})
	if err != nil {
		return models.SettleResult{}, err
	}
	return result, nil
}

// PropagateGroup moves every order of the group that is still in a source
// state. It returns the number of orders moved.
func (s *Store) PropagateGroup(ctx context.Context, st models.Settlement) (int64, error) {
	if err := st.Validate(); err != nil {
		return 0, err
	}
	return propagateGroup(ctx, s.db, st, 0)
}

// ListStalePendingGroups returns groups holding an enrollment that was never
// answered by the bank before cutoff.
func (s *Store) ListStalePendingGroups(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	var groups []string
	err := s.db.SelectContext(ctx, &groups, `
		SELECT DISTINCT group_id FROM orders
		WHERE payment_status = $1
			AND verify_enrollment_request_id IS NOT NULL
			AND updated_at < $2
		LIMIT $3`, models.PaymentStatusPending, cutoff, limit)
	return groups, err
}

// ExpireStaleGroup fails the Pending orders of an abandoned group. The group
// is left alone when any of its orders holds an enrollment newer than cutoff.
func (s *Store) ExpireStaleGroup(ctx context.Context, groupID string, cutoff time.Time, reason string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET payment_status = $1,
			payment_error = $2,
			updated_at = NOW()
		WHERE group_id = $3 AND payment_status = $4
			AND NOT EXISTS (
				SELECT 1 FROM orders fresh
				WHERE fresh.group_id = $3
					AND fresh.payment_status = $4
					AND fresh.verify_enrollment_request_id IS NOT NULL
					AND fresh.updated_at >= $5
			)`,
		models.PaymentStatusFailed, reason, groupID, models.PaymentStatusPending, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to expire group %s: %w", groupID, err)
	}
	return res.RowsAffected()
}

func propagateGroup(ctx context.Context, exec sqlx.ExecerContext, st models.Settlement, excludeID int64) (int64, error) {
	res, err := exec.ExecContext(ctx, `
		UPDATE orders
		SET payment_status = $1,
			payment_method = COALESCE(NULLIF($2, ''), payment_method),
			payment_transaction_id = COALESCE(NULLIF($3, ''), payment_transaction_id),
			payment_error = NULLIF($4, ''),
			paid_at = $5,
			updated_at = NOW()
		WHERE group_id = $6 AND id <> $7 AND payment_status = ANY($8)`,
		st.Status, st.Method, st.TransactionID, st.PaymentError, st.PaidAt,
		st.GroupID, excludeID, statusArray(models.PropagationSourcesFor(st.Status)))
	if err != nil {
		return 0, fmt.Errorf("failed to propagate to group %s: %w", st.GroupID, err)
	}
	return res.RowsAffected()
}

func statusArray(statuses []models.PaymentStatus) pq.StringArray {
	out := make(pq.StringArray, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/subrelay/subscription-relay/internal/domain"
)

const subscriptionColumns = "id, notification_url, event_type, created_at, is_active"

func (s *PostgresStore) CreateSubscription(ctx context.Context, req domain.CreateSubscriptionRequest) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := s.pool.QueryRow(ctx, `
		INSERT INTO subscriptions (notification_url, event_type)
		VALUES ($1, $2)
		RETURNING `+subscriptionColumns,
		req.NotificationURL, req.EventType,
	).Scan(&sub.ID, &sub.NotificationURL, &sub.EventType, &sub.CreatedAt, &sub.IsActive)
	if err != nil {
		return nil, fmt.Errorf("inserting subscription: %w", err)
	}
	return &sub, nil
}

// GetSubscription returns nil without an error when the id is unknown.
func (s *PostgresStore) GetSubscription(ctx context.Context, id int64) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := s.pool.QueryRow(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions WHERE id = $1
	`, id).Scan(&sub.ID, &sub.NotificationURL, &sub.EventType, &sub.CreatedAt, &sub.IsActive)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("querying subscription: %w", err)
	}
	return &sub, nil
}

func (s *PostgresStore) ListSubscriptions(ctx context.Context) ([]domain.Subscription, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []domain.Subscription
	for rows.Next() {
		var sub domain.Subscription
		err := rows.Scan(&sub.ID, &sub.NotificationURL, &sub.EventType, &sub.CreatedAt, &sub.IsActive)
		if err != nil {
			return nil, fmt.Errorf("scanning subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading subscriptions: %w", err)
	}

	if subs == nil {
		subs = []domain.Subscription{}
	}

	return subs, nil
}

// UpdateSubscription applies only the fields set in req. Returns nil
// without an error when the id is unknown.
func (s *PostgresStore) UpdateSubscription(ctx context.Context, id int64, req domain.UpdateSubscriptionRequest) (*domain.Subscription, error) {
	setClauses := []string{}
	args := []interface{}{}
	argIdx := 1

	if req.NotificationURL != nil {
		setClauses = append(setClauses, fmt.Sprintf("notification_url = $%d", argIdx))
		args = append(args, *req.NotificationURL)
		argIdx++
	}
	if req.EventTypeSet {
		// An explicit null clears the filter.
		setClauses = append(setClauses, fmt.Sprintf("event_type = $%d", argIdx))
		args = append(args, req.EventType)
		argIdx++
	}
	if req.IsActive != nil {
		setClauses = append(setClauses, fmt.Sprintf("is_active = $%d", argIdx))
		args = append(args, *req.IsActive)
		argIdx++
	}

	if len(setClauses) == 0 {
		return s.GetSubscription(ctx, id)
	}

	query := fmt.Sprintf(`
		UPDATE subscriptions SET %s
		WHERE id = $%d
		RETURNING `+subscriptionColumns,
		strings.Join(setClauses, ", "), argIdx)
	args = append(args, id)

	var sub domain.Subscription
	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&sub.ID, &sub.NotificationURL, &sub.EventType, &sub.CreatedAt, &sub.IsActive,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("updating subscription: %w", err)
	}

	return &sub, nil
}

// DeleteSubscription reports whether a row was removed.
func (s *PostgresStore) DeleteSubscription(ctx context.Context, id int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM subscriptions WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("deleting subscription: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

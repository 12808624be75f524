package repo

import (
	"context"
	"fmt"

	"github.com/shoply/fulfillment-service/internal/entities"

	sq "github.com/Masterminds/squirrel"
)

// EnqueueNotification appends an outbox row. Called inside the same
// transaction as the state write it announces, so a notification is never
// lost between commit and emission.
func (r *postgresRepo) EnqueueNotification(ctx context.Context, n entities.Notification) error {
	query, args := r.qb.Insert("notification_outbox").
		Columns("user_id", "type", "title", "message").
		Values(n.UserID, n.Type, n.Title, n.Message).
		MustSql()

	if _, err := r.execContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to enqueue notification: %w", err)
	}
	return nil
}

func (r *postgresRepo) UnsentNotifications(ctx context.Context, limit int) ([]entities.Notification, error) {
	query, args := r.qb.Select("id", "user_id", "type", "title", "message", "created_at", "sent_at").
		From("notification_outbox").
		Where(sq.Eq{"sent_at": nil}).
		OrderBy("id").
		Limit(uint64(limit)).
		MustSql()

	var rows []Notification
	if err := r.selectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select unsent notifications: %w", err)
	}

	result := make([]entities.Notification, 0, len(rows))
	for _, n := range rows {
		result = append(result, NotificationToEntity(n))
	}
	return result, nil
}

func (r *postgresRepo) MarkNotificationsSent(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	query, args := r.qb.Update("notification_outbox").
		Set("sent_at", sq.Expr("now()")).
		Where(sq.Eq{"id": ids}).
		MustSql()

	if _, err := r.execContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to mark notifications sent: %w", err)
	}
	return nil
}

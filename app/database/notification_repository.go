package database

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

var _ NotificationRepository = (*NotificationRepo)(nil)

type NotificationRepo struct {
	db *DB
}

func NewNotificationRepository(db *DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

func (r *NotificationRepo) CreateNotification(ctx context.Context, n Notification) (int64, error) {
	query, args, err := psql.Insert("notifications").
		Columns("event", "error_type", "detail", "notice", "triggered_ms", "notified").
		Values(n.Event, n.ErrorType, n.Detail, n.Notice, n.TriggeredMs, boolToInt(n.Notified)).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to create notification: %w", err)
	}
	return result.LastInsertId()
}

func (r *NotificationRepo) MarkNotified(ctx context.Context, id int64) error {
	query, args, err := psql.Update("notifications").Set("notified", 1).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to mark notification: %w", err)
	}
	return nil
}

func (r *NotificationRepo) ListNotifications(ctx context.Context, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = DefaultRecordLimit
	}

	query, args, err := psql.Select("id", "event", "error_type", "detail", "notice", "triggered_ms", "notified").
		From("notifications").
		OrderBy("id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []Notification
	for rows.Next() {
		var n Notification
		var notified int
		if err := rows.Scan(&n.ID, &n.Event, &n.ErrorType, &n.Detail, &n.Notice, &n.TriggeredMs, &notified); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Notified = notified != 0
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

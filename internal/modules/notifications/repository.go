// Package notifications stores user notifications and implements the
// pipeline's notification sink.
package notifications

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aristath/pulse/internal/domain"
)

// Repository handles notification persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a notification repository over notifications.db
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert stores a notification
func (r *Repository) Insert(ctx context.Context, n domain.Notification) error {
	var data sql.NullString
	if len(n.Data) > 0 {
		b, err := json.Marshal(n.Data)
		if err != nil {
			return fmt.Errorf("failed to encode notification data: %w", err)
		}
		data = sql.NullString{String: string(b), Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications (id, user_id, type, title, message, data, priority, read, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		n.ID, n.UserID, string(n.Type), n.Title, n.Message, data, string(n.Priority), n.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("%w: insert notification: %w", domain.ErrStore, err)
	}
	return nil
}

// ListByUser returns the user's most recent notifications, newest first
func (r *Repository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, type, title, message, data, priority, read, created_at
		 FROM notifications WHERE user_id = ?
		 ORDER BY created_at DESC, id
		 LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: query notifications: %w", domain.ErrStore, err)
	}
	defer rows.Close()

	var result []domain.Notification
	for rows.Next() {
		var (
			n         domain.Notification
			typ, prio string
			data      sql.NullString
			read      int
			createdAt int64
		)
		if err := rows.Scan(&n.ID, &n.UserID, &typ, &n.Title, &n.Message, &data, &prio, &read, &createdAt); err != nil {
			return nil, fmt.Errorf("%w: scan notification: %w", domain.ErrStore, err)
		}
		n.Type = domain.NotificationType(typ)
		n.Priority = domain.NotificationPriority(prio)
		n.Read = read == 1
		n.CreatedAt = time.UnixMilli(createdAt).UTC()
		if data.Valid {
			if err := json.Unmarshal([]byte(data.String), &n.Data); err != nil {
				return nil, fmt.Errorf("failed to decode notification data: %w", err)
			}
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate notifications: %w", domain.ErrStore, err)
	}

	return result, nil
}

// MarkRead flags a notification as read
func (r *Repository) MarkRead(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET read = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: mark notification read: %w", domain.ErrStore, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: notification %s", domain.ErrNotFound, id)
	}
	return nil
}

// CountUnread returns the number of unread notifications of a user
func (r *Repository) CountUnread(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND read = 0`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: count notifications: %w", domain.ErrStore, err)
	}
	return n, nil
}

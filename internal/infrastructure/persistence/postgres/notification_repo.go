package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/impact-hub/partner-portal/internal/domain/notification"
	"github.com/impact-hub/partner-portal/internal/domain/shared"
)

// NotificationRepository implements notification.Repository.
type NotificationRepository struct{ b binding }

func scanNotification(row pgx.Row) (*notification.Notification, error) {
	var (
		n    notification.Notification
		typ  string
		meta []byte
	)
	if err := row.Scan(&n.ID, &n.UserID, &typ, &n.Title, &n.Message, &n.IsRead, &meta, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.Type = notification.Type(typ)
	n.Metadata = map[string]any{}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &n.Metadata); err != nil {
			return nil, err
		}
	}
	return &n, nil
}

func (r *NotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	meta := n.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return shared.WrapError("notification", "Create", shared.ErrInvalidInput, "metadata is not serializable", err)
	}

	ctx, cancel := r.b.ctx(ctx)
	defer cancel()

	_, err = r.b.q.Exec(ctx, `
		INSERT INTO notifications (id, user_id, type, title, message, is_read, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8)
	`, n.ID, n.UserID, string(n.Type), n.Title, n.Message, n.IsRead, string(raw), n.CreatedAt)
	if IsForeignKeyViolation(err) {
		return shared.ErrUserNotFound
	}
	return classify("Notifications.Create", err, nil, nil)
}

func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*notification.Notification, error) {
	ctx, cancel := r.b.ctx(ctx)
	defer cancel()

	var limitArg *int
	if limit > 0 {
		limitArg = &limit
	}
	rows, err := r.b.q.Query(ctx, `
		SELECT id::text, user_id::text, type, title, message, is_read, metadata, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2
	`, userID, limitArg)
	if err != nil {
		return nil, classify("Notifications.ListByUser", err, nil, nil)
	}
	defer rows.Close()

	var out []*notification.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, classify("Notifications.ListByUser", err, nil, nil)
		}
		out = append(out, n)
	}
	return out, classify("Notifications.ListByUser", rows.Err(), nil, nil)
}

func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	ctx, cancel := r.b.ctx(ctx)
	defer cancel()

	var n int
	err := r.b.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read`, userID).Scan(&n)
	return n, classify("Notifications.CountUnread", err, nil, nil)
}

// MarkRead matches the row whether or not it is already read, so a repeat
// call still affects one row and stays a no-op for the caller.
func (r *NotificationRepository) MarkRead(ctx context.Context, userID, notificationID string) error {
	ctx, cancel := r.b.ctx(ctx)
	defer cancel()

	tag, err := r.b.q.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, notificationID, userID)
	if err != nil {
		return classify("Notifications.MarkRead", err, shared.ErrNotificationNotFound, nil)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotificationNotFound
	}
	return nil
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) (int, error) {
	ctx, cancel := r.b.ctx(ctx)
	defer cancel()

	tag, err := r.b.q.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND NOT is_read`, userID)
	if err != nil {
		return 0, classify("Notifications.MarkAllRead", err, nil, nil)
	}
	return int(tag.RowsAffected()), nil
}

func (r *NotificationRepository) ExistsForMonth(ctx context.Context, userID string, t notification.Type, month string) (bool, error) {
	ctx, cancel := r.b.ctx(ctx)
	defer cancel()

	var exists bool
	err := r.b.q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM notifications
			WHERE user_id = $1 AND type = $2 AND metadata->>'month' = $3
		)
	`, userID, string(t), month).Scan(&exists)
	return exists, classify("Notifications.ExistsForMonth", err, nil, nil)
}

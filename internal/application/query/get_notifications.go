package query

import (
	"context"
	"fmt"

	"github.com/impact-hub/partner-portal/internal/application/port"
	"github.com/impact-hub/partner-portal/internal/domain/notification"
	"github.com/impact-hub/partner-portal/internal/domain/recognition"
	"github.com/impact-hub/partner-portal/internal/domain/shared"
	"github.com/impact-hub/partner-portal/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// INBOX QUERY
// Последние уведомления пользователя и число непрочитанных.
// ══════════════════════════════════════════════════════════════════════════════

// InboxHandler обслуживает чтение уведомлений и наград.
type InboxHandler struct {
	store   port.Store
	retrier *retry.Retrier
}

// NewInboxHandler создаёт обработчик.
func NewInboxHandler(store port.Store) *InboxHandler {
	return &InboxHandler{store: store, retrier: newReadRetrier()}
}

// Inbox возвращает последние limit уведомлений (по умолчанию 50).
func (h *InboxHandler) Inbox(ctx context.Context, userID string, limit int) (*notification.Inbox, error) {
	if userID == "" {
		return nil, shared.Validation("notification", "Inbox", "user_id is required")
	}
	if limit <= 0 {
		limit = notification.DefaultInboxSize
	}
	if limit > shared.MaxPageSize {
		limit = shared.MaxPageSize
	}

	inbox, err := retry.Value(ctx, h.retrier, func(ctx context.Context) (*notification.Inbox, error) {
		repos := h.store.Repositories()
		items, err := repos.Notifications.ListByUser(ctx, userID, limit)
		if err != nil {
			return nil, err
		}
		unread, err := repos.Notifications.CountUnread(ctx, userID)
		if err != nil {
			return nil, err
		}
		return &notification.Inbox{Items: items, UnreadCount: unread}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("inbox: %w", err)
	}
	return inbox, nil
}

// Recognitions возвращает последние награды.
func (h *InboxHandler) Recognitions(ctx context.Context, limit int) ([]*recognition.Recognition, error) {
	if limit <= 0 || limit > shared.MaxPageSize {
		limit = 12
	}
	items, err := retry.Value(ctx, h.retrier, func(ctx context.Context) ([]*recognition.Recognition, error) {
		return h.store.Repositories().Recognitions.ListRecent(ctx, limit)
	})
	if err != nil {
		return nil, fmt.Errorf("recognitions: %w", err)
	}
	return items, nil
}

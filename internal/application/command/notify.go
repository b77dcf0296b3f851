// Package command contains write operations (CQRS - Commands).
// Commands with side effects are never retried automatically: a transient
// failure is returned to the caller, who decides whether to resubmit.
package command

import (
	"context"
	"fmt"
	"time"

	"github.com/impact-hub/partner-portal/internal/application/port"
	"github.com/impact-hub/partner-portal/internal/domain/notification"
	"github.com/impact-hub/partner-portal/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFY COMMAND
// Appends one unread notification for a user. Delivery is persistence only;
// clients poll the inbox.
// ══════════════════════════════════════════════════════════════════════════════

// NotifyCommand contains the notification to create.
type NotifyCommand struct {
	UserID   string
	Type     notification.Type
	Title    string
	Message  string
	Metadata map[string]any
}

// Validate validates the command.
func (c NotifyCommand) Validate() error {
	if c.UserID == "" {
		return shared.Validation("notification", "Notify", "user_id is required")
	}
	if !c.Type.IsValid() {
		return shared.Validation("notification", "Notify", fmt.Sprintf("invalid notification type: %s", c.Type))
	}
	return nil
}

// NotifyHandler handles the NotifyCommand.
type NotifyHandler struct {
	store port.Store
	newID port.IDGenerator
	now   shared.Clock
}

// NewNotifyHandler creates a new NotifyHandler.
func NewNotifyHandler(store port.Store, newID port.IDGenerator, now shared.Clock) *NotifyHandler {
	return &NotifyHandler{store: store, newID: newID, now: now}
}

// Handle creates the notification and returns it.
func (h *NotifyHandler) Handle(ctx context.Context, cmd NotifyCommand) (*notification.Notification, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("notify: %w", err)
	}

	content := notification.Content{
		Type:     cmd.Type,
		Title:    cmd.Title,
		Message:  cmd.Message,
		Metadata: cmd.Metadata,
	}
	n, err := notify(ctx, h.store.Repositories(), h.newID, cmd.UserID, content, h.now())
	if err != nil {
		return nil, fmt.Errorf("notify: %w", err)
	}
	return n, nil
}

// notify builds and persists one notification through repos.
// Used inside units of work so the notification commits with the change it reports.
func notify(
	ctx context.Context,
	repos port.Repositories,
	newID port.IDGenerator,
	userID string,
	content notification.Content,
	now time.Time,
) (*notification.Notification, error) {
	n, err := notification.New(content.Params(newID(), userID), now)
	if err != nil {
		return nil, err
	}
	if err := repos.Notifications.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("create %s notification: %w", content.Type, err)
	}
	return n, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MARK READ COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

// MarkReadCommand marks one notification of the caller as read.
type MarkReadCommand struct {
	UserID         string
	NotificationID string
}

// MarkAllReadCommand marks every unread notification of the caller as read.
type MarkAllReadCommand struct {
	UserID string
}

// MarkAllReadResult reports how many notifications changed state.
type MarkAllReadResult struct {
	Updated int `json:"updated"`
}

// MarkReadHandler handles both read-marking commands.
// Both are idempotent: repeating them leaves state unchanged and is not an error.
type MarkReadHandler struct {
	store port.Store
}

// NewMarkReadHandler creates a new MarkReadHandler.
func NewMarkReadHandler(store port.Store) *MarkReadHandler {
	return &MarkReadHandler{store: store}
}

// MarkRead marks a single notification as read.
func (h *MarkReadHandler) MarkRead(ctx context.Context, cmd MarkReadCommand) error {
	if cmd.UserID == "" || cmd.NotificationID == "" {
		return shared.Validation("notification", "MarkRead", "user_id and notification_id are required")
	}
	if err := h.store.Repositories().Notifications.MarkRead(ctx, cmd.UserID, cmd.NotificationID); err != nil {
		return fmt.Errorf("mark_read: %w", err)
	}
	return nil
}

// MarkAllRead marks all unread notifications of the user as read.
func (h *MarkReadHandler) MarkAllRead(ctx context.Context, cmd MarkAllReadCommand) (*MarkAllReadResult, error) {
	if cmd.UserID == "" {
		return nil, shared.Validation("notification", "MarkAllRead", "user_id is required")
	}
	n, err := h.store.Repositories().Notifications.MarkAllRead(ctx, cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("mark_all_read: %w", err)
	}
	return &MarkAllReadResult{Updated: n}, nil
}

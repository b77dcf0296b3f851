package notification

import "context"

// Repository определяет операции с уведомлениями.
type Repository interface {
	// Create сохраняет уведомление.
	Create(ctx context.Context, n *Notification) error

	// ListByUser возвращает последние limit уведомлений, новые первыми.
	ListByUser(ctx context.Context, userID string, limit int) ([]*Notification, error)

	// CountUnread возвращает число непрочитанных.
	CountUnread(ctx context.Context, userID string) (int, error)

	// MarkRead помечает уведомление владельца прочитанным.
	// Уже прочитанное - не ошибка. Чужое или несуществующее - ErrNotificationNotFound.
	MarkRead(ctx context.Context, userID, notificationID string) error

	// MarkAllRead помечает все непрочитанные и возвращает их количество.
	MarkAllRead(ctx context.Context, userID string) (int, error)

	// ExistsForMonth проверяет, получал ли пользователь уведомление типа t
	// с metadata.month = month.
	ExistsForMonth(ctx context.Context, userID string, t Type, month string) (bool, error)
}

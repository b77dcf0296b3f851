// Package notification содержит доменную модель уведомлений портала.
// Уведомление только сохраняется: доставка сводится к тому, что клиент
// читает список и помечает прочитанное.
package notification

import (
	"fmt"
	"strings"
	"time"

	"github.com/impact-hub/partner-portal/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION TYPE
// ══════════════════════════════════════════════════════════════════════════════

// Type определяет тип уведомления.
type Type string

const (
	// TypeApproval - взнос одобрен.
	// "✅ Your contribution of $350.00 was approved"
	TypeApproval Type = "approval"

	// TypeRejection - взнос отклонён, в тексте причина.
	TypeRejection Type = "rejection"

	// TypeContribution - администраторам: поступил новый взнос на проверку.
	TypeContribution Type = "contribution"

	// TypeReminder - напоминание о ежемесячном взносе.
	TypeReminder Type = "reminder"

	// TypeRankUpgrade - партнёр перешёл на новый уровень.
	TypeRankUpgrade Type = "rank_upgrade"

	// TypeRecognition - партнёр получил награду месяца.
	TypeRecognition Type = "recognition"
)

// IsValid проверяет, что тип уведомления корректен.
func (t Type) IsValid() bool {
	switch t {
	case TypeApproval, TypeRejection, TypeContribution,
		TypeReminder, TypeRankUpgrade, TypeRecognition:
		return true
	default:
		return false
	}
}

// Emoji возвращает эмодзи для заголовка.
func (t Type) Emoji() string {
	switch t {
	case TypeApproval:
		return "✅"
	case TypeRejection:
		return "❌"
	case TypeContribution:
		return "📥"
	case TypeReminder:
		return "⏰"
	case TypeRankUpgrade:
		return "🚀"
	case TypeRecognition:
		return "🏆"
	default:
		return "📬"
	}
}

// String возвращает строковое представление типа.
func (t Type) String() string {
	return string(t)
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: NOTIFICATION
// ══════════════════════════════════════════════════════════════════════════════

// Notification - одно уведомление пользователя.
// Меняется только владельцем (флаг прочтения), системой не удаляется.
type Notification struct {
	// ID - уникальный идентификатор.
	ID string `json:"id"`

	// UserID - получатель.
	UserID string `json:"user_id"`

	// Type - тип уведомления.
	Type Type `json:"type"`

	// Title - короткий заголовок.
	Title string `json:"title"`

	// Message - текст уведомления.
	Message string `json:"message"`

	// IsRead - прочитано ли уведомление.
	IsRead bool `json:"is_read"`

	// Metadata - произвольные данные (ID взноса, сумма, ранг).
	Metadata map[string]any `json:"metadata,omitempty"`

	// CreatedAt - время создания.
	CreatedAt time.Time `json:"created_at"`
}

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// NewParams содержит параметры для создания уведомления.
type NewParams struct {
	ID       string
	UserID   string
	Type     Type
	Title    string
	Message  string
	Metadata map[string]any
}

// New создаёт непрочитанное уведомление с валидацией.
func New(p NewParams, now time.Time) (*Notification, error) {
	if strings.TrimSpace(p.ID) == "" || strings.TrimSpace(p.UserID) == "" {
		return nil, shared.ErrInvalidNotification
	}
	if !p.Type.IsValid() {
		return nil, shared.WrapError("notification", "Validate", shared.ErrInvalidInput,
			"unknown notification type", fmt.Errorf("type %q", p.Type))
	}
	if strings.TrimSpace(p.Title) == "" || strings.TrimSpace(p.Message) == "" {
		return nil, shared.Validation("notification", "Validate", "title and message are required")
	}

	metadata := p.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	return &Notification{
		ID:        p.ID,
		UserID:    p.UserID,
		Type:      p.Type,
		Title:     p.Title,
		Message:   p.Message,
		IsRead:    false,
		Metadata:  metadata,
		CreatedAt: now,
	}, nil
}

// MarkRead помечает уведомление прочитанным. Повторный вызов ничего не меняет.
// Возвращает true, если состояние изменилось.
func (n *Notification) MarkRead() bool {
	if n.IsRead {
		return false
	}
	n.IsRead = true
	return true
}

// Inbox - страница уведомлений пользователя со счётчиком непрочитанных.
type Inbox struct {
	Items       []*Notification `json:"items"`
	UnreadCount int             `json:"unread_count"`
}

// DefaultInboxSize - сколько уведомлений отдаётся по умолчанию.
const DefaultInboxSize = 50

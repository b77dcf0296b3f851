// Package recognition описывает ежемесячные награды партнёров.
package recognition

import (
	"context"
	"time"

	"github.com/impact-hub/partner-portal/pkg/timeutil"
)

// Type - вид награды.
type Type string

const (
	// TypeTopContributor - партнёр с наибольшей суммой за месяц.
	TypeTopContributor Type = "top_contributor"
)

// Title возвращает отображаемое название награды.
func (t Type) Title() string {
	switch t {
	case TypeTopContributor:
		return "Top Contributor of the Month"
	default:
		return string(t)
	}
}

// Recognition - награда партнёру за месяц.
// Уникальна по (PartnerID, Type, Month).
type Recognition struct {
	ID          string    `json:"id"`
	PartnerID   string    `json:"partner_id"`
	PartnerName string    `json:"partner_name,omitempty"`
	Type        Type      `json:"type"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Month       string    `json:"month"` // YYYY-MM
	IsFeatured  bool      `json:"is_featured"`
	CreatedAt   time.Time `json:"created_at"`
}

// MonthKey форматирует месяц как YYYY-MM.
func MonthKey(t time.Time) string {
	return timeutil.MonthKey(t)
}

// Repository определяет операции с наградами.
type Repository interface {
	// Create сохраняет награду. Повтор по (partner, type, month) не создаёт
	// вторую запись и возвращает false.
	Create(ctx context.Context, r *Recognition) (bool, error)

	// ListRecent возвращает последние награды, новые первыми.
	ListRecent(ctx context.Context, limit int) ([]*Recognition, error)
}

package contribution

import (
	"context"

	"github.com/impact-hub/partner-portal/internal/domain/shared"
)

// Repository определяет операции с взносами.
// Удаления нет: взносы хранятся бессрочно.
type Repository interface {
	// Create сохраняет новый взнос в состоянии pending.
	Create(ctx context.Context, c *Contribution) error

	// GetByID возвращает взнос.
	// Возвращает ErrContributionNotFound, если взнос не найден.
	GetByID(ctx context.Context, id string) (*Contribution, error)

	// List возвращает взносы по фильтру.
	List(ctx context.Context, filter ListFilter) ([]*Contribution, error)

	// Stats возвращает агрегаты по взносам партнёра.
	Stats(ctx context.Context, partnerID string) (Stats, error)

	// ApplyReview записывает решение, только если взнос всё ещё pending
	// (compare-and-set по статусу). Если статус уже изменён другим
	// запросом, возвращает ErrContributionAlreadyProcessed.
	ApplyReview(ctx context.Context, review Review) error

	// ContributorsIn возвращает ID партнёров, у которых есть взнос
	// с датой внутри диапазона (любого статуса).
	ContributorsIn(ctx context.Context, period shared.TimeRange) (map[string]bool, error)
}

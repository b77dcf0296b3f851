package partner

import (
	"context"

	"github.com/impact-hub/partner-portal/internal/domain/rank"
	"github.com/impact-hub/partner-portal/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции с партнёрами.
type Repository interface {
	// Create создаёт партнёра.
	// Возвращает ErrPartnerAlreadyExists, если ID или email заняты.
	Create(ctx context.Context, p *Partner) error

	// GetByID возвращает партнёра.
	// Возвращает ErrPartnerNotFound, если партнёр не найден.
	GetByID(ctx context.Context, id string) (*Partner, error)

	// GetByIDs возвращает партнёров по списку ID (отсутствующие пропускаются).
	GetByIDs(ctx context.Context, ids []string) (map[string]*Partner, error)

	// List возвращает партнёров, упорядоченных по дате создания.
	List(ctx context.Context, page shared.Pagination) ([]*Partner, error)

	// UpdateProfile сохраняет поля профиля (имя, телефон, аватар).
	UpdateProfile(ctx context.Context, p *Partner) error

	// ApplyCredit атомарно увеличивает сумму взносов и impact score
	// относительно последнего сохранённого значения и пересчитывает ранг
	// по переданной таблице. Возвращает результат зачисления.
	ApplyCredit(ctx context.Context, id string, amount decimal.Decimal, points int64, table *rank.Table) (*Credit, error)
}

// ScoreHistoryRepository хранит историю impact score.
type ScoreHistoryRepository interface {
	// Record добавляет точку истории.
	Record(ctx context.Context, point ScorePoint) error

	// ListRecent возвращает последние limit точек в хронологическом порядке.
	ListRecent(ctx context.Context, partnerID string, limit int) ([]ScorePoint, error)
}

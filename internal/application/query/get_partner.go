package query

import (
	"context"
	"fmt"
	"time"

	"github.com/impact-hub/partner-portal/internal/application/port"
	"github.com/impact-hub/partner-portal/internal/domain/contribution"
	"github.com/impact-hub/partner-portal/internal/domain/identity"
	"github.com/impact-hub/partner-portal/internal/domain/leaderboard"
	"github.com/impact-hub/partner-portal/internal/domain/partner"
	"github.com/impact-hub/partner-portal/internal/domain/rank"
	"github.com/impact-hub/partner-portal/internal/domain/shared"
	"github.com/impact-hub/partner-portal/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PARTNER RANK QUERY
// Текущий уровень партнёра, следующий уровень и прогресс до него.
// ══════════════════════════════════════════════════════════════════════════════

// RankProgressDTO - прогресс партнёра по таблице уровней.
type RankProgressDTO struct {
	// Current - текущий уровень.
	Current rank.Rank `json:"current"`

	// Next - следующий уровень (nil на вершине).
	Next *rank.Rank `json:"next,omitempty"`

	// ImpactScore - текущие очки.
	ImpactScore int64 `json:"impact_score"`

	// ProgressPercent - 0..100, на вершине всегда 100.
	ProgressPercent float64 `json:"progress_percent"`

	// PointsToNext - сколько очков осталось до следующего уровня.
	PointsToNext int64 `json:"points_to_next"`
}

// NewRankProgress вычисляет прогресс по очкам.
func NewRankProgress(table *rank.Table, score int64) RankProgressDTO {
	dto := RankProgressDTO{
		Current:         table.RankForScore(score),
		ImpactScore:     score,
		ProgressPercent: table.ProgressToNext(score),
		PointsToNext:    table.PointsToNext(score),
	}
	if next, ok := table.NextRank(score); ok {
		dto.Next = &next
	}
	return dto
}

// PartnerHandler обслуживает запросы профиля и уровня партнёра.
type PartnerHandler struct {
	store   port.Store
	ranks   *rank.Table
	retrier *retry.Retrier
	now     shared.Clock
}

// NewPartnerHandler создаёт обработчик.
func NewPartnerHandler(store port.Store, ranks *rank.Table, now shared.Clock) *PartnerHandler {
	return &PartnerHandler{store: store, ranks: ranks, retrier: newReadRetrier(), now: now}
}

// Get возвращает профиль партнёра.
func (h *PartnerHandler) Get(ctx context.Context, p identity.Principal, partnerID string) (*partner.Partner, error) {
	if err := p.CanAccess(partnerID); err != nil {
		return nil, err
	}
	return retry.Value(ctx, h.retrier, func(ctx context.Context) (*partner.Partner, error) {
		return h.store.Repositories().Partners.GetByID(ctx, partnerID)
	})
}

// Rank возвращает прогресс партнёра по уровням.
func (h *PartnerHandler) Rank(ctx context.Context, p identity.Principal, partnerID string) (*RankProgressDTO, error) {
	pt, err := h.Get(ctx, p, partnerID)
	if err != nil {
		return nil, fmt.Errorf("get_partner_rank: %w", err)
	}
	progress := NewRankProgress(h.ranks, pt.ImpactScore)
	return &progress, nil
}

// Ranks возвращает таблицу уровней по возрастанию порога.
func (h *PartnerHandler) Ranks() []rank.Rank {
	return h.ranks.Ranks()
}

// ══════════════════════════════════════════════════════════════════════════════
// DASHBOARD QUERY
// Сводка для главной страницы партнёра.
// ══════════════════════════════════════════════════════════════════════════════

// DashboardDTO - данные главной страницы.
type DashboardDTO struct {
	Partner              *partner.Partner             `json:"partner"`
	Rank                 RankProgressDTO              `json:"rank"`
	RecentContributions  []*contribution.Contribution `json:"recent_contributions"`
	Stats                contribution.Stats           `json:"stats"`
	ContributedThisMonth bool                         `json:"contributed_this_month"`
	ScoreHistory         []partner.ScorePoint         `json:"score_history"`
	UnreadNotifications  int                          `json:"unread_notifications"`
	GeneratedAt          time.Time                    `json:"generated_at"`
}

const (
	dashboardRecentLimit  = 5
	dashboardHistoryLimit = 12
)

// Dashboard собирает сводку партнёра.
func (h *PartnerHandler) Dashboard(ctx context.Context, p identity.Principal) (*DashboardDTO, error) {
	now := h.now()
	pt, err := h.Get(ctx, p, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}

	return retry.Value(ctx, h.retrier, func(ctx context.Context) (*DashboardDTO, error) {
		repos := h.store.Repositories()

		recent, err := repos.Contributions.List(ctx, contribution.ListFilter{
			PartnerID: pt.ID,
			Sort:      contribution.SortByDate,
			Page:      shared.NewPagination(dashboardRecentLimit, 0),
		})
		if err != nil {
			return nil, err
		}
		stats, err := repos.Contributions.Stats(ctx, pt.ID)
		if err != nil {
			return nil, err
		}
		contributors, err := repos.Contributions.ContributorsIn(ctx, leaderboard.PeriodMonthly.Window(now))
		if err != nil {
			return nil, err
		}
		history, err := repos.ScoreHistory.ListRecent(ctx, pt.ID, dashboardHistoryLimit)
		if err != nil {
			return nil, err
		}
		unread, err := repos.Notifications.CountUnread(ctx, pt.ID)
		if err != nil {
			return nil, err
		}

		return &DashboardDTO{
			Partner:              pt,
			Rank:                 NewRankProgress(h.ranks, pt.ImpactScore),
			RecentContributions:  recent,
			Stats:                stats,
			ContributedThisMonth: contributors[pt.ID],
			ScoreHistory:         history,
			UnreadNotifications:  unread,
			GeneratedAt:          now,
		}, nil
	})
}

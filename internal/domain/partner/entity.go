// Package partner содержит доменную модель партнёра портала.
// Партнёр накапливает сумму одобренных взносов и impact score,
// по которому определяется его ранг.
package partner

import (
	"strings"
	"time"

	"github.com/impact-hub/partner-portal/internal/domain/rank"
	"github.com/impact-hub/partner-portal/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCORING
// ══════════════════════════════════════════════════════════════════════════════

// PointsPerUnit - сколько денег даёт одно очко impact score.
var PointsPerUnit = decimal.NewFromInt(100)

// PointsFor возвращает floor(amount / 100).
// Дробная часть отбрасывается, а не округляется: $350 дают 3 очка.
func PointsFor(amount decimal.Decimal) int64 {
	if !amount.IsPositive() {
		return 0
	}
	return amount.Div(PointsPerUnit).Floor().IntPart()
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: PARTNER
// ══════════════════════════════════════════════════════════════════════════════

// Partner - агрегат партнёра.
// Totals меняются только через одобрение взноса, профиль - только владельцем.
type Partner struct {
	// ID совпадает с ID пользователя.
	ID string `json:"id"`

	// FullName - отображаемое имя.
	FullName string `json:"full_name"`

	// Email - контактный email.
	Email string `json:"email"`

	// Phone - телефон (опционально).
	Phone string `json:"phone,omitempty"`

	// AvatarURL - ссылка на аватар (опционально).
	AvatarURL string `json:"avatar_url,omitempty"`

	// Rank - текущий уровень, производный от ImpactScore.
	Rank rank.Name `json:"rank"`

	// TotalContributions - сумма всех одобренных взносов.
	TotalContributions decimal.Decimal `json:"total_contributions"`

	// ImpactScore - накопленные очки.
	ImpactScore int64 `json:"impact_score"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewPartner создаёт партнёра с нулевыми показателями и стартовым рангом.
func NewPartner(id, fullName, email string, table *rank.Table, now time.Time) (*Partner, error) {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return nil, shared.Validation("partner", "Create", "full name is required")
	}
	if len(fullName) > 120 {
		return nil, shared.Validation("partner", "Create", "full name is too long")
	}
	email = shared.NormalizeEmail(email)
	if !strings.Contains(email, "@") {
		return nil, shared.Validation("partner", "Create", "email is invalid")
	}

	return &Partner{
		ID:                 id,
		FullName:           fullName,
		Email:              email,
		Rank:               table.RankForScore(0).Name,
		TotalContributions: decimal.Zero,
		ImpactScore:        0,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// Credit описывает результат зачисления одобренного взноса.
type Credit struct {
	Amount      decimal.Decimal
	Points      int64
	OldRank     rank.Name
	NewRank     rank.Name
	NewScore    int64
	NewTotal    decimal.Decimal
	RankChanged bool
}

// IsUpgrade сообщает, повысился ли ранг.
func (c Credit) IsUpgrade(table *rank.Table) bool {
	return c.RankChanged && table.IsUpgrade(c.OldRank, c.NewRank)
}

// ApplyCredit зачисляет сумму и очки и пересчитывает ранг.
// Используется хранилищами, которые держат агрегат в памяти.
func (p *Partner) ApplyCredit(amount decimal.Decimal, points int64, table *rank.Table, now time.Time) Credit {
	oldRank := p.Rank
	p.TotalContributions = p.TotalContributions.Add(amount)
	p.ImpactScore += points
	p.Rank = table.RankForScore(p.ImpactScore).Name
	p.UpdatedAt = now

	return Credit{
		Amount:      amount,
		Points:      points,
		OldRank:     oldRank,
		NewRank:     p.Rank,
		NewScore:    p.ImpactScore,
		NewTotal:    p.TotalContributions,
		RankChanged: oldRank != p.Rank,
	}
}

// ProfileUpdate - изменяемые владельцем поля профиля. nil = не менять.
type ProfileUpdate struct {
	FullName  *string
	Phone     *string
	AvatarURL *string
}

// UpdateProfile применяет изменения профиля.
func (p *Partner) UpdateProfile(u ProfileUpdate, now time.Time) error {
	if u.FullName != nil {
		name := strings.TrimSpace(*u.FullName)
		if name == "" {
			return shared.Validation("partner", "UpdateProfile", "full name cannot be empty")
		}
		if len(name) > 120 {
			return shared.Validation("partner", "UpdateProfile", "full name is too long")
		}
		p.FullName = name
	}
	if u.Phone != nil {
		phone := strings.TrimSpace(*u.Phone)
		if len(phone) > 32 {
			return shared.Validation("partner", "UpdateProfile", "phone is too long")
		}
		p.Phone = phone
	}
	if u.AvatarURL != nil {
		avatar := strings.TrimSpace(*u.AvatarURL)
		if avatar != "" && !strings.HasPrefix(avatar, "https://") && !strings.HasPrefix(avatar, "http://") {
			return shared.Validation("partner", "UpdateProfile", "avatar URL must be http(s)")
		}
		p.AvatarURL = avatar
	}
	p.UpdatedAt = now
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SCORE HISTORY
// ══════════════════════════════════════════════════════════════════════════════

// ScorePoint - снимок impact score после одобрения.
type ScorePoint struct {
	PartnerID  string    `json:"partner_id"`
	Score      int64     `json:"score"`
	RecordedAt time.Time `json:"recorded_at"`
}

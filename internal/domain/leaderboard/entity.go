// Package leaderboard содержит доменную модель лидерборда партнёров.
// Лидерборд - производная проекция одобренных взносов за период,
// источником истины он не является.
package leaderboard

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/impact-hub/partner-portal/internal/domain/rank"
	"github.com/impact-hub/partner-portal/internal/domain/shared"
	"github.com/impact-hub/partner-portal/pkg/timeutil"
	"github.com/shopspring/decimal"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Position представляет место партнёра в лидерборде, начиная с 1.
type Position int

// IsValid проверяет, что позиция положительная.
func (p Position) IsValid() bool {
	return p > 0
}

// IsTop10 возвращает true для первой десятки.
func (p Position) IsTop10() bool {
	return p >= 1 && p <= 10
}

// String возвращает строковое представление позиции.
func (p Position) String() string {
	return fmt.Sprintf("#%d", p)
}

// Period - окно, за которое суммируются взносы.
type Period string

const (
	// PeriodWeekly - с понедельника 00:00 UTC текущей недели.
	PeriodWeekly Period = "weekly"

	// PeriodMonthly - с 1-го числа текущего месяца.
	PeriodMonthly Period = "monthly"

	// PeriodAllTime - без нижней границы.
	PeriodAllTime Period = "all_time"
)

// AllPeriods перечисляет периоды в порядке отображения.
var AllPeriods = []Period{PeriodWeekly, PeriodMonthly, PeriodAllTime}

// IsValid проверяет корректность периода.
func (p Period) IsValid() bool {
	switch p {
	case PeriodWeekly, PeriodMonthly, PeriodAllTime:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление периода.
func (p Period) String() string {
	return string(p)
}

// ParsePeriod разбирает период. Пустая строка означает all_time.
func ParsePeriod(s string) (Period, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return PeriodAllTime, nil
	}
	p := Period(strings.ReplaceAll(s, "-", "_"))
	if !p.IsValid() {
		return "", shared.ErrInvalidPeriod
	}
	return p, nil
}

// Window возвращает полуоткрытый интервал дат взносов для периода.
// Верхняя граница - конец текущих суток, чтобы сегодняшние взносы попадали в окно.
func (p Period) Window(now time.Time) shared.TimeRange {
	end := timeutil.EndOfDay(now)

	switch p {
	case PeriodWeekly:
		return shared.TimeRange{From: timeutil.StartOfWeek(now), To: end}
	case PeriodMonthly:
		return shared.TimeRange{From: timeutil.StartOfMonth(now), To: end}
	default:
		return shared.TimeRange{To: end}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD ENTRY
// ══════════════════════════════════════════════════════════════════════════════

// Total - сумма одобренных взносов партнёра за период (сырые данные источника).
type Total struct {
	PartnerID string
	Amount    decimal.Decimal
}

// Entry представляет одну строку лидерборда.
type Entry struct {
	// Position - место (1..n), у каждого партнёра своё.
	Position Position `json:"position"`

	// PartnerID - идентификатор партнёра.
	PartnerID string `json:"partner_id"`

	// DisplayName - отображаемое имя.
	DisplayName string `json:"display_name"`

	// AvatarURL - аватар партнёра.
	AvatarURL string `json:"avatar_url,omitempty"`

	// Rank - текущий уровень партнёра.
	Rank rank.Name `json:"rank"`

	// Total - сумма одобренных взносов за период.
	Total decimal.Decimal `json:"total"`

	// ImpactScore - общий impact score партнёра.
	ImpactScore int64 `json:"impact_score"`
}

// Profile - данные партнёра для отображения в строке лидерборда.
type Profile struct {
	DisplayName string
	AvatarURL   string
	Rank        rank.Name
	ImpactScore int64
}

// ══════════════════════════════════════════════════════════════════════════════
// RANKING
// ══════════════════════════════════════════════════════════════════════════════

// BuildRanking упорядочивает суммы и присваивает позиции.
// Порядок: сумма по убыванию, затем PartnerID по возрастанию.
// Партнёры с нулевой суммой в лидерборд не попадают.
// Позиции идут подряд без пропусков: равные суммы не делят место.
func BuildRanking(totals []Total, profiles map[string]Profile) []Entry {
	entries := make([]Entry, 0, len(totals))
	for _, t := range totals {
		if !t.Amount.IsPositive() {
			continue
		}
		e := Entry{PartnerID: t.PartnerID, Total: t.Amount}
		if p, ok := profiles[t.PartnerID]; ok {
			e.DisplayName = p.DisplayName
			e.AvatarURL = p.AvatarURL
			e.Rank = p.Rank
			e.ImpactScore = p.ImpactScore
		}
		entries = append(entries, e)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if c := entries[i].Total.Cmp(entries[j].Total); c != 0 {
			return c > 0
		}
		return entries[i].PartnerID < entries[j].PartnerID
	})

	for i := range entries {
		entries[i].Position = Position(i + 1)
	}
	return entries
}

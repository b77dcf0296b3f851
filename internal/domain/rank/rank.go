// Package rank содержит таблицу рангов партнёров портала.
// Ранг определяется только impact score: чем больше одобренных взносов,
// тем выше уровень (bronze → silver → gold → platinum → black_card).
package rank

import (
	"fmt"
	"sort"
	"strings"

	"github.com/impact-hub/partner-portal/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RANK NAME
// ══════════════════════════════════════════════════════════════════════════════

// Name - название уровня партнёра.
type Name string

const (
	// Bronze - стартовый уровень, доступен с нулевым счётом.
	Bronze Name = "bronze"

	// Silver - второй уровень.
	Silver Name = "silver"

	// Gold - третий уровень.
	Gold Name = "gold"

	// Platinum - четвёртый уровень.
	Platinum Name = "platinum"

	// BlackCard - высший уровень.
	BlackCard Name = "black_card"
)

// IsValid проверяет, что название ранга известно системе.
func (n Name) IsValid() bool {
	switch n {
	case Bronze, Silver, Gold, Platinum, BlackCard:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление.
func (n Name) String() string {
	return string(n)
}

// DisplayName возвращает название для отображения ("black card").
func (n Name) DisplayName() string {
	return strings.ReplaceAll(string(n), "_", " ")
}

// ParseName разбирает строку в название ранга.
func ParseName(s string) (Name, error) {
	n := Name(strings.ToLower(strings.TrimSpace(s)))
	if !n.IsValid() {
		return "", shared.NewDomainError("rank", "ParseName", shared.ErrInvalidInput,
			fmt.Sprintf("unknown rank %q", s))
	}
	return n, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// RANK
// ══════════════════════════════════════════════════════════════════════════════

// Rank - строка справочника рангов.
type Rank struct {
	// Name - название уровня.
	Name Name `json:"rank_name"`

	// MinScore - минимальный impact score для получения уровня.
	MinScore int64 `json:"min_score"`

	// BadgeURL - ссылка на значок (опционально).
	BadgeURL string `json:"badge_url,omitempty"`

	// Description - описание уровня.
	Description string `json:"description,omitempty"`

	// Perks - привилегии уровня.
	Perks []string `json:"perks,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// TABLE
// ══════════════════════════════════════════════════════════════════════════════

// Table - упорядоченная по возрастанию MinScore таблица рангов.
// Неизменяема после создания, безопасна для конкурентного чтения.
type Table struct {
	ranks []Rank
}

// NewTable создаёт таблицу рангов.
// Ранги сортируются по MinScore; пустая таблица, повторяющиеся пороги,
// повторяющиеся названия и отрицательные пороги отклоняются.
func NewTable(ranks []Rank) (*Table, error) {
	if len(ranks) == 0 {
		return nil, shared.WrapError("rank", "NewTable", shared.ErrInvalidInput, "rank table is empty", shared.ErrInvalidRankTable)
	}

	sorted := make([]Rank, len(ranks))
	copy(sorted, ranks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinScore < sorted[j].MinScore
	})

	seen := make(map[Name]bool, len(sorted))
	for i, r := range sorted {
		if !r.Name.IsValid() {
			return nil, shared.WrapError("rank", "NewTable", shared.ErrInvalidInput,
				fmt.Sprintf("unknown rank %q", r.Name), shared.ErrInvalidRankTable)
		}
		if r.MinScore < 0 {
			return nil, shared.WrapError("rank", "NewTable", shared.ErrNegativeValue,
				fmt.Sprintf("rank %s has a negative threshold", r.Name), shared.ErrInvalidRankTable)
		}
		if seen[r.Name] {
			return nil, shared.WrapError("rank", "NewTable", shared.ErrInvalidInput,
				fmt.Sprintf("rank %s listed twice", r.Name), shared.ErrInvalidRankTable)
		}
		if i > 0 && sorted[i-1].MinScore == r.MinScore {
			return nil, shared.WrapError("rank", "NewTable", shared.ErrInvalidInput,
				fmt.Sprintf("ranks %s and %s share threshold %d", sorted[i-1].Name, r.Name, r.MinScore), shared.ErrInvalidRankTable)
		}
		seen[r.Name] = true
	}

	return &Table{ranks: sorted}, nil
}

// DefaultTable возвращает стандартную таблицу рангов.
func DefaultTable() *Table {
	t, err := NewTable(DefaultRanks())
	if err != nil {
		panic(err)
	}
	return t
}

// DefaultRanks возвращает стандартные пороги уровней.
func DefaultRanks() []Rank {
	return []Rank{
		{Name: Bronze, MinScore: 0, Description: "Welcome to the partner program"},
		{Name: Silver, MinScore: 500, Description: "Consistent supporter"},
		{Name: Gold, MinScore: 1000, Description: "Major contributor"},
		{Name: Platinum, MinScore: 2500, Description: "Elite partner"},
		{Name: BlackCard, MinScore: 5000, Description: "Top tier partner"},
	}
}

// Ranks возвращает копию рангов в порядке возрастания порога.
func (t *Table) Ranks() []Rank {
	out := make([]Rank, len(t.ranks))
	copy(out, t.ranks)
	return out
}

// Lookup ищет ранг по названию.
func (t *Table) Lookup(name Name) (Rank, bool) {
	for _, r := range t.ranks {
		if r.Name == name {
			return r, true
		}
	}
	return Rank{}, false
}

// RankForScore возвращает наивысший ранг, порог которого ≤ score.
// Если score ниже всех порогов, возвращается младший ранг.
func (t *Table) RankForScore(score int64) Rank {
	// Первый индекс с MinScore > score; искомый ранг стоит перед ним.
	i := sort.Search(len(t.ranks), func(i int) bool {
		return t.ranks[i].MinScore > score
	})
	if i == 0 {
		return t.ranks[0]
	}
	return t.ranks[i-1]
}

// NextRank возвращает ранг с наименьшим порогом строго больше score.
// ok = false, если партнёр уже на верхнем уровне.
func (t *Table) NextRank(score int64) (next Rank, ok bool) {
	i := sort.Search(len(t.ranks), func(i int) bool {
		return t.ranks[i].MinScore > score
	})
	if i == len(t.ranks) {
		return Rank{}, false
	}
	return t.ranks[i], true
}

// ProgressToNext возвращает прогресс к следующему уровню в процентах:
// min(100, 100 × score / next.MinScore), либо 100 на верхнем уровне.
func (t *Table) ProgressToNext(score int64) float64 {
	next, ok := t.NextRank(score)
	if !ok || next.MinScore <= 0 {
		return 100
	}
	if score <= 0 {
		return 0
	}
	progress := 100 * float64(score) / float64(next.MinScore)
	if progress > 100 {
		return 100
	}
	return progress
}

// PointsToNext возвращает, сколько очков не хватает до следующего уровня.
func (t *Table) PointsToNext(score int64) int64 {
	next, ok := t.NextRank(score)
	if !ok {
		return 0
	}
	return next.MinScore - score
}

// IsUpgrade сообщает, выше ли ранг to ранга from в этой таблице.
func (t *Table) IsUpgrade(from, to Name) bool {
	return t.index(to) > t.index(from)
}

func (t *Table) index(name Name) int {
	for i, r := range t.ranks {
		if r.Name == name {
			return i
		}
	}
	return -1
}

// ParseThresholds разбирает строку вида "bronze:0,silver:500,gold:1000".
// Описания берутся из DefaultRanks для известных уровней.
func ParseThresholds(raw string) ([]Rank, error) {
	defaults := make(map[Name]Rank)
	for _, r := range DefaultRanks() {
		defaults[r.Name] = r
	}

	var ranks []Rank
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		nameStr, scoreStr, found := strings.Cut(part, ":")
		if !found {
			return nil, shared.NewDomainError("rank", "ParseThresholds", shared.ErrInvalidFormat,
				fmt.Sprintf("expected name:score, got %q", part))
		}
		name, err := ParseName(nameStr)
		if err != nil {
			return nil, err
		}
		var score int64
		if _, err := fmt.Sscanf(strings.TrimSpace(scoreStr), "%d", &score); err != nil {
			return nil, shared.WrapError("rank", "ParseThresholds", shared.ErrInvalidFormat,
				fmt.Sprintf("invalid score for %s", name), err)
		}
		r := defaults[name]
		r.Name = name
		r.MinScore = score
		ranks = append(ranks, r)
	}
	return ranks, nil
}

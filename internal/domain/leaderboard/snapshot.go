package leaderboard

import (
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD SNAPSHOT
// ══════════════════════════════════════════════════════════════════════════════

// Snapshot - вычисленный лидерборд за период на момент GeneratedAt.
// Снапшот может лежать в кеше и отставать от данных: GeneratedAt
// отдаётся клиенту, чтобы устаревание было видно.
type Snapshot struct {
	// Period - период снапшота.
	Period Period `json:"period"`

	// Entries - строки, отсортированные по позиции.
	Entries []Entry `json:"entries"`

	// GeneratedAt - время вычисления.
	GeneratedAt time.Time `json:"generated_at"`

	// byID - индекс для поиска по партнёру.
	byID map[string]int
}

// NewSnapshot создаёт снапшот из уже ранжированных строк.
func NewSnapshot(period Period, entries []Entry, generatedAt time.Time) *Snapshot {
	if entries == nil {
		entries = []Entry{}
	}
	s := &Snapshot{Period: period, Entries: entries, GeneratedAt: generatedAt}
	s.RebuildIndex()
	return s
}

// RebuildIndex восстанавливает индекс после десериализации из кеша.
func (s *Snapshot) RebuildIndex() {
	s.byID = make(map[string]int, len(s.Entries))
	for i, e := range s.Entries {
		s.byID[e.PartnerID] = i
	}
}

// PositionOf возвращает строку партнёра, если он есть в лидерборде.
func (s *Snapshot) PositionOf(partnerID string) (Entry, bool) {
	if s.byID == nil {
		s.RebuildIndex()
	}
	i, ok := s.byID[partnerID]
	if !ok {
		return Entry{}, false
	}
	return s.Entries[i], true
}

// Top возвращает первые n строк. n <= 0 означает все.
func (s *Snapshot) Top(n int) []Entry {
	if n <= 0 || n >= len(s.Entries) {
		out := make([]Entry, len(s.Entries))
		copy(out, s.Entries)
		return out
	}
	out := make([]Entry, n)
	copy(out, s.Entries[:n])
	return out
}

// Count возвращает количество партнёров в лидерборде.
func (s *Snapshot) Count() int {
	return len(s.Entries)
}

// Age возвращает возраст снапшота.
func (s *Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.GeneratedAt)
}

// String возвращает строковое представление для логирования.
func (s *Snapshot) String() string {
	return fmt.Sprintf("Snapshot{Period: %s, Entries: %d, GeneratedAt: %s}",
		s.Period, len(s.Entries), s.GeneratedAt.Format(time.RFC3339))
}

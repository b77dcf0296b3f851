package leaderboard

import (
	"testing"
	"time"

	"github.com/impact-hub/partner-portal/internal/domain/rank"
	"github.com/impact-hub/partner-portal/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		in      string
		want    Period
		wantErr bool
	}{
		{"weekly", PeriodWeekly, false},
		{"MONTHLY", PeriodMonthly, false},
		{"all-time", PeriodAllTime, false},
		{"", PeriodAllTime, false},
		{"daily", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePeriod(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, shared.ErrInvalidPeriod)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPeriodWindow(t *testing.T) {
	// Суббота
	now := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

	w := PeriodWeekly.Window(now)
	assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), w.From)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), w.To)

	m := PeriodMonthly.Window(now)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), m.From)

	a := PeriodAllTime.Window(now)
	assert.True(t, a.IsUnbounded())
	assert.True(t, a.Contains(time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)))

	// Понедельник открывает новую неделю
	monday := time.Date(2026, 3, 16, 0, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC), PeriodWeekly.Window(monday).From)

	// Воскресенье остаётся в неделе с понедельника
	sunday := time.Date(2026, 3, 15, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), PeriodWeekly.Window(sunday).From)
}

func TestBuildRanking_OrderAndTiebreak(t *testing.T) {
	totals := []Total{
		{PartnerID: "c", Amount: d("500")},
		{PartnerID: "a", Amount: d("1200.50")},
		{PartnerID: "b", Amount: d("500.00")},
		{PartnerID: "z", Amount: decimal.Zero},
		{PartnerID: "d", Amount: d("75")},
	}
	profiles := map[string]Profile{
		"a": {DisplayName: "Alpha", Rank: rank.Silver, ImpactScore: 512},
	}

	entries := BuildRanking(totals, profiles)
	require.Len(t, entries, 4)

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.PartnerID
		assert.Equal(t, Position(i+1), e.Position)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids)
	assert.Equal(t, "Alpha", entries[0].DisplayName)
	assert.Equal(t, rank.Silver, entries[0].Rank)

	for i := 1; i < len(entries); i++ {
		assert.True(t, entries[i-1].Total.GreaterThanOrEqual(entries[i].Total))
	}
}

func TestBuildRanking_Deterministic(t *testing.T) {
	a := []Total{{"x", d("10")}, {"y", d("10")}, {"w", d("10")}}
	b := []Total{{"w", d("10")}, {"y", d("10")}, {"x", d("10")}}

	assert.Equal(t, BuildRanking(a, nil), BuildRanking(b, nil))
}

func TestSnapshot_PositionOf(t *testing.T) {
	entries := BuildRanking([]Total{{"a", d("300")}, {"b", d("100")}}, nil)
	s := NewSnapshot(PeriodMonthly, entries, time.Now())

	e, ok := s.PositionOf("b")
	require.True(t, ok)
	assert.Equal(t, Position(2), e.Position)

	_, ok = s.PositionOf("nobody")
	assert.False(t, ok)

	assert.Len(t, s.Top(1), 1)
	assert.Len(t, s.Top(0), 2)
}

func TestSnapshot_IndexAfterDecode(t *testing.T) {
	s := &Snapshot{Period: PeriodWeekly, Entries: []Entry{{Position: 1, PartnerID: "a", Total: d("5")}}}

	e, ok := s.PositionOf("a")
	require.True(t, ok)
	assert.Equal(t, Position(1), e.Position)
}

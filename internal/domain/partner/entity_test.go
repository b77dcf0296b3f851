package partner

import (
	"testing"
	"time"

	"github.com/impact-hub/partner-portal/internal/domain/rank"
	"github.com/impact-hub/partner-portal/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func TestPointsFor(t *testing.T) {
	tests := []struct {
		amount string
		want   int64
	}{
		{"350", 3},
		{"99.99", 0},
		{"100", 1},
		{"100.01", 1},
		{"1999.99", 19},
		{"0", 0},
		{"-500", 0},
		{"25000", 250},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			assert.Equal(t, tt.want, PointsFor(decimal.RequireFromString(tt.amount)))
		})
	}
}

func TestNewPartner(t *testing.T) {
	p, err := NewPartner("p-1", "  Aigerim Bekova ", " Aigerim@Example.COM ", rank.DefaultTable(), testNow)
	require.NoError(t, err)

	assert.Equal(t, "Aigerim Bekova", p.FullName)
	assert.Equal(t, "aigerim@example.com", p.Email)
	assert.Equal(t, rank.Bronze, p.Rank)
	assert.True(t, p.TotalContributions.IsZero())
	assert.Equal(t, int64(0), p.ImpactScore)
	assert.Equal(t, testNow, p.CreatedAt)
}

func TestNewPartner_Validation(t *testing.T) {
	_, err := NewPartner("p-1", "   ", "a@b.c", rank.DefaultTable(), testNow)
	assert.True(t, shared.IsValidation(err))

	_, err = NewPartner("p-1", "Name", "not-an-email", rank.DefaultTable(), testNow)
	assert.True(t, shared.IsValidation(err))
}

func TestApplyCredit(t *testing.T) {
	table := rank.DefaultTable()
	p, err := NewPartner("p-1", "Partner", "p@example.com", table, testNow)
	require.NoError(t, err)

	amount := decimal.NewFromInt(350)
	credit := p.ApplyCredit(amount, PointsFor(amount), table, testNow.Add(time.Hour))

	assert.True(t, decimal.NewFromInt(350).Equal(p.TotalContributions))
	assert.Equal(t, int64(3), p.ImpactScore)
	assert.Equal(t, int64(3), credit.NewScore)
	assert.False(t, credit.RankChanged)
	assert.Equal(t, testNow.Add(time.Hour), p.UpdatedAt)
}

func TestApplyCredit_RankUpgrade(t *testing.T) {
	table := rank.DefaultTable()
	p := &Partner{ID: "p-1", Rank: rank.Bronze, ImpactScore: 495, TotalContributions: decimal.NewFromInt(49500)}

	amount := decimal.NewFromInt(700)
	credit := p.ApplyCredit(amount, PointsFor(amount), table, testNow)

	assert.Equal(t, int64(502), p.ImpactScore)
	assert.Equal(t, rank.Silver, p.Rank)
	assert.Equal(t, rank.Bronze, credit.OldRank)
	assert.Equal(t, rank.Silver, credit.NewRank)
	assert.True(t, credit.IsUpgrade(table))
	assert.True(t, decimal.NewFromInt(50200).Equal(credit.NewTotal))
}

func TestUpdateProfile(t *testing.T) {
	p := &Partner{ID: "p-1", FullName: "Old Name"}
	name := "New Name"
	phone := "+7 701 000 0000"

	err := p.UpdateProfile(ProfileUpdate{FullName: &name, Phone: &phone}, testNow)
	require.NoError(t, err)
	assert.Equal(t, "New Name", p.FullName)
	assert.Equal(t, "+7 701 000 0000", p.Phone)

	empty := " "
	err = p.UpdateProfile(ProfileUpdate{FullName: &empty}, testNow)
	assert.True(t, shared.IsValidation(err))
	assert.Equal(t, "New Name", p.FullName)

	avatar := "ftp://example.com/a.png"
	err = p.UpdateProfile(ProfileUpdate{AvatarURL: &avatar}, testNow)
	assert.True(t, shared.IsValidation(err))
}

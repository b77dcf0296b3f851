package contribution

import (
	"testing"
	"time"

	"github.com/impact-hub/partner-portal/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC)

func validDraft() Draft {
	return Draft{
		ID:               "c-1",
		PartnerID:        "p-1",
		Amount:           decimal.NewFromInt(350),
		ContributionDate: testNow.AddDate(0, 0, -2),
		PaymentMethod:    PaymentBankTransfer,
		Notes:            "  March transfer ",
	}
}

func TestNew(t *testing.T) {
	c, err := New(validDraft(), testNow)
	require.NoError(t, err)

	assert.Equal(t, StatusPending, c.Status)
	assert.Equal(t, "March transfer", c.Notes)
	assert.Equal(t, time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC), c.ContributionDate)
	assert.Nil(t, c.ReviewedAt)
	assert.False(t, c.HasProof())
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *Draft)
		want   error
	}{
		{"negative amount", func(d *Draft) { d.Amount = decimal.NewFromInt(-5) }, shared.ErrInvalidAmount},
		{"zero amount", func(d *Draft) { d.Amount = decimal.Zero }, shared.ErrInvalidAmount},
		{"future date", func(d *Draft) { d.ContributionDate = testNow.AddDate(0, 0, 1) }, shared.ErrContributionDateInFuture},
		{"bad method", func(d *Draft) { d.PaymentMethod = "cash" }, shared.ErrInvalidPaymentMethod},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDraft()
			tt.mutate(&d)
			c, err := New(d, testNow)
			assert.Nil(t, c)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, shared.IsValidation(err))
		})
	}
}

func TestNew_TodayIsAllowed(t *testing.T) {
	d := validDraft()
	d.ContributionDate = time.Date(2026, 3, 14, 23, 59, 0, 0, time.UTC)
	_, err := New(d, testNow)
	assert.NoError(t, err)
}

func TestApprove(t *testing.T) {
	c, err := New(validDraft(), testNow)
	require.NoError(t, err)

	review, err := c.Approve("admin-1", decimal.RequireFromString("350.00"), testNow)
	require.NoError(t, err)

	assert.Equal(t, StatusApproved, c.Status)
	assert.Equal(t, "admin-1", c.ReviewedBy)
	assert.Equal(t, StatusApproved, review.Status)
	assert.Equal(t, testNow, review.ReviewedAt)
}

func TestApprove_AmountMismatch(t *testing.T) {
	c, err := New(validDraft(), testNow)
	require.NoError(t, err)

	_, err = c.Approve("admin-1", decimal.NewFromInt(400), testNow)
	assert.ErrorIs(t, err, shared.ErrAmountMismatch)
	assert.True(t, shared.IsValidation(err))
	assert.Equal(t, StatusPending, c.Status)
}

func TestTerminalStates(t *testing.T) {
	for _, status := range []Status{StatusApproved, StatusRejected} {
		t.Run(string(status), func(t *testing.T) {
			c := &Contribution{ID: "c-1", Status: status, Amount: decimal.NewFromInt(100)}

			_, err := c.Approve("admin-1", decimal.NewFromInt(100), testNow)
			assert.True(t, shared.IsInvalidState(err))

			_, err = c.Reject("admin-1", "dup", testNow)
			assert.True(t, shared.IsInvalidState(err))

			assert.Equal(t, status, c.Status)
		})
	}
}

func TestReject_DefaultReason(t *testing.T) {
	c, err := New(validDraft(), testNow)
	require.NoError(t, err)

	review, err := c.Reject("admin-1", "   ", testNow)
	require.NoError(t, err)
	assert.Equal(t, DefaultRejectionReason, review.Reason)
	assert.Equal(t, "No reason provided", c.RejectionReason)
}

func TestListFilter_Normalize(t *testing.T) {
	f, err := ListFilter{}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, SortByDate, f.Sort)
	assert.Equal(t, shared.DefaultPageSize, f.Page.Limit)

	_, err = ListFilter{Sort: "name"}.Normalize()
	assert.True(t, shared.IsValidation(err))

	_, err = ListFilter{Status: "archived"}.Normalize()
	assert.True(t, shared.IsValidation(err))
}

func TestStats_Add(t *testing.T) {
	var s Stats
	s.Add(&Contribution{Status: StatusApproved, Amount: decimal.NewFromInt(100), CreatedAt: testNow})
	s.Add(&Contribution{Status: StatusApproved, Amount: decimal.NewFromInt(250), CreatedAt: testNow.Add(time.Hour)})
	s.Add(&Contribution{Status: StatusPending, Amount: decimal.NewFromInt(50), CreatedAt: testNow})
	s.Add(&Contribution{Status: StatusRejected, Amount: decimal.NewFromInt(10), CreatedAt: testNow})

	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.Approved)
	assert.Equal(t, 1, s.Pending)
	assert.Equal(t, 1, s.Rejected)
	assert.True(t, decimal.NewFromInt(350).Equal(s.ApprovedSum))
	assert.Equal(t, testNow.Add(time.Hour), *s.LastSubmitted)
}

func TestValidateProof(t *testing.T) {
	ext, err := ValidateProof("image/png", 1024)
	require.NoError(t, err)
	assert.Equal(t, "png", ext)

	ext, err = ValidateProof("application/pdf; charset=binary", MaxProofSize)
	require.NoError(t, err)
	assert.Equal(t, "pdf", ext)

	_, err = ValidateProof("image/png", MaxProofSize+1)
	assert.ErrorIs(t, err, shared.ErrProofTooLarge)
	assert.True(t, shared.IsValidation(err))

	_, err = ValidateProof("text/html", 10)
	assert.ErrorIs(t, err, shared.ErrProofContentType)
}

func TestProofKey(t *testing.T) {
	key := ProofKey("p-1", time.UnixMilli(1760000000123), "jpg")
	assert.Equal(t, "p-1/1760000000123.jpg", key)
}

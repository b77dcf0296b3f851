package command

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/impact-hub/partner-portal/internal/domain/contribution"
	"github.com/impact-hub/partner-portal/internal/domain/identity"
	"github.com/impact-hub/partner-portal/internal/domain/notification"
	"github.com/impact-hub/partner-portal/internal/domain/shared"
)

func TestSendReminders_SkipsContributorsAndRepeats(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "p-1", identity.RolePartner)
	f.addUser(t, "p-2", identity.RolePartner)
	f.addUser(t, "p-3", identity.RolePartner)
	f.addPending(t, "p-1", "25")
	ctx := context.Background()

	h := NewSendRemindersHandler(f.store, f.newID, clock)

	res, err := h.Handle(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2026-03", res.Month)
	assert.Equal(t, 3, res.Checked)
	assert.Equal(t, 2, res.Reminded)

	inbox, err := f.store.Repositories().Notifications.ListByUser(ctx, "p-2", 10)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, notification.TypeReminder, inbox[0].Type)
	assert.Contains(t, inbox[0].Message, "March 2026")

	again, err := h.Handle(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.Reminded)
	assert.Equal(t, 2, again.Skipped)

	none, err := f.store.Repositories().Notifications.ListByUser(ctx, "p-1", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func (f *fixture) addApproved(t *testing.T, partnerID, amount string, date time.Time) {
	t.Helper()
	ctx := context.Background()
	c, err := contribution.New(contribution.Draft{
		ID:               f.newID(),
		PartnerID:        partnerID,
		Amount:           decimal.RequireFromString(amount),
		ContributionDate: date,
	}, fixedNow)
	require.NoError(t, err)
	require.NoError(t, f.store.Repositories().Contributions.Create(ctx, c))
	require.NoError(t, f.store.Repositories().Contributions.ApplyReview(ctx, contribution.Review{
		ContributionID: c.ID, Status: contribution.StatusApproved, ReviewerID: "admin-1", ReviewedAt: fixedNow,
	}))
}

func TestAwardRecognition_TopContributorOfPreviousMonth(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "p-1", identity.RolePartner)
	f.addUser(t, "p-2", identity.RolePartner)
	february := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	f.addApproved(t, "p-1", "300", february)
	f.addApproved(t, "p-2", "450", february)
	f.addApproved(t, "p-1", "5000", fixedNow) // March does not count
	ctx := context.Background()

	h := NewAwardRecognitionHandler(f.store, f.publisher, f.newID, clock)

	res, err := h.Handle(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2026-02", res.Month)
	assert.True(t, res.Created)
	require.NotNil(t, res.Recognition)
	assert.Equal(t, "p-2", res.Recognition.PartnerID)
	assert.Contains(t, res.Recognition.Description, "$450.00")

	inbox, err := f.store.Repositories().Notifications.ListByUser(ctx, "p-2", 10)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, notification.TypeRecognition, inbox[0].Type)
	assert.Equal(t, res.Recognition.ID, inbox[0].Metadata["recognition_id"])
	assert.Equal(t, []shared.EventType{shared.EventRecognitionAwarded}, f.publisher.types())

	again, err := h.Handle(ctx)
	require.NoError(t, err)
	assert.False(t, again.Created)

	inbox, err = f.store.Repositories().Notifications.ListByUser(ctx, "p-2", 10)
	require.NoError(t, err)
	assert.Len(t, inbox, 1)
	assert.Len(t, f.publisher.types(), 1)
}

func TestAwardRecognition_NoContributions(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "p-1", identity.RolePartner)

	res, err := NewAwardRecognitionHandler(f.store, f.publisher, f.newID, clock).Handle(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Nil(t, res.Recognition)
}

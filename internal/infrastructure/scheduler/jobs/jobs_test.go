package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/impact-hub/partner-portal/internal/application/command"
	"github.com/impact-hub/partner-portal/internal/application/port"
	"github.com/impact-hub/partner-portal/internal/domain/leaderboard"
	"github.com/impact-hub/partner-portal/internal/domain/recognition"
	"github.com/impact-hub/partner-portal/internal/infrastructure/scheduler"
)

func flags(on ...string) port.Features {
	return port.FeaturesFunc(func(name string) bool {
		for _, f := range on {
			if f == name {
				return true
			}
		}
		return false
	})
}

type fakeRebuilder struct {
	periods []leaderboard.Period
	failOn  leaderboard.Period
}

func (f *fakeRebuilder) Rebuild(_ context.Context, p leaderboard.Period) (*leaderboard.Snapshot, error) {
	f.periods = append(f.periods, p)
	if p == f.failOn {
		return nil, errors.New("cache down")
	}
	return &leaderboard.Snapshot{Period: p}, nil
}

func TestRebuildLeaderboardJob(t *testing.T) {
	t.Run("rebuilds every period", func(t *testing.T) {
		r := &fakeRebuilder{}
		job := NewRebuildLeaderboardJob(r, flags(port.FeatureLeaderboardCache), nil)
		require.NoError(t, job.Run(context.Background()))
		assert.Equal(t, leaderboard.AllPeriods, r.periods)
	})

	t.Run("a failing period does not stop the rest", func(t *testing.T) {
		r := &fakeRebuilder{failOn: leaderboard.PeriodWeekly}
		job := NewRebuildLeaderboardJob(r, flags(port.FeatureLeaderboardCache), nil)
		err := job.Run(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "weekly")
		assert.Len(t, r.periods, 3)
	})

	t.Run("skipped when the cache is off", func(t *testing.T) {
		r := &fakeRebuilder{}
		err := NewRebuildLeaderboardJob(r, flags(), nil).Run(context.Background())
		assert.ErrorIs(t, err, scheduler.ErrSkipped)
		assert.Empty(t, r.periods)
	})
}

type fakeReminders struct {
	calls int
	err   error
}

func (f *fakeReminders) Handle(context.Context) (*command.SendRemindersResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &command.SendRemindersResult{Month: "2026-05", Checked: 3, Reminded: 2, Skipped: 1}, nil
}

func TestContributionReminderJob(t *testing.T) {
	sender := &fakeReminders{}
	job := NewContributionReminderJob(sender, flags(port.FeatureReminders), nil)
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, sender.calls)

	sender.err = errors.New("boom")
	assert.EqualError(t, job.Run(context.Background()), "boom")

	off := &fakeReminders{}
	assert.ErrorIs(t, NewContributionReminderJob(off, flags(), nil).Run(context.Background()), scheduler.ErrSkipped)
	assert.Zero(t, off.calls)
}

type fakeAwarder struct {
	result *command.AwardRecognitionResult
}

func (f *fakeAwarder) Handle(context.Context) (*command.AwardRecognitionResult, error) {
	return f.result, nil
}

func TestMonthlyRecognitionJob(t *testing.T) {
	empty := &fakeAwarder{result: &command.AwardRecognitionResult{Month: "2026-04"}}
	require.NoError(t, NewMonthlyRecognitionJob(empty, flags(port.FeatureMonthlyRecognition), nil).Run(context.Background()))

	awarded := &fakeAwarder{result: &command.AwardRecognitionResult{
		Month:       "2026-04",
		Recognition: &recognition.Recognition{PartnerID: "p-1", Type: recognition.TypeTopContributor},
		Created:     true,
	}}
	require.NoError(t, NewMonthlyRecognitionJob(awarded, flags(port.FeatureMonthlyRecognition), nil).Run(context.Background()))

	assert.ErrorIs(t, NewMonthlyRecognitionJob(awarded, flags(), nil).Run(context.Background()), scheduler.ErrSkipped)
}

func TestRegister(t *testing.T) {
	s, err := scheduler.New(scheduler.Config{}, nil)
	require.NoError(t, err)
	defer func() { _ = s.Stop() }()

	features := flags()
	err = Register(s, Schedules{ReminderDay: 31},
		NewRebuildLeaderboardJob(&fakeRebuilder{}, features, nil),
		NewContributionReminderJob(&fakeReminders{}, features, nil),
		NewMonthlyRecognitionJob(&fakeAwarder{}, features, nil),
	)
	require.NoError(t, err)

	var names, schedules []string
	for _, info := range s.ListJobs() {
		names = append(names, info.Name)
		schedules = append(schedules, info.Schedule)
	}
	assert.Equal(t, []string{"contribution_reminder", "monthly_recognition", "rebuild_leaderboard"}, names)
	assert.Equal(t, []string{"monthly on day 25 at 09:00", "monthly on day 1 at 06:00", "@every " + (10 * time.Minute).String()}, schedules)
}

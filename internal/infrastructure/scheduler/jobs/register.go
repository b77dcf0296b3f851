package jobs

import (
	"time"

	"github.com/impact-hub/partner-portal/internal/infrastructure/scheduler"
)

// Schedules holds when each job fires. Calendar times use the scheduler location.
type Schedules struct {
	RebuildInterval time.Duration
	ReminderDay     int
	RecognitionDay  int
}

// DefaultSchedules: rebuild every 10 minutes, reminders on the 25th at 09:00,
// recognition on the 1st at 06:00.
func DefaultSchedules() Schedules {
	return Schedules{RebuildInterval: 10 * time.Minute, ReminderDay: 25, RecognitionDay: 1}
}

// Register adds the portal's jobs to s.
func Register(s *scheduler.Scheduler, sched Schedules, rebuild *RebuildLeaderboardJob, reminders *ContributionReminderJob, recognition *MonthlyRecognitionJob) error {
	def := DefaultSchedules()
	if sched.RebuildInterval <= 0 {
		sched.RebuildInterval = def.RebuildInterval
	}
	if sched.ReminderDay < 1 || sched.ReminderDay > 28 {
		sched.ReminderDay = def.ReminderDay
	}
	if sched.RecognitionDay < 1 || sched.RecognitionDay > 28 {
		sched.RecognitionDay = def.RecognitionDay
	}

	if err := s.Register(rebuild, scheduler.Every(sched.RebuildInterval)); err != nil {
		return err
	}
	if err := s.Register(reminders, scheduler.Monthly(sched.ReminderDay, 9, 0)); err != nil {
		return err
	}
	return s.Register(recognition, scheduler.Monthly(sched.RecognitionDay, 6, 0))
}

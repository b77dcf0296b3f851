package jobs

import (
	"context"
	"fmt"

	"github.com/impact-hub/partner-portal/internal/application/command"
	"github.com/impact-hub/partner-portal/internal/application/port"
	"github.com/impact-hub/partner-portal/internal/infrastructure/scheduler"
	"github.com/impact-hub/partner-portal/pkg/logger"
)

// ReminderSender sends the monthly contribution reminders.
type ReminderSender interface {
	Handle(ctx context.Context) (*command.SendRemindersResult, error)
}

// ContributionReminderJob reminds partners who have not contributed this month.
type ContributionReminderJob struct {
	sender   ReminderSender
	features port.Features
	log      *logger.Logger
}

// NewContributionReminderJob creates the reminder job.
func NewContributionReminderJob(sender ReminderSender, features port.Features, log *logger.Logger) *ContributionReminderJob {
	if log == nil {
		log = logger.Nop()
	}
	return &ContributionReminderJob{sender: sender, features: features, log: log}
}

func (j *ContributionReminderJob) Name() string { return "contribution_reminder" }

func (j *ContributionReminderJob) Description() string {
	return "Reminds partners without a contribution in the current month"
}

func (j *ContributionReminderJob) Run(ctx context.Context) error {
	if !j.features.Enabled(port.FeatureReminders) {
		return fmt.Errorf("%w: %s is off", scheduler.ErrSkipped, port.FeatureReminders)
	}

	res, err := j.sender.Handle(ctx)
	if err != nil {
		return err
	}
	j.log.Info("contribution reminders sent",
		logger.String("month", res.Month),
		logger.Int("checked", res.Checked),
		logger.Int("reminded", res.Reminded),
		logger.Int("skipped", res.Skipped),
	)
	return nil
}

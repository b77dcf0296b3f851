package jobs

import (
	"context"
	"fmt"

	"github.com/impact-hub/partner-portal/internal/application/command"
	"github.com/impact-hub/partner-portal/internal/application/port"
	"github.com/impact-hub/partner-portal/internal/infrastructure/scheduler"
	"github.com/impact-hub/partner-portal/pkg/logger"
)

// RecognitionAwarder awards the previous month's top contributor.
type RecognitionAwarder interface {
	Handle(ctx context.Context) (*command.AwardRecognitionResult, error)
}

// MonthlyRecognitionJob awards the top contributor of the previous month.
type MonthlyRecognitionJob struct {
	awarder  RecognitionAwarder
	features port.Features
	log      *logger.Logger
}

// NewMonthlyRecognitionJob creates the recognition job.
func NewMonthlyRecognitionJob(awarder RecognitionAwarder, features port.Features, log *logger.Logger) *MonthlyRecognitionJob {
	if log == nil {
		log = logger.Nop()
	}
	return &MonthlyRecognitionJob{awarder: awarder, features: features, log: log}
}

func (j *MonthlyRecognitionJob) Name() string { return "monthly_recognition" }

func (j *MonthlyRecognitionJob) Description() string {
	return "Awards top_contributor for the previous month"
}

func (j *MonthlyRecognitionJob) Run(ctx context.Context) error {
	if !j.features.Enabled(port.FeatureMonthlyRecognition) {
		return fmt.Errorf("%w: %s is off", scheduler.ErrSkipped, port.FeatureMonthlyRecognition)
	}

	res, err := j.awarder.Handle(ctx)
	if err != nil {
		return err
	}
	if res.Recognition == nil {
		j.log.Info("no approved contributions last month", logger.String("month", res.Month))
		return nil
	}
	j.log.Info("monthly recognition processed",
		logger.String("month", res.Month),
		logger.PartnerID(res.Recognition.PartnerID),
		logger.Bool("created", res.Created),
	)
	return nil
}

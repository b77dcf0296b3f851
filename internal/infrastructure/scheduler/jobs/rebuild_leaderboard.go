// Package jobs contains the portal's scheduled jobs.
package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/impact-hub/partner-portal/internal/application/port"
	"github.com/impact-hub/partner-portal/internal/domain/leaderboard"
	"github.com/impact-hub/partner-portal/internal/infrastructure/scheduler"
	"github.com/impact-hub/partner-portal/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REBUILD LEADERBOARD JOB
// Recomputes every period and refreshes the cache, so the first request after
// an approval rarely pays for the computation.
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardRebuilder recomputes one period and stores it in the cache.
type LeaderboardRebuilder interface {
	Rebuild(ctx context.Context, period leaderboard.Period) (*leaderboard.Snapshot, error)
}

// RebuildLeaderboardJob warms the leaderboard cache for all periods.
type RebuildLeaderboardJob struct {
	rebuilder LeaderboardRebuilder
	features  port.Features
	log       *logger.Logger
}

// NewRebuildLeaderboardJob creates a new rebuild leaderboard job.
func NewRebuildLeaderboardJob(rebuilder LeaderboardRebuilder, features port.Features, log *logger.Logger) *RebuildLeaderboardJob {
	if log == nil {
		log = logger.Nop()
	}
	return &RebuildLeaderboardJob{rebuilder: rebuilder, features: features, log: log}
}

func (j *RebuildLeaderboardJob) Name() string { return "rebuild_leaderboard" }

func (j *RebuildLeaderboardJob) Description() string {
	return "Recomputes weekly, monthly and all-time leaderboards into the cache"
}

// Run rebuilds each period. One failing period does not stop the others.
func (j *RebuildLeaderboardJob) Run(ctx context.Context) error {
	if !j.features.Enabled(port.FeatureLeaderboardCache) {
		return fmt.Errorf("%w: %s is off", scheduler.ErrSkipped, port.FeatureLeaderboardCache)
	}

	var errs []error
	for _, period := range leaderboard.AllPeriods {
		if err := ctx.Err(); err != nil {
			return err
		}
		snap, err := j.rebuilder.Rebuild(ctx, period)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", period, err))
			continue
		}
		j.log.Debug("leaderboard rebuilt",
			logger.Period(period.String()),
			logger.Int("entries", len(snap.Entries)),
		)
	}
	return errors.Join(errs...)
}

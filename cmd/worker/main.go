// Package main - точка входа фонового процесса (Worker) партнёрского портала.
//
// Worker выполняет периодические задачи:
// - Пересборка снапшотов лидерборда в Redis
// - Ежемесячные напоминания партнёрам без взноса в текущем месяце
// - Ежемесячное признание лучшего партнёра прошлого месяца
//
// Несколько реплик безопасны: каждая задача берёт распределённую блокировку в Redis.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/impact-hub/partner-portal/config"
	"github.com/impact-hub/partner-portal/internal/application/command"
	"github.com/impact-hub/partner-portal/internal/application/eventhandler"
	"github.com/impact-hub/partner-portal/internal/application/port"
	"github.com/impact-hub/partner-portal/internal/application/query"
	"github.com/impact-hub/partner-portal/internal/bootstrap"
	"github.com/impact-hub/partner-portal/internal/domain/shared"
	"github.com/impact-hub/partner-portal/internal/infrastructure/persistence/redis"
	"github.com/impact-hub/partner-portal/internal/infrastructure/scheduler"
	"github.com/impact-hub/partner-portal/internal/infrastructure/scheduler/jobs"
	"github.com/impact-hub/partner-portal/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ И ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := bootstrap.NewLogger(cfg).With(logger.Component("worker"))
	if !cfg.Scheduler.Enabled {
		log.Info("scheduler disabled, nothing to do")
		return nil
	}
	log.Info("starting partner portal worker", logger.String("timezone", cfg.App.Timezone))

	// ─────────────────────────────────────────────────────────────────────────
	// 2. ИНФРАСТРУКТУРА
	// Миграции применяет API; worker только подключается.
	// ─────────────────────────────────────────────────────────────────────────
	infra, err := bootstrap.Open(ctx, cfg, log, bootstrap.Options{RequireDatabase: true})
	if err != nil {
		return err
	}
	defer infra.Close()

	if err := (eventhandler.Handlers{Audit: eventhandler.NewAuditHandler(log)}).Register(infra.Bus); err != nil {
		return fmt.Errorf("failed to register event handlers: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	schedCfg := scheduler.DefaultConfig()
	schedCfg.Location = cfg.App.Location
	schedCfg.JobTimeout = cfg.Scheduler.JobTimeout
	if infra.Redis != nil {
		schedCfg.Locker = redis.NewLocker(infra.Redis, 0)
	} else {
		log.Warn("Redis not configured, jobs are not locked across replicas")
	}

	sched, err := scheduler.New(schedCfg, log)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	var (
		store    = infra.Store
		features = cfg.Features
		newID    = port.IDGenerator(uuid.NewString)
		now      = shared.Clock(shared.SystemClock)
	)
	lbConfig := query.DefaultLeaderboardConfig()
	if cfg.Redis.LeaderboardTTL > 0 {
		lbConfig.CacheTTL = cfg.Redis.LeaderboardTTL
	}
	leaderboards := query.NewGetLeaderboardHandler(store, infra.Leaderboard, features, lbConfig, log, now)

	err = jobs.Register(sched,
		jobs.Schedules{
			RebuildInterval: cfg.Scheduler.RebuildLeaderboardInterval,
			ReminderDay:     cfg.Scheduler.ReminderDay,
			RecognitionDay:  cfg.Scheduler.RecognitionDay,
		},
		jobs.NewRebuildLeaderboardJob(leaderboards, features, log),
		jobs.NewContributionReminderJob(command.NewSendRemindersHandler(store, newID, now), features, log),
		jobs.NewMonthlyRecognitionJob(command.NewAwardRecognitionHandler(store, infra.Bus, newID, now), features, log),
	)
	if err != nil {
		return fmt.Errorf("failed to register jobs: %w", err)
	}

	for _, j := range sched.ListJobs() {
		log.Info("job scheduled",
			logger.String("job", j.Name),
			logger.String("schedule", j.Schedule),
			logger.Time("next_run", j.NextRun),
		)
	}

	sched.Start()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	<-ctx.Done()
	log.Info("shutdown signal received")

	if err := sched.Stop(); err != nil {
		log.Error("scheduler stop failed", logger.Err(err))
	}
	log.Info("partner portal worker stopped")
	return nil
}

// Package main - точка входа HTTP API партнёрского портала.
//
// Процесс поднимает хранилище (PostgreSQL или in-memory для разработки),
// кеш лидерборда в Redis, шину событий и хранилище файлов подтверждения,
// собирает команды и запросы и обслуживает REST API до сигнала остановки.
package main

import (
	"context"
	"errors"
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
	"github.com/impact-hub/partner-portal/internal/domain/contribution"
	"github.com/impact-hub/partner-portal/internal/domain/shared"
	"github.com/impact-hub/partner-portal/internal/infrastructure/auth"
	"github.com/impact-hub/partner-portal/internal/infrastructure/storage"
	httpserver "github.com/impact-hub/partner-portal/internal/interface/http"
	"github.com/impact-hub/partner-portal/internal/interface/http/handlers"
	"github.com/impact-hub/partner-portal/pkg/logger"
)

// devJWTSecret is only accepted when APP_ENV=development.
const devJWTSecret = "development-only-secret-change-me"

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

	log := bootstrap.NewLogger(cfg)
	log.Info("starting partner portal API",
		logger.Bool("debug", cfg.App.Debug),
		logger.Int("port", cfg.HTTP.Port),
	)
	for _, f := range cfg.Features.All() {
		log.Debug("feature flag", logger.String("name", f.Name), logger.Bool("enabled", f.Enabled))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. ИНФРАСТРУКТУРА
	// ─────────────────────────────────────────────────────────────────────────
	infra, err := bootstrap.Open(ctx, cfg, log, bootstrap.Options{Migrate: cfg.Database.Migrate})
	if err != nil {
		return err
	}
	defer infra.Close()

	var proofs contribution.ProofStorage
	var proofStore *storage.S3ProofStore
	if cfg.Storage.Bucket != "" {
		proofStore, err = storage.NewS3ProofStore(ctx, storage.Config{
			Bucket:          cfg.Storage.Bucket,
			Region:          cfg.Storage.Region,
			Endpoint:        cfg.Storage.Endpoint,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			UsePathStyle:    cfg.Storage.UsePathStyle,
			Timeout:         cfg.Storage.Timeout,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to init proof storage: %w", err)
		}
		proofs = proofStore
	} else {
		log.Warn("S3_BUCKET not set, proof uploads are disabled")
	}

	secret := cfg.Auth.JWTSecret
	if secret == "" && cfg.IsDevelopment() {
		log.Warn("JWT_SECRET not set, using the development secret")
		secret = devJWTSecret
	}
	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret: secret,
		TTL:    cfg.Auth.TokenTTL,
		Issuer: cfg.Auth.Issuer,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to init token service: %w", err)
	}
	hasher := auth.NewBcryptHasher(cfg.Auth.BcryptCost)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. EVENT HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	hs := eventhandler.Handlers{Audit: eventhandler.NewAuditHandler(log)}
	if infra.Leaderboard != nil {
		hs.Invalidation = eventhandler.NewOnContributionApprovedHandler(
			infra.Leaderboard, infra.Bus, log, eventhandler.DefaultInvalidationConfig())
	}
	if err := hs.Register(infra.Bus); err != nil {
		return fmt.Errorf("failed to register event handlers: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. COMMANDS & QUERIES
	// ─────────────────────────────────────────────────────────────────────────
	var (
		store    = infra.Store
		ranks    = cfg.Ranks.Table
		features = cfg.Features
		newID    = port.IDGenerator(uuid.NewString)
		now      = shared.Clock(shared.SystemClock)
	)

	lbConfig := query.DefaultLeaderboardConfig()
	if cfg.Redis.LeaderboardTTL > 0 {
		lbConfig.CacheTTL = cfg.Redis.LeaderboardTTL
	}

	checker := handlers.NewCompositeHealthChecker(cfg.App.Version)
	infra.HealthChecks(checker)
	if proofStore != nil {
		checker.AddCheck("object_storage", handlers.PingCheck(proofStore), false)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	httpCfg := httpserver.DefaultConfig()
	httpCfg.Host = cfg.HTTP.Host
	httpCfg.Port = cfg.HTTP.Port
	httpCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	httpCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	httpCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	httpCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	httpCfg.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	httpCfg.Version = cfg.App.Version

	server := httpserver.NewServer(httpCfg, httpserver.Dependencies{
		SignUp:        command.NewSignUpHandler(store, hasher, tokens, ranks, cfg.Auth.AdminEmails, infra.Bus, newID, now),
		SignIn:        command.NewSignInHandler(store, hasher, tokens),
		UpdateProfile: command.NewUpdateProfileHandler(store, now),
		Submit:        command.NewSubmitContributionHandler(store, proofs, infra.Bus, newID, now),
		Approve:       command.NewApproveContributionHandler(store, ranks, features, infra.Bus, newID, now),
		Reject:        command.NewRejectContributionHandler(store, infra.Bus, newID, now),
		MarkRead:      command.NewMarkReadHandler(store),
		Leaderboard:   query.NewGetLeaderboardHandler(store, infra.Leaderboard, features, lbConfig, log, now),
		Partners:      query.NewPartnerHandler(store, ranks, now),
		Contributions: query.NewContributionsHandler(store, proofs),
		Inbox:         query.NewInboxHandler(store),
		Tokens:        tokens,
		HealthChecker: checker,
		Logger:        log,
	})

	errCh := server.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 6. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("HTTP server shutdown failed", logger.Err(err))
	}
	log.Info("partner portal API stopped")
	return nil
}

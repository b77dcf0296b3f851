// Package eventhandler содержит обработчики доменных событий.
// Обработчики подписываются на шину событий и выполняют побочные эффекты
// после коммита: сброс кешей, аудит. Команды их не ждут и от них не зависят.
package eventhandler

import (
	"context"
	"fmt"
	"time"

	"github.com/impact-hub/partner-portal/internal/domain/leaderboard"
	"github.com/impact-hub/partner-portal/internal/domain/shared"
	"github.com/impact-hub/partner-portal/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ON CONTRIBUTION APPROVED HANDLER
// Сбрасывает кеш лидерборда после каждого одобрения, чтобы следующий
// запрос пересчитал рейтинг из базы.
// ══════════════════════════════════════════════════════════════════════════════

// InvalidationConfig содержит конфигурацию обработчика.
type InvalidationConfig struct {
	// Timeout - ограничение на вызов кеша.
	Timeout time.Duration

	// AnnounceInvalidation - публиковать ли leaderboard.invalidated после сброса.
	AnnounceInvalidation bool
}

// DefaultInvalidationConfig возвращает конфигурацию по умолчанию.
func DefaultInvalidationConfig() InvalidationConfig {
	return InvalidationConfig{
		Timeout:              2 * time.Second,
		AnnounceInvalidation: true,
	}
}

// OnContributionApprovedHandler инвалидирует снапшоты лидерборда.
type OnContributionApprovedHandler struct {
	cache     leaderboard.Cache
	publisher shared.EventPublisher
	log       *logger.Logger
	config    InvalidationConfig
}

// NewOnContributionApprovedHandler создаёт обработчик. publisher может быть nil.
func NewOnContributionApprovedHandler(
	cache leaderboard.Cache,
	publisher shared.EventPublisher,
	log *logger.Logger,
	config InvalidationConfig,
) *OnContributionApprovedHandler {
	if log == nil {
		log = logger.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultInvalidationConfig().Timeout
	}
	return &OnContributionApprovedHandler{
		cache:     cache,
		publisher: publisher,
		log:       log.With(logger.Component("on_contribution_approved")),
		config:    config,
	}
}

// Handle реализует shared.EventHandler.
func (h *OnContributionApprovedHandler) Handle(event shared.Event) error {
	// События из Redis приходят без конкретного типа, поэтому проверяем EventType.
	if event.EventType() != shared.EventContributionApproved {
		h.log.Warn("received unexpected event", logger.String("event_type", string(event.EventType())))
		return nil
	}
	if h.cache == nil {
		return nil
	}
	contributionID := event.AggregateID()
	partnerID, _ := event.Payload()["partner_id"].(string)

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	start := time.Now()
	if err := h.cache.InvalidateAll(ctx); err != nil {
		h.log.Error("leaderboard invalidation failed",
			logger.ContributionID(contributionID),
			logger.PartnerID(partnerID),
			logger.Err(err),
		)
		return fmt.Errorf("invalidate leaderboard: %w", err)
	}

	h.log.Debug("leaderboard invalidated",
		logger.ContributionID(contributionID),
		logger.Latency(time.Since(start)),
	)

	if h.config.AnnounceInvalidation && h.publisher != nil {
		reason := "contribution " + contributionID + " approved"
		if err := h.publisher.Publish(shared.NewLeaderboardInvalidatedEvent(reason)); err != nil {
			h.log.Warn("publish leaderboard.invalidated failed", logger.Err(err))
		}
	}
	return nil
}

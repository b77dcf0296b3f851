package eventhandler

import (
	"sync/atomic"

	"github.com/impact-hub/partner-portal/internal/domain/shared"
	"github.com/impact-hub/partner-portal/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// AUDIT HANDLER
// Пишет каждое доменное событие в структурированный лог.
// ══════════════════════════════════════════════════════════════════════════════

// AuditHandler логирует все события шины.
type AuditHandler struct {
	log  *logger.Logger
	seen atomic.Int64
}

// NewAuditHandler создаёт аудит-обработчик.
func NewAuditHandler(log *logger.Logger) *AuditHandler {
	if log == nil {
		log = logger.Default()
	}
	return &AuditHandler{log: log.With(logger.Component("audit"))}
}

// Handle реализует shared.EventHandler.
func (h *AuditHandler) Handle(event shared.Event) error {
	h.seen.Add(1)

	fields := []logger.Field{
		logger.String("event_type", string(event.EventType())),
		logger.String("aggregate_id", event.AggregateID()),
		logger.Time("occurred_at", event.OccurredAt()),
	}
	for k, v := range event.Payload() {
		fields = append(fields, logger.Any(k, v))
	}

	h.log.Info("domain event", fields...)
	return nil
}

// Seen возвращает количество обработанных событий.
func (h *AuditHandler) Seen() int64 {
	return h.seen.Load()
}

// ══════════════════════════════════════════════════════════════════════════════
// REGISTRATION
// ══════════════════════════════════════════════════════════════════════════════

// Handlers - набор обработчиков, которые подписываются на шину.
type Handlers struct {
	Invalidation *OnContributionApprovedHandler
	Audit        *AuditHandler
}

// Register подписывает обработчики на шину. nil-обработчики пропускаются.
func (hs Handlers) Register(bus shared.EventSubscriber) error {
	if hs.Invalidation != nil {
		if err := bus.Subscribe(shared.EventContributionApproved, hs.Invalidation.Handle); err != nil {
			return err
		}
	}
	if hs.Audit != nil {
		if err := bus.SubscribeAll(hs.Audit.Handle); err != nil {
			return err
		}
	}
	return nil
}

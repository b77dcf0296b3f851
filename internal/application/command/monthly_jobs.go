package command

import (
	"context"
	"fmt"

	"github.com/impact-hub/partner-portal/internal/application/port"
	"github.com/impact-hub/partner-portal/internal/domain/leaderboard"
	"github.com/impact-hub/partner-portal/internal/domain/notification"
	"github.com/impact-hub/partner-portal/internal/domain/recognition"
	"github.com/impact-hub/partner-portal/internal/domain/shared"
	"github.com/impact-hub/partner-portal/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SEND CONTRIBUTION REMINDERS COMMAND
// Every partner without a contribution dated in the current month receives
// one "reminder" notification per month.
// ══════════════════════════════════════════════════════════════════════════════

// SendRemindersResult reports what the reminder run did.
type SendRemindersResult struct {
	Month    string `json:"month"`
	Checked  int    `json:"checked"`
	Reminded int    `json:"reminded"`
	Skipped  int    `json:"skipped"`
}

// SendRemindersHandler sends monthly contribution reminders.
type SendRemindersHandler struct {
	store  port.Store
	notify *NotifyHandler
	now    shared.Clock
}

// NewSendRemindersHandler creates a new SendRemindersHandler.
func NewSendRemindersHandler(store port.Store, newID port.IDGenerator, now shared.Clock) *SendRemindersHandler {
	return &SendRemindersHandler{store: store, notify: NewNotifyHandler(store, newID, now), now: now}
}

// Handle runs one reminder pass. Safe to repeat within a month.
func (h *SendRemindersHandler) Handle(ctx context.Context) (*SendRemindersResult, error) {
	now := h.now()
	month := recognition.MonthKey(now)
	repos := h.store.Repositories()

	contributors, err := repos.Contributions.ContributorsIn(ctx, leaderboard.PeriodMonthly.Window(now))
	if err != nil {
		return nil, fmt.Errorf("send_reminders: load contributors: %w", err)
	}

	result := &SendRemindersResult{Month: month}
	content := notification.ReminderContent(now.Format("January 2006"), month)

	page := shared.NewPagination(shared.MaxPageSize, 0)
	for {
		partners, err := repos.Partners.List(ctx, page)
		if err != nil {
			return result, fmt.Errorf("send_reminders: list partners: %w", err)
		}

		for _, p := range partners {
			result.Checked++
			if contributors[p.ID] {
				continue
			}
			sent, err := repos.Notifications.ExistsForMonth(ctx, p.ID, notification.TypeReminder, month)
			if err != nil {
				return result, fmt.Errorf("send_reminders: %w", err)
			}
			if sent {
				result.Skipped++
				continue
			}
			_, err = h.notify.Handle(ctx, NotifyCommand{
				UserID:   p.ID,
				Type:     content.Type,
				Title:    content.Title,
				Message:  content.Message,
				Metadata: content.Metadata,
			})
			if err != nil {
				return result, fmt.Errorf("send_reminders: %w", err)
			}
			result.Reminded++
		}

		if len(partners) < page.Limit {
			break
		}
		page.Offset += page.Limit
	}

	return result, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// AWARD MONTHLY RECOGNITION COMMAND
// The partner with the highest approved total for the previous month receives
// a top_contributor recognition and a "recognition" notification.
// Idempotent per (partner, type, month).
// ══════════════════════════════════════════════════════════════════════════════

// AwardRecognitionResult reports the awarded recognition, if any.
type AwardRecognitionResult struct {
	Month       string                   `json:"month"`
	Recognition *recognition.Recognition `json:"recognition,omitempty"`
	Created     bool                     `json:"created"`
}

// AwardRecognitionHandler awards the monthly top contributor.
type AwardRecognitionHandler struct {
	store     port.Store
	publisher shared.EventPublisher
	newID     port.IDGenerator
	now       shared.Clock
}

// NewAwardRecognitionHandler creates a new AwardRecognitionHandler.
func NewAwardRecognitionHandler(
	store port.Store,
	publisher shared.EventPublisher,
	newID port.IDGenerator,
	now shared.Clock,
) *AwardRecognitionHandler {
	return &AwardRecognitionHandler{store: store, publisher: publisher, newID: newID, now: now}
}

// Handle awards the recognition for the month before now.
func (h *AwardRecognitionHandler) Handle(ctx context.Context) (*AwardRecognitionResult, error) {
	now := h.now().UTC()
	from, to := timeutil.PreviousMonth(now)
	window := shared.TimeRange{From: from, To: to}
	month := recognition.MonthKey(window.From)

	result := &AwardRecognitionResult{Month: month}

	totals, err := h.store.Repositories().Leaderboard.ApprovedTotals(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("award_recognition: %w", err)
	}
	ranking := leaderboard.BuildRanking(totals, nil)
	if len(ranking) == 0 {
		return result, nil
	}
	top := ranking[0]

	err = h.store.Do(ctx, func(ctx context.Context, repos port.Repositories) error {
		p, err := repos.Partners.GetByID(ctx, top.PartnerID)
		if err != nil {
			return err
		}

		rec := &recognition.Recognition{
			ID:          h.newID(),
			PartnerID:   p.ID,
			PartnerName: p.FullName,
			Type:        recognition.TypeTopContributor,
			Title:       recognition.TypeTopContributor.Title(),
			Description: fmt.Sprintf("Highest approved contributions in %s: %s",
				window.From.Format("January 2006"), notification.FormatAmount(top.Total)),
			Month:      month,
			IsFeatured: true,
			CreatedAt:  now,
		}
		created, err := repos.Recognitions.Create(ctx, rec)
		if err != nil {
			return err
		}
		result.Recognition = rec
		result.Created = created
		if !created {
			return nil
		}

		content := notification.RecognitionContent(rec.Title, window.From.Format("January 2006"), month)
		content.Metadata["recognition_id"] = rec.ID
		_, err = notify(ctx, repos, h.newID, p.ID, content, now)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("award_recognition: %w", err)
	}

	if result.Created {
		rec := result.Recognition
		publish(ctx, h.publisher, []shared.Event{
			shared.NewRecognitionAwardedEvent(rec.ID, rec.PartnerID, string(rec.Type), rec.Month),
		})
	}
	return result, nil
}

package notification

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ══════════════════════════════════════════════════════════════════════════════
// MESSAGE TEMPLATES
// ══════════════════════════════════════════════════════════════════════════════

// Content - заголовок, текст и метаданные уведомления до присвоения ID.
type Content struct {
	Type     Type
	Title    string
	Message  string
	Metadata map[string]any
}

// Params превращает содержимое в параметры конструктора.
func (c Content) Params(id, userID string) NewParams {
	return NewParams{
		ID:       id,
		UserID:   userID,
		Type:     c.Type,
		Title:    c.Title,
		Message:  c.Message,
		Metadata: c.Metadata,
	}
}

// FormatAmount форматирует сумму как "$1,234.50".
func FormatAmount(amount decimal.Decimal) string {
	s := amount.StringFixed(2)
	sign := ""
	if s[0] == '-' {
		sign, s = "-", s[1:]
	}
	intPart, frac := s[:len(s)-3], s[len(s)-3:]
	for i := len(intPart) - 3; i > 0; i -= 3 {
		intPart = intPart[:i] + "," + intPart[i:]
	}
	return sign + "$" + intPart + frac
}

// ApprovalContent - уведомление партнёру об одобрении взноса.
func ApprovalContent(contributionID string, amount decimal.Decimal, points, newScore int64) Content {
	return Content{
		Type:  TypeApproval,
		Title: "Contribution approved",
		Message: fmt.Sprintf("Your contribution of %s was approved. +%d impact points (total %d).",
			FormatAmount(amount), points, newScore),
		Metadata: map[string]any{
			"contribution_id": contributionID,
			"amount":          amount.String(),
			"points":          points,
			"impact_score":    newScore,
		},
	}
}

// RejectionContent - уведомление партнёру об отклонении взноса.
func RejectionContent(contributionID string, amount decimal.Decimal, reason string) Content {
	return Content{
		Type:    TypeRejection,
		Title:   "Contribution rejected",
		Message: fmt.Sprintf("Your contribution of %s was rejected. Reason: %s", FormatAmount(amount), reason),
		Metadata: map[string]any{
			"contribution_id": contributionID,
			"amount":          amount.String(),
			"reason":          reason,
		},
	}
}

// SubmittedContent - уведомление администраторам о новом взносе.
func SubmittedContent(contributionID, partnerName string, amount decimal.Decimal) Content {
	return Content{
		Type:    TypeContribution,
		Title:   "New contribution to review",
		Message: fmt.Sprintf("%s submitted a contribution of %s.", partnerName, FormatAmount(amount)),
		Metadata: map[string]any{
			"contribution_id": contributionID,
			"amount":          amount.String(),
		},
	}
}

// RankUpgradeContent - уведомление о повышении уровня.
func RankUpgradeContent(oldRank, newRank string, score int64) Content {
	return Content{
		Type:    TypeRankUpgrade,
		Title:   "New rank unlocked",
		Message: fmt.Sprintf("You moved from %s to %s with %d impact points.", oldRank, newRank, score),
		Metadata: map[string]any{
			"old_rank":     oldRank,
			"new_rank":     newRank,
			"impact_score": score,
		},
	}
}

// ReminderContent - ежемесячное напоминание о взносе.
// label - название месяца для текста, monthKey - YYYY-MM для дедупликации.
func ReminderContent(label, monthKey string) Content {
	return Content{
		Type:    TypeReminder,
		Title:   "Monthly contribution reminder",
		Message: fmt.Sprintf("You have not recorded a contribution for %s yet.", label),
		Metadata: map[string]any{
			"month": monthKey,
		},
	}
}

// RecognitionContent - уведомление о награде месяца.
func RecognitionContent(title, label, monthKey string) Content {
	return Content{
		Type:    TypeRecognition,
		Title:   title,
		Message: fmt.Sprintf("Congratulations! You were recognized as %s for %s.", title, label),
		Metadata: map[string]any{
			"month": monthKey,
		},
	}
}

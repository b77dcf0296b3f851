package command

import (
	"context"
	"fmt"

	"github.com/impact-hub/partner-portal/internal/application/port"
	"github.com/impact-hub/partner-portal/internal/domain/contribution"
	"github.com/impact-hub/partner-portal/internal/domain/identity"
	"github.com/impact-hub/partner-portal/internal/domain/notification"
	"github.com/impact-hub/partner-portal/internal/domain/partner"
	"github.com/impact-hub/partner-portal/internal/domain/rank"
	"github.com/impact-hub/partner-portal/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ══════════════════════════════════════════════════════════════════════════════
// APPROVE CONTRIBUTION COMMAND
// Moves a pending contribution to approved and credits the partner.
// Status change, credit, rank, score history and notifications commit in one
// transaction. The status change is a compare-and-set on "pending", so of two
// concurrent approvals exactly one credits the partner.
// ══════════════════════════════════════════════════════════════════════════════

// ApproveContributionCommand contains the approval decision.
type ApproveContributionCommand struct {
	// Principal is the reviewing administrator.
	Principal identity.Principal

	// ContributionID is the contribution to approve.
	ContributionID string

	// Amount must equal the submitted amount.
	Amount decimal.Decimal
}

// Validate validates the command.
func (c ApproveContributionCommand) Validate() error {
	if c.ContributionID == "" {
		return shared.Validation("contribution", "Approve", "contribution_id is required")
	}
	if !c.Amount.IsPositive() {
		return shared.ErrInvalidAmount
	}
	return nil
}

// ApproveContributionResult contains the outcome of an approval.
type ApproveContributionResult struct {
	// Contribution is the approved contribution.
	Contribution *contribution.Contribution

	// Partner is the partner record after the credit.
	Partner *partner.Partner

	// PointsAwarded is floor(amount / 100).
	PointsAwarded int64

	// RankUpgraded is true when the partner moved into a higher tier.
	RankUpgraded bool

	// PreviousRank is the tier before the credit.
	PreviousRank rank.Name

	// Events contains domain events published after commit.
	Events []shared.Event
}

// ApproveContributionHandler handles the ApproveContributionCommand.
type ApproveContributionHandler struct {
	store     port.Store
	ranks     *rank.Table
	features  port.Features
	publisher shared.EventPublisher
	newID     port.IDGenerator
	now       shared.Clock
}

// NewApproveContributionHandler creates a new ApproveContributionHandler.
func NewApproveContributionHandler(
	store port.Store,
	ranks *rank.Table,
	features port.Features,
	publisher shared.EventPublisher,
	newID port.IDGenerator,
	now shared.Clock,
) *ApproveContributionHandler {
	return &ApproveContributionHandler{
		store:     store,
		ranks:     ranks,
		features:  features,
		publisher: publisher,
		newID:     newID,
		now:       now,
	}
}

// Handle executes the approval.
func (h *ApproveContributionHandler) Handle(ctx context.Context, cmd ApproveContributionCommand) (*ApproveContributionResult, error) {
	if err := cmd.Principal.RequireAdmin(); err != nil {
		return nil, fmt.Errorf("approve_contribution: %w", err)
	}
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("approve_contribution: %w", err)
	}

	now := h.now()
	result := &ApproveContributionResult{}

	err := h.store.Do(ctx, func(ctx context.Context, repos port.Repositories) error {
		c, err := repos.Contributions.GetByID(ctx, cmd.ContributionID)
		if err != nil {
			return err
		}

		review, err := c.Approve(cmd.Principal.UserID, cmd.Amount, now)
		if err != nil {
			return err
		}
		if err := repos.Contributions.ApplyReview(ctx, review); err != nil {
			return err
		}

		points := partner.PointsFor(c.Amount)
		credit, err := repos.Partners.ApplyCredit(ctx, c.PartnerID, c.Amount, points, h.ranks)
		if err != nil {
			return fmt.Errorf("credit partner: %w", err)
		}

		if err := repos.ScoreHistory.Record(ctx, partner.ScorePoint{
			PartnerID:  c.PartnerID,
			Score:      credit.NewScore,
			RecordedAt: now,
		}); err != nil {
			return fmt.Errorf("record score history: %w", err)
		}

		approval := notification.ApprovalContent(c.ID, c.Amount, points, credit.NewScore)
		if _, err := notify(ctx, repos, h.newID, c.PartnerID, approval, now); err != nil {
			return err
		}

		upgraded := credit.IsUpgrade(h.ranks)
		if upgraded && h.rankUpgradeNotifications() {
			content := notification.RankUpgradeContent(
				credit.OldRank.DisplayName(), credit.NewRank.DisplayName(), credit.NewScore)
			if _, err := notify(ctx, repos, h.newID, c.PartnerID, content, now); err != nil {
				return err
			}
		}

		p, err := repos.Partners.GetByID(ctx, c.PartnerID)
		if err != nil {
			return err
		}

		result.Contribution = c
		result.Partner = p
		result.PointsAwarded = points
		result.RankUpgraded = upgraded
		result.PreviousRank = credit.OldRank
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("approve_contribution: %w", err)
	}

	approved := shared.ContributionApprovedEvent{
		BaseEvent:       shared.NewBaseEvent(shared.EventContributionApproved, result.Contribution.ID),
		PartnerID:       result.Partner.ID,
		ReviewerID:      cmd.Principal.UserID,
		Amount:          result.Contribution.Amount.String(),
		PointsAwarded:   result.PointsAwarded,
		NewImpactScore:  result.Partner.ImpactScore,
		NewTotal:        result.Partner.TotalContributions.String(),
		ContributedDate: result.Contribution.ContributionDate.Format("2006-01-02"),
	}
	result.Events = append(result.Events, approved)
	if result.RankUpgraded {
		result.Events = append(result.Events, shared.NewRankUpgradedEvent(
			result.Partner.ID, string(result.PreviousRank), string(result.Partner.Rank), result.Partner.ImpactScore))
	}
	publish(ctx, h.publisher, result.Events)

	return result, nil
}

func (h *ApproveContributionHandler) rankUpgradeNotifications() bool {
	if h.features == nil {
		return true
	}
	return h.features.Enabled(port.FeatureRankUpgradeNotify)
}

// ══════════════════════════════════════════════════════════════════════════════
// REJECT CONTRIBUTION COMMAND
// Moves a pending contribution to rejected. The partner record is untouched.
// ══════════════════════════════════════════════════════════════════════════════

// RejectContributionCommand contains the rejection decision.
type RejectContributionCommand struct {
	// Principal is the reviewing administrator.
	Principal identity.Principal

	// ContributionID is the contribution to reject.
	ContributionID string

	// Reason is optional; "No reason provided" is recorded when empty.
	Reason string
}

// RejectContributionResult contains the rejected contribution.
type RejectContributionResult struct {
	Contribution *contribution.Contribution
	Events       []shared.Event
}

// RejectContributionHandler handles the RejectContributionCommand.
type RejectContributionHandler struct {
	store     port.Store
	publisher shared.EventPublisher
	newID     port.IDGenerator
	now       shared.Clock
}

// NewRejectContributionHandler creates a new RejectContributionHandler.
func NewRejectContributionHandler(
	store port.Store,
	publisher shared.EventPublisher,
	newID port.IDGenerator,
	now shared.Clock,
) *RejectContributionHandler {
	return &RejectContributionHandler{
		store:     store,
		publisher: publisher,
		newID:     newID,
		now:       now,
	}
}

// Handle executes the rejection.
func (h *RejectContributionHandler) Handle(ctx context.Context, cmd RejectContributionCommand) (*RejectContributionResult, error) {
	if err := cmd.Principal.RequireAdmin(); err != nil {
		return nil, fmt.Errorf("reject_contribution: %w", err)
	}
	if cmd.ContributionID == "" {
		return nil, shared.Validation("contribution", "Reject", "contribution_id is required")
	}

	now := h.now()
	result := &RejectContributionResult{}

	err := h.store.Do(ctx, func(ctx context.Context, repos port.Repositories) error {
		c, err := repos.Contributions.GetByID(ctx, cmd.ContributionID)
		if err != nil {
			return err
		}

		review, err := c.Reject(cmd.Principal.UserID, cmd.Reason, now)
		if err != nil {
			return err
		}
		if err := repos.Contributions.ApplyReview(ctx, review); err != nil {
			return err
		}

		content := notification.RejectionContent(c.ID, c.Amount, review.Reason)
		if _, err := notify(ctx, repos, h.newID, c.PartnerID, content, now); err != nil {
			return err
		}

		result.Contribution = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reject_contribution: %w", err)
	}

	c := result.Contribution
	result.Events = []shared.Event{
		shared.NewContributionRejectedEvent(c.ID, c.PartnerID, cmd.Principal.UserID, c.RejectionReason),
	}
	publish(ctx, h.publisher, result.Events)

	return result, nil
}

package command

import (
	"context"
	"fmt"
	"time"

	"github.com/impact-hub/partner-portal/internal/application/port"
	"github.com/impact-hub/partner-portal/internal/domain/contribution"
	"github.com/impact-hub/partner-portal/internal/domain/identity"
	"github.com/impact-hub/partner-portal/internal/domain/notification"
	"github.com/impact-hub/partner-portal/internal/domain/shared"
	"github.com/impact-hub/partner-portal/pkg/logger"
	"github.com/shopspring/decimal"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT CONTRIBUTION COMMAND
// A partner records a payment. The contribution starts pending and every
// administrator receives a "contribution" notification to review it.
// ══════════════════════════════════════════════════════════════════════════════

// SubmitContributionCommand contains the data for a new contribution.
type SubmitContributionCommand struct {
	// Principal is the submitting partner.
	Principal identity.Principal

	// Amount must be greater than zero.
	Amount decimal.Decimal

	// ContributionDate cannot be in the future.
	ContributionDate time.Time

	// PaymentMethod is optional.
	PaymentMethod contribution.PaymentMethod

	// Notes is optional free text.
	Notes string

	// Proof is an optional proof-of-payment file.
	Proof *contribution.Proof
}

// SubmitContributionResult contains the created contribution.
type SubmitContributionResult struct {
	Contribution *contribution.Contribution

	// AdminsNotified is the number of administrators notified.
	AdminsNotified int

	// Events contains domain events published after commit.
	Events []shared.Event
}

// SubmitContributionHandler handles the SubmitContributionCommand.
type SubmitContributionHandler struct {
	store     port.Store
	proofs    contribution.ProofStorage
	publisher shared.EventPublisher
	newID     port.IDGenerator
	now       shared.Clock
}

// NewSubmitContributionHandler creates a new SubmitContributionHandler.
// proofs may be nil when object storage is not configured; uploads then fail.
func NewSubmitContributionHandler(
	store port.Store,
	proofs contribution.ProofStorage,
	publisher shared.EventPublisher,
	newID port.IDGenerator,
	now shared.Clock,
) *SubmitContributionHandler {
	return &SubmitContributionHandler{
		store:     store,
		proofs:    proofs,
		publisher: publisher,
		newID:     newID,
		now:       now,
	}
}

// Handle validates the input, stores the optional proof and creates the contribution.
func (h *SubmitContributionHandler) Handle(ctx context.Context, cmd SubmitContributionCommand) (*SubmitContributionResult, error) {
	if !cmd.Principal.IsAuthenticated() {
		return nil, shared.NewDomainError("contribution", "Submit", shared.ErrUnauthorized, "authentication required")
	}

	now := h.now()
	c, err := contribution.New(contribution.Draft{
		ID:               h.newID(),
		PartnerID:        cmd.Principal.UserID,
		Amount:           cmd.Amount,
		ContributionDate: cmd.ContributionDate,
		PaymentMethod:    cmd.PaymentMethod,
		Notes:            cmd.Notes,
	}, now)
	if err != nil {
		return nil, fmt.Errorf("submit_contribution: %w", err)
	}

	if cmd.Proof != nil {
		key, err := h.storeProof(ctx, cmd.Principal.UserID, *cmd.Proof, now)
		if err != nil {
			return nil, fmt.Errorf("submit_contribution: %w", err)
		}
		c.ProofKey = key
	}

	result := &SubmitContributionResult{Contribution: c}

	err = h.store.Do(ctx, func(ctx context.Context, repos port.Repositories) error {
		p, err := repos.Partners.GetByID(ctx, c.PartnerID)
		if err != nil {
			return err
		}
		if err := repos.Contributions.Create(ctx, c); err != nil {
			return err
		}

		adminIDs, err := repos.Users.ListAdminIDs(ctx)
		if err != nil {
			return err
		}
		content := notification.SubmittedContent(c.ID, p.FullName, c.Amount)
		for _, adminID := range adminIDs {
			if _, err := notify(ctx, repos, h.newID, adminID, content, now); err != nil {
				return err
			}
		}
		result.AdminsNotified = len(adminIDs)
		return nil
	})
	if err != nil {
		h.discardProof(ctx, c.ProofKey)
		return nil, fmt.Errorf("submit_contribution: %w", err)
	}

	event := shared.NewContributionSubmittedEvent(c.ID, c.PartnerID, c.Amount.String(), c.HasProof())
	result.Events = []shared.Event{event}
	publish(ctx, h.publisher, result.Events)

	return result, nil
}

// storeProof validates and uploads the proof, returning its object key.
// Runs before the transaction: a storage failure leaves no contribution behind.
func (h *SubmitContributionHandler) storeProof(ctx context.Context, partnerID string, proof contribution.Proof, now time.Time) (string, error) {
	ext, err := contribution.ValidateProof(proof.ContentType, proof.Size)
	if err != nil {
		return "", err
	}
	if h.proofs == nil {
		return "", shared.ErrProofStorageDisabled
	}
	key := contribution.ProofKey(partnerID, now, ext)
	if err := h.proofs.Upload(ctx, key, proof); err != nil {
		return "", fmt.Errorf("upload proof: %w", err)
	}
	return key, nil
}

// discardProof removes a proof uploaded for a contribution that was never
// committed. It runs even when the request was cancelled; a failure leaves
// an orphan object and is logged with its key.
func (h *SubmitContributionHandler) discardProof(ctx context.Context, key string) {
	if key == "" || h.proofs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := h.proofs.Delete(ctx, key); err != nil {
		logger.FromContext(ctx).Error("orphaned proof not deleted",
			logger.String("proof_key", key),
			logger.Err(err),
		)
	}
}

// publish hands committed events to the bus. Call only after the unit of work
// has committed. Handler failures are logged by the bus; a refused publish
// (bus closed during shutdown) is logged here.
func publish(ctx context.Context, publisher shared.EventPublisher, events []shared.Event) {
	if publisher == nil {
		return
	}
	for _, e := range events {
		if err := publisher.Publish(e); err != nil {
			logger.FromContext(ctx).Warn("event not published",
				logger.String("event_type", string(e.EventType())),
				logger.String("aggregate_id", e.AggregateID()),
				logger.Err(err),
			)
		}
	}
}

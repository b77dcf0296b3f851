package command

import (
	"context"
	"fmt"

	"github.com/impact-hub/partner-portal/internal/application/port"
	"github.com/impact-hub/partner-portal/internal/domain/identity"
	"github.com/impact-hub/partner-portal/internal/domain/partner"
	"github.com/impact-hub/partner-portal/internal/domain/shared"
)

// UpdateProfileCommand changes the caller's own profile fields.
// Nil fields are left unchanged.
type UpdateProfileCommand struct {
	Principal identity.Principal
	FullName  *string
	Phone     *string
	AvatarURL *string
}

// UpdateProfileHandler handles the UpdateProfileCommand.
type UpdateProfileHandler struct {
	store port.Store
	now   shared.Clock
}

// NewUpdateProfileHandler creates a new UpdateProfileHandler.
func NewUpdateProfileHandler(store port.Store, now shared.Clock) *UpdateProfileHandler {
	return &UpdateProfileHandler{store: store, now: now}
}

// Handle applies the update and returns the saved partner.
func (h *UpdateProfileHandler) Handle(ctx context.Context, cmd UpdateProfileCommand) (*partner.Partner, error) {
	if !cmd.Principal.IsAuthenticated() {
		return nil, shared.NewDomainError("partner", "UpdateProfile", shared.ErrUnauthorized, "authentication required")
	}

	var updated *partner.Partner
	err := h.store.Do(ctx, func(ctx context.Context, repos port.Repositories) error {
		p, err := repos.Partners.GetByID(ctx, cmd.Principal.UserID)
		if err != nil {
			return err
		}
		if err := p.UpdateProfile(partner.ProfileUpdate{
			FullName:  cmd.FullName,
			Phone:     cmd.Phone,
			AvatarURL: cmd.AvatarURL,
		}, h.now()); err != nil {
			return err
		}
		if err := repos.Partners.UpdateProfile(ctx, p); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update_profile: %w", err)
	}
	return updated, nil
}

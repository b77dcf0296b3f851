package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/impact-hub/partner-portal/internal/application/port"
	"github.com/impact-hub/partner-portal/internal/domain/identity"
	"github.com/impact-hub/partner-portal/internal/domain/partner"
	"github.com/impact-hub/partner-portal/internal/domain/rank"
	"github.com/impact-hub/partner-portal/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SIGN UP COMMAND
// Creates the user account and its partner record in one transaction.
// Emails listed in the admin allow-list receive the admin role.
// ══════════════════════════════════════════════════════════════════════════════

// SignUpCommand contains the registration data.
type SignUpCommand struct {
	Email    string
	Password string
	FullName string
}

// Validate validates the command.
func (c SignUpCommand) Validate() error {
	if !strings.Contains(shared.NormalizeEmail(c.Email), "@") {
		return shared.Validation("identity", "SignUp", "email is invalid")
	}
	return identity.ValidatePassword(c.Password)
}

// AuthResult is returned by sign up and sign in.
type AuthResult struct {
	User      *identity.User   `json:"user"`
	Partner   *partner.Partner `json:"partner,omitempty"`
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
}

// SignUpHandler handles the SignUpCommand.
type SignUpHandler struct {
	store       port.Store
	hasher      port.PasswordHasher
	tokens      port.TokenIssuer
	ranks       *rank.Table
	adminEmails map[string]bool
	publisher   shared.EventPublisher
	newID       port.IDGenerator
	now         shared.Clock
}

// NewSignUpHandler creates a new SignUpHandler.
func NewSignUpHandler(
	store port.Store,
	hasher port.PasswordHasher,
	tokens port.TokenIssuer,
	ranks *rank.Table,
	adminEmails []string,
	publisher shared.EventPublisher,
	newID port.IDGenerator,
	now shared.Clock,
) *SignUpHandler {
	admins := make(map[string]bool, len(adminEmails))
	for _, e := range adminEmails {
		if e = shared.NormalizeEmail(e); e != "" {
			admins[e] = true
		}
	}
	return &SignUpHandler{
		store:       store,
		hasher:      hasher,
		tokens:      tokens,
		ranks:       ranks,
		adminEmails: admins,
		publisher:   publisher,
		newID:       newID,
		now:         now,
	}
}

// Handle registers the user and returns an access token.
func (h *SignUpHandler) Handle(ctx context.Context, cmd SignUpCommand) (*AuthResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("sign_up: %w", err)
	}

	now := h.now()
	email := shared.NormalizeEmail(cmd.Email)
	id := h.newID()

	p, err := partner.NewPartner(id, cmd.FullName, email, h.ranks, now)
	if err != nil {
		return nil, fmt.Errorf("sign_up: %w", err)
	}

	hash, err := h.hasher.Hash(cmd.Password)
	if err != nil {
		return nil, fmt.Errorf("sign_up: hash password: %w", err)
	}

	role := identity.RolePartner
	if h.adminEmails[email] {
		role = identity.RoleAdmin
	}
	user := &identity.User{ID: id, Email: email, PasswordHash: hash, Role: role, CreatedAt: now}

	err = h.store.Do(ctx, func(ctx context.Context, repos port.Repositories) error {
		if err := repos.Users.Create(ctx, user); err != nil {
			return err
		}
		return repos.Partners.Create(ctx, p)
	})
	if err != nil {
		return nil, fmt.Errorf("sign_up: %w", err)
	}

	token, expiresAt, err := h.tokens.Issue(identity.Principal{UserID: user.ID, Role: user.Role})
	if err != nil {
		return nil, fmt.Errorf("sign_up: issue token: %w", err)
	}

	publish(ctx, h.publisher, []shared.Event{shared.NewPartnerRegisteredEvent(p.ID, p.Email, p.FullName)})

	return &AuthResult{User: user, Partner: p, Token: token, ExpiresAt: expiresAt}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SIGN IN COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// SignInCommand contains the credentials.
type SignInCommand struct {
	Email    string
	Password string
}

// SignInHandler handles the SignInCommand.
type SignInHandler struct {
	store  port.Store
	hasher port.PasswordHasher
	tokens port.TokenIssuer
}

// NewSignInHandler creates a new SignInHandler.
func NewSignInHandler(store port.Store, hasher port.PasswordHasher, tokens port.TokenIssuer) *SignInHandler {
	return &SignInHandler{store: store, hasher: hasher, tokens: tokens}
}

// Handle verifies the credentials and returns an access token.
// Unknown email and wrong password produce the same error.
func (h *SignInHandler) Handle(ctx context.Context, cmd SignInCommand) (*AuthResult, error) {
	email := shared.NormalizeEmail(cmd.Email)
	if email == "" || cmd.Password == "" {
		return nil, shared.ErrInvalidCredentials
	}

	user, err := h.store.Repositories().Users.GetByEmail(ctx, email)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("sign_in: %w", err)
	}
	if err := h.hasher.Compare(user.PasswordHash, cmd.Password); err != nil {
		return nil, shared.ErrInvalidCredentials
	}

	token, expiresAt, err := h.tokens.Issue(identity.Principal{UserID: user.ID, Role: user.Role})
	if err != nil {
		return nil, fmt.Errorf("sign_in: issue token: %w", err)
	}
	return &AuthResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

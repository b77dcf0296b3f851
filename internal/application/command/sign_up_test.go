package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/impact-hub/partner-portal/internal/domain/identity"
	"github.com/impact-hub/partner-portal/internal/domain/rank"
	"github.com/impact-hub/partner-portal/internal/domain/shared"
)

func (f *fixture) signUp(admins ...string) *SignUpHandler {
	return NewSignUpHandler(f.store, plainHasher{}, stubTokens{}, f.ranks, admins, f.publisher, f.newID, clock)
}

func TestSignUp_CreatesUserAndPartner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.signUp().Handle(ctx, SignUpCommand{
		Email:    " Ada@Example.com ",
		Password: "correct horse",
		FullName: "Ada Lovelace",
	})
	require.NoError(t, err)

	assert.Equal(t, "ada@example.com", res.User.Email)
	assert.Equal(t, identity.RolePartner, res.User.Role)
	assert.Equal(t, "hashed:correct horse", res.User.PasswordHash)
	assert.Equal(t, res.User.ID, res.Partner.ID)
	assert.Equal(t, rank.Bronze, res.Partner.Rank)
	assert.Equal(t, "token-"+res.User.ID+"-partner", res.Token)

	p := f.partner(t, res.User.ID)
	assert.Equal(t, "Ada Lovelace", p.FullName)
	assert.Equal(t, []shared.EventType{shared.EventPartnerRegistered}, f.publisher.types())
}

func TestSignUp_AdminAllowList(t *testing.T) {
	f := newFixture(t)

	res, err := f.signUp("OPS@example.com").Handle(context.Background(), SignUpCommand{
		Email: "ops@example.com", Password: "longenough", FullName: "Ops",
	})
	require.NoError(t, err)
	assert.Equal(t, identity.RoleAdmin, res.User.Role)

	admins, err := f.store.Repositories().Users.ListAdminIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{res.User.ID}, admins)
}

func TestSignUp_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.signUp().Handle(ctx, SignUpCommand{Email: "ada@example.com", Password: "longenough", FullName: "Ada"})
	require.NoError(t, err)

	tests := []struct {
		name  string
		cmd   SignUpCommand
		check func(error) bool
	}{
		{"duplicate email", SignUpCommand{Email: "ADA@example.com", Password: "longenough", FullName: "Other"}, shared.IsConflict},
		{"short password", SignUpCommand{Email: "bob@example.com", Password: "short", FullName: "Bob"}, shared.IsValidation},
		{"bad email", SignUpCommand{Email: "bob", Password: "longenough", FullName: "Bob"}, shared.IsValidation},
		{"missing name", SignUpCommand{Email: "bob@example.com", Password: "longenough"}, shared.IsValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.signUp().Handle(ctx, tt.cmd)
			require.Error(t, err)
			assert.True(t, tt.check(err), err.Error())
		})
	}

	// the failed duplicate left no orphan partner behind
	partners, err := f.store.Repositories().Partners.List(ctx, shared.NewPagination(0, 0))
	require.NoError(t, err)
	assert.Len(t, partners, 1)
}

func TestSignIn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	up, err := f.signUp().Handle(ctx, SignUpCommand{Email: "ada@example.com", Password: "longenough", FullName: "Ada"})
	require.NoError(t, err)

	h := NewSignInHandler(f.store, plainHasher{}, stubTokens{})

	res, err := h.Handle(ctx, SignInCommand{Email: "Ada@example.com", Password: "longenough"})
	require.NoError(t, err)
	assert.Equal(t, up.User.ID, res.User.ID)
	assert.NotEmpty(t, res.Token)

	_, err = h.Handle(ctx, SignInCommand{Email: "ada@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = h.Handle(ctx, SignInCommand{Email: "nobody@example.com", Password: "longenough"})
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
	assert.True(t, shared.IsUnauthorized(err))
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	p := f.addUser(t, "p-1", identity.RolePartner)
	h := NewUpdateProfileHandler(f.store, clock)
	ctx := context.Background()

	name, phone := "  Ada King ", "+44 20 7946 0000"
	updated, err := h.Handle(ctx, UpdateProfileCommand{Principal: p, FullName: &name, Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, "Ada King", updated.FullName)
	assert.Equal(t, "Ada King", f.partner(t, "p-1").FullName)
	assert.Equal(t, phone, f.partner(t, "p-1").Phone)

	bad := "ftp://avatar"
	_, err = h.Handle(ctx, UpdateProfileCommand{Principal: p, AvatarURL: &bad})
	assert.True(t, shared.IsValidation(err))

	_, err = h.Handle(ctx, UpdateProfileCommand{FullName: &name})
	assert.True(t, shared.IsUnauthorized(err))
}

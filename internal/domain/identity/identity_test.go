package identity

import (
	"context"
	"testing"

	"github.com/impact-hub/partner-portal/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRole(t *testing.T) {
	assert.False(t, RolePartner.IsAdmin())
	assert.True(t, RoleAdmin.IsAdmin())
	assert.True(t, RoleSuperAdmin.IsAdmin())
	assert.False(t, Role("").IsAdmin())

	r, err := ParseRole(" Admin ")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, r)

	_, err = ParseRole("moderator")
	assert.ErrorIs(t, err, shared.ErrInvalidRole)
}

func TestPrincipal_RequireAdmin(t *testing.T) {
	assert.NoError(t, Principal{UserID: "u-1", Role: RoleAdmin}.RequireAdmin())

	err := Principal{UserID: "u-1", Role: RolePartner}.RequireAdmin()
	assert.ErrorIs(t, err, shared.ErrAdminRequired)
	assert.True(t, shared.IsAuthorization(err))

	err = Principal{}.RequireAdmin()
	assert.True(t, shared.IsUnauthorized(err))
}

func TestPrincipal_CanAccess(t *testing.T) {
	owner := Principal{UserID: "u-1", Role: RolePartner}
	other := Principal{UserID: "u-2", Role: RolePartner}
	admin := Principal{UserID: "u-3", Role: RoleAdmin}

	assert.NoError(t, owner.CanAccess("u-1"))
	assert.ErrorIs(t, other.CanAccess("u-1"), shared.ErrNotOwner)
	assert.NoError(t, admin.CanAccess("u-1"))
}

func TestPrincipalContext(t *testing.T) {
	_, ok := PrincipalFrom(context.Background())
	assert.False(t, ok)

	ctx := WithPrincipal(context.Background(), Principal{UserID: "u-1", Role: RolePartner})
	p, ok := PrincipalFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, "u-1", p.UserID)
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("correct-horse"))
	assert.True(t, shared.IsValidation(ValidatePassword("short")))
}

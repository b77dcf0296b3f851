// Package identity описывает пользователей портала, их роли
// и проверку прав на уровне доменных операций.
package identity

import (
	"context"
	"strings"
	"time"

	"github.com/impact-hub/partner-portal/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ROLE
// ══════════════════════════════════════════════════════════════════════════════

// Role - явная роль пользователя.
type Role string

const (
	// RolePartner - обычный партнёр.
	RolePartner Role = "partner"

	// RoleAdmin - администратор, проверяет взносы.
	RoleAdmin Role = "admin"

	// RoleSuperAdmin - администратор с правом управлять ролями.
	RoleSuperAdmin Role = "super_admin"
)

// IsValid проверяет корректность роли.
func (r Role) IsValid() bool {
	switch r {
	case RolePartner, RoleAdmin, RoleSuperAdmin:
		return true
	default:
		return false
	}
}

// IsAdmin возвращает true для admin и super_admin.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// String возвращает строковое представление роли.
func (r Role) String() string {
	return string(r)
}

// ParseRole разбирает роль из токена или базы.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", shared.ErrInvalidRole
	}
	return r, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// USER
// ══════════════════════════════════════════════════════════════════════════════

// MinPasswordLength - минимальная длина пароля.
const MinPasswordLength = 8

// User - учётная запись.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// ValidatePassword проверяет требования к паролю.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return shared.Validation("identity", "SignUp", "password must be at least 8 characters")
	}
	if len(password) > 72 {
		return shared.Validation("identity", "SignUp", "password must be at most 72 bytes")
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PRINCIPAL
// ══════════════════════════════════════════════════════════════════════════════

// Principal - идентичность текущего запроса.
// Передаётся во все операции, которым нужна авторизация.
type Principal struct {
	UserID string
	Role   Role
}

// IsAdmin возвращает true, если у вызывающего административная роль.
func (p Principal) IsAdmin() bool {
	return p.Role.IsAdmin()
}

// IsAuthenticated возвращает true, если идентичность заполнена.
func (p Principal) IsAuthenticated() bool {
	return p.UserID != "" && p.Role.IsValid()
}

// RequireAdmin возвращает ErrAdminRequired для не-администраторов.
func (p Principal) RequireAdmin() error {
	if !p.IsAuthenticated() {
		return shared.NewDomainError("identity", "Authorize", shared.ErrUnauthorized, "authentication required")
	}
	if !p.IsAdmin() {
		return shared.ErrAdminRequired
	}
	return nil
}

// CanAccess разрешает доступ владельцу ресурса и администраторам.
func (p Principal) CanAccess(ownerID string) error {
	if !p.IsAuthenticated() {
		return shared.NewDomainError("identity", "Authorize", shared.ErrUnauthorized, "authentication required")
	}
	if p.UserID == ownerID || p.IsAdmin() {
		return nil
	}
	return shared.ErrNotOwner
}

type principalKey struct{}

// WithPrincipal кладёт идентичность в контекст.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom достаёт идентичность из контекста.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции с пользователями.
type Repository interface {
	// Create сохраняет пользователя. Занятый email - ErrEmailTaken.
	Create(ctx context.Context, u *User) error

	// GetByEmail ищет пользователя по нормализованному email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByID возвращает пользователя.
	GetByID(ctx context.Context, id string) (*User, error)

	// ListAdminIDs возвращает ID всех пользователей с административной ролью.
	ListAdminIDs(ctx context.Context) ([]string, error)
}

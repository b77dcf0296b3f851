// Package port declares the outbound dependencies of the application layer
// that span more than one domain package.
package port

import (
	"context"
	"time"

	"github.com/impact-hub/partner-portal/internal/domain/contribution"
	"github.com/impact-hub/partner-portal/internal/domain/identity"
	"github.com/impact-hub/partner-portal/internal/domain/leaderboard"
	"github.com/impact-hub/partner-portal/internal/domain/notification"
	"github.com/impact-hub/partner-portal/internal/domain/partner"
	"github.com/impact-hub/partner-portal/internal/domain/recognition"
)

// Repositories groups every repository bound to the same connection or
// transaction.
type Repositories struct {
	Partners      partner.Repository
	ScoreHistory  partner.ScoreHistoryRepository
	Contributions contribution.Repository
	Notifications notification.Repository
	Users         identity.Repository
	Recognitions  recognition.Repository
	Leaderboard   leaderboard.Source
}

// UnitOfWork runs fn inside one transaction.
// If fn returns an error every write made through repos is rolled back.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

// Store is the persistence entry point: non-transactional repositories
// for reads plus the unit of work for multi-step writes.
type Store interface {
	UnitOfWork

	// Repositories returns repositories bound to the connection pool.
	Repositories() Repositories
}

// IDGenerator produces identifiers for new entities.
type IDGenerator func() string

// Features reports whether a named feature flag is switched on.
type Features interface {
	Enabled(name string) bool
}

// FeaturesFunc adapts a function to Features.
type FeaturesFunc func(name string) bool

// Enabled implements Features.
func (f FeaturesFunc) Enabled(name string) bool { return f(name) }

// Feature flag names consulted by the application layer.
const (
	FeatureLeaderboardCache   = "leaderboard.cache"
	FeatureRankUpgradeNotify  = "notify.rank_upgrade"
	FeatureReminders          = "scheduler.reminders"
	FeatureMonthlyRecognition = "scheduler.recognition"
)

// PasswordHasher hashes and verifies user passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Compare returns nil when password matches hash.
	Compare(hash, password string) error
}

// TokenIssuer issues access tokens for an authenticated principal.
type TokenIssuer interface {
	Issue(p identity.Principal) (token string, expiresAt time.Time, err error)
}

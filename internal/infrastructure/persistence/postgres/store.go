package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/impact-hub/partner-portal/internal/application/port"
	"github.com/impact-hub/partner-portal/internal/domain/rank"
	"github.com/impact-hub/partner-portal/internal/domain/shared"
)

var _ port.Store = (*Store)(nil)

// Store implements port.Store on top of a Connection.
// Repositories returned by Repositories run each call on the pool with
// QueryTimeout; Do binds them to a single transaction bounded by TxTimeout.
type Store struct {
	conn *Connection
	cfg  Config
	now  func() time.Time
}

// NewStore creates a store. now is used for updated_at columns.
func NewStore(conn *Connection, now func() time.Time) *Store {
	cfg := conn.Config()
	def := DefaultConfig()
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = def.QueryTimeout
	}
	if cfg.TxTimeout <= 0 {
		cfg.TxTimeout = def.TxTimeout
	}
	if now == nil {
		now = shared.SystemClock
	}
	return &Store{conn: conn, cfg: cfg, now: now}
}

// Repositories returns repositories bound to the connection pool.
func (s *Store) Repositories() port.Repositories {
	return s.bind(s.conn, s.cfg.QueryTimeout)
}

// Do runs fn inside one read-committed transaction.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, repos port.Repositories) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.TxTimeout)
	defer cancel()

	err := s.conn.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(ctx, s.bind(tx, 0))
	})
	if err == nil {
		return nil
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	return classify("UnitOfWork", err, nil, nil)
}

// SeedRanks replaces the ranks table with the configured rank table.
func (s *Store) SeedRanks(ctx context.Context, table *rank.Table) error {
	err := s.conn.WithTx(ctx, func(tx pgx.Tx) error {
		// thresholds are unique, so a reshuffled table cannot be upserted row by row
		if _, err := tx.Exec(ctx, `DELETE FROM ranks`); err != nil {
			return err
		}
		for _, r := range table.Ranks() {
			perks := r.Perks
			if perks == nil {
				perks = []string{}
			}
			_, err := tx.Exec(ctx, `
				INSERT INTO ranks (rank_name, min_score, badge_url, description, perks)
				VALUES ($1, $2, $3, $4, $5)
			`, string(r.Name), r.MinScore, r.BadgeURL, r.Description, perks)
			if err != nil {
				return err
			}
		}
		return nil
	})
	return classify("SeedRanks", err, nil, nil)
}

func (s *Store) bind(q Querier, timeout time.Duration) port.Repositories {
	b := binding{q: q, timeout: timeout, now: s.now}
	return port.Repositories{
		Partners:      &PartnerRepository{b},
		ScoreHistory:  &ScoreHistoryRepository{b},
		Contributions: &ContributionRepository{b},
		Notifications: &NotificationRepository{b},
		Users:         &UserRepository{b},
		Recognitions:  &RecognitionRepository{b},
		Leaderboard:   &LeaderboardSource{b},
	}
}

// binding is the querier shared by the repositories of one Repositories set.
type binding struct {
	q       Querier
	timeout time.Duration
	now     func() time.Time
}

// ctx applies the per-call timeout. Inside a unit of work the timeout is
// zero and the transaction deadline applies instead.
func (b binding) ctx(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, b.timeout)
}

// window converts a half-open time range into nullable date bounds.
func window(tr shared.TimeRange) (from, to *time.Time) {
	if !tr.From.IsZero() {
		f := tr.From.UTC()
		from = &f
	}
	if !tr.To.IsZero() {
		t := tr.To.UTC()
		to = &t
	}
	return from, to
}

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Migration is one forward-only schema step.
type Migration struct {
	Version int
	Name    string
	UpSQL   string
}

// GetMigrations returns all embedded migrations in version order.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_identity", UpSQL: migration001Up},
		{Version: 2, Name: "create_contributions", UpSQL: migration002Up},
		{Version: 3, Name: "create_engagement", UpSQL: migration003Up},
	}
}

// migrationLockID serialises migrators started by concurrent API replicas.
const migrationLockID int64 = 0x70617274 // "part"

// Migrator applies pending migrations, one transaction per version.
type Migrator struct {
	conn       *Connection
	migrations []Migration
}

// NewMigrator creates a migrator for the embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{conn: conn, migrations: GetMigrations()}
}

// Migrate applies every migration not yet recorded in schema_migrations
// and returns how many ran. Each version runs under a transaction-scoped
// advisory lock and is re-checked after the lock is taken, so replicas
// starting together apply it once.
func (m *Migrator) Migrate(ctx context.Context) (int, error) {
	_, err := m.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return 0, fmt.Errorf("postgres: create schema_migrations: %w", err)
	}

	applied := 0
	for _, mig := range m.migrations {
		ran := false
		err := m.conn.WithTx(ctx, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockID); err != nil {
				return err
			}
			var done bool
			err := tx.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, mig.Version).Scan(&done)
			if err != nil || done {
				return err
			}
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return err
			}
			_, err = tx.Exec(ctx,
				`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, mig.Version, mig.Name)
			ran = err == nil
			return err
		})
		if err != nil {
			return applied, fmt.Errorf("postgres: migration %d (%s): %w", mig.Version, mig.Name, err)
		}
		if ran {
			applied++
		}
	}
	return applied, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: USERS, PARTNERS, RANKS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS users (
    id UUID PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    role TEXT NOT NULL DEFAULT 'partner',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_role CHECK (role IN ('partner', 'admin', 'super_admin'))
);

CREATE INDEX IF NOT EXISTS idx_users_admins ON users(id) WHERE role <> 'partner';

CREATE TABLE IF NOT EXISTS ranks (
    rank_name TEXT PRIMARY KEY,
    min_score BIGINT NOT NULL UNIQUE,
    badge_url TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    perks TEXT[] NOT NULL DEFAULT '{}',

    CONSTRAINT valid_min_score CHECK (min_score >= 0)
);

INSERT INTO ranks (rank_name, min_score) VALUES
    ('bronze', 0),
    ('silver', 500),
    ('gold', 1000),
    ('platinum', 2500),
    ('black_card', 5000)
ON CONFLICT (rank_name) DO NOTHING;

CREATE TABLE IF NOT EXISTS partners (
    id UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
    full_name TEXT NOT NULL,
    email TEXT NOT NULL UNIQUE,
    phone TEXT NOT NULL DEFAULT '',
    avatar_url TEXT NOT NULL DEFAULT '',
    rank TEXT NOT NULL DEFAULT 'bronze',
    total_contributions NUMERIC(14,2) NOT NULL DEFAULT 0,
    impact_score BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_total CHECK (total_contributions >= 0),
    CONSTRAINT valid_score CHECK (impact_score >= 0)
);

CREATE INDEX IF NOT EXISTS idx_partners_created_at ON partners(created_at, id);

CREATE TABLE IF NOT EXISTS score_history (
    id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    partner_id UUID NOT NULL REFERENCES partners(id) ON DELETE CASCADE,
    score BIGINT NOT NULL,
    recorded_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_score_history_partner ON score_history(partner_id, recorded_at DESC);
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CONTRIBUTIONS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS contributions (
    id UUID PRIMARY KEY,
    partner_id UUID NOT NULL REFERENCES partners(id) ON DELETE CASCADE,
    amount NUMERIC(14,2) NOT NULL,
    contribution_date DATE NOT NULL,
    payment_method TEXT NOT NULL DEFAULT '',
    proof_key TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'pending',
    rejection_reason TEXT NOT NULL DEFAULT '',
    reviewed_by UUID REFERENCES users(id),
    reviewed_at TIMESTAMP WITH TIME ZONE,
    notes TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_amount CHECK (amount > 0),
    CONSTRAINT valid_status CHECK (status IN ('pending', 'approved', 'rejected')),
    CONSTRAINT reviewed_when_decided CHECK (status = 'pending' OR reviewed_at IS NOT NULL)
);

CREATE INDEX IF NOT EXISTS idx_contributions_partner ON contributions(partner_id, contribution_date DESC);
CREATE INDEX IF NOT EXISTS idx_contributions_status ON contributions(status, contribution_date DESC);

-- Leaderboard windows scan approved rows by date
CREATE INDEX IF NOT EXISTS idx_contributions_approved_date
    ON contributions(contribution_date, partner_id) WHERE status = 'approved';
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: NOTIFICATIONS, RECOGNITIONS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS notifications (
    id UUID PRIMARY KEY,
    seq BIGINT GENERATED ALWAYS AS IDENTITY,
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    type TEXT NOT NULL,
    title TEXT NOT NULL,
    message TEXT NOT NULL,
    is_read BOOLEAN NOT NULL DEFAULT FALSE,
    metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_type CHECK (type IN ('approval', 'rejection', 'contribution', 'rank_upgrade', 'reminder', 'recognition'))
);

CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at DESC, seq DESC);
CREATE INDEX IF NOT EXISTS idx_notifications_unread ON notifications(user_id) WHERE NOT is_read;
CREATE INDEX IF NOT EXISTS idx_notifications_month ON notifications(user_id, type, (metadata->>'month'));

CREATE TABLE IF NOT EXISTS recognitions (
    id UUID PRIMARY KEY,
    partner_id UUID NOT NULL REFERENCES partners(id) ON DELETE CASCADE,
    type TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    month CHAR(7) NOT NULL,
    is_featured BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT unique_recognition UNIQUE (partner_id, type, month)
);

CREATE INDEX IF NOT EXISTS idx_recognitions_created ON recognitions(created_at DESC);
`

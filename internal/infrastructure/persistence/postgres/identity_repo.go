package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/impact-hub/partner-portal/internal/domain/identity"
	"github.com/impact-hub/partner-portal/internal/domain/recognition"
	"github.com/impact-hub/partner-portal/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// USERS
// ══════════════════════════════════════════════════════════════════════════════

// UserRepository implements identity.Repository.
type UserRepository struct{ b binding }

func scanUser(row pgx.Row) (*identity.User, error) {
	var (
		u    identity.User
		role string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &role, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Role = identity.Role(role)
	return &u, nil
}

func (r *UserRepository) Create(ctx context.Context, u *identity.User) error {
	ctx, cancel := r.b.ctx(ctx)
	defer cancel()

	_, err := r.b.q.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, role, created_at) VALUES ($1, $2, $3, $4, $5)
	`, u.ID, u.Email, u.PasswordHash, string(u.Role), u.CreatedAt)
	return classify("Users.Create", err, nil, shared.ErrEmailTaken)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*identity.User, error) {
	ctx, cancel := r.b.ctx(ctx)
	defer cancel()

	u, err := scanUser(r.b.q.QueryRow(ctx, `
		SELECT id::text, email, password_hash, role, created_at FROM users WHERE email = $1
	`, shared.NormalizeEmail(email)))
	if err != nil {
		return nil, classify("Users.GetByEmail", err, shared.ErrUserNotFound, nil)
	}
	return u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*identity.User, error) {
	ctx, cancel := r.b.ctx(ctx)
	defer cancel()

	u, err := scanUser(r.b.q.QueryRow(ctx, `
		SELECT id::text, email, password_hash, role, created_at FROM users WHERE id = $1
	`, id))
	if err != nil {
		return nil, classify("Users.GetByID", err, shared.ErrUserNotFound, nil)
	}
	return u, nil
}

func (r *UserRepository) ListAdminIDs(ctx context.Context) ([]string, error) {
	ctx, cancel := r.b.ctx(ctx)
	defer cancel()

	rows, err := r.b.q.Query(ctx, `
		SELECT id::text FROM users WHERE role IN ('admin', 'super_admin') ORDER BY id
	`)
	if err != nil {
		return nil, classify("Users.ListAdminIDs", err, nil, nil)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, classify("Users.ListAdminIDs", err, nil, nil)
		}
		out = append(out, id)
	}
	return out, classify("Users.ListAdminIDs", rows.Err(), nil, nil)
}

// ══════════════════════════════════════════════════════════════════════════════
// RECOGNITIONS
// ══════════════════════════════════════════════════════════════════════════════

// RecognitionRepository implements recognition.Repository.
type RecognitionRepository struct{ b binding }

func (r *RecognitionRepository) Create(ctx context.Context, rec *recognition.Recognition) (bool, error) {
	ctx, cancel := r.b.ctx(ctx)
	defer cancel()

	tag, err := r.b.q.Exec(ctx, `
		INSERT INTO recognitions (id, partner_id, type, title, description, month, is_featured, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (partner_id, type, month) DO NOTHING
	`, rec.ID, rec.PartnerID, string(rec.Type), rec.Title, rec.Description, rec.Month, rec.IsFeatured, rec.CreatedAt)
	if IsForeignKeyViolation(err) {
		return false, shared.ErrPartnerNotFound
	}
	if err != nil {
		return false, classify("Recognitions.Create", err, nil, nil)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *RecognitionRepository) ListRecent(ctx context.Context, limit int) ([]*recognition.Recognition, error) {
	ctx, cancel := r.b.ctx(ctx)
	defer cancel()

	var limitArg *int
	if limit > 0 {
		limitArg = &limit
	}
	rows, err := r.b.q.Query(ctx, `
		SELECT r.id::text, r.partner_id::text, COALESCE(p.full_name, ''), r.type, r.title,
		       r.description, r.month, r.is_featured, r.created_at
		FROM recognitions r
		LEFT JOIN partners p ON p.id = r.partner_id
		ORDER BY r.created_at DESC, r.id
		LIMIT $1
	`, limitArg)
	if err != nil {
		return nil, classify("Recognitions.ListRecent", err, nil, nil)
	}
	defer rows.Close()

	var out []*recognition.Recognition
	for rows.Next() {
		var (
			rec recognition.Recognition
			typ string
		)
		err := rows.Scan(&rec.ID, &rec.PartnerID, &rec.PartnerName, &typ, &rec.Title,
			&rec.Description, &rec.Month, &rec.IsFeatured, &rec.CreatedAt)
		if err != nil {
			return nil, classify("Recognitions.ListRecent", err, nil, nil)
		}
		rec.Type = recognition.Type(typ)
		out = append(out, &rec)
	}
	return out, classify("Recognitions.ListRecent", rows.Err(), nil, nil)
}

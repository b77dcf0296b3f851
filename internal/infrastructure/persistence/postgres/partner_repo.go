package postgres

import (
	"context"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/impact-hub/partner-portal/internal/domain/partner"
	"github.com/impact-hub/partner-portal/internal/domain/rank"
	"github.com/impact-hub/partner-portal/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PARTNERS
// ══════════════════════════════════════════════════════════════════════════════

// PartnerRepository implements partner.Repository.
type PartnerRepository struct{ b binding }

const partnerColumns = `
	id::text, full_name, email, phone, avatar_url, rank,
	total_contributions::text, impact_score, created_at, updated_at`

func scanPartner(row pgx.Row) (*partner.Partner, error) {
	var (
		p     partner.Partner
		rnk   string
		total string
	)
	err := row.Scan(&p.ID, &p.FullName, &p.Email, &p.Phone, &p.AvatarURL, &rnk,
		&total, &p.ImpactScore, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Rank = rank.Name(rnk)
	if p.TotalContributions, err = decimal.NewFromString(total); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PartnerRepository) Create(ctx context.Context, p *partner.Partner) error {
	ctx, cancel := r.b.ctx(ctx)
	defer cancel()

	_, err := r.b.q.Exec(ctx, `
		INSERT INTO partners (id, full_name, email, phone, avatar_url, rank,
			total_contributions, impact_score, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9, $10)
	`, p.ID, p.FullName, p.Email, p.Phone, p.AvatarURL, string(p.Rank),
		p.TotalContributions.String(), p.ImpactScore, p.CreatedAt, p.UpdatedAt)
	return classify("Partners.Create", err, nil, shared.ErrPartnerAlreadyExists)
}

func (r *PartnerRepository) GetByID(ctx context.Context, id string) (*partner.Partner, error) {
	ctx, cancel := r.b.ctx(ctx)
	defer cancel()

	p, err := scanPartner(r.b.q.QueryRow(ctx, `SELECT `+partnerColumns+` FROM partners WHERE id = $1`, id))
	if err != nil {
		return nil, classify("Partners.GetByID", err, shared.ErrPartnerNotFound, nil)
	}
	return p, nil
}

func (r *PartnerRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*partner.Partner, error) {
	out := make(map[string]*partner.Partner, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	ctx, cancel := r.b.ctx(ctx)
	defer cancel()

	rows, err := r.b.q.Query(ctx, `SELECT `+partnerColumns+` FROM partners WHERE id = ANY($1::uuid[])`, ids)
	if err != nil {
		return nil, classify("Partners.GetByIDs", err, nil, nil)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPartner(rows)
		if err != nil {
			return nil, classify("Partners.GetByIDs", err, nil, nil)
		}
		out[p.ID] = p
	}
	return out, classify("Partners.GetByIDs", rows.Err(), nil, nil)
}

func (r *PartnerRepository) List(ctx context.Context, page shared.Pagination) ([]*partner.Partner, error) {
	ctx, cancel := r.b.ctx(ctx)
	defer cancel()

	rows, err := r.b.q.Query(ctx, `
		SELECT `+partnerColumns+` FROM partners
		ORDER BY created_at, id
		LIMIT $1 OFFSET $2
	`, page.Limit, page.Offset)
	if err != nil {
		return nil, classify("Partners.List", err, nil, nil)
	}
	defer rows.Close()

	var out []*partner.Partner
	for rows.Next() {
		p, err := scanPartner(rows)
		if err != nil {
			return nil, classify("Partners.List", err, nil, nil)
		}
		out = append(out, p)
	}
	return out, classify("Partners.List", rows.Err(), nil, nil)
}

func (r *PartnerRepository) UpdateProfile(ctx context.Context, p *partner.Partner) error {
	ctx, cancel := r.b.ctx(ctx)
	defer cancel()

	tag, err := r.b.q.Exec(ctx, `
		UPDATE partners
		SET full_name = $2, phone = $3, avatar_url = $4, updated_at = $5
		WHERE id = $1
	`, p.ID, p.FullName, p.Phone, p.AvatarURL, p.UpdatedAt)
	if err != nil {
		return classify("Partners.UpdateProfile", err, nil, nil)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrPartnerNotFound
	}
	return nil
}

// ApplyCredit increments the stored totals in one statement, so concurrent
// credits never read a stale value, then persists the derived rank.
// Callers run it inside a unit of work; the row stays locked until commit.
func (r *PartnerRepository) ApplyCredit(ctx context.Context, id string, amount decimal.Decimal, points int64, table *rank.Table) (*partner.Credit, error) {
	ctx, cancel := r.b.ctx(ctx)
	defer cancel()

	now := r.b.now()
	var (
		oldRank string
		score   int64
		total   string
	)
	err := r.b.q.QueryRow(ctx, `
		UPDATE partners
		SET total_contributions = total_contributions + $2::numeric,
		    impact_score = impact_score + $3,
		    updated_at = $4
		WHERE id = $1
		RETURNING rank, impact_score, total_contributions::text
	`, id, amount.String(), points, now).Scan(&oldRank, &score, &total)
	if err != nil {
		return nil, classify("Partners.ApplyCredit", err, shared.ErrPartnerNotFound, nil)
	}

	newTotal, err := decimal.NewFromString(total)
	if err != nil {
		return nil, classify("Partners.ApplyCredit", err, nil, nil)
	}

	credit := &partner.Credit{
		Amount:   amount,
		Points:   points,
		OldRank:  rank.Name(oldRank),
		NewRank:  table.RankForScore(score).Name,
		NewScore: score,
		NewTotal: newTotal,
	}
	credit.RankChanged = credit.OldRank != credit.NewRank

	if credit.RankChanged {
		_, err := r.b.q.Exec(ctx, `UPDATE partners SET rank = $2 WHERE id = $1`, id, string(credit.NewRank))
		if err != nil {
			return nil, classify("Partners.ApplyCredit", err, nil, nil)
		}
	}
	return credit, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SCORE HISTORY
// ══════════════════════════════════════════════════════════════════════════════

// ScoreHistoryRepository implements partner.ScoreHistoryRepository.
type ScoreHistoryRepository struct{ b binding }

func (r *ScoreHistoryRepository) Record(ctx context.Context, point partner.ScorePoint) error {
	ctx, cancel := r.b.ctx(ctx)
	defer cancel()

	_, err := r.b.q.Exec(ctx, `
		INSERT INTO score_history (partner_id, score, recorded_at) VALUES ($1, $2, $3)
	`, point.PartnerID, point.Score, point.RecordedAt)
	return classify("ScoreHistory.Record", err, nil, nil)
}

func (r *ScoreHistoryRepository) ListRecent(ctx context.Context, partnerID string, limit int) ([]partner.ScorePoint, error) {
	ctx, cancel := r.b.ctx(ctx)
	defer cancel()

	var limitArg *int
	if limit > 0 {
		limitArg = &limit
	}
	rows, err := r.b.q.Query(ctx, `
		SELECT partner_id::text, score, recorded_at FROM score_history
		WHERE partner_id = $1
		ORDER BY recorded_at DESC, id DESC
		LIMIT $2
	`, partnerID, limitArg)
	if err != nil {
		return nil, classify("ScoreHistory.ListRecent", err, nil, nil)
	}
	defer rows.Close()

	var out []partner.ScorePoint
	for rows.Next() {
		var p partner.ScorePoint
		var at time.Time
		if err := rows.Scan(&p.PartnerID, &p.Score, &at); err != nil {
			return nil, classify("ScoreHistory.ListRecent", err, nil, nil)
		}
		p.RecordedAt = at.UTC()
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("ScoreHistory.ListRecent", err, nil, nil)
	}

	// oldest first
	slices.Reverse(out)
	return out, nil
}

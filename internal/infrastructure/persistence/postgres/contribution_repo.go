package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/impact-hub/partner-portal/internal/domain/contribution"
	"github.com/impact-hub/partner-portal/internal/domain/leaderboard"
	"github.com/impact-hub/partner-portal/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONTRIBUTIONS
// ══════════════════════════════════════════════════════════════════════════════

// ContributionRepository implements contribution.Repository.
type ContributionRepository struct{ b binding }

const contributionColumns = `
	id::text, partner_id::text, amount::text, contribution_date, payment_method, proof_key,
	status, rejection_reason, reviewed_by::text, reviewed_at, notes, created_at, updated_at`

func scanContribution(row pgx.Row) (*contribution.Contribution, error) {
	var (
		c          contribution.Contribution
		amount     string
		method     string
		status     string
		reviewedBy *string
	)
	err := row.Scan(&c.ID, &c.PartnerID, &amount, &c.ContributionDate, &method, &c.ProofKey,
		&status, &c.RejectionReason, &reviewedBy, &c.ReviewedAt, &c.Notes, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if c.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, err
	}
	c.ContributionDate = contribution.TruncateDate(c.ContributionDate)
	c.PaymentMethod = contribution.PaymentMethod(method)
	c.Status = contribution.Status(status)
	if reviewedBy != nil {
		c.ReviewedBy = *reviewedBy
	}
	return &c, nil
}

func (r *ContributionRepository) Create(ctx context.Context, c *contribution.Contribution) error {
	ctx, cancel := r.b.ctx(ctx)
	defer cancel()

	_, err := r.b.q.Exec(ctx, `
		INSERT INTO contributions (id, partner_id, amount, contribution_date, payment_method,
			proof_key, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8, $9, $10)
	`, c.ID, c.PartnerID, c.Amount.String(), c.ContributionDate, string(c.PaymentMethod),
		c.ProofKey, string(c.Status), c.Notes, c.CreatedAt, c.UpdatedAt)
	if IsForeignKeyViolation(err) {
		return shared.ErrPartnerNotFound
	}
	return classify("Contributions.Create", err, nil, nil)
}

func (r *ContributionRepository) GetByID(ctx context.Context, id string) (*contribution.Contribution, error) {
	ctx, cancel := r.b.ctx(ctx)
	defer cancel()

	c, err := scanContribution(r.b.q.QueryRow(ctx,
		`SELECT `+contributionColumns+` FROM contributions WHERE id = $1`, id))
	if err != nil {
		return nil, classify("Contributions.GetByID", err, shared.ErrContributionNotFound, nil)
	}
	return c, nil
}

func (r *ContributionRepository) List(ctx context.Context, filter contribution.ListFilter) ([]*contribution.Contribution, error) {
	filter, err := filter.Normalize()
	if err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)
	if filter.PartnerID != "" {
		args = append(args, filter.PartnerID)
		where = append(where, fmt.Sprintf("partner_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	// sort column and direction come from a closed set, never from input
	column := "contribution_date"
	if filter.Sort == contribution.SortByAmount {
		column = "amount"
	}
	dir := "DESC"
	if filter.Ascending {
		dir = "ASC"
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + contributionColumns + ` FROM contributions`)
	if len(where) > 0 {
		sb.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	fmt.Fprintf(&sb, " ORDER BY %[1]s %[2]s, created_at %[2]s, id %[2]s", column, dir)
	args = append(args, filter.Page.Limit, filter.Page.Offset)
	fmt.Fprintf(&sb, " LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	ctx, cancel := r.b.ctx(ctx)
	defer cancel()

	rows, err := r.b.q.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, classify("Contributions.List", err, nil, nil)
	}
	defer rows.Close()

	var out []*contribution.Contribution
	for rows.Next() {
		c, err := scanContribution(rows)
		if err != nil {
			return nil, classify("Contributions.List", err, nil, nil)
		}
		out = append(out, c)
	}
	return out, classify("Contributions.List", rows.Err(), nil, nil)
}

func (r *ContributionRepository) Stats(ctx context.Context, partnerID string) (contribution.Stats, error) {
	ctx, cancel := r.b.ctx(ctx)
	defer cancel()

	var (
		stats contribution.Stats
		sum   string
		last  *time.Time
	)
	err := r.b.q.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'approved'),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'rejected'),
			COALESCE(SUM(amount) FILTER (WHERE status = 'approved'), 0)::text,
			MAX(created_at)
		FROM contributions
		WHERE partner_id = $1
	`, partnerID).Scan(&stats.Total, &stats.Approved, &stats.Pending, &stats.Rejected, &sum, &last)
	if err != nil {
		return contribution.Stats{}, classify("Contributions.Stats", err, nil, nil)
	}
	if stats.ApprovedSum, err = decimal.NewFromString(sum); err != nil {
		return contribution.Stats{}, classify("Contributions.Stats", err, nil, nil)
	}
	stats.LastSubmitted = last
	return stats, nil
}

// ApplyReview is a compare-and-set on status: the UPDATE only matches a
// pending row. Under read committed a concurrent reviewer blocks on the row
// lock and then sees the decided status, so exactly one review wins.
func (r *ContributionRepository) ApplyReview(ctx context.Context, review contribution.Review) error {
	ctx, cancel := r.b.ctx(ctx)
	defer cancel()

	tag, err := r.b.q.Exec(ctx, `
		UPDATE contributions
		SET status = $2, reviewed_by = $3, reviewed_at = $4, rejection_reason = $5, updated_at = $4
		WHERE id = $1 AND status = 'pending'
	`, review.ContributionID, string(review.Status), review.ReviewerID, review.ReviewedAt, review.Reason)
	if err != nil {
		return classify("Contributions.ApplyReview", err, nil, nil)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	err = r.b.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM contributions WHERE id = $1)`,
		review.ContributionID).Scan(&exists)
	if err != nil {
		return classify("Contributions.ApplyReview", err, nil, nil)
	}
	if !exists {
		return shared.ErrContributionNotFound
	}
	return shared.ErrContributionAlreadyProcessed
}

func (r *ContributionRepository) ContributorsIn(ctx context.Context, period shared.TimeRange) (map[string]bool, error) {
	ctx, cancel := r.b.ctx(ctx)
	defer cancel()

	from, to := window(period)
	rows, err := r.b.q.Query(ctx, `
		SELECT DISTINCT partner_id::text FROM contributions
		WHERE ($1::date IS NULL OR contribution_date >= $1::date)
		  AND ($2::date IS NULL OR contribution_date < $2::date)
	`, from, to)
	if err != nil {
		return nil, classify("Contributions.ContributorsIn", err, nil, nil)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, classify("Contributions.ContributorsIn", err, nil, nil)
		}
		out[id] = true
	}
	return out, classify("Contributions.ContributorsIn", rows.Err(), nil, nil)
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD SOURCE
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardSource implements leaderboard.Source by aggregating approved
// contributions per partner inside the window.
type LeaderboardSource struct{ b binding }

func (r *LeaderboardSource) ApprovedTotals(ctx context.Context, w shared.TimeRange) ([]leaderboard.Total, error) {
	ctx, cancel := r.b.ctx(ctx)
	defer cancel()

	from, to := window(w)
	rows, err := r.b.q.Query(ctx, `
		SELECT partner_id::text, SUM(amount)::text
		FROM contributions
		WHERE status = 'approved'
		  AND ($1::date IS NULL OR contribution_date >= $1::date)
		  AND ($2::date IS NULL OR contribution_date < $2::date)
		GROUP BY partner_id
	`, from, to)
	if err != nil {
		return nil, classify("Leaderboard.ApprovedTotals", err, nil, nil)
	}
	defer rows.Close()

	var out []leaderboard.Total
	for rows.Next() {
		var (
			t   leaderboard.Total
			sum string
		)
		if err := rows.Scan(&t.PartnerID, &sum); err != nil {
			return nil, classify("Leaderboard.ApprovedTotals", err, nil, nil)
		}
		if t.Amount, err = decimal.NewFromString(sum); err != nil {
			return nil, classify("Leaderboard.ApprovedTotals", err, nil, nil)
		}
		out = append(out, t)
	}
	return out, classify("Leaderboard.ApprovedTotals", rows.Err(), nil, nil)
}

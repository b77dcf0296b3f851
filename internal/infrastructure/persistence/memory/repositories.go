package memory

import (
	"cmp"
	"context"
	"maps"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/impact-hub/partner-portal/internal/domain/contribution"
	"github.com/impact-hub/partner-portal/internal/domain/identity"
	"github.com/impact-hub/partner-portal/internal/domain/leaderboard"
	"github.com/impact-hub/partner-portal/internal/domain/notification"
	"github.com/impact-hub/partner-portal/internal/domain/partner"
	"github.com/impact-hub/partner-portal/internal/domain/rank"
	"github.com/impact-hub/partner-portal/internal/domain/recognition"
	"github.com/impact-hub/partner-portal/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PARTNERS
// ══════════════════════════════════════════════════════════════════════════════

// PartnerRepository implements partner.Repository.
type PartnerRepository struct{ b binding }

func (r *PartnerRepository) Create(_ context.Context, p *partner.Partner) error {
	return r.b.write("Partners.Create", func(t *tables) error {
		if _, ok := t.partners[p.ID]; ok {
			return shared.ErrPartnerAlreadyExists
		}
		for _, existing := range t.partners {
			if existing.Email == p.Email {
				return shared.ErrPartnerAlreadyExists
			}
		}
		cp := *p
		t.partners[p.ID] = &cp
		return nil
	})
}

func (r *PartnerRepository) GetByID(_ context.Context, id string) (*partner.Partner, error) {
	var out *partner.Partner
	err := r.b.read("Partners.GetByID", func(t *tables) error {
		p, ok := t.partners[id]
		if !ok {
			return shared.ErrPartnerNotFound
		}
		cp := *p
		out = &cp
		return nil
	})
	return out, err
}

func (r *PartnerRepository) GetByIDs(_ context.Context, ids []string) (map[string]*partner.Partner, error) {
	out := make(map[string]*partner.Partner, len(ids))
	err := r.b.read("Partners.GetByIDs", func(t *tables) error {
		for _, id := range ids {
			if p, ok := t.partners[id]; ok {
				cp := *p
				out[id] = &cp
			}
		}
		return nil
	})
	return out, err
}

func (r *PartnerRepository) List(_ context.Context, page shared.Pagination) ([]*partner.Partner, error) {
	var out []*partner.Partner
	err := r.b.read("Partners.List", func(t *tables) error {
		all := slices.Collect(maps.Values(t.partners))
		slices.SortFunc(all, func(a, b *partner.Partner) int {
			if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
				return c
			}
			return cmp.Compare(a.ID, b.ID)
		})
		for _, p := range paginate(all, page) {
			cp := *p
			out = append(out, &cp)
		}
		return nil
	})
	return out, err
}

func (r *PartnerRepository) UpdateProfile(_ context.Context, p *partner.Partner) error {
	return r.b.write("Partners.UpdateProfile", func(t *tables) error {
		stored, ok := t.partners[p.ID]
		if !ok {
			return shared.ErrPartnerNotFound
		}
		stored.FullName = p.FullName
		stored.Phone = p.Phone
		stored.AvatarURL = p.AvatarURL
		stored.UpdatedAt = p.UpdatedAt
		return nil
	})
}

func (r *PartnerRepository) ApplyCredit(_ context.Context, id string, amount decimal.Decimal, points int64, table *rank.Table) (*partner.Credit, error) {
	var credit partner.Credit
	err := r.b.write("Partners.ApplyCredit", func(t *tables) error {
		p, ok := t.partners[id]
		if !ok {
			return shared.ErrPartnerNotFound
		}
		credit = p.ApplyCredit(amount, points, table, r.b.store.now())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &credit, nil
}

// ScoreHistoryRepository implements partner.ScoreHistoryRepository.
type ScoreHistoryRepository struct{ b binding }

func (r *ScoreHistoryRepository) Record(_ context.Context, point partner.ScorePoint) error {
	return r.b.write("ScoreHistory.Record", func(t *tables) error {
		t.scores = append(t.scores, point)
		return nil
	})
}

func (r *ScoreHistoryRepository) ListRecent(_ context.Context, partnerID string, limit int) ([]partner.ScorePoint, error) {
	var out []partner.ScorePoint
	err := r.b.read("ScoreHistory.ListRecent", func(t *tables) error {
		for _, p := range t.scores {
			if p.PartnerID == partnerID {
				out = append(out, p)
			}
		}
		slices.SortStableFunc(out, func(a, b partner.ScorePoint) int {
			return a.RecordedAt.Compare(b.RecordedAt)
		})
		if limit > 0 && len(out) > limit {
			out = out[len(out)-limit:]
		}
		return nil
	})
	return out, err
}

// ══════════════════════════════════════════════════════════════════════════════
// CONTRIBUTIONS
// ══════════════════════════════════════════════════════════════════════════════

// ContributionRepository implements contribution.Repository.
type ContributionRepository struct{ b binding }

func (r *ContributionRepository) Create(_ context.Context, c *contribution.Contribution) error {
	return r.b.write("Contributions.Create", func(t *tables) error {
		if _, ok := t.partners[c.PartnerID]; !ok {
			return shared.ErrPartnerNotFound
		}
		if _, ok := t.contributions[c.ID]; ok {
			return shared.NewDomainError("contribution", "Create", shared.ErrConflict, "contribution already exists")
		}
		t.contributions[c.ID] = copyContribution(c)
		return nil
	})
}

func (r *ContributionRepository) GetByID(_ context.Context, id string) (*contribution.Contribution, error) {
	var out *contribution.Contribution
	err := r.b.read("Contributions.GetByID", func(t *tables) error {
		c, ok := t.contributions[id]
		if !ok {
			return shared.ErrContributionNotFound
		}
		out = copyContribution(c)
		return nil
	})
	return out, err
}

func (r *ContributionRepository) List(_ context.Context, filter contribution.ListFilter) ([]*contribution.Contribution, error) {
	filter, err := filter.Normalize()
	if err != nil {
		return nil, err
	}

	var out []*contribution.Contribution
	err = r.b.read("Contributions.List", func(t *tables) error {
		var matched []*contribution.Contribution
		for _, c := range t.contributions {
			if filter.PartnerID != "" && c.PartnerID != filter.PartnerID {
				continue
			}
			if filter.Status != "" && c.Status != filter.Status {
				continue
			}
			matched = append(matched, c)
		}
		slices.SortFunc(matched, func(a, b *contribution.Contribution) int {
			var c int
			if filter.Sort == contribution.SortByAmount {
				c = a.Amount.Cmp(b.Amount)
			} else {
				c = a.ContributionDate.Compare(b.ContributionDate)
			}
			if c == 0 {
				c = a.CreatedAt.Compare(b.CreatedAt)
			}
			if c == 0 {
				c = cmp.Compare(a.ID, b.ID)
			}
			if !filter.Ascending {
				c = -c
			}
			return c
		})
		for _, c := range paginate(matched, filter.Page) {
			out = append(out, copyContribution(c))
		}
		return nil
	})
	return out, err
}

func (r *ContributionRepository) Stats(_ context.Context, partnerID string) (contribution.Stats, error) {
	stats := contribution.Stats{ApprovedSum: decimal.Zero}
	err := r.b.read("Contributions.Stats", func(t *tables) error {
		for _, c := range t.contributions {
			if c.PartnerID == partnerID {
				stats.Add(c)
			}
		}
		return nil
	})
	return stats, err
}

func (r *ContributionRepository) ApplyReview(_ context.Context, review contribution.Review) error {
	return r.b.write("Contributions.ApplyReview", func(t *tables) error {
		c, ok := t.contributions[review.ContributionID]
		if !ok {
			return shared.ErrContributionNotFound
		}
		if c.Status != contribution.StatusPending {
			return shared.ErrContributionAlreadyProcessed
		}
		at := review.ReviewedAt
		c.Status = review.Status
		c.ReviewedBy = review.ReviewerID
		c.ReviewedAt = &at
		c.RejectionReason = review.Reason
		c.UpdatedAt = at
		return nil
	})
}

func (r *ContributionRepository) ContributorsIn(_ context.Context, period shared.TimeRange) (map[string]bool, error) {
	out := make(map[string]bool)
	err := r.b.read("Contributions.ContributorsIn", func(t *tables) error {
		for _, c := range t.contributions {
			if period.Contains(c.ContributionDate) {
				out[c.PartnerID] = true
			}
		}
		return nil
	})
	return out, err
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD SOURCE
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardSource implements leaderboard.Source over the contributions table.
type LeaderboardSource struct{ b binding }

func (r *LeaderboardSource) ApprovedTotals(_ context.Context, window shared.TimeRange) ([]leaderboard.Total, error) {
	var out []leaderboard.Total
	err := r.b.read("Leaderboard.ApprovedTotals", func(t *tables) error {
		sums := make(map[string]decimal.Decimal)
		for _, c := range t.contributions {
			if c.Status != contribution.StatusApproved || !window.Contains(c.ContributionDate) {
				continue
			}
			sums[c.PartnerID] = sums[c.PartnerID].Add(c.Amount)
		}
		for id, sum := range sums {
			out = append(out, leaderboard.Total{PartnerID: id, Amount: sum})
		}
		return nil
	})
	return out, err
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATIONS
// ══════════════════════════════════════════════════════════════════════════════

// NotificationRepository implements notification.Repository.
type NotificationRepository struct{ b binding }

func (r *NotificationRepository) Create(_ context.Context, n *notification.Notification) error {
	return r.b.write("Notifications.Create", func(t *tables) error {
		if _, ok := t.notifications[n.ID]; ok {
			return shared.NewDomainError("notification", "Create", shared.ErrConflict, "notification already exists")
		}
		t.seq++
		stored := &storedNotification{n: *n, seq: t.seq}
		stored.n.Metadata = maps.Clone(n.Metadata)
		t.notifications[n.ID] = stored
		return nil
	})
}

func (r *NotificationRepository) ListByUser(_ context.Context, userID string, limit int) ([]*notification.Notification, error) {
	var out []*notification.Notification
	err := r.b.read("Notifications.ListByUser", func(t *tables) error {
		var mine []*storedNotification
		for _, s := range t.notifications {
			if s.n.UserID == userID {
				mine = append(mine, s)
			}
		}
		slices.SortFunc(mine, func(a, b *storedNotification) int {
			if c := b.n.CreatedAt.Compare(a.n.CreatedAt); c != 0 {
				return c
			}
			return cmp.Compare(b.seq, a.seq)
		})
		if limit > 0 && len(mine) > limit {
			mine = mine[:limit]
		}
		for _, s := range mine {
			n := s.n
			n.Metadata = maps.Clone(s.n.Metadata)
			out = append(out, &n)
		}
		return nil
	})
	return out, err
}

func (r *NotificationRepository) CountUnread(_ context.Context, userID string) (int, error) {
	var n int
	err := r.b.read("Notifications.CountUnread", func(t *tables) error {
		for _, s := range t.notifications {
			if s.n.UserID == userID && !s.n.IsRead {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *NotificationRepository) MarkRead(_ context.Context, userID, notificationID string) error {
	return r.b.write("Notifications.MarkRead", func(t *tables) error {
		s, ok := t.notifications[notificationID]
		if !ok || s.n.UserID != userID {
			return shared.ErrNotificationNotFound
		}
		s.n.MarkRead()
		return nil
	})
}

func (r *NotificationRepository) MarkAllRead(_ context.Context, userID string) (int, error) {
	var changed int
	err := r.b.write("Notifications.MarkAllRead", func(t *tables) error {
		for _, s := range t.notifications {
			if s.n.UserID == userID && s.n.MarkRead() {
				changed++
			}
		}
		return nil
	})
	return changed, err
}

func (r *NotificationRepository) ExistsForMonth(_ context.Context, userID string, typ notification.Type, month string) (bool, error) {
	var found bool
	err := r.b.read("Notifications.ExistsForMonth", func(t *tables) error {
		for _, s := range t.notifications {
			if s.n.UserID == userID && s.n.Type == typ && s.n.Metadata["month"] == month {
				found = true
				return nil
			}
		}
		return nil
	})
	return found, err
}

// ══════════════════════════════════════════════════════════════════════════════
// USERS
// ══════════════════════════════════════════════════════════════════════════════

// UserRepository implements identity.Repository.
type UserRepository struct{ b binding }

func (r *UserRepository) Create(_ context.Context, u *identity.User) error {
	return r.b.write("Users.Create", func(t *tables) error {
		for _, existing := range t.users {
			if existing.Email == u.Email {
				return shared.ErrEmailTaken
			}
		}
		if _, ok := t.users[u.ID]; ok {
			return shared.ErrEmailTaken
		}
		cp := *u
		t.users[u.ID] = &cp
		return nil
	})
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*identity.User, error) {
	email = shared.NormalizeEmail(email)
	var out *identity.User
	err := r.b.read("Users.GetByEmail", func(t *tables) error {
		for _, u := range t.users {
			if u.Email == email {
				cp := *u
				out = &cp
				return nil
			}
		}
		return shared.ErrUserNotFound
	})
	return out, err
}

func (r *UserRepository) GetByID(_ context.Context, id string) (*identity.User, error) {
	var out *identity.User
	err := r.b.read("Users.GetByID", func(t *tables) error {
		u, ok := t.users[id]
		if !ok {
			return shared.ErrUserNotFound
		}
		cp := *u
		out = &cp
		return nil
	})
	return out, err
}

func (r *UserRepository) ListAdminIDs(_ context.Context) ([]string, error) {
	var out []string
	err := r.b.read("Users.ListAdminIDs", func(t *tables) error {
		for _, u := range t.users {
			if u.Role.IsAdmin() {
				out = append(out, u.ID)
			}
		}
		slices.Sort(out)
		return nil
	})
	return out, err
}

// ══════════════════════════════════════════════════════════════════════════════
// RECOGNITIONS
// ══════════════════════════════════════════════════════════════════════════════

// RecognitionRepository implements recognition.Repository.
type RecognitionRepository struct{ b binding }

func (r *RecognitionRepository) Create(_ context.Context, rec *recognition.Recognition) (bool, error) {
	var created bool
	err := r.b.write("Recognitions.Create", func(t *tables) error {
		for _, existing := range t.recognitions {
			if existing.PartnerID == rec.PartnerID && existing.Type == rec.Type && existing.Month == rec.Month {
				return nil
			}
		}
		cp := *rec
		t.recognitions[rec.ID] = &cp
		created = true
		return nil
	})
	return created, err
}

func (r *RecognitionRepository) ListRecent(_ context.Context, limit int) ([]*recognition.Recognition, error) {
	var out []*recognition.Recognition
	err := r.b.read("Recognitions.ListRecent", func(t *tables) error {
		all := slices.Collect(maps.Values(t.recognitions))
		slices.SortFunc(all, func(a, b *recognition.Recognition) int {
			if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
				return c
			}
			return cmp.Compare(a.ID, b.ID)
		})
		if limit > 0 && len(all) > limit {
			all = all[:limit]
		}
		for _, rec := range all {
			cp := *rec
			if p, ok := t.partners[rec.PartnerID]; ok {
				cp.PartnerName = p.FullName
			}
			out = append(out, &cp)
		}
		return nil
	})
	return out, err
}

func paginate[T any](items []T, page shared.Pagination) []T {
	if page.Offset >= len(items) {
		return nil
	}
	items = items[page.Offset:]
	if page.Limit > 0 && len(items) > page.Limit {
		items = items[:page.Limit]
	}
	return items
}

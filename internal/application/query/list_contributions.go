package query

import (
	"context"
	"fmt"

	"github.com/impact-hub/partner-portal/internal/application/port"
	"github.com/impact-hub/partner-portal/internal/domain/contribution"
	"github.com/impact-hub/partner-portal/internal/domain/identity"
	"github.com/impact-hub/partner-portal/internal/domain/shared"
	"github.com/impact-hub/partner-portal/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST CONTRIBUTIONS QUERY
// Партнёр видит только свои взносы. Администратор может запросить все
// и отфильтровать по статусу.
// ══════════════════════════════════════════════════════════════════════════════

// ListContributionsQuery содержит параметры списка.
type ListContributionsQuery struct {
	Principal identity.Principal

	// All - все партнёры (только для администраторов).
	All bool

	// PartnerID - конкретный партнёр (для администраторов).
	PartnerID string

	Status    string
	Sort      string
	Ascending bool
	Limit     int
	Offset    int
}

// ListContributionsResult - страница взносов.
type ListContributionsResult struct {
	Items  []*contribution.Contribution `json:"items"`
	Limit  int                          `json:"limit"`
	Offset int                          `json:"offset"`
}

// ContributionsHandler обслуживает чтение взносов.
type ContributionsHandler struct {
	store   port.Store
	proofs  contribution.ProofStorage
	retrier *retry.Retrier
}

// NewContributionsHandler создаёт обработчик. proofs может быть nil.
func NewContributionsHandler(store port.Store, proofs contribution.ProofStorage) *ContributionsHandler {
	return &ContributionsHandler{store: store, proofs: proofs, retrier: newReadRetrier()}
}

// List возвращает страницу взносов.
func (h *ContributionsHandler) List(ctx context.Context, q ListContributionsQuery) (*ListContributionsResult, error) {
	filter := contribution.ListFilter{
		PartnerID: q.Principal.UserID,
		Sort:      contribution.SortField(q.Sort),
		Ascending: q.Ascending,
		Page:      shared.Pagination{Limit: q.Limit, Offset: q.Offset},
	}
	if q.Status != "" {
		status, err := contribution.ParseStatus(q.Status)
		if err != nil {
			return nil, err
		}
		filter.Status = status
	}

	if q.All || (q.PartnerID != "" && q.PartnerID != q.Principal.UserID) {
		if err := q.Principal.RequireAdmin(); err != nil {
			return nil, err
		}
		filter.PartnerID = q.PartnerID
	}

	filter, err := filter.Normalize()
	if err != nil {
		return nil, err
	}

	items, err := retry.Value(ctx, h.retrier, func(ctx context.Context) ([]*contribution.Contribution, error) {
		return h.store.Repositories().Contributions.List(ctx, filter)
	})
	if err != nil {
		return nil, fmt.Errorf("list_contributions: %w", err)
	}
	return &ListContributionsResult{Items: items, Limit: filter.Page.Limit, Offset: filter.Page.Offset}, nil
}

// Get возвращает один взнос владельцу или администратору.
func (h *ContributionsHandler) Get(ctx context.Context, p identity.Principal, id string) (*contribution.Contribution, error) {
	c, err := retry.Value(ctx, h.retrier, func(ctx context.Context) (*contribution.Contribution, error) {
		return h.store.Repositories().Contributions.GetByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	if err := p.CanAccess(c.PartnerID); err != nil {
		return nil, err
	}
	return c, nil
}

// ProofURLResult - подписанная ссылка на файл подтверждения.
type ProofURLResult struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expires_in"`
}

// ProofURL выдаёт временную ссылку на файл подтверждения.
func (h *ContributionsHandler) ProofURL(ctx context.Context, p identity.Principal, id string) (*ProofURLResult, error) {
	c, err := h.Get(ctx, p, id)
	if err != nil {
		return nil, fmt.Errorf("proof_url: %w", err)
	}
	if !c.HasProof() {
		return nil, shared.ErrProofNotAttached
	}
	if h.proofs == nil {
		return nil, shared.ErrProofStorageDisabled
	}

	url, err := retry.Value(ctx, h.retrier, func(ctx context.Context) (string, error) {
		return h.proofs.SignedURL(ctx, c.ProofKey, contribution.ProofURLTTL)
	})
	if err != nil {
		return nil, fmt.Errorf("proof_url: %w", err)
	}
	return &ProofURLResult{URL: url, ExpiresIn: int(contribution.ProofURLTTL.Seconds())}, nil
}

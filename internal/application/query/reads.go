package query

import (
	"context"

	"github.com/impact-hub/partner-portal/internal/application/port"
	"github.com/impact-hub/partner-portal/internal/domain/partner"
	"github.com/impact-hub/partner-portal/internal/domain/shared"
	"github.com/impact-hub/partner-portal/pkg/retry"
)

// newReadRetrier повторяет только временные ошибки (таймауты, обрывы связи).
func newReadRetrier() *retry.Retrier {
	return retry.ReadRetrier(shared.IsRetryable)
}

func loadPartners(ctx context.Context, repos port.Repositories, ids []string) (map[string]*partner.Partner, error) {
	if len(ids) == 0 {
		return map[string]*partner.Partner{}, nil
	}
	return repos.Partners.GetByIDs(ctx, ids)
}

package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/tindalabs/storefront-core/internal/settlement/domain"
	"github.com/tindalabs/storefront-core/pkg/apperr"
)

// Service exposes the payout-side operations on settlements.
type Service struct {
	log   *slog.Logger
	repo  SettlementRepository
	clock func() time.Time
}

func NewService(log *slog.Logger, repo SettlementRepository, clock func() time.Time) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{log: log, repo: repo, clock: clock}
}

func (s *Service) ListBySeller(ctx context.Context, sellerID int64) ([]domain.Settlement, error) {
	return s.repo.ListBySeller(ctx, sellerID)
}

// MarkPaid records the payout of a settlement. Its constituent revenue
// rows flip to settled in the same transaction.
func (s *Service) MarkPaid(ctx context.Context, settlementID int64, method, reference string) (domain.Settlement, error) {
	if method == "" {
		return domain.Settlement{}, apperr.New(apperr.KindInvalidRequest, "payout method is required")
	}
	return s.repo.MarkPaid(ctx, settlementID, method, reference, s.clock().UTC())
}

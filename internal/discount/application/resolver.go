package application

import (
	"context"
	"log/slog"
	"time"
)

// Resolution is the outcome of picking the best flash sale for an
// order. Applicable is false when no sale yields a positive discount.
type Resolution struct {
	Applicable  bool  `json:"applicable"`
	SaleID      int64 `json:"sale_id,omitempty"`
	AmountCents int64 `json:"amount_cents"`
}

type Resolver struct {
	log   *slog.Logger
	repo  FlashSaleRepository
	clock func() time.Time
}

func NewResolver(log *slog.Logger, repo FlashSaleRepository, clock func() time.Time) *Resolver {
	if clock == nil {
		clock = time.Now
	}
	return &Resolver{log: log, repo: repo, clock: clock}
}

// ResolveBest selects the eligible flash sale yielding the largest
// discount for the order. Ties go to the first candidate seen, which
// is deterministic given the repository's id ordering.
func (r *Resolver) ResolveBest(ctx context.Context, sellerID, orderTotalCents int64, productIDs []int64) (Resolution, error) {
	sales, err := r.repo.ListBySeller(ctx, sellerID)
	if err != nil {
		return Resolution{}, err
	}

	now := r.clock().UTC()
	best := Resolution{}
	for _, sale := range sales {
		if !sale.RunningAt(now) {
			continue
		}
		if !sale.AppliesTo(orderTotalCents, productIDs) {
			continue
		}
		d := sale.DiscountCents(orderTotalCents)
		if d <= 0 {
			continue
		}
		if d > best.AmountCents {
			best = Resolution{Applicable: true, SaleID: sale.ID, AmountCents: d}
		}
	}
	return best, nil
}

// RecordUse burns one use of a sale after it was applied to an order.
func (r *Resolver) RecordUse(ctx context.Context, saleID int64) error {
	return r.repo.IncrementUse(ctx, saleID)
}

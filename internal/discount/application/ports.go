package application

import (
	"context"

	"github.com/tindalabs/storefront-core/internal/discount/domain"
)

type FlashSaleRepository interface {
	// ListBySeller returns the seller's active-flagged sales ordered by
	// id; time-window and usage filtering happens in the resolver.
	ListBySeller(ctx context.Context, sellerID int64) ([]domain.FlashSale, error)
	IncrementUse(ctx context.Context, saleID int64) error
}

package application

import (
	"context"
	"time"

	"github.com/tindalabs/storefront-core/internal/settlement/domain"
)

// CompletedPayment is the slice of a payment the sweep needs to
// backfill revenue.
type CompletedPayment struct {
	PaymentID   int64
	SellerID    int64
	AmountCents int64
	CompletedAt time.Time
}

type SettlementRepository interface {
	// Grace-period sweep.
	ListExpiredGraceSubscriptions(ctx context.Context, now time.Time) ([]domain.Subscription, error)
	DowngradeToFree(ctx context.Context, sellerID int64, now time.Time) error

	// Revenue backfill. CreateRevenue is idempotent on payment id.
	ListCompletedPaymentsWithoutRevenue(ctx context.Context) ([]CompletedPayment, error)
	CreateRevenue(ctx context.Context, rev domain.Revenue) error

	// Settlement batching.
	ListSellersWithPendingRevenue(ctx context.Context, before time.Time) ([]int64, error)
	ListPendingRevenue(ctx context.Context, sellerID int64, before time.Time) ([]domain.Revenue, error)
	// CreateSettlement inserts the settlement and claims its revenue
	// rows in one transaction.
	CreateSettlement(ctx context.Context, s domain.Settlement) (domain.Settlement, error)

	// Payout.
	ListBySeller(ctx context.Context, sellerID int64) ([]domain.Settlement, error)
	MarkPaid(ctx context.Context, settlementID int64, method, reference string, now time.Time) (domain.Settlement, error)
}

// UsageMeter is the opaque metering collaborator consulted at the top
// of every sweep.
type UsageMeter interface {
	RunPeriodicUsageCheck(ctx context.Context) error
}

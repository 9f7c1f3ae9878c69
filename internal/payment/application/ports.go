package application

import (
	"context"

	orderdomain "github.com/tindalabs/storefront-core/internal/order/domain"
	"github.com/tindalabs/storefront-core/internal/payment/domain"
	settlementdomain "github.com/tindalabs/storefront-core/internal/settlement/domain"
)

type PaymentRepository interface {
	Get(ctx context.Context, id int64) (domain.Payment, error)
	// FindBlocking returns the payment that blocks a new attempt for
	// the order (one in processing or completed), if any.
	FindBlocking(ctx context.Context, orderID int64) (domain.Payment, bool, error)
	ListByOrder(ctx context.Context, orderID int64) ([]domain.Payment, error)
	CreateWithOutbox(ctx context.Context, p domain.Payment, traceparent string) (domain.Payment, error)
	UpdateStatusWithOutbox(ctx context.Context, p domain.Payment, expected domain.PaymentStatus, payload []byte, traceparent string) error
}

type OrderReader interface {
	Get(ctx context.Context, id int64) (orderdomain.Order, error)
}

// RevenueWriter creates the revenue record for a completed payment.
// The write is idempotent on payment id; a duplicate is a no-op.
type RevenueWriter interface {
	CreateRevenue(ctx context.Context, rev settlementdomain.Revenue) error
}

package application

import (
	"context"

	discountapp "github.com/tindalabs/storefront-core/internal/discount/application"
	"github.com/tindalabs/storefront-core/internal/order/domain"
)

type OrderRepository interface {
	Get(ctx context.Context, id int64) (domain.Order, error)
	// CreateWithOutbox persists the order and an order.created event in
	// one transaction, returning the order with its assigned id.
	CreateWithOutbox(ctx context.Context, o domain.Order, traceparent string) (domain.Order, error)
	// UpdateStatusWithOutbox writes the mutated order conditionally on
	// its previously read status, plus the outbox event, in one
	// transaction. A racing transition surfaces as Conflict.
	UpdateStatusWithOutbox(ctx context.Context, o domain.Order, expected domain.OrderStatus, eventType string, payload []byte, traceparent string) error
}

type DiscountResolver interface {
	ResolveBest(ctx context.Context, sellerID, orderTotalCents int64, productIDs []int64) (discountapp.Resolution, error)
	RecordUse(ctx context.Context, saleID int64) error
}

package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/tindalabs/storefront-core/internal/order/domain"
	"github.com/tindalabs/storefront-core/pkg/apperr"
	"github.com/tindalabs/storefront-core/pkg/outbox"
	"github.com/tindalabs/storefront-core/pkg/tracing"
)

const (
	RefundTypeRefund = "refund"
	RefundTypeCancel = "cancel"
)

// Service is the order lifecycle coordinator: every status mutation
// goes through it, and every mutation leaves an outbox event behind
// instead of calling notifiers inline. Notification and email failures
// therefore can never roll back a status write.
type Service struct {
	log       *slog.Logger
	repo      OrderRepository
	discounts DiscountResolver
	clock     func() time.Time
}

func NewService(log *slog.Logger, repo OrderRepository, discounts DiscountResolver, clock func() time.Time) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{log: log, repo: repo, discounts: discounts, clock: clock}
}

type NewOrderInput struct {
	SellerID      int64
	CustomerID    *int64
	CustomerName  string
	Contact       string
	ItemRef       string
	ProductIDs    []int64
	Message       string
	SubtotalCents int64
	ShippingCents int64
	Address       domain.ShippingAddress
}

// Create places an order: the best eligible flash sale is resolved
// against the subtotal and snapshotted as the order's discount.
func (s *Service) Create(ctx context.Context, in NewOrderInput) (domain.Order, error) {
	if in.SellerID == 0 {
		return domain.Order{}, apperr.New(apperr.KindInvalidRequest, "seller id is required")
	}
	if in.CustomerName == "" || in.Contact == "" {
		return domain.Order{}, apperr.New(apperr.KindInvalidRequest, "customer name and contact are required")
	}
	if in.SubtotalCents <= 0 {
		return domain.Order{}, apperr.New(apperr.KindInvalidRequest, "subtotal must be positive")
	}

	now := s.clock().UTC()
	o := domain.NewOrder(in.SellerID, in.CustomerID, in.CustomerName, in.Contact,
		in.ItemRef, in.Message, in.SubtotalCents, in.ShippingCents, in.Address, now)

	res, err := s.discounts.ResolveBest(ctx, in.SellerID, in.SubtotalCents, in.ProductIDs)
	if err != nil {
		// An unreachable discount store must not block order intake.
		s.log.Error("discount resolution failed, placing order without discount", "seller_id", in.SellerID, "err", err)
		res.Applicable = false
	}
	if res.Applicable {
		o.DiscountCents = res.AmountCents
	}

	created, err := s.repo.CreateWithOutbox(ctx, o, tracing.Traceparent(ctx))
	if err != nil {
		return domain.Order{}, err
	}

	if res.Applicable {
		if err := s.discounts.RecordUse(ctx, res.SaleID); err != nil {
			s.log.Error("recording flash sale use failed", "sale_id", res.SaleID, "order_id", created.ID, "err", err)
		}
	}
	return created, nil
}

// TransitionStatus moves an order to the target status. A sellerScope
// of zero means an unscoped (admin/webhook) update; otherwise the order
// must belong to that seller. Re-applying the current status is a
// no-op so retried webhooks do not pollute the history.
func (s *Service) TransitionStatus(ctx context.Context, orderID, sellerScope int64, target domain.OrderStatus, actor, note string) (domain.Order, error) {
	if !target.Valid() {
		return domain.Order{}, apperr.New(apperr.KindInvalidRequest, "unknown order status %q", target)
	}

	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if sellerScope != 0 && o.SellerID != sellerScope {
		return domain.Order{}, apperr.New(apperr.KindNotFound, "order %d not found", orderID)
	}
	if o.Status == target {
		return o, nil
	}
	if !domain.CanTransition(o.Status, target) {
		return domain.Order{}, apperr.New(apperr.KindInvalidTransition, "order %d is %s, cannot move to %s", orderID, o.Status, target)
	}

	prev := o.Status
	o.AppendStatus(target, s.clock().UTC(), note)
	o.AppendNote(note)

	payload, err := json.Marshal(domain.OrderStatusChanged{
		OrderID:        o.ID,
		SellerID:       o.SellerID,
		Status:         target,
		PreviousStatus: prev,
		Actor:          actor,
		Contact:        o.Contact,
		Note:           note,
		TrackingNumber: o.TrackingNumber,
	})
	if err != nil {
		return domain.Order{}, err
	}

	if err := s.repo.UpdateStatusWithOutbox(ctx, o, prev, outbox.EventOrderStatusChanged, payload, tracing.Traceparent(ctx)); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

type RefundRequest struct {
	Type        string
	AmountCents int64
	Reason      string
	Note        string
}

// RefundOrCancel converges both flows on the cancelled status; the
// refund/cancel distinction lives in the reason metadata and the
// emitted event type, not in a separate order status.
func (s *Service) RefundOrCancel(ctx context.Context, orderID int64, req RefundRequest) (domain.Order, error) {
	if req.Type != RefundTypeRefund && req.Type != RefundTypeCancel {
		return domain.Order{}, apperr.New(apperr.KindInvalidRequest, "type must be %q or %q", RefundTypeRefund, RefundTypeCancel)
	}
	if req.Reason == "" || req.Note == "" {
		return domain.Order{}, apperr.New(apperr.KindInvalidRequest, "reason and note are required")
	}
	if req.Type == RefundTypeRefund && req.AmountCents <= 0 {
		return domain.Order{}, apperr.New(apperr.KindInvalidRequest, "refund requires a positive amount")
	}

	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if o.Status == domain.StatusCancelled {
		return domain.Order{}, apperr.New(apperr.KindInvalidTransition, "order %d is already cancelled", orderID)
	}
	if req.Type == RefundTypeRefund && req.AmountCents > o.TotalCents() {
		return domain.Order{}, apperr.New(apperr.KindInvalidRequest, "refund of %d exceeds order total %d", req.AmountCents, o.TotalCents())
	}

	prev := o.Status
	now := s.clock().UTC()

	var historyNote string
	var eventType string
	var payload []byte
	if req.Type == RefundTypeRefund {
		o.RefundReason = req.Reason
		o.RefundCents = req.AmountCents
		historyNote = fmt.Sprintf("refunded %d cents (%s): %s", req.AmountCents, req.Reason, req.Note)
		eventType = outbox.EventOrderRefunded
		payload, err = json.Marshal(domain.OrderRefunded{
			OrderID: o.ID, SellerID: o.SellerID, AmountCents: req.AmountCents, Reason: req.Reason,
		})
	} else {
		o.CancelReason = req.Reason
		historyNote = fmt.Sprintf("cancelled (%s): %s", req.Reason, req.Note)
		eventType = outbox.EventOrderCancelled
		payload, err = json.Marshal(domain.OrderCancelled{
			OrderID: o.ID, SellerID: o.SellerID, Reason: req.Reason,
		})
	}
	if err != nil {
		return domain.Order{}, err
	}

	o.AppendStatus(domain.StatusCancelled, now, historyNote)
	o.AppendNote(req.Note)

	if err := s.repo.UpdateStatusWithOutbox(ctx, o, prev, eventType, payload, tracing.Traceparent(ctx)); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (s *Service) Get(ctx context.Context, orderID int64) (domain.Order, error) {
	return s.repo.Get(ctx, orderID)
}

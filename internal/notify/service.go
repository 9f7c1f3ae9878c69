package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	orderdomain "github.com/tindalabs/storefront-core/internal/order/domain"
	paymentdomain "github.com/tindalabs/storefront-core/internal/payment/domain"
	"github.com/tindalabs/storefront-core/pkg/outbox"
)

// Notification is one in-app row shown to a seller.
type Notification struct {
	SellerID int64
	Type     string
	Message  string
	Payload  []byte
}

type Notifier interface {
	CreateNotification(ctx context.Context, n Notification) error
}

// EmailSender delivers an order status update to the customer. The
// transport behind it is out of scope here; implementations must bound
// their own timeouts.
type EmailSender interface {
	SendOrderStatusUpdate(ctx context.Context, contact string, orderID int64, status, trackingNumber string) error
}

// Service fans events out to the seller's in-app notifications and the
// customer's email. Every sink call is best-effort: failures are
// logged and swallowed, never propagated, so a broken sink cannot stall
// consumption.
type Service struct {
	log      *slog.Logger
	notifier Notifier
	email    EmailSender
}

func NewService(log *slog.Logger, notifier Notifier, email EmailSender) *Service {
	return &Service{log: log, notifier: notifier, email: email}
}

func (s *Service) HandleOrderEvent(ctx context.Context, eventType string, payload []byte) {
	switch eventType {
	case outbox.EventOrderCreated:
		var ev orderdomain.OrderCreated
		if err := json.Unmarshal(payload, &ev); err != nil {
			s.log.Error("unmarshal order created", "err", err)
			return
		}
		s.notify(ctx, Notification{
			SellerID: ev.SellerID,
			Type:     eventType,
			Message:  fmt.Sprintf("New order #%d from %s", ev.OrderID, ev.CustomerName),
			Payload:  payload,
		})

	case outbox.EventOrderStatusChanged:
		var ev orderdomain.OrderStatusChanged
		if err := json.Unmarshal(payload, &ev); err != nil {
			s.log.Error("unmarshal order status changed", "err", err)
			return
		}
		// Sellers already know about their own updates.
		if ev.Actor != "seller" {
			s.notify(ctx, Notification{
				SellerID: ev.SellerID,
				Type:     eventType,
				Message:  fmt.Sprintf("Order #%d moved to %s", ev.OrderID, ev.Status),
				Payload:  payload,
			})
		}
		if looksLikeEmail(ev.Contact) {
			if err := s.email.SendOrderStatusUpdate(ctx, ev.Contact, ev.OrderID, string(ev.Status), ev.TrackingNumber); err != nil {
				s.log.Error("order status email failed", "order_id", ev.OrderID, "err", err)
			}
		}

	case outbox.EventOrderCancelled:
		var ev orderdomain.OrderCancelled
		if err := json.Unmarshal(payload, &ev); err != nil {
			s.log.Error("unmarshal order cancelled", "err", err)
			return
		}
		s.notify(ctx, Notification{
			SellerID: ev.SellerID,
			Type:     eventType,
			Message:  fmt.Sprintf("Order #%d was cancelled: %s", ev.OrderID, ev.Reason),
			Payload:  payload,
		})

	case outbox.EventOrderRefunded:
		var ev orderdomain.OrderRefunded
		if err := json.Unmarshal(payload, &ev); err != nil {
			s.log.Error("unmarshal order refunded", "err", err)
			return
		}
		s.notify(ctx, Notification{
			SellerID: ev.SellerID,
			Type:     eventType,
			Message:  fmt.Sprintf("Order #%d refunded %d cents: %s", ev.OrderID, ev.AmountCents, ev.Reason),
			Payload:  payload,
		})

	default:
		s.log.Warn("unknown order event type", "event_type", eventType)
	}
}

func (s *Service) HandlePaymentEvent(ctx context.Context, eventType string, payload []byte) {
	if eventType != outbox.EventPaymentStatusChanged {
		s.log.Warn("unknown payment event type", "event_type", eventType)
		return
	}
	var ev paymentdomain.PaymentStatusChanged
	if err := json.Unmarshal(payload, &ev); err != nil {
		s.log.Error("unmarshal payment status changed", "err", err)
		return
	}
	s.notify(ctx, Notification{
		SellerID: ev.SellerID,
		Type:     eventType,
		Message:  fmt.Sprintf("Payment #%d for order #%d is %s", ev.PaymentID, ev.OrderID, ev.Status),
		Payload:  payload,
	})
}

func (s *Service) notify(ctx context.Context, n Notification) {
	if err := s.notifier.CreateNotification(ctx, n); err != nil {
		s.log.Error("notification write failed", "seller_id", n.SellerID, "type", n.Type, "err", err)
	}
}

func looksLikeEmail(contact string) bool {
	at := strings.Index(contact, "@")
	return at > 0 && at < len(contact)-1
}

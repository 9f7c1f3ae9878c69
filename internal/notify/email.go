package notify

import (
	"context"
	"log/slog"
)

// LogEmailSender stands in for the real delivery transport: it logs
// the update instead of sending it.
type LogEmailSender struct {
	Log *slog.Logger
}

func (s LogEmailSender) SendOrderStatusUpdate(_ context.Context, contact string, orderID int64, status, trackingNumber string) error {
	s.Log.Info("order status email",
		"contact", contact, "order_id", orderID, "status", status, "tracking_number", trackingNumber)
	return nil
}

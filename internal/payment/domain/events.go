package domain

type PaymentStatusChanged struct {
	PaymentID      int64         `json:"payment_id"`
	OrderID        int64         `json:"order_id"`
	SellerID       int64         `json:"seller_id"`
	Status         PaymentStatus `json:"status"`
	PreviousStatus PaymentStatus `json:"previous_status"`
	Method         Method        `json:"method"`
	AmountCents    int64         `json:"amount_cents"`
	Note           string        `json:"note,omitempty"`
}

package domain

type OrderCreated struct {
	OrderID       int64  `json:"order_id"`
	SellerID      int64  `json:"seller_id"`
	CustomerName  string `json:"customer_name"`
	SubtotalCents int64  `json:"subtotal_cents"`
	DiscountCents int64  `json:"discount_cents"`
	TotalCents    int64  `json:"total_cents"`
}

type OrderStatusChanged struct {
	OrderID        int64       `json:"order_id"`
	SellerID       int64       `json:"seller_id"`
	Status         OrderStatus `json:"status"`
	PreviousStatus OrderStatus `json:"previous_status"`
	Actor          string      `json:"actor"`
	Contact        string      `json:"contact,omitempty"`
	Note           string      `json:"note,omitempty"`
	TrackingNumber string      `json:"tracking_number,omitempty"`
}

type OrderCancelled struct {
	OrderID  int64  `json:"order_id"`
	SellerID int64  `json:"seller_id"`
	Reason   string `json:"reason"`
}

type OrderRefunded struct {
	OrderID     int64  `json:"order_id"`
	SellerID    int64  `json:"seller_id"`
	AmountCents int64  `json:"amount_cents"`
	Reason      string `json:"reason"`
}

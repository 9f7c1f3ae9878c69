package domain

import "time"

type OrderStatus string

const (
	StatusNew        OrderStatus = "new"
	StatusContacted  OrderStatus = "contacted"
	StatusConfirmed  OrderStatus = "confirmed"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusNew, StatusContacted, StatusConfirmed, StatusProcessing,
		StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Terminal statuses absorb: no further transition is legal out of them.
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransition reports whether an order may move from one status to
// another. Sellers work the order in any sequence they like (a rushed
// order can jump straight from new to shipped), so the only hard rule
// is that terminal states absorb.
func CanTransition(from, to OrderStatus) bool {
	if !to.Valid() {
		return false
	}
	return !from.Terminal()
}

// StatusChange is one entry in an order's append-only history.
type StatusChange struct {
	Status OrderStatus `json:"status"`
	At     time.Time   `json:"at"`
	Note   string      `json:"note,omitempty"`
}

// ShippingAddress is a snapshot taken at order time, not a live
// reference to the customer's address book.
type ShippingAddress struct {
	Line1      string `json:"line1,omitempty"`
	City       string `json:"city,omitempty"`
	Province   string `json:"province,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

type Order struct {
	ID           int64
	SellerID     int64
	CustomerID   *int64
	CustomerName string
	// Contact is a free-form string; when it contains an email address
	// the notifier sends status updates to it.
	Contact string
	ItemRef string
	Message string

	Status  OrderStatus
	History []StatusChange
	Notes   string

	CancelReason string
	RefundReason string
	RefundCents  int64

	// Amounts are USD cents.
	SubtotalCents int64
	ShippingCents int64
	DiscountCents int64

	TrackingNumber    string
	EstimatedDelivery *time.Time
	ShippingAddress   ShippingAddress

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewOrder(sellerID int64, customerID *int64, customerName, contact, itemRef, message string, subtotalCents, shippingCents int64, addr ShippingAddress, now time.Time) Order {
	return Order{
		SellerID:        sellerID,
		CustomerID:      customerID,
		CustomerName:    customerName,
		Contact:         contact,
		ItemRef:         itemRef,
		Message:         message,
		Status:          StatusNew,
		History:         []StatusChange{{Status: StatusNew, At: now}},
		SubtotalCents:   subtotalCents,
		ShippingCents:   shippingCents,
		ShippingAddress: addr,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// TotalCents is the amount the customer owes: subtotal less discount
// plus shipping, never negative.
func (o *Order) TotalCents() int64 {
	total := o.SubtotalCents - o.DiscountCents + o.ShippingCents
	if total < 0 {
		return 0
	}
	return total
}

// AppendStatus records a transition. The history is append-only; the
// current status always mirrors the last entry.
func (o *Order) AppendStatus(status OrderStatus, at time.Time, note string) {
	o.History = append(o.History, StatusChange{Status: status, At: at, Note: note})
	o.Status = status
	o.UpdatedAt = at
}

// AppendNote concatenates onto the accumulating note log, never
// overwriting earlier entries.
func (o *Order) AppendNote(note string) {
	if note == "" {
		return
	}
	if o.Notes == "" {
		o.Notes = note
		return
	}
	o.Notes = o.Notes + "\n" + note
}

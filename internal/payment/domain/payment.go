package domain

import "time"

type Method string

const (
	MethodMpesa          Method = "mpesa"
	MethodBankTransfer   Method = "bank_transfer"
	MethodCashOnDelivery Method = "cash_on_delivery"
)

func (m Method) Valid() bool {
	switch m {
	case MethodMpesa, MethodBankTransfer, MethodCashOnDelivery:
		return true
	}
	return false
}

// Mobile-money providers accepted for mpesa payments.
type Provider string

const (
	ProviderVodacom Provider = "vodacom"
	ProviderMovitel Provider = "movitel"
)

func (p Provider) Valid() bool {
	return p == ProviderVodacom || p == ProviderMovitel
}

type PaymentStatus string

const (
	StatusPending    PaymentStatus = "pending"
	StatusProcessing PaymentStatus = "processing"
	StatusCompleted  PaymentStatus = "completed"
	StatusFailed     PaymentStatus = "failed"
	StatusCancelled  PaymentStatus = "cancelled"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Terminal payment statuses. Completion is at-most-once: nothing moves
// out of completed, failed or cancelled.
func (s PaymentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// transitions is the legal edge set: pending may process, complete
// (manual confirmation), fail or cancel; processing may complete, fail
// or cancel.
var transitions = map[PaymentStatus][]PaymentStatus{
	StatusPending:    {StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled},
	StatusProcessing: {StatusCompleted, StatusFailed, StatusCancelled},
}

func CanTransition(from, to PaymentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Payment struct {
	ID       int64
	OrderID  int64
	SellerID int64

	Method   Method
	Provider Provider
	Status   PaymentStatus

	// AmountCents is MZN cents, fixed at creation.
	AmountCents int64
	Currency    string

	ProviderRef      string
	ConfirmationCode string
	PayerPhone       string
	PayerName        string

	ProcessedAt *time.Time
	CompletedAt *time.Time
	FailedAt    *time.Time

	Metadata map[string]string

	CreatedAt time.Time
	UpdatedAt time.Time
}

package domain

import "time"

type SettlementStatus string

const (
	SettlementPending    SettlementStatus = "pending"
	SettlementProcessing SettlementStatus = "processing"
	SettlementPaid       SettlementStatus = "paid"
)

// Settlement batches a seller's pending revenue over one period into a
// single payout. Its net always equals the sum of its constituent
// revenue nets.
type Settlement struct {
	ID       int64
	SellerID int64

	PeriodStart time.Time
	PeriodEnd   time.Time

	GrossCents       int64
	PlatformFeeCents int64
	// PaymentFeeCents is the processor's cut, informational on the
	// payout statement; net is gross minus platform fees only.
	PaymentFeeCents int64
	NetCents        int64

	Status          SettlementStatus
	PayoutMethod    string
	PayoutReference string
	PaymentIDs      []int64

	CreatedAt time.Time
	PaidAt    *time.Time
}

// NewSettlement rolls a set of pending revenues into one settlement.
// All revenues must belong to the same seller.
func NewSettlement(sellerID int64, periodStart, periodEnd time.Time, revenues []Revenue, paymentFeeBps int64, now time.Time) Settlement {
	s := Settlement{
		SellerID:    sellerID,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		Status:      SettlementPending,
		CreatedAt:   now,
	}
	for _, rev := range revenues {
		s.GrossCents += rev.GrossCents
		s.PlatformFeeCents += rev.PlatformFeeCents
		s.NetCents += rev.NetCents
		s.PaymentIDs = append(s.PaymentIDs, rev.PaymentID)
	}
	s.PaymentFeeCents = s.GrossCents * paymentFeeBps / 10000
	return s
}

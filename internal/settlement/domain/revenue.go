package domain

import "time"

type RevenueStatus string

const (
	RevenuePending RevenueStatus = "pending"
	RevenueSettled RevenueStatus = "settled"
)

// Revenue is the seller's share of one completed payment: gross minus
// the platform fee. Exactly one exists per completed payment.
type Revenue struct {
	ID        int64
	PaymentID int64
	SellerID  int64

	GrossCents       int64
	PlatformFeeCents int64
	NetCents         int64

	Status       RevenueStatus
	SettlementID *int64
	RevenueDate  time.Time
	SettledAt    *time.Time
}

// PlatformFee computes the platform's cut: a basis-point share of
// gross plus a fixed per-payment fee, never exceeding gross.
func PlatformFee(grossCents, feeBps, feeFixedCents int64) int64 {
	fee := grossCents*feeBps/10000 + feeFixedCents
	if fee > grossCents {
		return grossCents
	}
	if fee < 0 {
		return 0
	}
	return fee
}

func NewRevenue(paymentID, sellerID, grossCents, feeBps, feeFixedCents int64, at time.Time) Revenue {
	fee := PlatformFee(grossCents, feeBps, feeFixedCents)
	return Revenue{
		PaymentID:        paymentID,
		SellerID:         sellerID,
		GrossCents:       grossCents,
		PlatformFeeCents: fee,
		NetCents:         grossCents - fee,
		Status:           RevenuePending,
		RevenueDate:      at,
	}
}

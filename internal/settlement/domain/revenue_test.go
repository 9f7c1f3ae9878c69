package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPlatformFee(t *testing.T) {
	// 5% of 63450 plus no fixed fee.
	assert.Equal(t, int64(3172), PlatformFee(63450, 500, 0))
	assert.Equal(t, int64(3272), PlatformFee(63450, 500, 100))

	// The fee never exceeds gross, even with a large fixed component.
	assert.Equal(t, int64(50), PlatformFee(50, 500, 1000))

	assert.Equal(t, int64(0), PlatformFee(1000, 0, 0))
	assert.Equal(t, int64(0), PlatformFee(1000, 0, -5))
}

func TestNewRevenue(t *testing.T) {
	at := time.Date(2026, 3, 9, 18, 0, 0, 0, time.UTC)
	rev := NewRevenue(3, 7, 63450, 500, 0, at)

	assert.Equal(t, int64(3), rev.PaymentID)
	assert.Equal(t, int64(7), rev.SellerID)
	assert.Equal(t, int64(63450), rev.GrossCents)
	assert.Equal(t, int64(3172), rev.PlatformFeeCents)
	assert.Equal(t, int64(60278), rev.NetCents)
	assert.Equal(t, rev.GrossCents, rev.PlatformFeeCents+rev.NetCents, "fee and net partition gross")
	assert.Equal(t, RevenuePending, rev.Status)
	assert.Equal(t, at, rev.RevenueDate)
}

func TestNewSettlementSumsRevenues(t *testing.T) {
	at := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	revenues := []Revenue{
		NewRevenue(1, 7, 10000, 500, 0, at),
		NewRevenue(2, 7, 20000, 500, 0, at),
	}

	s := NewSettlement(7, at.Add(-24*time.Hour), at, revenues, 150, at)

	assert.Equal(t, int64(30000), s.GrossCents)
	assert.Equal(t, int64(1500), s.PlatformFeeCents)
	assert.Equal(t, int64(28500), s.NetCents)
	assert.Equal(t, int64(450), s.PaymentFeeCents, "1.5 percent of gross")
	assert.Equal(t, []int64{1, 2}, s.PaymentIDs)
	assert.Equal(t, SettlementPending, s.Status)

	var netSum int64
	for _, rev := range revenues {
		netSum += rev.NetCents
	}
	assert.Equal(t, netSum, s.NetCents, "settlement net equals the sum of its revenue nets")
}

package domain

import "time"

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// UnlimitedUses disables the usage cap on a flash sale.
const UnlimitedUses = -1

// FlashSale is a time-boxed, usage-capped discount scoped to a seller,
// optionally restricted to specific products.
type FlashSale struct {
	ID       int64
	SellerID int64
	Active   bool

	StartTime time.Time
	EndTime   time.Time

	DiscountType DiscountType
	// DiscountValue is whole percentage points for percentage sales,
	// USD cents for fixed sales.
	DiscountValue    int64
	MaxDiscountCents int64 // 0 = uncapped
	MinOrderCents    int64
	ProductIDs       []int64 // empty = applies to the whole catalog

	MaxUses   int64
	UsedCount int64
}

// RunningAt reports whether the sale accepts new uses at the given
// instant. The window is inclusive at both ends.
func (s *FlashSale) RunningAt(now time.Time) bool {
	if !s.Active {
		return false
	}
	if now.Before(s.StartTime) || now.After(s.EndTime) {
		return false
	}
	if s.MaxUses != UnlimitedUses && s.UsedCount >= s.MaxUses {
		return false
	}
	return true
}

// AppliesTo checks the order-shaped conditions: minimum order amount
// and product restriction.
func (s *FlashSale) AppliesTo(orderTotalCents int64, productIDs []int64) bool {
	if orderTotalCents < s.MinOrderCents {
		return false
	}
	if len(s.ProductIDs) == 0 {
		return true
	}
	for _, want := range s.ProductIDs {
		for _, have := range productIDs {
			if want == have {
				return true
			}
		}
	}
	return false
}

// DiscountCents computes the discount this sale yields on the given
// total, clamped to [0, total].
func (s *FlashSale) DiscountCents(orderTotalCents int64) int64 {
	var d int64
	switch s.DiscountType {
	case DiscountPercentage:
		d = orderTotalCents * s.DiscountValue / 100
		if s.MaxDiscountCents > 0 && d > s.MaxDiscountCents {
			d = s.MaxDiscountCents
		}
	case DiscountFixed:
		d = s.DiscountValue
	}
	if d < 0 {
		return 0
	}
	if d > orderTotalCents {
		return orderTotalCents
	}
	return d
}

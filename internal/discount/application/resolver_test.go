package application

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tindalabs/storefront-core/internal/discount/domain"
)

type stubSaleRepo struct {
	sales       []domain.FlashSale
	listErr     error
	incremented []int64
	incErr      error
}

func (r *stubSaleRepo) ListBySeller(context.Context, int64) ([]domain.FlashSale, error) {
	return r.sales, r.listErr
}

func (r *stubSaleRepo) IncrementUse(_ context.Context, saleID int64) error {
	r.incremented = append(r.incremented, saleID)
	return r.incErr
}

var resolverClock = func() time.Time {
	return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
}

func runningSale(id int64) domain.FlashSale {
	now := resolverClock()
	return domain.FlashSale{
		ID:            id,
		SellerID:      7,
		Active:        true,
		StartTime:     now.Add(-time.Hour),
		EndTime:       now.Add(time.Hour),
		DiscountType:  domain.DiscountPercentage,
		DiscountValue: 10,
		MaxUses:       domain.UnlimitedUses,
	}
}

func newTestResolver(repo *stubSaleRepo) *Resolver {
	return NewResolver(slog.New(slog.NewTextHandler(io.Discard, nil)), repo, resolverClock)
}

func TestResolveBestPicksLargestDiscount(t *testing.T) {
	small := runningSale(1) // 10% of 1000 = 100
	big := runningSale(2)
	big.DiscountType = domain.DiscountFixed
	big.DiscountValue = 120

	r := newTestResolver(&stubSaleRepo{sales: []domain.FlashSale{small, big}})
	res, err := r.ResolveBest(context.Background(), 7, 1000, nil)
	require.NoError(t, err)

	assert.True(t, res.Applicable)
	assert.Equal(t, int64(2), res.SaleID)
	assert.Equal(t, int64(120), res.AmountCents)
}

func TestResolveBestCapsPercentage(t *testing.T) {
	sale := runningSale(1)
	sale.MaxDiscountCents = 80

	r := newTestResolver(&stubSaleRepo{sales: []domain.FlashSale{sale}})
	res, err := r.ResolveBest(context.Background(), 7, 1000, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(80), res.AmountCents)
}

func TestResolveBestTieGoesToFirstSeen(t *testing.T) {
	first := runningSale(1)
	second := runningSale(2)

	r := newTestResolver(&stubSaleRepo{sales: []domain.FlashSale{first, second}})
	res, err := r.ResolveBest(context.Background(), 7, 1000, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(1), res.SaleID, "equal discounts resolve to the lowest id")
}

func TestResolveBestSkipsIneligibleSales(t *testing.T) {
	t.Run("below minimum order", func(t *testing.T) {
		sale := runningSale(1)
		sale.MinOrderCents = 2000

		r := newTestResolver(&stubSaleRepo{sales: []domain.FlashSale{sale}})
		res, err := r.ResolveBest(context.Background(), 7, 1000, nil)
		require.NoError(t, err)
		assert.False(t, res.Applicable)
	})

	t.Run("outside window", func(t *testing.T) {
		sale := runningSale(1)
		sale.EndTime = resolverClock().Add(-time.Minute)

		r := newTestResolver(&stubSaleRepo{sales: []domain.FlashSale{sale}})
		res, err := r.ResolveBest(context.Background(), 7, 1000, nil)
		require.NoError(t, err)
		assert.False(t, res.Applicable)
	})

	t.Run("usage exhausted", func(t *testing.T) {
		sale := runningSale(1)
		sale.MaxUses = 5
		sale.UsedCount = 5

		r := newTestResolver(&stubSaleRepo{sales: []domain.FlashSale{sale}})
		res, err := r.ResolveBest(context.Background(), 7, 1000, nil)
		require.NoError(t, err)
		assert.False(t, res.Applicable)
	})

	t.Run("product restriction", func(t *testing.T) {
		sale := runningSale(1)
		sale.ProductIDs = []int64{55}

		r := newTestResolver(&stubSaleRepo{sales: []domain.FlashSale{sale}})

		res, err := r.ResolveBest(context.Background(), 7, 1000, []int64{56})
		require.NoError(t, err)
		assert.False(t, res.Applicable)

		res, err = r.ResolveBest(context.Background(), 7, 1000, []int64{55})
		require.NoError(t, err)
		assert.True(t, res.Applicable)
	})
}

func TestResolveBestPropagatesRepoError(t *testing.T) {
	r := newTestResolver(&stubSaleRepo{listErr: errors.New("down")})
	_, err := r.ResolveBest(context.Background(), 7, 1000, nil)
	assert.Error(t, err)
}

func TestRecordUse(t *testing.T) {
	repo := &stubSaleRepo{}
	r := newTestResolver(repo)

	require.NoError(t, r.RecordUse(context.Background(), 42))
	assert.Equal(t, []int64{42}, repo.incremented)
}

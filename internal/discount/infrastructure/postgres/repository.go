package postgres

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tindalabs/storefront-core/internal/discount/domain"
	"github.com/tindalabs/storefront-core/pkg/apperr"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) ListBySeller(ctx context.Context, sellerID int64) ([]domain.FlashSale, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, seller_id, active, start_time, end_time, discount_type, discount_value,
		       max_discount_cents, min_order_cents, product_ids, max_uses, used_count
		FROM flash_sales
		WHERE seller_id=$1 AND active
		ORDER BY id
	`, sellerID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, err, "list flash sales")
	}
	defer rows.Close()

	var sales []domain.FlashSale
	for rows.Next() {
		var s domain.FlashSale
		if err := rows.Scan(&s.ID, &s.SellerID, &s.Active, &s.StartTime, &s.EndTime,
			&s.DiscountType, &s.DiscountValue, &s.MaxDiscountCents, &s.MinOrderCents,
			&s.ProductIDs, &s.MaxUses, &s.UsedCount); err != nil {
			return nil, apperr.Wrap(apperr.KindUnavailable, err, "scan flash sale")
		}
		sales = append(sales, s)
	}
	return sales, rows.Err()
}

func (r *Repository) IncrementUse(ctx context.Context, saleID int64) error {
	ct, err := r.pool.Exec(ctx, `
		UPDATE flash_sales SET used_count = used_count + 1
		WHERE id=$1 AND (max_uses = -1 OR used_count < max_uses)
	`, saleID)
	if err != nil {
		return apperr.Wrap(apperr.KindUnavailable, err, "increment flash sale use")
	}
	if ct.RowsAffected() == 0 {
		return apperr.New(apperr.KindConflict, "flash sale %d exhausted", saleID)
	}
	return nil
}

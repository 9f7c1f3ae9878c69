package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tindalabs/storefront-core/internal/settlement/application"
	"github.com/tindalabs/storefront-core/internal/settlement/domain"
	"github.com/tindalabs/storefront-core/pkg/apperr"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) ListExpiredGraceSubscriptions(ctx context.Context, now time.Time) ([]domain.Subscription, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, seller_id, plan, status, grace_period_end, updated_at
		FROM subscriptions
		WHERE status='past_due' AND grace_period_end IS NOT NULL AND grace_period_end < $1
		ORDER BY id
	`, now)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, err, "list expired grace subscriptions")
	}
	defer rows.Close()

	var subs []domain.Subscription
	for rows.Next() {
		var s domain.Subscription
		if err := rows.Scan(&s.ID, &s.SellerID, &s.Plan, &s.Status, &s.GracePeriodEnd, &s.UpdatedAt); err != nil {
			return nil, apperr.Wrap(apperr.KindUnavailable, err, "scan subscription")
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

func (r *Repository) DowngradeToFree(ctx context.Context, sellerID int64, now time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE subscriptions
		SET plan=$1, status='active', grace_period_end=NULL, updated_at=$2
		WHERE seller_id=$3
	`, domain.PlanFree, now, sellerID)
	if err != nil {
		return apperr.Wrap(apperr.KindUnavailable, err, "downgrade subscription")
	}
	return nil
}

func (r *Repository) ListCompletedPaymentsWithoutRevenue(ctx context.Context) ([]application.CompletedPayment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.seller_id, p.amount_cents, p.completed_at
		FROM payments p
		LEFT JOIN revenues rev ON rev.payment_id = p.id
		WHERE p.status='completed' AND rev.id IS NULL
		ORDER BY p.id
	`)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, err, "list unbilled payments")
	}
	defer rows.Close()

	var payments []application.CompletedPayment
	for rows.Next() {
		var p application.CompletedPayment
		if err := rows.Scan(&p.PaymentID, &p.SellerID, &p.AmountCents, &p.CompletedAt); err != nil {
			return nil, apperr.Wrap(apperr.KindUnavailable, err, "scan unbilled payment")
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// CreateRevenue is idempotent: the unique index on payment_id makes a
// duplicate insert a no-op, so sweep re-runs and the inline write from
// payment completion cannot double-bill.
func (r *Repository) CreateRevenue(ctx context.Context, rev domain.Revenue) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO revenues (payment_id, seller_id, gross_cents, platform_fee_cents, net_cents, status, revenue_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (payment_id) DO NOTHING
	`, rev.PaymentID, rev.SellerID, rev.GrossCents, rev.PlatformFeeCents, rev.NetCents, rev.Status, rev.RevenueDate)
	if err != nil {
		return apperr.Wrap(apperr.KindUnavailable, err, "insert revenue")
	}
	return nil
}

func (r *Repository) ListSellersWithPendingRevenue(ctx context.Context, before time.Time) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT seller_id FROM revenues
		WHERE status='pending' AND settlement_id IS NULL AND revenue_date < $1
		ORDER BY seller_id
	`, before)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, err, "list sellers with pending revenue")
	}
	defer rows.Close()

	var sellers []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, apperr.Wrap(apperr.KindUnavailable, err, "scan seller id")
		}
		sellers = append(sellers, id)
	}
	return sellers, rows.Err()
}

func (r *Repository) ListPendingRevenue(ctx context.Context, sellerID int64, before time.Time) ([]domain.Revenue, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, payment_id, seller_id, gross_cents, platform_fee_cents, net_cents, status, settlement_id, revenue_date, settled_at
		FROM revenues
		WHERE seller_id=$1 AND status='pending' AND settlement_id IS NULL AND revenue_date < $2
		ORDER BY id
	`, sellerID, before)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, err, "list pending revenue")
	}
	defer rows.Close()

	var revenues []domain.Revenue
	for rows.Next() {
		var rev domain.Revenue
		if err := rows.Scan(&rev.ID, &rev.PaymentID, &rev.SellerID, &rev.GrossCents, &rev.PlatformFeeCents,
			&rev.NetCents, &rev.Status, &rev.SettlementID, &rev.RevenueDate, &rev.SettledAt); err != nil {
			return nil, apperr.Wrap(apperr.KindUnavailable, err, "scan revenue")
		}
		revenues = append(revenues, rev)
	}
	return revenues, rows.Err()
}

// CreateSettlement inserts the settlement and claims its revenue rows
// in one transaction. Claiming re-checks that each row is still
// unassigned, so overlapping sweeps cannot double-claim.
func (r *Repository) CreateSettlement(ctx context.Context, s domain.Settlement) (domain.Settlement, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Settlement{}, apperr.Wrap(apperr.KindUnavailable, err, "begin tx")
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	err = tx.QueryRow(ctx, `
		INSERT INTO settlements (seller_id, period_start, period_end, gross_cents, platform_fee_cents,
			payment_fee_cents, net_cents, status, payment_ids, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING id
	`, s.SellerID, s.PeriodStart, s.PeriodEnd, s.GrossCents, s.PlatformFeeCents,
		s.PaymentFeeCents, s.NetCents, s.Status, s.PaymentIDs, s.CreatedAt).Scan(&s.ID)
	if err != nil {
		return domain.Settlement{}, apperr.Wrap(apperr.KindUnavailable, err, "insert settlement")
	}

	ct, err := tx.Exec(ctx, `
		UPDATE revenues SET settlement_id=$1
		WHERE seller_id=$2 AND status='pending' AND settlement_id IS NULL AND payment_id = ANY($3)
	`, s.ID, s.SellerID, s.PaymentIDs)
	if err != nil {
		return domain.Settlement{}, apperr.Wrap(apperr.KindUnavailable, err, "claim revenues")
	}
	if int(ct.RowsAffected()) != len(s.PaymentIDs) {
		return domain.Settlement{}, apperr.New(apperr.KindConflict, "revenue rows for seller %d were claimed concurrently", s.SellerID)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Settlement{}, apperr.Wrap(apperr.KindUnavailable, err, "commit settlement")
	}
	return s, nil
}

const settlementColumns = `id, seller_id, period_start, period_end, gross_cents, platform_fee_cents,
	payment_fee_cents, net_cents, status, payout_method, payout_reference, payment_ids, created_at, paid_at`

func (r *Repository) ListBySeller(ctx context.Context, sellerID int64) ([]domain.Settlement, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+settlementColumns+` FROM settlements WHERE seller_id=$1 ORDER BY id DESC`, sellerID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, err, "list settlements")
	}
	defer rows.Close()

	var settlements []domain.Settlement
	for rows.Next() {
		s, err := scanSettlement(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindUnavailable, err, "scan settlement")
		}
		settlements = append(settlements, s)
	}
	return settlements, rows.Err()
}

func (r *Repository) MarkPaid(ctx context.Context, settlementID int64, method, reference string, now time.Time) (domain.Settlement, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Settlement{}, apperr.Wrap(apperr.KindUnavailable, err, "begin tx")
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	ct, err := tx.Exec(ctx, `
		UPDATE settlements
		SET status='paid', payout_method=$1, payout_reference=$2, paid_at=$3
		WHERE id=$4 AND status <> 'paid'
	`, method, reference, now, settlementID)
	if err != nil {
		return domain.Settlement{}, apperr.Wrap(apperr.KindUnavailable, err, "mark settlement paid")
	}
	if ct.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM settlements WHERE id=$1)`, settlementID).Scan(&exists); err != nil {
			return domain.Settlement{}, apperr.Wrap(apperr.KindUnavailable, err, "check settlement")
		}
		if !exists {
			return domain.Settlement{}, apperr.New(apperr.KindNotFound, "settlement %d not found", settlementID)
		}
		return domain.Settlement{}, apperr.New(apperr.KindInvalidTransition, "settlement %d is already paid", settlementID)
	}

	_, err = tx.Exec(ctx, `
		UPDATE revenues SET status='settled', settled_at=$1
		WHERE settlement_id=$2
	`, now, settlementID)
	if err != nil {
		return domain.Settlement{}, apperr.Wrap(apperr.KindUnavailable, err, "settle revenues")
	}

	row := tx.QueryRow(ctx, `SELECT `+settlementColumns+` FROM settlements WHERE id=$1`, settlementID)
	s, err := scanSettlement(row)
	if err != nil {
		return domain.Settlement{}, apperr.Wrap(apperr.KindUnavailable, err, "reload settlement")
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Settlement{}, apperr.Wrap(apperr.KindUnavailable, err, "commit payout")
	}
	return s, nil
}

func scanSettlement(row pgx.Row) (domain.Settlement, error) {
	var s domain.Settlement
	err := row.Scan(&s.ID, &s.SellerID, &s.PeriodStart, &s.PeriodEnd, &s.GrossCents, &s.PlatformFeeCents,
		&s.PaymentFeeCents, &s.NetCents, &s.Status, &s.PayoutMethod, &s.PayoutReference,
		&s.PaymentIDs, &s.CreatedAt, &s.PaidAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Settlement{}, err
		}
		return domain.Settlement{}, err
	}
	return s, nil
}

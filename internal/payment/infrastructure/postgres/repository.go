package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tindalabs/storefront-core/internal/payment/domain"
	"github.com/tindalabs/storefront-core/pkg/apperr"
	"github.com/tindalabs/storefront-core/pkg/outbox"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

const paymentColumns = `id, order_id, seller_id, method, provider, status, amount_cents, currency,
	provider_ref, confirmation_code, payer_phone, payer_name,
	processed_at, completed_at, failed_at, metadata, created_at, updated_at`

func (r *Repository) Get(ctx context.Context, id int64) (domain.Payment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id=$1`, id)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Payment{}, apperr.New(apperr.KindNotFound, "payment %d not found", id)
		}
		return domain.Payment{}, apperr.Wrap(apperr.KindUnavailable, err, "get payment")
	}
	return p, nil
}

func (r *Repository) FindBlocking(ctx context.Context, orderID int64) (domain.Payment, bool, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE order_id=$1 AND status IN ('processing','completed')
		ORDER BY id DESC LIMIT 1
	`, orderID)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Payment{}, false, nil
		}
		return domain.Payment{}, false, apperr.Wrap(apperr.KindUnavailable, err, "find blocking payment")
	}
	return p, true, nil
}

func (r *Repository) ListByOrder(ctx context.Context, orderID int64) ([]domain.Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM payments WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, err, "list payments")
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindUnavailable, err, "scan payment")
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *Repository) CreateWithOutbox(ctx context.Context, p domain.Payment, traceparent string) (domain.Payment, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Payment{}, apperr.Wrap(apperr.KindUnavailable, err, "begin tx")
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	metadata, err := json.Marshal(orEmpty(p.Metadata))
	if err != nil {
		return domain.Payment{}, err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO payments (order_id, seller_id, method, provider, status, amount_cents, currency,
			provider_ref, confirmation_code, payer_phone, payer_name,
			processed_at, completed_at, failed_at, metadata, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		RETURNING id
	`, p.OrderID, p.SellerID, p.Method, p.Provider, p.Status, p.AmountCents, p.Currency,
		p.ProviderRef, p.ConfirmationCode, p.PayerPhone, p.PayerName,
		p.ProcessedAt, p.CompletedAt, p.FailedAt, metadata, p.CreatedAt, p.UpdatedAt).Scan(&p.ID)
	if err != nil {
		return domain.Payment{}, apperr.Wrap(apperr.KindUnavailable, err, "insert payment")
	}

	payload, err := json.Marshal(domain.PaymentStatusChanged{
		PaymentID:   p.ID,
		OrderID:     p.OrderID,
		SellerID:    p.SellerID,
		Status:      p.Status,
		Method:      p.Method,
		AmountCents: p.AmountCents,
	})
	if err != nil {
		return domain.Payment{}, err
	}
	if err := insertOutbox(ctx, tx, p.ID, outbox.EventPaymentStatusChanged, payload, traceparent); err != nil {
		return domain.Payment{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Payment{}, apperr.Wrap(apperr.KindUnavailable, err, "commit payment")
	}
	return p, nil
}

func (r *Repository) UpdateStatusWithOutbox(ctx context.Context, p domain.Payment, expected domain.PaymentStatus, payload []byte, traceparent string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return apperr.Wrap(apperr.KindUnavailable, err, "begin tx")
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	metadata, err := json.Marshal(orEmpty(p.Metadata))
	if err != nil {
		return err
	}

	ct, err := tx.Exec(ctx, `
		UPDATE payments
		SET status=$1, provider_ref=$2, confirmation_code=$3,
		    processed_at=$4, completed_at=$5, failed_at=$6, metadata=$7, updated_at=$8
		WHERE id=$9 AND status=$10
	`, p.Status, p.ProviderRef, p.ConfirmationCode,
		p.ProcessedAt, p.CompletedAt, p.FailedAt, metadata, p.UpdatedAt, p.ID, expected)
	if err != nil {
		return apperr.Wrap(apperr.KindUnavailable, err, "update payment status")
	}
	if ct.RowsAffected() == 0 {
		return apperr.New(apperr.KindConflict, "payment %d was modified concurrently", p.ID)
	}

	if err := insertOutbox(ctx, tx, p.ID, outbox.EventPaymentStatusChanged, payload, traceparent); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return apperr.Wrap(apperr.KindUnavailable, err, "commit payment status")
	}
	return nil
}

func insertOutbox(ctx context.Context, tx pgx.Tx, paymentID int64, eventType string, payload []byte, traceparent string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, traceparent, status)
		VALUES ('payment',$1,$2,$3,$4,'pending')
	`, paymentID, eventType, payload, traceparent)
	if err != nil {
		return apperr.Wrap(apperr.KindUnavailable, err, "insert outbox event")
	}
	return nil
}

func scanPayment(row pgx.Row) (domain.Payment, error) {
	var p domain.Payment
	var metadata []byte
	err := row.Scan(&p.ID, &p.OrderID, &p.SellerID, &p.Method, &p.Provider, &p.Status,
		&p.AmountCents, &p.Currency, &p.ProviderRef, &p.ConfirmationCode,
		&p.PayerPhone, &p.PayerName, &p.ProcessedAt, &p.CompletedAt, &p.FailedAt,
		&metadata, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return domain.Payment{}, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
			return domain.Payment{}, err
		}
		if len(p.Metadata) == 0 {
			p.Metadata = nil
		}
	}
	return p, nil
}

func orEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

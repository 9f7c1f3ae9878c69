package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tindalabs/storefront-core/internal/order/domain"
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

func (r *Repository) CreateWithOutbox(ctx context.Context, o domain.Order, traceparent string) (domain.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Order{}, apperr.Wrap(apperr.KindUnavailable, err, "begin tx")
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	history, err := json.Marshal(o.History)
	if err != nil {
		return domain.Order{}, err
	}
	address, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return domain.Order{}, err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO orders (seller_id, customer_id, customer_name, contact, item_ref, message,
			status, status_history, notes, subtotal_cents, shipping_cents, discount_cents,
			shipping_address, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING id
	`, o.SellerID, o.CustomerID, o.CustomerName, o.Contact, o.ItemRef, o.Message,
		o.Status, history, o.Notes, o.SubtotalCents, o.ShippingCents, o.DiscountCents,
		address, o.CreatedAt, o.UpdatedAt).Scan(&o.ID)
	if err != nil {
		return domain.Order{}, apperr.Wrap(apperr.KindUnavailable, err, "insert order")
	}

	payload, err := json.Marshal(domain.OrderCreated{
		OrderID:       o.ID,
		SellerID:      o.SellerID,
		CustomerName:  o.CustomerName,
		SubtotalCents: o.SubtotalCents,
		DiscountCents: o.DiscountCents,
		TotalCents:    o.TotalCents(),
	})
	if err != nil {
		return domain.Order{}, err
	}
	if err := insertOutbox(ctx, tx, "order", o.ID, outbox.EventOrderCreated, payload, traceparent); err != nil {
		return domain.Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, apperr.Wrap(apperr.KindUnavailable, err, "commit order")
	}
	return o, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (domain.Order, error) {
	var o domain.Order
	var history, address []byte
	err := r.pool.QueryRow(ctx, `
		SELECT id, seller_id, customer_id, customer_name, contact, item_ref, message,
		       status, status_history, notes, cancel_reason, refund_reason, refund_cents,
		       subtotal_cents, shipping_cents, discount_cents, tracking_number,
		       estimated_delivery, shipping_address, created_at, updated_at
		FROM orders WHERE id=$1
	`, id).Scan(&o.ID, &o.SellerID, &o.CustomerID, &o.CustomerName, &o.Contact, &o.ItemRef,
		&o.Message, &o.Status, &history, &o.Notes, &o.CancelReason, &o.RefundReason,
		&o.RefundCents, &o.SubtotalCents, &o.ShippingCents, &o.DiscountCents,
		&o.TrackingNumber, &o.EstimatedDelivery, &address, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, apperr.New(apperr.KindNotFound, "order %d not found", id)
		}
		return domain.Order{}, apperr.Wrap(apperr.KindUnavailable, err, "get order")
	}

	if err := json.Unmarshal(history, &o.History); err != nil {
		return domain.Order{}, err
	}
	if err := json.Unmarshal(address, &o.ShippingAddress); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

// UpdateStatusWithOutbox writes the order conditionally on the status
// it was read at. Zero rows affected means another transition won the
// race, reported as Conflict rather than silently overwriting.
func (r *Repository) UpdateStatusWithOutbox(ctx context.Context, o domain.Order, expected domain.OrderStatus, eventType string, payload []byte, traceparent string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return apperr.Wrap(apperr.KindUnavailable, err, "begin tx")
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	history, err := json.Marshal(o.History)
	if err != nil {
		return err
	}

	ct, err := tx.Exec(ctx, `
		UPDATE orders
		SET status=$1, status_history=$2, notes=$3, cancel_reason=$4, refund_reason=$5,
		    refund_cents=$6, tracking_number=$7, updated_at=$8
		WHERE id=$9 AND status=$10
	`, o.Status, history, o.Notes, o.CancelReason, o.RefundReason,
		o.RefundCents, o.TrackingNumber, o.UpdatedAt, o.ID, expected)
	if err != nil {
		return apperr.Wrap(apperr.KindUnavailable, err, "update order status")
	}
	if ct.RowsAffected() == 0 {
		return apperr.New(apperr.KindConflict, "order %d was modified concurrently", o.ID)
	}

	if err := insertOutbox(ctx, tx, "order", o.ID, eventType, payload, traceparent); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return apperr.Wrap(apperr.KindUnavailable, err, "commit order status")
	}
	return nil
}

func insertOutbox(ctx context.Context, tx pgx.Tx, aggregateType string, aggregateID int64, eventType string, payload []byte, traceparent string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, traceparent, status)
		VALUES ($1,$2,$3,$4,$5,'pending')
	`, aggregateType, aggregateID, eventType, payload, traceparent)
	if err != nil {
		return apperr.Wrap(apperr.KindUnavailable, err, "insert outbox event")
	}
	return nil
}

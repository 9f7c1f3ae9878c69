package postgres

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tindalabs/storefront-core/internal/notify"
)

type Store struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewStore(log *slog.Logger, pool *pgxpool.Pool) *Store {
	return &Store{log: log, pool: pool}
}

func (s *Store) CreateNotification(ctx context.Context, n notify.Notification) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notifications (seller_id, type, message, payload)
		VALUES ($1,$2,$3,$4)
	`, n.SellerID, n.Type, n.Message, n.Payload)
	return err
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	discountapp "github.com/tindalabs/storefront-core/internal/discount/application"
	discounthttp "github.com/tindalabs/storefront-core/internal/discount/infrastructure/http"
	discountpg "github.com/tindalabs/storefront-core/internal/discount/infrastructure/postgres"
	"github.com/tindalabs/storefront-core/internal/notify"
	notifykafka "github.com/tindalabs/storefront-core/internal/notify/kafka"
	notifypg "github.com/tindalabs/storefront-core/internal/notify/postgres"
	orderapp "github.com/tindalabs/storefront-core/internal/order/application"
	orderhttp "github.com/tindalabs/storefront-core/internal/order/infrastructure/http"
	orderpg "github.com/tindalabs/storefront-core/internal/order/infrastructure/postgres"
	paymentapp "github.com/tindalabs/storefront-core/internal/payment/application"
	paymenthttp "github.com/tindalabs/storefront-core/internal/payment/infrastructure/http"
	paymentpg "github.com/tindalabs/storefront-core/internal/payment/infrastructure/postgres"
	settlementapp "github.com/tindalabs/storefront-core/internal/settlement/application"
	settlementhttp "github.com/tindalabs/storefront-core/internal/settlement/infrastructure/http"
	settlementpg "github.com/tindalabs/storefront-core/internal/settlement/infrastructure/postgres"
	"github.com/tindalabs/storefront-core/pkg/config"
	"github.com/tindalabs/storefront-core/pkg/idempotency"
	"github.com/tindalabs/storefront-core/pkg/logging"
	"github.com/tindalabs/storefront-core/pkg/outbox"
	"github.com/tindalabs/storefront-core/pkg/shutdown"
	"github.com/tindalabs/storefront-core/pkg/tracing"
)

func main() {
	log := logging.New(slog.LevelInfo)
	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	cfg := config.Load()

	tp, err := tracing.Init(ctx, "storefront", cfg.OTLPAddr, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(ctx) }()

	pool, err := pgxpool.New(ctx, cfg.PGURL)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisDB := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	idem := idempotency.NewStore(redisDB, 10*time.Minute)

	// Repositories and services.
	discountRepo := discountpg.NewRepository(log, pool)
	resolver := discountapp.NewResolver(log, discountRepo, nil)

	orderRepo := orderpg.NewRepository(log, pool)
	orderSvc := orderapp.NewService(log, orderRepo, resolver, nil)

	settlementRepo := settlementpg.NewRepository(log, pool)
	settlementSvc := settlementapp.NewService(log, settlementRepo, nil)

	paymentRepo := paymentpg.NewRepository(log, pool)
	paymentSvc := paymentapp.NewService(log, paymentRepo, orderRepo, settlementRepo, paymentapp.Pricing{
		USDToMZNRateMilli:     cfg.USDToMZNRateMilli,
		MinChargeCents:        cfg.MinChargeCents,
		PlatformFeeBps:        cfg.PlatformFeeBps,
		PlatformFeeFixedCents: cfg.PlatformFeeFixedCents,
	}, nil)

	sweeper := settlementapp.NewSweeper(log, settlementRepo, logUsageMeter{log: log}, settlementapp.Fees{
		PlatformFeeBps:        cfg.PlatformFeeBps,
		PlatformFeeFixedCents: cfg.PlatformFeeFixedCents,
		PaymentFeeBps:         cfg.PaymentFeeBps,
	}, cfg.SettlementPeriod, nil)

	// Outbox relay: domain events written alongside state changes get
	// shipped to kafka from here.
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.KafkaAddr),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
	}
	dispatch := outbox.NewDispatcher(log, writer, map[string]string{
		"order":   cfg.OrderTopic,
		"payment": cfg.PaymentTopic,
	})
	relay := outbox.NewRelay(log, orderpg.NewOutboxStore(log, pool), dispatch, "storefront-relay")
	go func() {
		if err := relay.Run(ctx); err != nil {
			log.Error("relay stopped", "err", err)
		}
	}()

	// Notification fan-out.
	notifySvc := notify.NewService(log, notifypg.NewStore(log, pool), notify.LogEmailSender{Log: log})
	orderConsumer := notifykafka.NewConsumer(log, []string{cfg.KafkaAddr}, cfg.OrderTopic, "notify-order", notifySvc.HandleOrderEvent, idem)
	paymentConsumer := notifykafka.NewConsumer(log, []string{cfg.KafkaAddr}, cfg.PaymentTopic, "notify-payment", notifySvc.HandlePaymentEvent, idem)
	go func() {
		if err := orderConsumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("order consumer stopped", "err", err)
			cancel()
		}
	}()
	go func() {
		if err := paymentConsumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("payment consumer stopped", "err", err)
			cancel()
		}
	}()

	// Settlement sweep timer.
	go func() {
		if err := sweeper.Run(ctx, cfg.SweepInterval); err != nil {
			log.Error("sweeper stopped", "err", err)
		}
	}()

	r := chi.NewRouter()
	orderhttp.NewHandler(log, orderSvc).Register(r)
	paymenthttp.NewHandler(log, paymentSvc).Register(r)
	discounthttp.NewHandler(log, resolver).Register(r)
	settlementhttp.NewHandler(log, settlementSvc, sweeper).Register(r)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("storefront shutdown")
}

// logUsageMeter stands in for the metering collaborator consulted at
// the top of every sweep.
type logUsageMeter struct {
	log *slog.Logger
}

func (m logUsageMeter) RunPeriodicUsageCheck(context.Context) error {
	m.log.Info("usage check ran")
	return nil
}

package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tindalabs/storefront-core/internal/settlement/domain"
)

// Fees are the injected settlement-math knobs.
type Fees struct {
	PlatformFeeBps        int64
	PlatformFeeFixedCents int64
	PaymentFeeBps         int64
}

// Report aggregates one sweep run. Failures are collected per unit of
// work; one seller's bad row never aborts the rest of the run.
type Report struct {
	GraceDowngrades    int      `json:"grace_downgrades"`
	RevenueCreated     int      `json:"revenue_created"`
	SettlementsCreated int      `json:"settlements_created"`
	Errors             []string `json:"errors,omitempty"`
}

func (r *Report) fail(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Sweeper is the periodic settlement job: usage metering, grace-period
// expiry, revenue backfill, and settlement batching.
type Sweeper struct {
	log    *slog.Logger
	repo   SettlementRepository
	usage  UsageMeter
	fees   Fees
	period time.Duration
	clock  func() time.Time
}

func NewSweeper(log *slog.Logger, repo SettlementRepository, usage UsageMeter, fees Fees, period time.Duration, clock func() time.Time) *Sweeper {
	if clock == nil {
		clock = time.Now
	}
	return &Sweeper{log: log, repo: repo, usage: usage, fees: fees, period: period, clock: clock}
}

// Run executes the sweep on a ticker until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("settlement sweeper stopping")
			return nil
		case <-t.C:
			report := s.RunOnce(ctx)
			s.log.Info("settlement sweep finished",
				"grace_downgrades", report.GraceDowngrades,
				"revenue_created", report.RevenueCreated,
				"settlements_created", report.SettlementsCreated,
				"errors", len(report.Errors))
		}
	}
}

// RunOnce performs a single sweep. Safe to re-run: revenue creation is
// idempotent on payment id, and settlements only claim still-pending
// revenue.
func (s *Sweeper) RunOnce(ctx context.Context) Report {
	var report Report
	now := s.clock().UTC()

	if s.usage != nil {
		if err := s.usage.RunPeriodicUsageCheck(ctx); err != nil {
			report.fail("usage check: %v", err)
		}
	}

	s.sweepGracePeriods(ctx, now, &report)
	s.backfillRevenue(ctx, &report)
	s.batchSettlements(ctx, now, &report)
	return report
}

func (s *Sweeper) sweepGracePeriods(ctx context.Context, now time.Time, report *Report) {
	subs, err := s.repo.ListExpiredGraceSubscriptions(ctx, now)
	if err != nil {
		report.fail("list expired grace periods: %v", err)
		return
	}
	for _, sub := range subs {
		if err := s.repo.DowngradeToFree(ctx, sub.SellerID, now); err != nil {
			report.fail("downgrade seller %d: %v", sub.SellerID, err)
			continue
		}
		s.log.Info("grace period ended, seller downgraded", "seller_id", sub.SellerID, "plan", sub.Plan)
		report.GraceDowngrades++
	}
}

func (s *Sweeper) backfillRevenue(ctx context.Context, report *Report) {
	payments, err := s.repo.ListCompletedPaymentsWithoutRevenue(ctx)
	if err != nil {
		report.fail("list unbilled payments: %v", err)
		return
	}
	for _, p := range payments {
		rev := domain.NewRevenue(p.PaymentID, p.SellerID, p.AmountCents,
			s.fees.PlatformFeeBps, s.fees.PlatformFeeFixedCents, p.CompletedAt)
		if err := s.repo.CreateRevenue(ctx, rev); err != nil {
			report.fail("revenue for payment %d: %v", p.PaymentID, err)
			continue
		}
		report.RevenueCreated++
	}
}

func (s *Sweeper) batchSettlements(ctx context.Context, now time.Time, report *Report) {
	periodEnd := now.Truncate(s.period)
	periodStart := periodEnd.Add(-s.period)

	sellers, err := s.repo.ListSellersWithPendingRevenue(ctx, periodEnd)
	if err != nil {
		report.fail("list sellers with pending revenue: %v", err)
		return
	}
	for _, sellerID := range sellers {
		revenues, err := s.repo.ListPendingRevenue(ctx, sellerID, periodEnd)
		if err != nil {
			report.fail("pending revenue for seller %d: %v", sellerID, err)
			continue
		}
		if len(revenues) == 0 {
			continue
		}
		settlement := domain.NewSettlement(sellerID, periodStart, periodEnd, revenues, s.fees.PaymentFeeBps, now)
		if _, err := s.repo.CreateSettlement(ctx, settlement); err != nil {
			report.fail("settlement for seller %d: %v", sellerID, err)
			continue
		}
		report.SettlementsCreated++
	}
}

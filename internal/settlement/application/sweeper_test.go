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

	"github.com/tindalabs/storefront-core/internal/settlement/domain"
	"github.com/tindalabs/storefront-core/pkg/apperr"
)

// memSettlementRepo mimics the relational layer's idempotency rules in
// memory: one revenue per payment, settlements claim pending rows.
type memSettlementRepo struct {
	subs     []domain.Subscription
	unbilled []CompletedPayment

	revenues    map[int64]*domain.Revenue // keyed by payment id
	settlements map[int64]*domain.Settlement
	nextID      int64

	downgraded []int64

	listSubsErr   error
	downgradeErr  error
	createRevErr  error
	settlementErr error
}

func newMemSettlementRepo() *memSettlementRepo {
	return &memSettlementRepo{
		revenues:    map[int64]*domain.Revenue{},
		settlements: map[int64]*domain.Settlement{},
		nextID:      1,
	}
}

func (r *memSettlementRepo) ListExpiredGraceSubscriptions(_ context.Context, now time.Time) ([]domain.Subscription, error) {
	if r.listSubsErr != nil {
		return nil, r.listSubsErr
	}
	var out []domain.Subscription
	for _, s := range r.subs {
		if s.GraceExpired(now) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memSettlementRepo) DowngradeToFree(_ context.Context, sellerID int64, now time.Time) error {
	if r.downgradeErr != nil {
		return r.downgradeErr
	}
	for i := range r.subs {
		if r.subs[i].SellerID == sellerID {
			r.subs[i].Plan = domain.PlanFree
			r.subs[i].Status = domain.SubscriptionActive
			r.subs[i].GracePeriodEnd = nil
			r.subs[i].UpdatedAt = now
		}
	}
	r.downgraded = append(r.downgraded, sellerID)
	return nil
}

func (r *memSettlementRepo) ListCompletedPaymentsWithoutRevenue(context.Context) ([]CompletedPayment, error) {
	var out []CompletedPayment
	for _, p := range r.unbilled {
		if _, ok := r.revenues[p.PaymentID]; !ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memSettlementRepo) CreateRevenue(_ context.Context, rev domain.Revenue) error {
	if r.createRevErr != nil {
		return r.createRevErr
	}
	if _, ok := r.revenues[rev.PaymentID]; ok {
		return nil // duplicate insert is a no-op
	}
	rev.ID = r.nextID
	r.nextID++
	r.revenues[rev.PaymentID] = &rev
	return nil
}

func (r *memSettlementRepo) ListSellersWithPendingRevenue(_ context.Context, before time.Time) ([]int64, error) {
	seen := map[int64]bool{}
	var out []int64
	for _, rev := range r.revenues {
		if rev.Status == domain.RevenuePending && rev.SettlementID == nil && rev.RevenueDate.Before(before) && !seen[rev.SellerID] {
			seen[rev.SellerID] = true
			out = append(out, rev.SellerID)
		}
	}
	return out, nil
}

func (r *memSettlementRepo) ListPendingRevenue(_ context.Context, sellerID int64, before time.Time) ([]domain.Revenue, error) {
	var out []domain.Revenue
	for _, rev := range r.revenues {
		if rev.SellerID == sellerID && rev.Status == domain.RevenuePending && rev.SettlementID == nil && rev.RevenueDate.Before(before) {
			out = append(out, *rev)
		}
	}
	return out, nil
}

func (r *memSettlementRepo) CreateSettlement(_ context.Context, s domain.Settlement) (domain.Settlement, error) {
	if r.settlementErr != nil {
		return domain.Settlement{}, r.settlementErr
	}
	s.ID = r.nextID
	r.nextID++
	for _, paymentID := range s.PaymentIDs {
		rev, ok := r.revenues[paymentID]
		if !ok || rev.SettlementID != nil {
			return domain.Settlement{}, apperr.New(apperr.KindConflict, "revenue rows for seller %d were claimed concurrently", s.SellerID)
		}
		id := s.ID
		rev.SettlementID = &id
	}
	r.settlements[s.ID] = &s
	return s, nil
}

func (r *memSettlementRepo) ListBySeller(_ context.Context, sellerID int64) ([]domain.Settlement, error) {
	var out []domain.Settlement
	for _, s := range r.settlements {
		if s.SellerID == sellerID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *memSettlementRepo) MarkPaid(_ context.Context, settlementID int64, method, reference string, now time.Time) (domain.Settlement, error) {
	s, ok := r.settlements[settlementID]
	if !ok {
		return domain.Settlement{}, apperr.New(apperr.KindNotFound, "settlement %d not found", settlementID)
	}
	if s.Status == domain.SettlementPaid {
		return domain.Settlement{}, apperr.New(apperr.KindInvalidTransition, "settlement %d is already paid", settlementID)
	}
	s.Status = domain.SettlementPaid
	s.PayoutMethod = method
	s.PayoutReference = reference
	s.PaidAt = &now
	for _, rev := range r.revenues {
		if rev.SettlementID != nil && *rev.SettlementID == settlementID {
			rev.Status = domain.RevenueSettled
			rev.SettledAt = &now
		}
	}
	return *s, nil
}

type stubUsageMeter struct {
	calls int
	err   error
}

func (m *stubUsageMeter) RunPeriodicUsageCheck(context.Context) error {
	m.calls++
	return m.err
}

var sweepClock = func() time.Time {
	return time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC)
}

var testFees = Fees{PlatformFeeBps: 500, PaymentFeeBps: 150}

func newTestSweeper(repo *memSettlementRepo, usage *stubUsageMeter) *Sweeper {
	return NewSweeper(slog.New(slog.NewTextHandler(io.Discard, nil)), repo, usage, testFees, 24*time.Hour, sweepClock)
}

func yesterday() time.Time {
	return sweepClock().Add(-24 * time.Hour)
}

func TestRunOnceFullSweep(t *testing.T) {
	graceEnd := sweepClock().Add(-time.Hour)
	repo := newMemSettlementRepo()
	repo.subs = []domain.Subscription{
		{ID: 1, SellerID: 7, Plan: "pro", Status: domain.SubscriptionPastDue, GracePeriodEnd: &graceEnd},
		{ID: 2, SellerID: 8, Plan: "pro", Status: domain.SubscriptionActive},
	}
	repo.unbilled = []CompletedPayment{
		{PaymentID: 3, SellerID: 7, AmountCents: 63450, CompletedAt: yesterday()},
	}
	usage := &stubUsageMeter{}

	report := newTestSweeper(repo, usage).RunOnce(context.Background())

	assert.Empty(t, report.Errors)
	assert.Equal(t, 1, usage.calls)
	assert.Equal(t, 1, report.GraceDowngrades)
	assert.Equal(t, []int64{7}, repo.downgraded)
	assert.Equal(t, 1, report.RevenueCreated)
	assert.Equal(t, 1, report.SettlementsCreated)

	rev, ok := repo.revenues[3]
	require.True(t, ok)
	assert.Equal(t, int64(3172), rev.PlatformFeeCents)
	assert.Equal(t, int64(60278), rev.NetCents)
	require.NotNil(t, rev.SettlementID, "backfilled revenue is claimed in the same sweep")

	s := repo.settlements[*rev.SettlementID]
	require.NotNil(t, s)
	assert.Equal(t, int64(7), s.SellerID)
	assert.Equal(t, int64(60278), s.NetCents)
	assert.Equal(t, []int64{3}, s.PaymentIDs)
	// Daily period aligned to midnight of the sweep day.
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), s.PeriodEnd)
	assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), s.PeriodStart)
}

func TestRunOnceIsIdempotent(t *testing.T) {
	repo := newMemSettlementRepo()
	repo.unbilled = []CompletedPayment{
		{PaymentID: 3, SellerID: 7, AmountCents: 63450, CompletedAt: yesterday()},
	}
	sweeper := newTestSweeper(repo, &stubUsageMeter{})

	first := sweeper.RunOnce(context.Background())
	assert.Equal(t, 1, first.RevenueCreated)
	assert.Equal(t, 1, first.SettlementsCreated)

	second := sweeper.RunOnce(context.Background())
	assert.Empty(t, second.Errors)
	assert.Zero(t, second.RevenueCreated, "revenue is created at most once per payment")
	assert.Zero(t, second.SettlementsCreated, "claimed revenue is not re-batched")
	assert.Len(t, repo.settlements, 1)
}

func TestRunOnceIsolatesFailures(t *testing.T) {
	graceEnd := sweepClock().Add(-time.Hour)
	repo := newMemSettlementRepo()
	repo.subs = []domain.Subscription{
		{ID: 1, SellerID: 7, Plan: "pro", Status: domain.SubscriptionPastDue, GracePeriodEnd: &graceEnd},
	}
	repo.unbilled = []CompletedPayment{
		{PaymentID: 3, SellerID: 7, AmountCents: 10000, CompletedAt: yesterday()},
	}
	repo.downgradeErr = errors.New("subscription table locked")
	usage := &stubUsageMeter{err: errors.New("metering down")}

	report := newTestSweeper(repo, usage).RunOnce(context.Background())

	assert.Len(t, report.Errors, 2)
	assert.Zero(t, report.GraceDowngrades)
	assert.Equal(t, 1, report.RevenueCreated, "revenue backfill runs despite earlier failures")
	assert.Equal(t, 1, report.SettlementsCreated)
}

func TestRunOnceSkipsRecentRevenue(t *testing.T) {
	repo := newMemSettlementRepo()
	// Completed after the period boundary: billed, but not yet settled.
	repo.unbilled = []CompletedPayment{
		{PaymentID: 3, SellerID: 7, AmountCents: 10000, CompletedAt: sweepClock().Add(-time.Hour)},
	}

	report := newTestSweeper(repo, &stubUsageMeter{}).RunOnce(context.Background())

	assert.Equal(t, 1, report.RevenueCreated)
	assert.Zero(t, report.SettlementsCreated, "current-period revenue waits for the next sweep")
}

func TestMarkPaid(t *testing.T) {
	repo := newMemSettlementRepo()
	svc := NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), repo, sweepClock)

	_, err := svc.MarkPaid(context.Background(), 1, "", "ref")
	assert.True(t, apperr.Is(err, apperr.KindInvalidRequest), "got %v", err)

	repo.settlements[1] = &domain.Settlement{ID: 1, SellerID: 7, Status: domain.SettlementPending}
	paid, err := svc.MarkPaid(context.Background(), 1, "mpesa", "TX-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SettlementPaid, paid.Status)
	assert.Equal(t, "mpesa", paid.PayoutMethod)

	_, err = svc.MarkPaid(context.Background(), 1, "mpesa", "TX-1")
	assert.True(t, apperr.Is(err, apperr.KindInvalidTransition), "got %v", err)
}

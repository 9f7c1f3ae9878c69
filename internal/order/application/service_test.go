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

	discountapp "github.com/tindalabs/storefront-core/internal/discount/application"
	"github.com/tindalabs/storefront-core/internal/order/domain"
	"github.com/tindalabs/storefront-core/pkg/apperr"
	"github.com/tindalabs/storefront-core/pkg/outbox"
)

type stubOrderRepo struct {
	orders map[int64]domain.Order
	nextID int64

	createErr error
	updateErr error

	updates     int
	lastEvent   string
	lastPayload []byte
}

func newStubOrderRepo() *stubOrderRepo {
	return &stubOrderRepo{orders: map[int64]domain.Order{}, nextID: 1}
}

func (r *stubOrderRepo) Get(_ context.Context, id int64) (domain.Order, error) {
	o, ok := r.orders[id]
	if !ok {
		return domain.Order{}, apperr.New(apperr.KindNotFound, "order %d not found", id)
	}
	return o, nil
}

func (r *stubOrderRepo) CreateWithOutbox(_ context.Context, o domain.Order, _ string) (domain.Order, error) {
	if r.createErr != nil {
		return domain.Order{}, r.createErr
	}
	o.ID = r.nextID
	r.nextID++
	r.orders[o.ID] = o
	return o, nil
}

func (r *stubOrderRepo) UpdateStatusWithOutbox(_ context.Context, o domain.Order, expected domain.OrderStatus, eventType string, payload []byte, _ string) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	current, ok := r.orders[o.ID]
	if !ok {
		return apperr.New(apperr.KindNotFound, "order %d not found", o.ID)
	}
	if current.Status != expected {
		return apperr.New(apperr.KindConflict, "order %d was modified concurrently", o.ID)
	}
	r.orders[o.ID] = o
	r.updates++
	r.lastEvent = eventType
	r.lastPayload = payload
	return nil
}

type stubResolver struct {
	res       discountapp.Resolution
	err       error
	recorded  []int64
	recordErr error
}

func (s *stubResolver) ResolveBest(context.Context, int64, int64, []int64) (discountapp.Resolution, error) {
	return s.res, s.err
}

func (s *stubResolver) RecordUse(_ context.Context, saleID int64) error {
	s.recorded = append(s.recorded, saleID)
	return s.recordErr
}

var testClock = func() time.Time {
	return time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
}

func newTestService(repo *stubOrderRepo, resolver *stubResolver) *Service {
	return NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), repo, resolver, testClock)
}

func validInput() NewOrderInput {
	return NewOrderInput{
		SellerID:      7,
		CustomerName:  "Ana",
		Contact:       "ana@example.com",
		ItemRef:       "sku-1",
		SubtotalCents: 1000,
		ShippingCents: 200,
	}
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(newStubOrderRepo(), &stubResolver{})

	cases := []struct {
		name   string
		mutate func(*NewOrderInput)
	}{
		{"missing seller", func(in *NewOrderInput) { in.SellerID = 0 }},
		{"missing customer name", func(in *NewOrderInput) { in.CustomerName = "" }},
		{"missing contact", func(in *NewOrderInput) { in.Contact = "" }},
		{"zero subtotal", func(in *NewOrderInput) { in.SubtotalCents = 0 }},
		{"negative subtotal", func(in *NewOrderInput) { in.SubtotalCents = -5 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			_, err := svc.Create(context.Background(), in)
			assert.True(t, apperr.Is(err, apperr.KindInvalidRequest), "got %v", err)
		})
	}
}

func TestCreateAppliesBestDiscount(t *testing.T) {
	repo := newStubOrderRepo()
	resolver := &stubResolver{res: discountapp.Resolution{Applicable: true, SaleID: 42, AmountCents: 150}}
	svc := newTestService(repo, resolver)

	o, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	assert.Equal(t, int64(150), o.DiscountCents)
	assert.Equal(t, int64(1050), o.TotalCents())
	assert.Equal(t, []int64{42}, resolver.recorded, "the applied sale's use is burned")
}

func TestCreateSurvivesDiscountOutage(t *testing.T) {
	repo := newStubOrderRepo()
	resolver := &stubResolver{err: errors.New("store down")}
	svc := newTestService(repo, resolver)

	o, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	assert.Equal(t, int64(0), o.DiscountCents)
	assert.Empty(t, resolver.recorded)
}

func TestCreateToleratesRecordUseFailure(t *testing.T) {
	repo := newStubOrderRepo()
	resolver := &stubResolver{
		res:       discountapp.Resolution{Applicable: true, SaleID: 42, AmountCents: 150},
		recordErr: errors.New("exhausted"),
	}
	svc := newTestService(repo, resolver)

	o, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, int64(150), o.DiscountCents)
}

func seedOrder(repo *stubOrderRepo, status domain.OrderStatus) domain.Order {
	o := domain.NewOrder(7, nil, "Ana", "ana@example.com", "sku-1", "", 1000, 200, domain.ShippingAddress{}, testClock())
	if status != domain.StatusNew {
		o.AppendStatus(status, testClock(), "")
	}
	o.ID = repo.nextID
	repo.nextID++
	repo.orders[o.ID] = o
	return o
}

func TestTransitionStatus(t *testing.T) {
	t.Run("unknown target", func(t *testing.T) {
		repo := newStubOrderRepo()
		seedOrder(repo, domain.StatusNew)
		svc := newTestService(repo, &stubResolver{})

		_, err := svc.TransitionStatus(context.Background(), 1, 0, "archived", "seller", "")
		assert.True(t, apperr.Is(err, apperr.KindInvalidRequest), "got %v", err)
	})

	t.Run("seller scope hides other sellers' orders", func(t *testing.T) {
		repo := newStubOrderRepo()
		seedOrder(repo, domain.StatusNew)
		svc := newTestService(repo, &stubResolver{})

		_, err := svc.TransitionStatus(context.Background(), 1, 99, domain.StatusShipped, "seller", "")
		assert.True(t, apperr.Is(err, apperr.KindNotFound), "got %v", err)
	})

	t.Run("same status is a no-op", func(t *testing.T) {
		repo := newStubOrderRepo()
		seed := seedOrder(repo, domain.StatusShipped)
		svc := newTestService(repo, &stubResolver{})

		o, err := svc.TransitionStatus(context.Background(), seed.ID, 0, domain.StatusShipped, "seller", "retry")
		require.NoError(t, err)
		assert.Len(t, o.History, len(seed.History), "retried webhooks do not pollute the history")
		assert.Zero(t, repo.updates)
	})

	t.Run("terminal orders absorb", func(t *testing.T) {
		repo := newStubOrderRepo()
		seed := seedOrder(repo, domain.StatusDelivered)
		svc := newTestService(repo, &stubResolver{})

		_, err := svc.TransitionStatus(context.Background(), seed.ID, 0, domain.StatusProcessing, "seller", "")
		assert.True(t, apperr.Is(err, apperr.KindInvalidTransition), "got %v", err)
	})

	t.Run("rushed order jumps new to shipped", func(t *testing.T) {
		repo := newStubOrderRepo()
		seed := seedOrder(repo, domain.StatusNew)
		svc := newTestService(repo, &stubResolver{})

		o, err := svc.TransitionStatus(context.Background(), seed.ID, 7, domain.StatusShipped, "seller", "same-day courier")
		require.NoError(t, err)

		assert.Equal(t, domain.StatusShipped, o.Status)
		require.Len(t, o.History, 2)
		assert.Equal(t, domain.StatusShipped, o.History[1].Status)
		assert.Equal(t, "same-day courier", o.History[1].Note)
		assert.Equal(t, "same-day courier", o.Notes)
		assert.Equal(t, outbox.EventOrderStatusChanged, repo.lastEvent)
	})

	t.Run("conflict from a racing transition surfaces", func(t *testing.T) {
		repo := newStubOrderRepo()
		seed := seedOrder(repo, domain.StatusNew)
		repo.updateErr = apperr.New(apperr.KindConflict, "order 1 was modified concurrently")
		svc := newTestService(repo, &stubResolver{})

		_, err := svc.TransitionStatus(context.Background(), seed.ID, 0, domain.StatusConfirmed, "seller", "")
		assert.True(t, apperr.Is(err, apperr.KindConflict), "got %v", err)
	})
}

func TestRefundOrCancelValidation(t *testing.T) {
	repo := newStubOrderRepo()
	seedOrder(repo, domain.StatusDelivered)
	svc := newTestService(repo, &stubResolver{})

	cases := []struct {
		name string
		req  RefundRequest
		kind apperr.Kind
	}{
		{"unknown type", RefundRequest{Type: "chargeback", Reason: "r", Note: "n"}, apperr.KindInvalidRequest},
		{"missing reason", RefundRequest{Type: RefundTypeCancel, Note: "n"}, apperr.KindInvalidRequest},
		{"missing note", RefundRequest{Type: RefundTypeCancel, Reason: "r"}, apperr.KindInvalidRequest},
		{"refund without amount", RefundRequest{Type: RefundTypeRefund, Reason: "r", Note: "n"}, apperr.KindInvalidRequest},
		{"refund exceeds total", RefundRequest{Type: RefundTypeRefund, AmountCents: 99999, Reason: "r", Note: "n"}, apperr.KindInvalidRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.RefundOrCancel(context.Background(), 1, tc.req)
			assert.True(t, apperr.Is(err, tc.kind), "got %v", err)
		})
	}
}

func TestRefundOrCancel(t *testing.T) {
	t.Run("already cancelled", func(t *testing.T) {
		repo := newStubOrderRepo()
		seed := seedOrder(repo, domain.StatusCancelled)
		svc := newTestService(repo, &stubResolver{})

		_, err := svc.RefundOrCancel(context.Background(), seed.ID, RefundRequest{
			Type: RefundTypeCancel, Reason: "dup", Note: "duplicate order",
		})
		assert.True(t, apperr.Is(err, apperr.KindInvalidTransition), "got %v", err)
	})

	t.Run("refund records amount and reason", func(t *testing.T) {
		repo := newStubOrderRepo()
		seed := seedOrder(repo, domain.StatusDelivered)
		svc := newTestService(repo, &stubResolver{})

		o, err := svc.RefundOrCancel(context.Background(), seed.ID, RefundRequest{
			Type: RefundTypeRefund, AmountCents: 500, Reason: "damaged", Note: "customer sent photos",
		})
		require.NoError(t, err)

		assert.Equal(t, domain.StatusCancelled, o.Status)
		assert.Equal(t, int64(500), o.RefundCents)
		assert.Equal(t, "damaged", o.RefundReason)
		assert.Equal(t, outbox.EventOrderRefunded, repo.lastEvent)
	})

	t.Run("full refund up to the total is allowed", func(t *testing.T) {
		repo := newStubOrderRepo()
		seed := seedOrder(repo, domain.StatusDelivered)
		svc := newTestService(repo, &stubResolver{})

		o, err := svc.RefundOrCancel(context.Background(), seed.ID, RefundRequest{
			Type: RefundTypeRefund, AmountCents: seed.TotalCents(), Reason: "returned", Note: "full return",
		})
		require.NoError(t, err)
		assert.Equal(t, seed.TotalCents(), o.RefundCents)
	})

	t.Run("cancel records reason without refund", func(t *testing.T) {
		repo := newStubOrderRepo()
		seed := seedOrder(repo, domain.StatusNew)
		svc := newTestService(repo, &stubResolver{})

		o, err := svc.RefundOrCancel(context.Background(), seed.ID, RefundRequest{
			Type: RefundTypeCancel, Reason: "out_of_stock", Note: "item discontinued",
		})
		require.NoError(t, err)

		assert.Equal(t, domain.StatusCancelled, o.Status)
		assert.Equal(t, "out_of_stock", o.CancelReason)
		assert.Zero(t, o.RefundCents)
		assert.Equal(t, outbox.EventOrderCancelled, repo.lastEvent)
	})
}

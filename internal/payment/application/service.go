package application

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/tindalabs/storefront-core/internal/payment/domain"
	settlementdomain "github.com/tindalabs/storefront-core/internal/settlement/domain"
	"github.com/tindalabs/storefront-core/pkg/apperr"
	"github.com/tindalabs/storefront-core/pkg/tracing"
)

// Pricing carries the conversion and fee knobs injected at boot so
// tests can pin deterministic rates.
type Pricing struct {
	// USDToMZNRateMilli converts order totals (USD cents) into charge
	// amounts (MZN cents), in thousandths of MZN per USD.
	USDToMZNRateMilli int64
	// MinChargeCents is the smallest amount the processor accepts.
	MinChargeCents int64

	PlatformFeeBps        int64
	PlatformFeeFixedCents int64
}

const bankInstructions = "Transfer the exact amount to Banco Tinda, account 4471-0092-1183, and keep the deposit slip as reference."

type Service struct {
	log     *slog.Logger
	repo    PaymentRepository
	orders  OrderReader
	revenue RevenueWriter
	pricing Pricing
	clock   func() time.Time
}

func NewService(log *slog.Logger, repo PaymentRepository, orders OrderReader, revenue RevenueWriter, pricing Pricing, clock func() time.Time) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{log: log, repo: repo, orders: orders, revenue: revenue, pricing: pricing, clock: clock}
}

type InitiateRequest struct {
	OrderID    int64
	Method     domain.Method
	Provider   domain.Provider
	PayerPhone string
	PayerName  string
}

// InitiateResult carries any out-of-band instructions the customer
// needs to complete payment (bank details for transfers).
type InitiateResult struct {
	Payment      domain.Payment
	Instructions string
}

// Initiate creates a payment for an order. The charge amount is
// recomputed from the order's stored totals; a client-supplied amount
// is never trusted.
func (s *Service) Initiate(ctx context.Context, req InitiateRequest) (InitiateResult, error) {
	if !req.Method.Valid() {
		return InitiateResult{}, apperr.New(apperr.KindInvalidMethod, "unknown payment method %q", req.Method)
	}
	if req.Method == domain.MethodMpesa {
		if !req.Provider.Valid() {
			return InitiateResult{}, apperr.New(apperr.KindInvalidMethod, "mpesa requires a provider (vodacom or movitel)")
		}
		if req.PayerPhone == "" {
			return InitiateResult{}, apperr.New(apperr.KindInvalidRequest, "mpesa requires the payer's phone number")
		}
	}

	o, err := s.orders.Get(ctx, req.OrderID)
	if err != nil {
		return InitiateResult{}, err
	}

	if blocking, found, err := s.repo.FindBlocking(ctx, req.OrderID); err != nil {
		return InitiateResult{}, err
	} else if found {
		return InitiateResult{}, apperr.New(apperr.KindDuplicatePayment, "order %d already has a %s payment", req.OrderID, blocking.Status)
	}

	now := s.clock().UTC()
	p := domain.Payment{
		OrderID:     o.ID,
		SellerID:    o.SellerID,
		Method:      req.Method,
		Provider:    req.Provider,
		Status:      domain.StatusPending,
		AmountCents: s.chargeCents(o.TotalCents()),
		Currency:    "MZN",
		PayerPhone:  req.PayerPhone,
		PayerName:   req.PayerName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	// Mobile money pushes a charge prompt immediately, so it starts in
	// processing; the other methods wait for out-of-band action.
	if req.Method == domain.MethodMpesa {
		p.Status = domain.StatusProcessing
		p.ProcessedAt = &now
	}

	created, err := s.repo.CreateWithOutbox(ctx, p, tracing.Traceparent(ctx))
	if err != nil {
		return InitiateResult{}, err
	}

	result := InitiateResult{Payment: created}
	if req.Method == domain.MethodBankTransfer {
		result.Instructions = bankInstructions
	}
	return result, nil
}

// chargeCents converts a USD-cent order total into MZN cents at the
// configured rate, floored to the minimum charge.
func (s *Service) chargeCents(usdCents int64) int64 {
	mzn := usdCents * s.pricing.USDToMZNRateMilli / 1000
	if mzn < s.pricing.MinChargeCents {
		return s.pricing.MinChargeCents
	}
	return mzn
}

// UpdateStatus drives a payment through its state machine. Terminal
// payments reject every further update, which makes confirmation
// at-most-once. Completing a payment writes its revenue record.
func (s *Service) UpdateStatus(ctx context.Context, paymentID int64, target domain.PaymentStatus, note string, metadata map[string]string) (domain.Payment, error) {
	if !target.Valid() {
		return domain.Payment{}, apperr.New(apperr.KindInvalidRequest, "unknown payment status %q", target)
	}

	p, err := s.repo.Get(ctx, paymentID)
	if err != nil {
		return domain.Payment{}, err
	}
	if p.Status.Terminal() {
		return domain.Payment{}, apperr.New(apperr.KindInvalidTransition, "payment %d is already %s", paymentID, p.Status)
	}
	if !domain.CanTransition(p.Status, target) {
		return domain.Payment{}, apperr.New(apperr.KindInvalidTransition, "payment %d cannot move from %s to %s", paymentID, p.Status, target)
	}

	prev := p.Status
	now := s.clock().UTC()
	p.Status = target
	p.UpdatedAt = now
	switch target {
	case domain.StatusProcessing:
		p.ProcessedAt = &now
	case domain.StatusCompleted:
		p.CompletedAt = &now
	case domain.StatusFailed:
		p.FailedAt = &now
	}
	for k, v := range metadata {
		switch k {
		case "provider_ref":
			p.ProviderRef = v
		case "confirmation_code":
			p.ConfirmationCode = v
		default:
			if p.Metadata == nil {
				p.Metadata = map[string]string{}
			}
			p.Metadata[k] = v
		}
	}

	payload, err := json.Marshal(domain.PaymentStatusChanged{
		PaymentID:      p.ID,
		OrderID:        p.OrderID,
		SellerID:       p.SellerID,
		Status:         target,
		PreviousStatus: prev,
		Method:         p.Method,
		AmountCents:    p.AmountCents,
		Note:           note,
	})
	if err != nil {
		return domain.Payment{}, err
	}

	if err := s.repo.UpdateStatusWithOutbox(ctx, p, prev, payload, tracing.Traceparent(ctx)); err != nil {
		return domain.Payment{}, err
	}

	if target == domain.StatusCompleted {
		rev := settlementdomain.NewRevenue(p.ID, p.SellerID, p.AmountCents,
			s.pricing.PlatformFeeBps, s.pricing.PlatformFeeFixedCents, now)
		if err := s.revenue.CreateRevenue(ctx, rev); err != nil {
			// The settlement sweep backfills missing revenue records,
			// so a failure here is logged, not surfaced.
			s.log.Error("revenue record creation failed", "payment_id", p.ID, "err", err)
		}
	}
	return p, nil
}

// Confirm is the seller attesting that a pending cash or bank-transfer
// payment arrived. Only legal from pending.
func (s *Service) Confirm(ctx context.Context, paymentID, sellerID int64, notes, externalRef string) (domain.Payment, error) {
	p, err := s.repo.Get(ctx, paymentID)
	if err != nil {
		return domain.Payment{}, err
	}
	if p.SellerID != sellerID {
		return domain.Payment{}, apperr.New(apperr.KindForbidden, "payment %d does not belong to seller %d", paymentID, sellerID)
	}
	if p.Status == domain.StatusCompleted {
		return domain.Payment{}, apperr.New(apperr.KindAlreadyConfirmed, "payment %d is already confirmed", paymentID)
	}
	if p.Status != domain.StatusPending {
		return domain.Payment{}, apperr.New(apperr.KindInvalidTransition, "payment %d is %s, only pending payments can be confirmed", paymentID, p.Status)
	}

	metadata := map[string]string{}
	if externalRef != "" {
		metadata["confirmation_code"] = externalRef
	}
	return s.UpdateStatus(ctx, paymentID, domain.StatusCompleted, notes, metadata)
}

func (s *Service) Get(ctx context.Context, paymentID int64) (domain.Payment, error) {
	return s.repo.Get(ctx, paymentID)
}

func (s *Service) ListByOrder(ctx context.Context, orderID int64) ([]domain.Payment, error) {
	return s.repo.ListByOrder(ctx, orderID)
}

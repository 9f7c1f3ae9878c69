package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/tindalabs/storefront-core/internal/settlement/application"
	"github.com/tindalabs/storefront-core/internal/settlement/domain"
	"github.com/tindalabs/storefront-core/pkg/apperr"
	"github.com/tindalabs/storefront-core/pkg/httpx"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
	sweeper *application.Sweeper
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service, sweeper *application.Sweeper) *Handler {
	return &Handler{
		log:     log,
		service: service,
		sweeper: sweeper,
		tracer:  otel.Tracer("settlement-http"),
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/sellers/{id}/settlements", h.listBySeller)
	r.Post("/settlements/{id}/pay", h.pay)
	r.Post("/settlements/run", h.runSweep)
}

func (h *Handler) listBySeller(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListSettlements")
	defer span.End()

	sellerID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || sellerID <= 0 {
		httpx.WriteError(w, apperr.New(apperr.KindInvalidRequest, "invalid seller id"))
		return
	}

	settlements, err := h.service.ListBySeller(ctx, sellerID)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	out := make([]settlementDTO, 0, len(settlements))
	for _, s := range settlements {
		out = append(out, settlementResponse(s))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

type payReq struct {
	Method    string `json:"method"`
	Reference string `json:"reference,omitempty"`
}

func (h *Handler) pay(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PaySettlement")
	defer span.End()

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.WriteError(w, apperr.New(apperr.KindInvalidRequest, "invalid settlement id"))
		return
	}
	var req payReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, apperr.New(apperr.KindInvalidRequest, "invalid body"))
		return
	}

	s, err := h.service.MarkPaid(ctx, id, req.Method, req.Reference)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, settlementResponse(s))
}

// runSweep triggers the settlement job on demand; the same job also
// runs on its timer. The report is returned, errors included, so an
// operator sees partial failures without digging through logs.
func (h *Handler) runSweep(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "RunSettlementSweep")
	defer span.End()

	report := h.sweeper.RunOnce(ctx)
	httpx.WriteJSON(w, http.StatusOK, report)
}

type settlementDTO struct {
	ID               int64                   `json:"id"`
	SellerID         int64                   `json:"seller_id"`
	PeriodStart      time.Time               `json:"period_start"`
	PeriodEnd        time.Time               `json:"period_end"`
	GrossCents       int64                   `json:"gross_cents"`
	PlatformFeeCents int64                   `json:"platform_fee_cents"`
	PaymentFeeCents  int64                   `json:"payment_fee_cents"`
	NetCents         int64                   `json:"net_cents"`
	Status           domain.SettlementStatus `json:"status"`
	PayoutMethod     string                  `json:"payout_method,omitempty"`
	PayoutReference  string                  `json:"payout_reference,omitempty"`
	PaymentIDs       []int64                 `json:"payment_ids"`
	CreatedAt        time.Time               `json:"created_at"`
	PaidAt           *time.Time              `json:"paid_at,omitempty"`
}

func settlementResponse(s domain.Settlement) settlementDTO {
	return settlementDTO{
		ID:               s.ID,
		SellerID:         s.SellerID,
		PeriodStart:      s.PeriodStart,
		PeriodEnd:        s.PeriodEnd,
		GrossCents:       s.GrossCents,
		PlatformFeeCents: s.PlatformFeeCents,
		PaymentFeeCents:  s.PaymentFeeCents,
		NetCents:         s.NetCents,
		Status:           s.Status,
		PayoutMethod:     s.PayoutMethod,
		PayoutReference:  s.PayoutReference,
		PaymentIDs:       s.PaymentIDs,
		CreatedAt:        s.CreatedAt,
		PaidAt:           s.PaidAt,
	}
}

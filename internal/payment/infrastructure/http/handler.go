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

	"github.com/tindalabs/storefront-core/internal/payment/application"
	"github.com/tindalabs/storefront-core/internal/payment/domain"
	"github.com/tindalabs/storefront-core/pkg/apperr"
	"github.com/tindalabs/storefront-core/pkg/httpx"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("payment-http"),
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/payments/initiate", h.initiate)
	r.Put("/payments/status", h.updateStatus)
	r.Post("/payments/confirm", h.confirm)
	r.Get("/payments/{id}", h.get)
}

type initiateReq struct {
	OrderID    int64           `json:"order_id"`
	Method     domain.Method   `json:"method"`
	Provider   domain.Provider `json:"provider,omitempty"`
	PayerPhone string          `json:"payer_phone,omitempty"`
	PayerName  string          `json:"payer_name,omitempty"`
}

func (h *Handler) initiate(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "InitiatePayment")
	defer span.End()

	var req initiateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, apperr.New(apperr.KindInvalidRequest, "invalid body"))
		return
	}
	if req.OrderID <= 0 {
		httpx.WriteError(w, apperr.New(apperr.KindInvalidRequest, "order_id is required"))
		return
	}

	res, err := h.service.Initiate(ctx, application.InitiateRequest{
		OrderID:    req.OrderID,
		Method:     req.Method,
		Provider:   req.Provider,
		PayerPhone: req.PayerPhone,
		PayerName:  req.PayerName,
	})
	if err != nil {
		httpx.WriteError(w, err)
		return
	}

	resp := paymentResponse(res.Payment)
	resp.Instructions = res.Instructions
	httpx.WriteJSON(w, http.StatusCreated, resp)
}

type updateStatusReq struct {
	PaymentID int64                `json:"payment_id"`
	Status    domain.PaymentStatus `json:"status"`
	Note      string               `json:"note,omitempty"`
	Metadata  map[string]string    `json:"metadata,omitempty"`
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdatePaymentStatus")
	defer span.End()

	var req updateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, apperr.New(apperr.KindInvalidRequest, "invalid body"))
		return
	}
	if req.PaymentID <= 0 {
		httpx.WriteError(w, apperr.New(apperr.KindInvalidRequest, "payment_id is required"))
		return
	}

	p, err := h.service.UpdateStatus(ctx, req.PaymentID, req.Status, req.Note, req.Metadata)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, paymentResponse(p))
}

type confirmReq struct {
	PaymentID   int64  `json:"payment_id"`
	SellerID    int64  `json:"seller_id"`
	Notes       string `json:"notes,omitempty"`
	ExternalRef string `json:"external_transaction_id,omitempty"`
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ConfirmPayment")
	defer span.End()

	var req confirmReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, apperr.New(apperr.KindInvalidRequest, "invalid body"))
		return
	}
	if req.PaymentID <= 0 || req.SellerID <= 0 {
		httpx.WriteError(w, apperr.New(apperr.KindInvalidRequest, "payment_id and seller_id are required"))
		return
	}

	p, err := h.service.Confirm(ctx, req.PaymentID, req.SellerID, req.Notes, req.ExternalRef)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, paymentResponse(p))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetPayment")
	defer span.End()

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.WriteError(w, apperr.New(apperr.KindInvalidRequest, "invalid id"))
		return
	}
	p, err := h.service.Get(ctx, id)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, paymentResponse(p))
}

type paymentDTO struct {
	ID               int64                `json:"id"`
	OrderID          int64                `json:"order_id"`
	SellerID         int64                `json:"seller_id"`
	Method           domain.Method        `json:"method"`
	Provider         domain.Provider      `json:"provider,omitempty"`
	Status           domain.PaymentStatus `json:"status"`
	AmountCents      int64                `json:"amount_cents"`
	Currency         string               `json:"currency"`
	ProviderRef      string               `json:"provider_ref,omitempty"`
	ConfirmationCode string               `json:"confirmation_code,omitempty"`
	PayerPhone       string               `json:"payer_phone,omitempty"`
	PayerName        string               `json:"payer_name,omitempty"`
	ProcessedAt      *time.Time           `json:"processed_at,omitempty"`
	CompletedAt      *time.Time           `json:"completed_at,omitempty"`
	FailedAt         *time.Time           `json:"failed_at,omitempty"`
	Metadata         map[string]string    `json:"metadata,omitempty"`
	Instructions     string               `json:"instructions,omitempty"`
}

func paymentResponse(p domain.Payment) paymentDTO {
	return paymentDTO{
		ID:               p.ID,
		OrderID:          p.OrderID,
		SellerID:         p.SellerID,
		Method:           p.Method,
		Provider:         p.Provider,
		Status:           p.Status,
		AmountCents:      p.AmountCents,
		Currency:         p.Currency,
		ProviderRef:      p.ProviderRef,
		ConfirmationCode: p.ConfirmationCode,
		PayerPhone:       p.PayerPhone,
		PayerName:        p.PayerName,
		ProcessedAt:      p.ProcessedAt,
		CompletedAt:      p.CompletedAt,
		FailedAt:         p.FailedAt,
		Metadata:         p.Metadata,
	}
}

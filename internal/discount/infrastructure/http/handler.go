package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/tindalabs/storefront-core/internal/discount/application"
	"github.com/tindalabs/storefront-core/pkg/apperr"
	"github.com/tindalabs/storefront-core/pkg/httpx"
)

type Handler struct {
	log      *slog.Logger
	resolver *application.Resolver
	tracer   trace.Tracer
}

func NewHandler(log *slog.Logger, resolver *application.Resolver) *Handler {
	return &Handler{
		log:      log,
		resolver: resolver,
		tracer:   otel.Tracer("discount-http"),
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/flash-sales/validate", h.validate)
}

type validateReq struct {
	SellerID        int64   `json:"seller_id"`
	OrderTotalCents int64   `json:"order_total_cents"`
	ProductIDs      []int64 `json:"product_ids"`
}

func (h *Handler) validate(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ValidateFlashSale")
	defer span.End()

	var req validateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, apperr.New(apperr.KindInvalidRequest, "invalid body"))
		return
	}
	if req.SellerID == 0 || req.OrderTotalCents < 0 {
		httpx.WriteError(w, apperr.New(apperr.KindInvalidRequest, "seller_id and a non-negative order_total_cents are required"))
		return
	}

	res, err := h.resolver.ResolveBest(ctx, req.SellerID, req.OrderTotalCents, req.ProductIDs)
	if err != nil {
		h.log.Error("flash sale validate failed", "seller_id", req.SellerID, "err", err)
		httpx.WriteError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, res)
}

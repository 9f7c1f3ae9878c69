package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/tindalabs/storefront-core/internal/order/application"
	"github.com/tindalabs/storefront-core/internal/order/domain"
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
		tracer:  otel.Tracer("order-http"),
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Put("/orders/{id}/status", h.updateStatus)
	r.Post("/orders/{id}/refund", h.refund)
}

type createOrderReq struct {
	SellerID      int64                  `json:"seller_id"`
	CustomerID    *int64                 `json:"customer_id,omitempty"`
	CustomerName  string                 `json:"customer_name"`
	Contact       string                 `json:"contact"`
	ItemRef       string                 `json:"item_ref"`
	ProductIDs    []int64                `json:"product_ids"`
	Message       string                 `json:"message"`
	SubtotalCents int64                  `json:"subtotal_cents"`
	ShippingCents int64                  `json:"shipping_cents"`
	Address       domain.ShippingAddress `json:"shipping_address"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateOrder")
	defer span.End()

	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, apperr.New(apperr.KindInvalidRequest, "invalid body"))
		return
	}

	o, err := h.service.Create(ctx, application.NewOrderInput{
		SellerID:      req.SellerID,
		CustomerID:    req.CustomerID,
		CustomerName:  req.CustomerName,
		Contact:       req.Contact,
		ItemRef:       req.ItemRef,
		ProductIDs:    req.ProductIDs,
		Message:       req.Message,
		SubtotalCents: req.SubtotalCents,
		ShippingCents: req.ShippingCents,
		Address:       req.Address,
	})
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, orderResponse(o))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetOrder")
	defer span.End()

	id, err := pathID(r)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	o, err := h.service.Get(ctx, id)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orderResponse(o))
}

type updateStatusReq struct {
	Status   domain.OrderStatus `json:"status"`
	SellerID int64              `json:"seller_id,omitempty"`
	Actor    string             `json:"actor"`
	Note     string             `json:"note,omitempty"`
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateOrderStatus")
	defer span.End()

	id, err := pathID(r)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	var req updateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, apperr.New(apperr.KindInvalidRequest, "invalid body"))
		return
	}

	o, err := h.service.TransitionStatus(ctx, id, req.SellerID, req.Status, req.Actor, req.Note)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orderResponse(o))
}

type refundReq struct {
	Type        string `json:"type"`
	AmountCents int64  `json:"amount_cents,omitempty"`
	Reason      string `json:"reason"`
	Note        string `json:"note"`
}

func (h *Handler) refund(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "RefundOrder")
	defer span.End()

	id, err := pathID(r)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	var req refundReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, apperr.New(apperr.KindInvalidRequest, "invalid body"))
		return
	}

	o, err := h.service.RefundOrCancel(ctx, id, application.RefundRequest{
		Type:        req.Type,
		AmountCents: req.AmountCents,
		Reason:      req.Reason,
		Note:        req.Note,
	})
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orderResponse(o))
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.New(apperr.KindInvalidRequest, "invalid id")
	}
	return id, nil
}

type orderDTO struct {
	ID              int64                  `json:"id"`
	SellerID        int64                  `json:"seller_id"`
	CustomerID      *int64                 `json:"customer_id,omitempty"`
	CustomerName    string                 `json:"customer_name"`
	Contact         string                 `json:"contact"`
	ItemRef         string                 `json:"item_ref"`
	Message         string                 `json:"message,omitempty"`
	Status          domain.OrderStatus     `json:"status"`
	History         []domain.StatusChange  `json:"status_history"`
	Notes           string                 `json:"notes,omitempty"`
	CancelReason    string                 `json:"cancel_reason,omitempty"`
	RefundReason    string                 `json:"refund_reason,omitempty"`
	RefundCents     int64                  `json:"refund_cents,omitempty"`
	SubtotalCents   int64                  `json:"subtotal_cents"`
	ShippingCents   int64                  `json:"shipping_cents"`
	DiscountCents   int64                  `json:"discount_cents"`
	TotalCents      int64                  `json:"total_cents"`
	TrackingNumber  string                 `json:"tracking_number,omitempty"`
	ShippingAddress domain.ShippingAddress `json:"shipping_address"`
}

func orderResponse(o domain.Order) orderDTO {
	return orderDTO{
		ID:              o.ID,
		SellerID:        o.SellerID,
		CustomerID:      o.CustomerID,
		CustomerName:    o.CustomerName,
		Contact:         o.Contact,
		ItemRef:         o.ItemRef,
		Message:         o.Message,
		Status:          o.Status,
		History:         o.History,
		Notes:           o.Notes,
		CancelReason:    o.CancelReason,
		RefundReason:    o.RefundReason,
		RefundCents:     o.RefundCents,
		SubtotalCents:   o.SubtotalCents,
		ShippingCents:   o.ShippingCents,
		DiscountCents:   o.DiscountCents,
		TotalCents:      o.TotalCents(),
		TrackingNumber:  o.TrackingNumber,
		ShippingAddress: o.ShippingAddress,
	}
}

package refunds

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-pos/internal/rbac"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// Handler wires HTTP endpoints for refunds.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs the refunds handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers refund routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireAny(shared.PermRefundCreate)).Post("/", h.handleCreate)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermSaleView))
		r.Get("/{refundID}", h.handleGet)
		r.Get("/sales/{saleID}", h.handleListBySale)
		r.Get("/sales/{saleID}/balance", h.handleBalance)
	})
}

type itemRequest struct {
	SaleItemID uuid.UUID       `json:"saleItemId" validate:"required"`
	Quantity   int             `json:"quantity" validate:"gt=0"`
	Price      decimal.Decimal `json:"price"`
	Subtotal   decimal.Decimal `json:"subtotal"`
}

type createRequest struct {
	SaleID       uuid.UUID       `json:"saleId" validate:"required"`
	Type         Type            `json:"type" validate:"required,oneof=TOTAL PARCIAL"`
	Reason       string          `json:"reason" validate:"required,max=500"`
	RefundAmount decimal.Decimal `json:"refundAmount"`
	Items        []itemRequest   `json:"items" validate:"required,min=1,dive"`
	RestockItems bool            `json:"restockItems"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	if err := httpx.Validate(&req); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	input := CreateInput{
		SaleID:       req.SaleID,
		Type:         req.Type,
		Reason:       req.Reason,
		Amount:       req.RefundAmount,
		RestockItems: req.RestockItems,
	}
	for _, it := range req.Items {
		input.Items = append(input.Items, ItemInput{
			SaleItemID: it.SaleItemID,
			Quantity:   it.Quantity,
			UnitPrice:  it.Price,
			Subtotal:   it.Subtotal,
		})
	}
	actor, _ := shared.ActorFromContext(r.Context())
	refund, err := h.service.CreateRefund(r.Context(), actor, input)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, refund)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	refundID, err := httpx.UUIDParam(r, "refundID")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	refund, err := h.service.GetRefund(r.Context(), actor, refundID)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, refund)
}

func (h *Handler) handleListBySale(w http.ResponseWriter, r *http.Request) {
	saleID, err := httpx.UUIDParam(r, "saleID")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	refunds, err := h.service.ListRefunds(r.Context(), actor, saleID)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"refunds": refunds})
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	saleID, err := httpx.UUIDParam(r, "saleID")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	balance, err := h.service.Balance(r.Context(), actor, saleID)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, balance)
}

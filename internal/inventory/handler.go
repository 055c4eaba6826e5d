package inventory

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-pos/internal/rbac"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermStockView))
		r.Get("/products/{productID}", h.handleGetProduct)
		r.Get("/products/{productID}/movements", h.handleStockCard)
		r.Get("/low-stock", h.handleLowStock)
	})
	r.Post("/receipts", h.handleReceipt)
	r.Post("/adjustments", h.handleAdjustment)
}

type receiptRequest struct {
	ProductID uuid.UUID  `json:"productId" validate:"required"`
	VariantID *uuid.UUID `json:"variantId"`
	Quantity  int        `json:"quantity" validate:"gt=0"`
	Reason    string     `json:"reason" validate:"max=255"`
	Reference string     `json:"reference" validate:"max=128"`
}

type adjustmentRequest struct {
	ProductID uuid.UUID  `json:"productId" validate:"required"`
	VariantID *uuid.UUID `json:"variantId"`
	NewStock  int        `json:"newStock" validate:"gte=0"`
	Reason    string     `json:"reason" validate:"required,max=255"`
}

func (h *Handler) handleReceipt(w http.ResponseWriter, r *http.Request) {
	var req receiptRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	if err := httpx.Validate(req); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	movement, err := h.service.ReceiveStock(r.Context(), actor, ReceiptInput{
		ProductID: req.ProductID,
		VariantID: req.VariantID,
		Quantity:  req.Quantity,
		Reason:    req.Reason,
		Reference: req.Reference,
	})
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, movement)
}

func (h *Handler) handleAdjustment(w http.ResponseWriter, r *http.Request) {
	var req adjustmentRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	if err := httpx.Validate(req); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	movement, err := h.service.Adjust(r.Context(), actor, AdjustmentInput{
		ProductID: req.ProductID,
		VariantID: req.VariantID,
		NewStock:  req.NewStock,
		Reason:    req.Reason,
	})
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, movement)
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := httpx.UUIDParam(r, "productID")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	product, err := h.service.GetProduct(r.Context(), actor, productID)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) handleStockCard(w http.ResponseWriter, r *http.Request) {
	productID, err := httpx.UUIDParam(r, "productID")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	from, err := httpx.DateQuery(r, "from", false)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	to, err := httpx.DateQuery(r, "to", true)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	entries, err := h.service.StockCard(r.Context(), actor, MovementFilter{ProductID: productID, From: from, To: to, Limit: 500})
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	h.logger.Debug("got stock card", slog.Int("count", len(entries)), slog.String("product_id", productID.String()))
	httpx.JSON(w, http.StatusOK, map[string]any{"movements": entries})
}

func (h *Handler) handleLowStock(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	products, err := h.service.LowStock(r.Context(), actor)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"products": products})
}

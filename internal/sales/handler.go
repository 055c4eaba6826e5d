package sales

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/cash"
	"github.com/odyssey-erp/odyssey-pos/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-pos/internal/rbac"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// Handler wires HTTP endpoints for sales.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs the sales handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers sale routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireAny(shared.PermSaleCreate)).Post("/", h.handleCreate)
	r.With(h.rbac.RequireAny(shared.PermSaleCancel)).Post("/{saleID}/cancel", h.handleCancel)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermSaleView))
		r.Get("/", h.handleList)
		r.Get("/{saleID}", h.handleGet)
	})
}

type itemRequest struct {
	ProductID uuid.UUID       `json:"productId" validate:"required"`
	VariantID *uuid.UUID      `json:"variantId"`
	Quantity  int             `json:"quantity" validate:"gt=0"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type paymentRequest struct {
	Method cash.PaymentMethod `json:"method" validate:"required"`
	Amount decimal.Decimal    `json:"amount"`
}

type createRequest struct {
	Items         []itemRequest      `json:"items" validate:"required,min=1,dive"`
	PaymentMethod cash.PaymentMethod `json:"paymentMethod" validate:"required"`
	ClientID      *uuid.UUID         `json:"clientId"`
	Discount      decimal.Decimal    `json:"discount"`
	Total         decimal.Decimal    `json:"total"`
	Payments      []paymentRequest   `json:"payments" validate:"omitempty,dive"`
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !h.decode(w, r, &req) {
		return
	}
	input := CreateInput{
		PaymentMethod:  req.PaymentMethod,
		ClientID:       req.ClientID,
		Discount:       req.Discount,
		Total:          req.Total,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	}
	for _, it := range req.Items {
		input.Items = append(input.Items, ItemInput{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	for _, p := range req.Payments {
		input.Payments = append(input.Payments, PaymentInput{Method: p.Method, Amount: p.Amount})
	}

	actor, _ := shared.ActorFromContext(r.Context())
	result, err := h.service.CreateSale(r.Context(), actor, input)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	httpx.JSON(w, status, result)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	saleID, err := httpx.UUIDParam(r, "saleID")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	var req cancelRequest
	if !h.decode(w, r, &req) {
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	sale, err := h.service.CancelSale(r.Context(), actor, CancelInput{SaleID: saleID, Reason: req.Reason})
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	saleID, err := httpx.UUIDParam(r, "saleID")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	sale, err := h.service.GetSale(r.Context(), actor, saleID)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter, err := listFilterFromRequest(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	sales, pagination, err := h.service.ListSales(r.Context(), actor, filter)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"sales": sales, "pagination": pagination})
}

func listFilterFromRequest(r *http.Request) (ListFilter, error) {
	var (
		filter ListFilter
		err    error
	)
	if filter.RegisterID, err = httpx.OptionalUUIDQuery(r, "register_id"); err != nil {
		return ListFilter{}, err
	}
	if filter.ClientID, err = httpx.OptionalUUIDQuery(r, "client_id"); err != nil {
		return ListFilter{}, err
	}
	if filter.From, err = httpx.DateQuery(r, "from", false); err != nil {
		return ListFilter{}, err
	}
	if filter.To, err = httpx.DateQuery(r, "to", true); err != nil {
		return ListFilter{}, err
	}
	filter.Status = Status(r.URL.Query().Get("status"))
	page := httpx.PageQuery(r)
	filter.Page = page.Page
	filter.PerPage = page.PerPage
	return filter, nil
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(w, r, target); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return false
	}
	if err := httpx.Validate(target); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return false
	}
	return true
}

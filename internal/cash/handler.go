package cash

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-pos/internal/rbac"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// Handler wires HTTP endpoints for cash registers.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs the cash handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers cash register routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/open", h.handleOpen)
	r.Post("/close", h.handleClose)
	r.Post("/movements", h.handleMovement)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermRegisterView))
		r.Get("/current", h.handleCurrent)
		r.Get("/{registerID}/summary", h.handleSummary)
		r.Get("/{registerID}/movements", h.handleListMovements)
	})
}

type openRequest struct {
	OpeningAmount decimal.Decimal `json:"openingAmount"`
	Notes         string          `json:"notes" validate:"max=500"`
}

type closeRequest struct {
	CountedAmount decimal.Decimal `json:"countedAmount"`
	Notes         string          `json:"notes" validate:"max=500"`
}

type movementRequest struct {
	Type          MovementType    `json:"type" validate:"required,oneof=INGRESO EGRESO"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	Description   string          `json:"description" validate:"required,max=255"`
}

func (h *Handler) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if !h.decode(w, r, &req) {
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	register, err := h.service.Open(r.Context(), actor, OpenInput{OpeningAmount: req.OpeningAmount, Notes: req.Notes})
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, register)
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	var req closeRequest
	if !h.decode(w, r, &req) {
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	register, err := h.service.Close(r.Context(), actor, CloseInput{CountedAmount: req.CountedAmount, Notes: req.Notes})
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, register)
}

func (h *Handler) handleMovement(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if !h.decode(w, r, &req) {
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	movement, err := h.service.RecordMovement(r.Context(), actor, ManualMovementInput{
		Type:          req.Type,
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		Description:   req.Description,
	})
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, movement)
}

func (h *Handler) handleCurrent(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	register, err := h.service.Current(r.Context(), actor)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, register)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	registerID, err := httpx.UUIDParam(r, "registerID")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	summary, err := h.service.Summary(r.Context(), actor, registerID)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) handleListMovements(w http.ResponseWriter, r *http.Request) {
	registerID, err := httpx.UUIDParam(r, "registerID")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	movements, pagination, err := h.service.Movements(r.Context(), actor, registerID, httpx.PageQuery(r))
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"movements": movements, "pagination": pagination})
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

package credit

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/cash"
	"github.com/odyssey-erp/odyssey-pos/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-pos/internal/rbac"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// Handler wires HTTP endpoints for client credit.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs the credit handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers client credit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermClientView))
		r.Get("/{clientID}", h.handleGet)
		r.Get("/{clientID}/payments", h.handleListPayments)
	})
	r.Post("/{clientID}/payments", h.handlePayment)
	r.Put("/{clientID}/credit-limit", h.handleCreditLimit)
}

type paymentRequest struct {
	Amount        decimal.Decimal    `json:"amount"`
	PaymentMethod cash.PaymentMethod `json:"paymentMethod"`
	Notes         string             `json:"notes" validate:"max=500"`
}

type creditLimitRequest struct {
	CreditLimit      decimal.Decimal `json:"creditLimit"`
	HasCreditAccount *bool           `json:"hasCreditAccount"`
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	clientID, err := httpx.UUIDParam(r, "clientID")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	client, err := h.service.GetClient(r.Context(), actor, clientID)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"client": client, "available_credit": client.AvailableCredit()})
}

func (h *Handler) handleListPayments(w http.ResponseWriter, r *http.Request) {
	clientID, err := httpx.UUIDParam(r, "clientID")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	payments, err := h.service.ListPayments(r.Context(), actor, clientID)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"payments": payments})
}

func (h *Handler) handlePayment(w http.ResponseWriter, r *http.Request) {
	clientID, err := httpx.UUIDParam(r, "clientID")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	var req paymentRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	if err := httpx.Validate(req); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	result, err := h.service.RegisterPayment(r.Context(), actor, PaymentInput{
		ClientID:      clientID,
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
	})
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) handleCreditLimit(w http.ResponseWriter, r *http.Request) {
	clientID, err := httpx.UUIDParam(r, "clientID")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	var req creditLimitRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	client, err := h.service.UpdateCreditLimit(r.Context(), actor, LimitInput{
		ClientID:         clientID,
		CreditLimit:      req.CreditLimit,
		HasCreditAccount: req.HasCreditAccount,
	})
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, client)
}

package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// PermissionsHandler exposes the caller's effective permissions so clients can
// hide actions they cannot perform.
type PermissionsHandler struct {
	logger *slog.Logger
	policy *Policy
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, policy *Policy) *PermissionsHandler {
	return &PermissionsHandler{logger: logger, policy: policy}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Get("/", h.listPermissions)
}

type permissionsResponse struct {
	Role        string              `json:"role"`
	Permissions []shared.Permission `json:"permissions"`
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, r, h.logger, shared.Unauthorized("sesión no válida"))
		return
	}
	httpx.JSON(w, http.StatusOK, permissionsResponse{Role: actor.Role, Permissions: h.policy.EffectivePermissions(actor.Role)})
}

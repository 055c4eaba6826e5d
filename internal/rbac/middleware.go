package rbac

import (
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// Middleware wires authorization helpers for HTTP handlers.
type Middleware struct {
	Authorizer shared.Authorizer
	Logger     *slog.Logger
}

// RequireAny ensures the current actor has at least one of the required permissions.
func (m Middleware) RequireAny(perms ...shared.Permission) func(http.Handler) http.Handler {
	return m.require(perms, false)
}

// RequireAll ensures the current actor has all required permissions.
func (m Middleware) RequireAll(perms ...shared.Permission) func(http.Handler) http.Handler {
	return m.require(perms, true)
}

func (m Middleware) require(perms []shared.Permission, all bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(perms) == 0 || m.Authorizer == nil {
				next.ServeHTTP(w, r)
				return
			}
			actor, ok := shared.ActorFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, r, m.Logger, shared.Unauthorized("sesión no válida"))
				return
			}
			var lastErr error
			granted := 0
			for _, perm := range perms {
				if err := m.Authorizer.Authorize(r.Context(), actor, perm); err != nil {
					lastErr = err
					continue
				}
				granted++
			}
			if (all && granted == len(perms)) || (!all && granted > 0) {
				next.ServeHTTP(w, r)
				return
			}
			if m.Logger != nil {
				m.Logger.Warn("rbac denied",
					slog.String("user_id", actor.UserID.String()),
					slog.String("role", actor.Role),
					slog.String("path", r.URL.Path))
			}
			httpx.RespondError(w, r, m.Logger, lastErr)
		})
	}
}

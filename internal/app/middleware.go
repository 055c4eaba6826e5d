package app

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/unrolled/secure"

	"github.com/odyssey-erp/odyssey-pos/internal/observability"
	"github.com/odyssey-erp/odyssey-pos/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// Identity headers set by the upstream gateway once the caller is authenticated.
const (
	HeaderBusinessID = "X-Business-ID"
	HeaderUserID     = "X-User-ID"
	HeaderUserRole   = "X-User-Role"
)

const defaultRateWindow = time.Minute

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics
}

// MiddlewareStack installs the POS middleware chain.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'none'",
		SSLRedirect:           cfg.Config != nil && cfg.Config.IsProduction(),
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
	})

	timeout := 30 * time.Second
	var origins []string
	if cfg.Config != nil {
		if cfg.Config.AppRequestTimeout > 0 {
			timeout = cfg.Config.AppRequestTimeout
		}
		origins = cfg.Config.CORSAllowedOrigins
	}

	middlewares := []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Timeout(timeout),
		cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "Idempotency-Key", HeaderBusinessID, HeaderUserID, HeaderUserRole},
			AllowCredentials: false,
			MaxAge:           300,
		}),
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := secureMiddleware.Process(w, r); err != nil {
					cfg.Logger.Warn("secure headers blocked request", slog.Any("error", err))
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				next.ServeHTTP(w, r)
			})
		},
	}
	if cfg.Metrics != nil {
		middlewares = append(middlewares, cfg.Metrics.Middleware)
	}
	return middlewares
}

// IdentityMiddleware resolves the pre-authenticated actor from gateway headers.
// Requests without a business and user id are rejected.
func IdentityMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, err := actorFromHeaders(r)
			if err != nil {
				httpx.RespondError(w, r, logger, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), actor)))
		})
	}
}

func actorFromHeaders(r *http.Request) (shared.Actor, error) {
	businessID, err := uuid.Parse(strings.TrimSpace(r.Header.Get(HeaderBusinessID)))
	if err != nil {
		return shared.Actor{}, shared.Unauthorized("sesión no válida").WithDetails(shared.FieldError{Field: HeaderBusinessID, Message: "identificador inválido"})
	}
	userID, err := uuid.Parse(strings.TrimSpace(r.Header.Get(HeaderUserID)))
	if err != nil {
		return shared.Actor{}, shared.Unauthorized("sesión no válida").WithDetails(shared.FieldError{Field: HeaderUserID, Message: "identificador inválido"})
	}
	actor := shared.Actor{
		BusinessID: businessID,
		UserID:     userID,
		Role:       strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderUserRole))),
	}
	if !actor.Valid() {
		return shared.Actor{}, shared.Unauthorized("sesión no válida")
	}
	return actor, nil
}

// RateLimitMiddleware limits mutating requests per actor. Reads pass through.
// A nil counter falls back to httprate's in-process counter.
func RateLimitMiddleware(requests int, window time.Duration, counter httprate.LimitCounter) func(http.Handler) http.Handler {
	opts := []httprate.Option{
		httprate.WithKeyFuncs(keyByActor),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.JSON(w, http.StatusTooManyRequests, httpx.ErrorBody{Error: "demasiadas solicitudes, intente nuevamente en unos segundos"})
		}),
	}
	if counter != nil {
		opts = append(opts, httprate.WithLimitCounter(counter))
	}
	limiter := httprate.Limit(requests, window, opts...)
	return func(next http.Handler) http.Handler {
		limited := limiter(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
			default:
				limited.ServeHTTP(w, r)
			}
		})
	}
}

func keyByActor(r *http.Request) (string, error) {
	if actor, ok := shared.ActorFromContext(r.Context()); ok {
		return actor.BusinessID.String() + ":" + actor.UserID.String(), nil
	}
	return httprate.KeyByIP(r)
}

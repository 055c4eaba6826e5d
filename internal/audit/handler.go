package audit

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-pos/internal/rbac"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

const defaultDateRange = 7 * 24 * time.Hour

// Handler serves the activity timeline.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
	now     func() time.Time
}

// NewHandler constructs the activity handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac, now: time.Now}
}

// MountRoutes registers activity routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.RequireAny(shared.PermActivityView))
	r.Get("/", h.handleTimeline)
	r.Get("/export.csv", h.handleExport)
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	result, err := h.service.Timeline(r.Context(), actor, filters)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	rows, err := h.service.Export(r.Context(), actor, filters)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	body, err := WriteCSV(rows)
	if err != nil {
		httpx.RespondError(w, r, h.logger, shared.Internal(err))
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=\"actividad.csv\"")
	if _, err := w.Write(body); err != nil {
		h.logger.Warn("write csv", slog.Any("error", err))
	}
}

// parseFilters defaults to the last seven days ending today.
func (h *Handler) parseFilters(r *http.Request) (TimelineFilters, error) {
	to, err := httpx.DateQuery(r, "to", true)
	if err != nil {
		return TimelineFilters{}, err
	}
	if to.IsZero() {
		today := h.now().UTC().Truncate(24 * time.Hour)
		to = today.Add(24*time.Hour - time.Nanosecond)
	}
	from, err := httpx.DateQuery(r, "from", false)
	if err != nil {
		return TimelineFilters{}, err
	}
	if from.IsZero() {
		from = to.Add(-defaultDateRange).Add(time.Nanosecond)
	}
	actorID, err := httpx.OptionalUUIDQuery(r, "actor_id")
	if err != nil {
		return TimelineFilters{}, err
	}

	q := r.URL.Query()
	filters := TimelineFilters{
		From:     from,
		To:       to,
		ActorID:  actorID,
		Entity:   strings.TrimSpace(q.Get("entity")),
		EntityID: strings.TrimSpace(q.Get("entity_id")),
		Action:   strings.TrimSpace(q.Get("action")),
	}
	for name, target := range map[string]*int{"page": &filters.Page, "page_size": &filters.PageSize} {
		raw := strings.TrimSpace(q.Get(name))
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return TimelineFilters{}, shared.Validation("parámetro inválido", shared.FieldError{Field: name, Message: "debe ser un entero positivo"})
		}
		*target = v
	}
	return filters, nil
}

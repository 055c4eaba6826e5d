package httpx

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// UUIDParam parses a chi URL parameter as a UUID.
func UUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, shared.Validation("identificador inválido", shared.FieldError{Field: name, Message: "debe ser un UUID"})
	}
	return id, nil
}

// OptionalUUIDQuery parses a query parameter as a UUID when present.
func OptionalUUIDQuery(r *http.Request, name string) (*uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, shared.Validation("identificador inválido", shared.FieldError{Field: name, Message: "debe ser un UUID"})
	}
	return &id, nil
}

// DateQuery parses a YYYY-MM-DD query parameter. endOfDay moves the value to
// the last nanosecond of that day.
func DateQuery(r *http.Request, name string, endOfDay bool) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, shared.Validation("fecha inválida", shared.FieldError{Field: name, Message: "formato esperado YYYY-MM-DD"})
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

// PageQuery reads page and per_page query parameters.
func PageQuery(r *http.Request) shared.PageRequest {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	return shared.PageRequest{Page: page, PerPage: perPage}.Normalize()
}

// Package audit serves the activity timeline recorded by the sale, refund,
// register, credit and stock services.
package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
	maxRange        = 90 * 24 * time.Hour
)

// Repository reads activity rows.
type Repository interface {
	Query(ctx context.Context, q shared.AuditQuery) ([]shared.AuditLog, error)
}

// Service coordinates activity lookups.
type Service struct {
	repo  Repository
	authz shared.Authorizer
}

// NewService builds the timeline service.
func NewService(repo Repository, authz shared.Authorizer) *Service {
	return &Service{repo: repo, authz: authz}
}

// Timeline returns one page of the caller's business activity, newest first.
func (s *Service) Timeline(ctx context.Context, actor shared.Actor, filters TimelineFilters) (Result, error) {
	if err := shared.Authorize(ctx, s.authz, actor, shared.PermActivityView); err != nil {
		return Result{}, err
	}
	if err := validateRange(filters); err != nil {
		return Result{}, err
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}

	q := query(actor, filters)
	q.Offset = (page - 1) * pageSize
	q.Limit = pageSize + 1
	logs, err := s.repo.Query(ctx, q)
	if err != nil {
		return Result{}, fmt.Errorf("audit: timeline: %w", err)
	}
	hasNext := len(logs) > pageSize
	if hasNext {
		logs = logs[:pageSize]
	}

	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: mapRows(logs), Paging: paging}, nil
}

// Export returns every matching row without paging.
func (s *Service) Export(ctx context.Context, actor shared.Actor, filters TimelineFilters) ([]TimelineRow, error) {
	if err := shared.Authorize(ctx, s.authz, actor, shared.PermActivityView); err != nil {
		return nil, err
	}
	if err := validateRange(filters); err != nil {
		return nil, err
	}
	logs, err := s.repo.Query(ctx, query(actor, filters))
	if err != nil {
		return nil, fmt.Errorf("audit: export: %w", err)
	}
	return mapRows(logs), nil
}

func validateRange(filters TimelineFilters) error {
	if filters.From.IsZero() || filters.To.IsZero() {
		return nil
	}
	if filters.From.After(filters.To) {
		return shared.Validation("rango de fechas inválido", shared.FieldError{Field: "from", Message: "debe ser anterior a to"})
	}
	if filters.To.Sub(filters.From) > maxRange {
		return shared.Validation("rango de fechas inválido", shared.FieldError{Field: "range", Message: "máximo 90 días"})
	}
	return nil
}

func query(actor shared.Actor, filters TimelineFilters) shared.AuditQuery {
	return shared.AuditQuery{
		BusinessID: actor.BusinessID,
		ActorID:    filters.ActorID,
		Entity:     strings.TrimSpace(filters.Entity),
		EntityID:   strings.TrimSpace(filters.EntityID),
		Action:     strings.TrimSpace(filters.Action),
		From:       filters.From,
		To:         filters.To,
	}
}

func mapRows(logs []shared.AuditLog) []TimelineRow {
	rows := make([]TimelineRow, 0, len(logs))
	for _, log := range logs {
		rows = append(rows, TimelineRow{
			At:       log.At,
			ActorID:  log.ActorID,
			Action:   log.Action,
			Entity:   log.Entity,
			EntityID: log.EntityID,
			Meta:     log.Meta,
		})
	}
	return rows
}

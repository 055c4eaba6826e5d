package shared

import "math"

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// Offset returns the row offset for the current page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// PageRequest carries raw page parameters from a listing call.
type PageRequest struct {
	Page    int
	PerPage int
}

// Normalize clamps page parameters to sane bounds.
func (r PageRequest) Normalize() PageRequest {
	if r.Page <= 0 {
		r.Page = 1
	}
	if r.PerPage <= 0 {
		r.PerPage = 20
	}
	if r.PerPage > 200 {
		r.PerPage = 200
	}
	return r
}

// Offset returns the row offset.
func (r PageRequest) Offset() int {
	n := r.Normalize()
	return (n.Page - 1) * n.PerPage
}

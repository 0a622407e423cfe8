package api

import (
	"net/http"
	"strconv"
)

const (
	defaultPage    = 1
	defaultPerPage = 50
	maxPerPage     = 200
)

// PaginationParams holds parsed pagination query parameters.
type PaginationParams struct {
	Page    int
	PerPage int
}

// ParsePagination extracts pagination parameters from the request.
// Defaults: page=1, per_page=50. Maximum per_page is 200.
func ParsePagination(r *http.Request) PaginationParams {
	p := PaginationParams{
		Page:    defaultPage,
		PerPage: defaultPerPage,
	}

	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.Page = n
		}
	}

	if v := r.URL.Query().Get("per_page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.PerPage = n
			if p.PerPage > maxPerPage {
				p.PerPage = maxPerPage
			}
		}
	}

	return p
}

// Offset returns the database offset for the current page.
func (p PaginationParams) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// TotalPages calculates the total number of pages for a given total count.
func (p PaginationParams) TotalPages(total int64) int {
	if p.PerPage <= 0 {
		return 0
	}
	pages := int(total) / p.PerPage
	if int(total)%p.PerPage > 0 {
		pages++
	}
	return pages
}

// Meta builds the pagination metadata block for a list response.
func (p PaginationParams) Meta(total int64) PaginationMeta {
	return PaginationMeta{
		Page:       p.Page,
		PerPage:    p.PerPage,
		Total:      total,
		TotalPages: p.TotalPages(total),
	}
}

// PaginationMeta contains pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// PaginatedResponse wraps a list response with pagination metadata.
type PaginatedResponse struct {
	Data       interface{}    `json:"data"`
	Pagination PaginationMeta `json:"pagination"`
}

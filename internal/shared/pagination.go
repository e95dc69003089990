package shared

import "math"

const (
	defaultPerPage = 20
	// MaxPerPage caps the page size a client may request.
	MaxPerPage = 200
)

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes pagination metadata. perPage is clamped to
// MaxPerPage.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	if page <= 0 {
		page = 1
	}
	if total < 0 {
		total = 0
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// Bounds returns the slice window [start, end) of the current page within
// total. Pages past the end yield an empty window at total.
func (p Pagination) Bounds() (int, int) {
	if p.Total <= 0 || p.PerPage <= 0 || p.Page <= 0 {
		return 0, 0
	}
	pages := p.Total / p.PerPage
	if p.Total%p.PerPage != 0 {
		pages++
	}
	if p.Page-1 >= pages {
		return p.Total, p.Total
	}
	start := (p.Page - 1) * p.PerPage
	end := p.Total
	if p.PerPage < p.Total-start {
		end = start + p.PerPage
	}
	return start, end
}

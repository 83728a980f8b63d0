package common

import (
	"fmt"
	"net/http"
	"strconv"
)

// Page size limits for listing children
const (
	DefaultPageSize = 100
	MaxPageSize     = 1000
)

// PaginationParams selects one page of an ordered list
type PaginationParams struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// PaginationInfo contains pagination details
type PaginationInfo struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// ExtractPaginationParams reads page and page_size from the query. ok is false when the
// request asks for no paging. Page sizes above MaxPageSize are clamped.
func ExtractPaginationParams(r *http.Request) (params PaginationParams, ok bool, err error) {
	query := r.URL.Query()
	rawPage, rawSize := query.Get("page"), query.Get("page_size")
	if rawPage == "" && rawSize == "" {
		return PaginationParams{}, false, nil
	}

	params = PaginationParams{Page: 1, PageSize: DefaultPageSize}
	if rawPage != "" {
		page, err := strconv.Atoi(rawPage)
		if err != nil || page < 1 {
			return PaginationParams{}, false, fmt.Errorf("page must be a positive integer")
		}
		params.Page = page
	}
	if rawSize != "" {
		size, err := strconv.Atoi(rawSize)
		if err != nil || size < 1 {
			return PaginationParams{}, false, fmt.Errorf("page_size must be a positive integer")
		}
		params.PageSize = min(size, MaxPageSize)
	}
	return params, true, nil
}

// CalculateOffset returns the index of the first item of the page
func (p PaginationParams) CalculateOffset() int {
	return (p.Page - 1) * p.PageSize
}

// CalculateTotalPages calculates total number of pages
func CalculateTotalPages(total, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// BuildPaginationMeta builds pagination metadata
func BuildPaginationMeta(page, pageSize, total int) *PaginationInfo {
	totalPages := CalculateTotalPages(total, pageSize)
	return &PaginationInfo{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

// Paginate returns the requested page of items. A page past the end is empty.
func Paginate[T any](items []T, params PaginationParams) ([]T, *PaginationInfo) {
	meta := BuildPaginationMeta(params.Page, params.PageSize, len(items))
	start := params.CalculateOffset()
	if start >= len(items) {
		return []T{}, meta
	}
	end := min(start+params.PageSize, len(items))
	return items[start:end], meta
}

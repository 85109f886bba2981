package query

import "math"

// Default pagination bounds used when configuration does not override them.
const (
	DefaultLimit = 10
	MaxLimit     = 100

	// MaxPage bounds client-supplied page numbers. Anything above it is past the end
	// of any realistic collection and reads as an empty page.
	MaxPage = 1 << 30
)

// Pagination requests one page of a list.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`

	// Search is matched case-insensitively against SearchFields and the repository's defaults.
	Search       string   `json:"search,omitempty"`
	SearchFields []string `json:"searchFields,omitempty"`

	Sort []SortKey `json:"sort,omitempty"`
}

// Normalize clamps page into [1, MaxPage] and limit into [1, maxLimit],
// substituting defaultLimit for unset limits.
func (p Pagination) Normalize(defaultLimit, maxLimit int) Pagination {
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	if maxLimit <= 0 {
		maxLimit = MaxLimit
	}
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	if p.Limit < 1 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p
}

// Offset is the number of rows before the requested page. It saturates at
// math.MaxInt instead of wrapping.
func (p Pagination) Offset() int {
	if p.Page <= 1 || p.Limit <= 0 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.Limit {
		return math.MaxInt
	}
	return (p.Page - 1) * p.Limit
}

// PageInfo describes where a page sits in the full result.
type PageInfo struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
}

// NewPageInfo computes pagination metadata. totalPages is never below 1, so an empty
// result still reports one page; pages past the end report HasNext false.
func NewPageInfo(page, limit int, total int64) PageInfo {
	totalPages := 1
	if limit > 0 && total > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return PageInfo{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

// Page is one page of results.
type Page[T any] struct {
	Data       []T      `json:"data"`
	Pagination PageInfo `json:"pagination"`
}

// Listing is the result of a read that may or may not have been paginated.
// Page is nil for plain lists.
type Listing[T any] struct {
	Items []T
	Page  *PageInfo
}

// Paginated reports whether the listing carries page metadata.
func (l Listing[T]) Paginated() bool {
	return l.Page != nil
}

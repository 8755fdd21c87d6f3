package shared

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Filter holds paging and ordering for list queries. OrderBy is checked
// against a per-table allow list by the repository.
type Filter struct {
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string
}

// Normalize fills defaults and clamps the page size to maxPageSize
func (f Filter) Normalize() Filter {
	f.Page = max(f.Page, 1)
	switch {
	case f.PageSize < 1:
		f.PageSize = defaultPageSize
	case f.PageSize > maxPageSize:
		f.PageSize = maxPageSize
	}
	if f.OrderBy == "" {
		f.OrderBy = "created_at"
	}
	if f.OrderDir == "" {
		f.OrderDir = "desc"
	}
	return f
}

// Offset returns the row offset for the current page
func (f Filter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// Paginated is one page of a list result
type Paginated[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// NewPaginated derives TotalPages from total and pageSize
func NewPaginated[T any](items []T, total int64, page, pageSize int) Paginated[T] {
	p := Paginated[T]{Items: items, Total: total, Page: page, PageSize: pageSize}
	if pageSize > 0 {
		p.TotalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return p
}

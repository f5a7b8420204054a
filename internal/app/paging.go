package app

import "herbolive/internal/types"

// navWidth is how many page numbers the pagination bar shows.
const navWidth = 5

// Pagination describes one page of an in-memory result list.
type Pagination struct {
	Page       int // clamped to [1, TotalPages]
	TotalPages int // at least 1
	Items      []types.Plant
	Nav        []int // page numbers shown in the navigation bar
}

// Paginate cuts page out of items. The page is clamped into range.
func Paginate(items []types.Plant, page, pageSize int) Pagination {
	if pageSize < 1 {
		pageSize = 1
	}
	total := (len(items) + pageSize - 1) / pageSize
	if total < 1 {
		total = 1
	}
	if page < 1 {
		page = 1
	}
	if page > total {
		page = total
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	var slice []types.Plant
	if start < end {
		slice = items[start:end]
	}
	return Pagination{
		Page:       page,
		TotalPages: total,
		Items:      slice,
		Nav:        NavWindow(page, total),
	}
}

// NavWindow returns up to five consecutive page numbers centred on current
// where the bounds allow.
func NavWindow(current, total int) []int {
	if total < 1 {
		total = 1
	}
	start := current - navWidth/2
	if start < 1 {
		start = 1
	}
	end := start + navWidth - 1
	if end > total {
		end = total
		start = end - navWidth + 1
		if start < 1 {
			start = 1
		}
	}
	out := make([]int, 0, end-start+1)
	for n := start; n <= end; n++ {
		out = append(out, n)
	}
	return out
}

package pagination

// DefaultPageSize is the number of cards shown per page.
const DefaultPageSize = 12

// Params holds 1-based page-number pagination parameters.
type Params struct {
	Page int
	Size int
}

// New returns Params for the given page, falling back to the first page and
// the default size for non-positive values.
func New(page, size int) Params {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	return Params{Page: page, Size: size}
}

// Pages returns ceil(total/size). An empty result has zero pages.
func Pages(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

// Offset returns the index of the first item on the page.
func (p Params) Offset() int {
	return (p.Page - 1) * p.Size
}

// Bounds returns the half-open [start, end) slice window for the page,
// clipped to total. A page past the end yields start == end == total.
func (p Params) Bounds(total int) (start, end int) {
	start = p.Offset()
	if start > total {
		start = total
	}
	end = start + p.Size
	if end > total {
		end = total
	}
	return start, end
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return p.Offset()+p.Size < total
}

// HasPrevious returns true if there are results before the current page.
func (p Params) HasPrevious() bool {
	return p.Page > 1
}

// Clamp pins the page into [1, Pages(total)]; with no results it is page 1.
func (p Params) Clamp(total int) Params {
	last := Pages(total, p.Size)
	if last < 1 {
		last = 1
	}
	if p.Page > last {
		p.Page = last
	}
	if p.Page < 1 {
		p.Page = 1
	}
	return p
}

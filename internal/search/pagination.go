package search

// TotalPages returns ceil(total / PageSize), never less than 1.
func TotalPages(total int) int {
	if total <= 0 {
		return 1
	}
	return (total + PageSize - 1) / PageSize
}

// ClampPage clamps page into [1, totalPages].
func ClampPage(page, totalPages int) int {
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		return 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}

type PageLink struct {
	Number  int
	URL     string
	Current bool
}

// Pagination is everything the page template needs to render page links.
type Pagination struct {
	Page       int
	TotalPages int
	Total      int
	PrevURL    string
	NextURL    string
	Links      []PageLink
}

// maxLinks bounds the numbered links shown around the current page.
const maxLinks = 7

// Paginate builds page links for f. f.Page must already be clamped.
func Paginate(f Filter, total int, basePath string) Pagination {
	totalPages := TotalPages(total)
	page := ClampPage(f.Page, totalPages)
	p := Pagination{Page: page, TotalPages: totalPages, Total: total}

	if page > 1 {
		p.PrevURL = f.WithPage(page - 1).URL(basePath)
	}
	if page < totalPages {
		p.NextURL = f.WithPage(page + 1).URL(basePath)
	}

	first := page - maxLinks/2
	if first < 1 {
		first = 1
	}
	last := first + maxLinks - 1
	if last > totalPages {
		last = totalPages
		first = last - maxLinks + 1
		if first < 1 {
			first = 1
		}
	}
	for n := first; n <= last; n++ {
		p.Links = append(p.Links, PageLink{Number: n, URL: f.WithPage(n).URL(basePath), Current: n == page})
	}
	return p
}

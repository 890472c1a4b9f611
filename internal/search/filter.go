// Package search maps search filters between page URLs and the search
// backend and computes pagination.
package search

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Bernard-Murphy/dbay-public/internal/domain"
)

// PageSize is the fixed number of results per page.
const PageSize = 20

const dateLayout = "2006-01-02"

// Filter is the state of the search page. It round-trips through the page
// URL so results are bookmarkable.
type Filter struct {
	Query       string
	Category    string
	ListingType domain.ListingType
	DateFrom    string
	DateTo      string
	Page        int
}

// FromURL reads a filter from page query parameters. Unknown listing types
// and malformed dates are dropped; a missing page means page 1.
func FromURL(v url.Values) Filter {
	f := Filter{
		Query:    strings.TrimSpace(v.Get("q")),
		Category: strings.TrimSpace(v.Get("category")),
		DateFrom: validDate(v.Get("date_from")),
		DateTo:   validDate(v.Get("date_to")),
		Page:     1,
	}
	lt := domain.ListingType(strings.ToUpper(strings.TrimSpace(v.Get("listing_type"))))
	for _, known := range domain.ListingTypes {
		if lt == known {
			f.ListingType = lt
		}
	}
	if raw := v.Get("page"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			f.Page = n
		}
	}
	return f
}

// FromSaved rebuilds a filter from a saved search's stored parameters.
func FromSaved(params map[string]string) Filter {
	v := url.Values{}
	for k, val := range params {
		v.Set(k, val)
	}
	f := FromURL(v)
	f.Page = 1
	return f
}

func validDate(s string) string {
	s = strings.TrimSpace(s)
	if _, err := time.Parse(dateLayout, s); err != nil {
		return ""
	}
	return s
}

// URLValues encodes the filter for a page link. Page 1 is implicit.
func (f Filter) URLValues() url.Values {
	v := url.Values{}
	if f.Query != "" {
		v.Set("q", f.Query)
	}
	if f.Category != "" {
		v.Set("category", f.Category)
	}
	if f.ListingType != "" {
		v.Set("listing_type", string(f.ListingType))
	}
	if f.DateFrom != "" {
		v.Set("date_from", f.DateFrom)
	}
	if f.DateTo != "" {
		v.Set("date_to", f.DateTo)
	}
	if f.Page > 1 {
		v.Set("page", strconv.Itoa(f.Page))
	}
	return v
}

// URL returns the search page path for this filter.
func (f Filter) URL(basePath string) string {
	if q := f.URLValues().Encode(); q != "" {
		return basePath + "?" + q
	}
	return basePath
}

// WithPage returns a copy of the filter at another page.
func (f Filter) WithPage(page int) Filter {
	f.Page = page
	return f
}

// BackendQuery builds the search service query string.
func (f Filter) BackendQuery() url.Values {
	v := url.Values{}
	if f.Query != "" {
		v.Set("q", f.Query)
	}
	if f.Category != "" {
		v.Set("category_id", f.Category)
	}
	if f.ListingType != "" {
		v.Set("listing_type", string(f.ListingType))
	}
	if f.DateFrom != "" {
		v.Set("date_from", f.DateFrom)
	}
	if f.DateTo != "" {
		v.Set("date_to", f.DateTo)
	}
	page := f.Page
	if page < 1 {
		page = 1
	}
	v.Set("page", strconv.Itoa(page))
	v.Set("per_page", strconv.Itoa(PageSize))
	return v
}

// SavedParams is the parameter map stored with a saved search.
func (f Filter) SavedParams() map[string]string {
	out := map[string]string{}
	for k, vals := range f.WithPage(1).URLValues() {
		if len(vals) > 0 {
			out[k] = vals[0]
		}
	}
	return out
}

// Describe is a short human label for a filter, used as a default saved
// search name.
func (f Filter) Describe() string {
	var parts []string
	if f.Query != "" {
		parts = append(parts, strconv.Quote(f.Query))
	}
	if f.Category != "" {
		parts = append(parts, "category "+f.Category)
	}
	if f.ListingType != "" {
		parts = append(parts, strings.ToLower(strings.ReplaceAll(string(f.ListingType), "_", " ")))
	}
	if f.DateFrom != "" || f.DateTo != "" {
		parts = append(parts, f.DateFrom+".."+f.DateTo)
	}
	if len(parts) == 0 {
		return "All listings"
	}
	return strings.Join(parts, ", ")
}

package handler

import (
	"net/http"
	"strings"

	"github.com/Bernard-Murphy/dbay-public/internal/apiclient"
	"github.com/Bernard-Murphy/dbay-public/internal/domain"
	"github.com/Bernard-Murphy/dbay-public/internal/search"
	"github.com/Bernard-Murphy/dbay-public/internal/store"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const searchPath = "/search"

type SearchHandler struct {
	Base
}

func NewSearchHandler(d Deps) *SearchHandler {
	return &SearchHandler{Base: newBase(d, "handler.search")}
}

type searchView struct {
	Filter     search.Filter
	Results    []domain.Listing
	Pagination search.Pagination
	Categories []domain.Category
	Types      []domain.ListingType
	Err        string
	SaveName   string
}

// HandleSearch runs a search from the URL. Page numbers outside
// [1, totalPages] redirect to the nearest valid page.
func (h *SearchHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	f := search.FromURL(r.URL.Query())
	if f.Page < 1 {
		http.Redirect(w, r, f.WithPage(1).URL(searchPath), http.StatusFound)
		return
	}

	ls := store.NewListingStore(h.client(r))
	if err := ls.FetchCategories(r.Context()); err != nil {
		h.logger.Debug("Failed to load categories", zap.Error(err))
	}
	if err := ls.Search(r.Context(), f); err != nil {
		h.logger.Warn("Search failed", zap.Error(err))
	}

	totalPages := search.TotalPages(ls.SearchTotal)
	if ls.Err == "" && f.Page > totalPages {
		http.Redirect(w, r, f.WithPage(totalPages).URL(searchPath), http.StatusFound)
		return
	}

	view := searchView{
		Filter:     f,
		Results:    ls.Listings,
		Pagination: search.Paginate(f, ls.SearchTotal, searchPath),
		Categories: ls.Categories,
		Types:      domain.ListingTypes,
		Err:        ls.Err,
		SaveName:   f.Describe(),
	}
	h.render(w, r, http.StatusOK, "search", "Search", view)
}

type savedSearchRow struct {
	Search domain.SavedSearch
	URL    string
	Label  string
}

func (h *SearchHandler) HandleListSavedSearches(w http.ResponseWriter, r *http.Request) {
	saved, err := h.client(r).ListSavedSearches(r.Context())
	if err != nil {
		h.backendError(w, r, "Saved searches", err)
		return
	}
	rows := make([]savedSearchRow, 0, len(saved))
	for _, s := range saved {
		f := search.FromSaved(s.Query)
		rows = append(rows, savedSearchRow{Search: s, URL: f.URL(searchPath), Label: f.Describe()})
	}
	h.render(w, r, http.StatusOK, "saved_searches", "Saved searches", rows)
}

// HandleSaveSearch stores the filter posted from the search page.
func (h *SearchHandler) HandleSaveSearch(w http.ResponseWriter, r *http.Request) {
	var form SaveSearchForm
	if errs := h.forms.Decode(r, &form); errs != nil {
		h.redirect(w, r, "/saved-searches", failure("Could not save search: "+errs.Error()))
		return
	}
	f := search.FromSaved(map[string]string{
		"q":            form.Query,
		"category":     form.Category,
		"listing_type": form.ListingType,
		"date_from":    form.DateFrom,
		"date_to":      form.DateTo,
	})
	name := strings.TrimSpace(form.Name)
	if name == "" {
		name = f.Describe()
	}

	if _, err := h.client(r).SaveSearch(r.Context(), apiclient.SaveSearchRequest{Name: name, Query: f.SavedParams()}); err != nil {
		if h.sessionExpired(w, r, err) {
			return
		}
		h.redirect(w, r, f.URL(searchPath), failure("Could not save search: "+apiclient.Message(err)))
		return
	}
	h.redirect(w, r, "/saved-searches", success("Search saved."))
}

func (h *SearchHandler) HandleDeleteSavedSearch(w http.ResponseWriter, r *http.Request) {
	id := domain.ID(chi.URLParam(r, "id"))
	if err := h.client(r).DeleteSavedSearch(r.Context(), id); err != nil {
		if h.sessionExpired(w, r, err) {
			return
		}
		h.redirect(w, r, "/saved-searches", failure("Could not delete search: "+apiclient.Message(err)))
		return
	}
	h.redirect(w, r, "/saved-searches", success("Saved search deleted."))
}

package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/Bernard-Murphy/dbay-public/internal/domain"
)

type SearchResponse struct {
	Results []domain.Listing `json:"results"`
	Total   int              `json:"total"`
	Page    int              `json:"page"`
	PerPage int              `json:"per_page"`
}

type SaveSearchRequest struct {
	Name  string            `json:"name"`
	Query map[string]string `json:"query"`
}

func (c *Client) Search(ctx context.Context, query url.Values) (*SearchResponse, error) {
	var out SearchResponse
	if err := c.get(ctx, ServiceSearch, "search", "/search", query, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListSavedSearches(ctx context.Context) ([]domain.SavedSearch, error) {
	var out listEnvelope[domain.SavedSearch]
	if err := c.get(ctx, ServiceSearch, "list_saved_searches", "/search/saved-searches", nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) SaveSearch(ctx context.Context, req SaveSearchRequest) (domain.ID, error) {
	var out struct {
		ID domain.ID `json:"id"`
	}
	if err := c.post(ctx, ServiceSearch, "save_search", "/search/saved-searches", req, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) DeleteSavedSearch(ctx context.Context, id domain.ID) error {
	return c.do(ctx, ServiceSearch, "delete_saved_search", http.MethodDelete, pathf("/search/saved-searches/%s", id), nil, nil, nil)
}

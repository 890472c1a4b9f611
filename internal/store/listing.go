package store

import (
	"context"
	"net/url"

	"github.com/Bernard-Murphy/dbay-public/internal/apiclient"
	"github.com/Bernard-Murphy/dbay-public/internal/domain"
	"github.com/Bernard-Murphy/dbay-public/internal/search"
)

type ListingAPI interface {
	ListListings(ctx context.Context, query url.Values) ([]domain.Listing, error)
	GetListing(ctx context.Context, id domain.ID) (*domain.Listing, error)
	Search(ctx context.Context, query url.Values) (*apiclient.SearchResponse, error)
	ListCategoriesWithItems(ctx context.Context) ([]domain.Category, error)
	ListQuestions(ctx context.Context, listingID domain.ID) ([]domain.Question, error)
	AskQuestion(ctx context.Context, listingID domain.ID, body string) (*domain.Question, error)
	AnswerQuestion(ctx context.Context, questionID domain.ID, body string) (*domain.Answer, error)
	WatchListing(ctx context.Context, id domain.ID) error
	UnwatchListing(ctx context.Context, id domain.ID) error
}

type ListingStore struct {
	Status
	api ListingAPI

	Listings    []domain.Listing
	Current     *domain.Listing
	SearchTotal int
	Categories  []domain.Category
	Questions   []domain.Question
}

func NewListingStore(api ListingAPI) *ListingStore {
	return &ListingStore{api: api}
}

func (s *ListingStore) FetchListings(ctx context.Context, query url.Values) error {
	s.begin()
	listings, err := s.api.ListListings(ctx, query)
	if err != nil {
		s.Listings = nil
		return s.finish(err)
	}
	s.Listings = listings
	return s.finish(nil)
}

// Search runs a filtered search. On failure the result set is emptied.
func (s *ListingStore) Search(ctx context.Context, f search.Filter) error {
	s.begin()
	resp, err := s.api.Search(ctx, f.BackendQuery())
	if err != nil {
		s.Listings, s.SearchTotal = nil, 0
		return s.finish(err)
	}
	s.Listings, s.SearchTotal = resp.Results, resp.Total
	return s.finish(nil)
}

func (s *ListingStore) FetchListing(ctx context.Context, id domain.ID) error {
	s.begin()
	listing, err := s.api.GetListing(ctx, id)
	if err != nil {
		s.Current = nil
		return s.finish(err)
	}
	s.Current = listing
	return s.finish(nil)
}

// FetchCategories does not touch Err: a page without categories still works.
func (s *ListingStore) FetchCategories(ctx context.Context) error {
	cats, err := s.api.ListCategoriesWithItems(ctx)
	if err != nil {
		s.Categories = nil
		return err
	}
	s.Categories = cats
	return nil
}

func (s *ListingStore) FetchQuestions(ctx context.Context, listingID domain.ID) error {
	qs, err := s.api.ListQuestions(ctx, listingID)
	if err != nil {
		s.Questions = nil
		return err
	}
	s.Questions = qs
	return nil
}

func (s *ListingStore) AskQuestion(ctx context.Context, listingID domain.ID, body string) error {
	s.begin()
	_, err := s.api.AskQuestion(ctx, listingID, body)
	return s.finish(err)
}

func (s *ListingStore) AnswerQuestion(ctx context.Context, questionID domain.ID, body string) error {
	s.begin()
	_, err := s.api.AnswerQuestion(ctx, questionID, body)
	return s.finish(err)
}

func (s *ListingStore) Watch(ctx context.Context, id domain.ID, watch bool) error {
	s.begin()
	var err error
	if watch {
		err = s.api.WatchListing(ctx, id)
	} else {
		err = s.api.UnwatchListing(ctx, id)
	}
	return s.finish(err)
}

// CategoryName resolves a category id against the loaded tree.
func (s *ListingStore) CategoryName(id domain.ID) string {
	var walk func([]domain.Category) string
	walk = func(cats []domain.Category) string {
		for _, c := range cats {
			if c.ID == id {
				return c.Name
			}
			if name := walk(c.Children); name != "" {
				return name
			}
		}
		return ""
	}
	return walk(s.Categories)
}

package store

import (
	"context"

	"github.com/Bernard-Murphy/dbay-public/internal/domain"
	"github.com/Bernard-Murphy/dbay-public/internal/pricing"
)

type AuctionAPI interface {
	PlaceBid(ctx context.Context, listingID domain.ID, amount int64) (*domain.Bid, error)
	ListBids(ctx context.Context, listingID domain.ID) ([]domain.Bid, error)
	AuctionState(ctx context.Context, listingID domain.ID) (*domain.AuctionState, error)
	Purchase(ctx context.Context, listingID domain.ID) (*domain.Order, error)
}

type AuctionStore struct {
	Status
	api AuctionAPI

	Bids  []domain.Bid
	State *domain.AuctionState
}

func NewAuctionStore(api AuctionAPI) *AuctionStore {
	return &AuctionStore{api: api}
}

// PlaceBid validates input against the listing's minimum next bid and
// submits it. Invalid input never reaches the network. The caller
// re-fetches the listing and bid history on success.
func (s *AuctionStore) PlaceBid(ctx context.Context, listing *domain.Listing, input string) (int64, error) {
	amount, err := pricing.ValidateBid(input, listing.PriceForBidding())
	if err != nil {
		s.Err = err.Error()
		return 0, err
	}
	s.begin()
	if _, err := s.api.PlaceBid(ctx, listing.ID, amount); err != nil {
		return 0, s.finish(err)
	}
	return amount, s.finish(nil)
}

func (s *AuctionStore) FetchBids(ctx context.Context, listingID domain.ID) error {
	bids, err := s.api.ListBids(ctx, listingID)
	if err != nil {
		s.Bids = nil
		return err
	}
	s.Bids = bids
	return nil
}

func (s *AuctionStore) FetchState(ctx context.Context, listingID domain.ID) error {
	state, err := s.api.AuctionState(ctx, listingID)
	if err != nil {
		s.State = nil
		return err
	}
	s.State = state
	return nil
}

// BuyNow purchases a buy-it-now listing outright.
func (s *AuctionStore) BuyNow(ctx context.Context, listing *domain.Listing) (*domain.Order, error) {
	if !listing.ListingType.AcceptsBuyNow() {
		s.Err = "This listing cannot be bought outright"
		return nil, domain.ErrForbidden
	}
	s.begin()
	order, err := s.api.Purchase(ctx, listing.ID)
	return order, s.finish(err)
}

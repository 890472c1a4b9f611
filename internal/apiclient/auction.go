package apiclient

import (
	"context"

	"github.com/Bernard-Murphy/dbay-public/internal/domain"
)

func (c *Client) PlaceBid(ctx context.Context, listingID domain.ID, amount int64) (*domain.Bid, error) {
	var out domain.Bid
	body := map[string]int64{"amount": amount}
	if err := c.post(ctx, ServiceAuction, "place_bid", pathf("/auction/auctions/%s/bid/", listingID), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListBids(ctx context.Context, listingID domain.ID) ([]domain.Bid, error) {
	var out listEnvelope[domain.Bid]
	if err := c.get(ctx, ServiceAuction, "list_bids", pathf("/auction/auctions/%s/bids/", listingID), nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) AuctionState(ctx context.Context, listingID domain.ID) (*domain.AuctionState, error) {
	var out domain.AuctionState
	if err := c.get(ctx, ServiceAuction, "auction_state", pathf("/auction/auctions/%s/state/", listingID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

package store

import (
	"context"

	"github.com/Bernard-Murphy/dbay-public/internal/apiclient"
	"github.com/Bernard-Murphy/dbay-public/internal/domain"
)

type OrderAPI interface {
	ListOrders(ctx context.Context) ([]domain.Order, error)
	ShipOrder(ctx context.Context, orderID domain.ID, req apiclient.ShipRequest) error
	CompleteOrder(ctx context.Context, orderID domain.ID) error
	ListDisputes(ctx context.Context) ([]domain.Dispute, error)
}

type OrderStore struct {
	Status
	api OrderAPI

	Orders   []domain.Order
	Disputes []domain.Dispute
}

func NewOrderStore(api OrderAPI) *OrderStore {
	return &OrderStore{api: api}
}

func (s *OrderStore) FetchOrders(ctx context.Context) error {
	s.begin()
	orders, err := s.api.ListOrders(ctx)
	if err != nil {
		s.Orders = nil
		return s.finish(err)
	}
	s.Orders = orders
	return s.finish(nil)
}

// Ship marks an order shipped and refreshes the order list. Only a failure
// of the ship call itself is returned.
func (s *OrderStore) Ship(ctx context.Context, orderID domain.ID, trackingNumber, carrier string) error {
	s.begin()
	if err := s.api.ShipOrder(ctx, orderID, apiclient.ShipRequest{TrackingNumber: trackingNumber, Carrier: carrier}); err != nil {
		return s.finish(err)
	}
	s.finish(nil)
	_ = s.FetchOrders(ctx)
	return nil
}

// Complete confirms receipt and refreshes the order list.
func (s *OrderStore) Complete(ctx context.Context, orderID domain.ID) error {
	s.begin()
	if err := s.api.CompleteOrder(ctx, orderID); err != nil {
		return s.finish(err)
	}
	s.finish(nil)
	_ = s.FetchOrders(ctx)
	return nil
}

func (s *OrderStore) FetchDisputes(ctx context.Context) error {
	s.begin()
	disputes, err := s.api.ListDisputes(ctx)
	if err != nil {
		s.Disputes = nil
		return s.finish(err)
	}
	s.Disputes = disputes
	return s.finish(nil)
}

// Split separates orders where the viewer is the buyer from those where the
// viewer is the seller.
func (s *OrderStore) Split(viewer domain.ID) (purchases, sales []domain.Order) {
	for _, o := range s.Orders {
		switch viewer {
		case o.BuyerID:
			purchases = append(purchases, o)
		case o.SellerID:
			sales = append(sales, o)
		}
	}
	return purchases, sales
}

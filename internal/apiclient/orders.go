package apiclient

import (
	"context"

	"github.com/Bernard-Murphy/dbay-public/internal/domain"
)

type ShipRequest struct {
	TrackingNumber string `json:"tracking_number"`
	Carrier        string `json:"carrier"`
}

func (c *Client) ListOrders(ctx context.Context) ([]domain.Order, error) {
	var out listEnvelope[domain.Order]
	if err := c.get(ctx, ServiceOrder, "list_orders", "/order/orders/", nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) Purchase(ctx context.Context, listingID domain.ID) (*domain.Order, error) {
	var out domain.Order
	body := map[string]domain.ID{"listing_id": listingID}
	if err := c.post(ctx, ServiceOrder, "purchase", "/order/orders/purchase/", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ShipOrder(ctx context.Context, orderID domain.ID, req ShipRequest) error {
	return c.post(ctx, ServiceOrder, "ship_order", pathf("/order/orders/%s/ship/", orderID), req, nil)
}

func (c *Client) CompleteOrder(ctx context.Context, orderID domain.ID) error {
	return c.post(ctx, ServiceOrder, "complete_order", pathf("/order/orders/%s/complete/", orderID), nil, nil)
}

func (c *Client) ListDisputes(ctx context.Context) ([]domain.Dispute, error) {
	var out listEnvelope[domain.Dispute]
	if err := c.get(ctx, ServiceOrder, "list_disputes", "/order/disputes/", nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

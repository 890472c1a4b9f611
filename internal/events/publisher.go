// Package events publishes storefront activity (bids, new listings, order
// transitions) to NATS for downstream consumers. Publishing is best effort:
// a failed publish is logged and never fails the user's request.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Bernard-Murphy/dbay-public/internal/domain"
	"github.com/Bernard-Murphy/dbay-public/internal/platform/logger"
	"go.uber.org/zap"
)

const (
	SubjectBidSubmitted   = "web.bid.submitted"
	SubjectListingCreated = "web.listing.created"
	SubjectOrderPurchased = "web.order.purchased"
	SubjectOrderShipped   = "web.order.shipped"
	SubjectOrderCompleted = "web.order.completed"
)

type MessagePublisher interface {
	Publish(ctx context.Context, subject string, message interface{}) error
	PublishRaw(ctx context.Context, subject string, data []byte) error
}

// Conn is the subset of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
}

type natsPublisher struct {
	conn Conn
}

func NewNATSPublisher(conn Conn) (MessagePublisher, error) {
	if conn == nil {
		return nil, fmt.Errorf("NATS connection cannot be nil")
	}
	return &natsPublisher{conn: conn}, nil
}

func (p *natsPublisher) Publish(ctx context.Context, subject string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message to JSON for subject %s: %w", subject, err)
	}
	return p.PublishRaw(ctx, subject, data)
}

func (p *natsPublisher) PublishRaw(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish message to NATS subject %s: %w", subject, err)
	}
	return nil
}

type nopPublisher struct{}

// NewNopPublisher is used when no NATS_URL is configured.
func NewNopPublisher() MessagePublisher { return nopPublisher{} }

func (nopPublisher) Publish(context.Context, string, interface{}) error { return nil }
func (nopPublisher) PublishRaw(context.Context, string, []byte) error   { return nil }

type BidSubmitted struct {
	ListingID  domain.ID `json:"listing_id"`
	BidderID   domain.ID `json:"bidder_id"`
	Amount     int64     `json:"amount"`
	OccurredAt time.Time `json:"at"`
}

type ListingCreated struct {
	ListingID     domain.ID `json:"listing_id"`
	SellerID      domain.ID `json:"seller_id"`
	MediaUploaded int       `json:"media_uploaded"`
	MediaFailed   bool      `json:"media_failed"`
	OccurredAt    time.Time `json:"at"`
}

type OrderChanged struct {
	OrderID    domain.ID `json:"order_id"`
	ListingID  domain.ID `json:"listing_id,omitempty"`
	ActorID    domain.ID `json:"actor_id"`
	OccurredAt time.Time `json:"at"`
}

// Emitter wraps a MessagePublisher with logging and a clock.
type Emitter struct {
	pub MessagePublisher
	log *logger.Logger
	now func() time.Time
}

func NewEmitter(pub MessagePublisher, log *logger.Logger) *Emitter {
	if pub == nil {
		pub = NewNopPublisher()
	}
	return &Emitter{pub: pub, log: log.Named("events"), now: time.Now}
}

func (e *Emitter) BidSubmitted(ctx context.Context, listingID, bidderID domain.ID, amount int64) {
	e.emit(ctx, SubjectBidSubmitted, BidSubmitted{
		ListingID: listingID, BidderID: bidderID, Amount: amount, OccurredAt: e.now().UTC(),
	})
}

func (e *Emitter) ListingCreated(ctx context.Context, listingID, sellerID domain.ID, uploaded int, failed bool) {
	e.emit(ctx, SubjectListingCreated, ListingCreated{
		ListingID: listingID, SellerID: sellerID, MediaUploaded: uploaded, MediaFailed: failed, OccurredAt: e.now().UTC(),
	})
}

func (e *Emitter) OrderChanged(ctx context.Context, subject string, orderID, listingID, actorID domain.ID) {
	e.emit(ctx, subject, OrderChanged{
		OrderID: orderID, ListingID: listingID, ActorID: actorID, OccurredAt: e.now().UTC(),
	})
}

func (e *Emitter) emit(ctx context.Context, subject string, msg interface{}) {
	if err := e.pub.Publish(ctx, subject, msg); err != nil {
		e.log.Warn("Failed to publish activity event", zap.String("subject", subject), zap.Error(err))
	}
}

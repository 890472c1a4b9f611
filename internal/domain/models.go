package domain

import (
	"strings"
	"time"
)

type Condition string

const (
	ConditionNew     Condition = "NEW"
	ConditionLikeNew Condition = "LIKE_NEW"
	ConditionGood    Condition = "GOOD"
	ConditionFair    Condition = "FAIR"
	ConditionPoor    Condition = "POOR"
)

var Conditions = []Condition{ConditionNew, ConditionLikeNew, ConditionGood, ConditionFair, ConditionPoor}

type ListingType string

const (
	ListingTypeAuction ListingType = "AUCTION"
	ListingTypeBuyNow  ListingType = "BUY_IT_NOW"
	ListingTypeBoth    ListingType = "BOTH"
)

var ListingTypes = []ListingType{ListingTypeAuction, ListingTypeBuyNow, ListingTypeBoth}

// AcceptsBids reports whether the listing type has an auction component.
func (t ListingType) AcceptsBids() bool {
	return t == ListingTypeAuction || t == ListingTypeBoth
}

// AcceptsBuyNow reports whether the listing type can be bought outright.
func (t ListingType) AcceptsBuyNow() bool {
	return t == ListingTypeBuyNow || t == ListingTypeBoth
}

type ListingStatus string

const (
	ListingStatusDraft     ListingStatus = "DRAFT"
	ListingStatusActive    ListingStatus = "ACTIVE"
	ListingStatusEnded     ListingStatus = "ENDED"
	ListingStatusSold      ListingStatus = "SOLD"
	ListingStatusCancelled ListingStatus = "CANCELLED"
)

type ListingImage struct {
	ID        ID     `json:"id"`
	URLThumb  string `json:"url_thumb"`
	URLMedium string `json:"url_medium"`
	URLLarge  string `json:"url_large"`
	SortOrder int    `json:"sort_order"`
	MediaType string `json:"media_type,omitempty"`
}

type Listing struct {
	ID                  ID             `json:"id"`
	Title               string         `json:"title"`
	Description         string         `json:"description"`
	SellerID            ID             `json:"seller_id"`
	CategoryID          ID             `json:"category_id"`
	Condition           Condition      `json:"condition"`
	ListingType         ListingType    `json:"listing_type"`
	StartingPrice       Doge           `json:"starting_price"`
	CurrentPrice        Doge           `json:"current_price"`
	ReservePrice        Doge           `json:"reserve_price"`
	BuyItNowPrice       Doge           `json:"buy_it_now_price"`
	Quantity            int            `json:"quantity"`
	QuantitySold        int            `json:"quantity_sold"`
	Status              ListingStatus  `json:"status"`
	Images              []ListingImage `json:"images"`
	BidCount            int            `json:"bid_count"`
	ViewCount           int            `json:"view_count"`
	WatchCount          int            `json:"watch_count"`
	ShippingCost        Doge           `json:"shipping_cost"`
	ShippingFromCountry string         `json:"shipping_from_country"`
	StartTime           *time.Time     `json:"start_time,omitempty"`
	EndTime             *time.Time     `json:"end_time,omitempty"`
	AuctionEndTime      *time.Time     `json:"auction_end_time,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
}

// PriceForBidding is the price the next bid must beat. Listings without bids
// report a zero current price, in which case the starting price applies.
func (l Listing) PriceForBidding() int64 {
	if l.CurrentPrice > 0 {
		return l.CurrentPrice.Int64()
	}
	return l.StartingPrice.Int64()
}

// CoverImage returns the first image, if any.
func (l Listing) CoverImage() *ListingImage {
	if len(l.Images) == 0 {
		return nil
	}
	return &l.Images[0]
}

type Bid struct {
	ID        ID        `json:"id"`
	ListingID ID        `json:"listing_id"`
	BidderID  ID        `json:"bidder_id"`
	Amount    Doge      `json:"amount"`
	IsWinning bool      `json:"is_winning"`
	CreatedAt time.Time `json:"created_at"`
}

type AuctionState struct {
	ListingID    ID         `json:"listing_id"`
	CurrentPrice Doge       `json:"current_price"`
	HighBidderID ID         `json:"high_bidder_id"`
	BidCount     int        `json:"bid_count"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	IsExtended   bool       `json:"is_extended"`
	Status       string     `json:"status"`
}

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING_PAYMENT"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusDisputed  OrderStatus = "DISPUTED"
	OrderStatusRefunded  OrderStatus = "REFUNDED"
)

type Order struct {
	ID             ID          `json:"id"`
	ListingID      ID          `json:"listing_id"`
	BuyerID        ID          `json:"buyer_id"`
	SellerID       ID          `json:"seller_id"`
	OrderType      string      `json:"order_type,omitempty"`
	Amount         Doge        `json:"amount"`
	ShippingCost   Doge        `json:"shipping_cost"`
	Status         OrderStatus `json:"status"`
	TrackingNumber string      `json:"shipping_tracking_number,omitempty"`
	Carrier        string      `json:"shipping_carrier,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// CanShip reports whether userID, as the seller, may mark the order shipped.
func (o *Order) CanShip(userID ID) bool {
	return userID != "" && o.SellerID == userID && o.Status == OrderStatusPaid
}

// CanComplete reports whether userID, as the buyer, may complete the order.
func (o *Order) CanComplete(userID ID) bool {
	return userID != "" && o.BuyerID == userID &&
		(o.Status == OrderStatusShipped || o.Status == OrderStatusDelivered)
}

type Balance struct {
	Available Doge `json:"available"`
	Locked    Doge `json:"locked"`
	Pending   Doge `json:"pending"`
}

type LedgerEntry struct {
	ID            ID        `json:"id"`
	EntryType     string    `json:"entry_type"`
	Debit         Doge      `json:"debit"`
	Credit        Doge      `json:"credit"`
	BalanceAfter  Doge      `json:"balance_after"`
	ReferenceType string    `json:"reference_type"`
	ReferenceID   string    `json:"reference_id"`
	Description   string    `json:"description,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type CategoryItem struct {
	ID         ID     `json:"id"`
	Name       string `json:"name"`
	SortOrder  int    `json:"sort_order"`
	CategoryID ID     `json:"category,omitempty"`
}

type Category struct {
	ID       ID             `json:"id"`
	Name     string         `json:"name"`
	Slug     string         `json:"slug"`
	Path     string         `json:"path"`
	IconURL  string         `json:"icon_url,omitempty"`
	Children []Category     `json:"children,omitempty"`
	Items    []CategoryItem `json:"items,omitempty"`
}

type Answer struct {
	ID         ID        `json:"id"`
	QuestionID ID        `json:"question"`
	AuthorID   ID        `json:"author_id"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

type Question struct {
	ID        ID        `json:"id"`
	ListingID ID        `json:"listing_id"`
	AuthorID  ID        `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	Answers   []Answer  `json:"answers,omitempty"`
}

type Dispute struct {
	ID              ID        `json:"id"`
	OrderID         ID        `json:"order"`
	Reason          string    `json:"reason"`
	Status          string    `json:"status"`
	BuyerEvidence   string    `json:"buyer_evidence,omitempty"`
	SellerEvidence  string    `json:"seller_evidence,omitempty"`
	ResolutionNotes string    `json:"resolution_notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Open reports whether the dispute still awaits a resolution.
func (d *Dispute) Open() bool {
	return !strings.HasPrefix(d.Status, "RESOLVED")
}

// SavedSearch stores filter parameters by name. CreatedAt is kept verbatim
// since the search gateway does not emit RFC 3339 timestamps.
type SavedSearch struct {
	ID        ID                `json:"id"`
	Name      string            `json:"name"`
	Query     map[string]string `json:"query"`
	CreatedAt string            `json:"created_at,omitempty"`
}

type User struct {
	ID             ID         `json:"id"`
	Username       string     `json:"username"`
	DisplayName    string     `json:"display_name"`
	Email          string     `json:"email,omitempty"`
	AvatarURL      string     `json:"avatar_url,omitempty"`
	Bio            string     `json:"bio,omitempty"`
	IsStaff        bool       `json:"is_staff"`
	SellerRating   float64    `json:"seller_rating,omitempty"`
	SellerVerified bool       `json:"seller_verified,omitempty"`
	CreatedAt      *time.Time `json:"created_at,omitempty"`
}

// Session is the authenticated state of one visitor.
type Session struct {
	ID          string    `json:"id"`
	UserID      ID        `json:"user_id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name,omitempty"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	Token       string    `json:"token"`
	AccessToken string    `json:"access_token,omitempty"`
	IsStaff     bool      `json:"is_staff"`
	Demo        bool      `json:"demo,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Authenticated reports whether the session carries a user and a token.
func (s *Session) Authenticated() bool {
	return s != nil && s.UserID != "" && s.Token != ""
}

// Name returns the display name, falling back to the username.
func (s *Session) Name() string {
	if s == nil {
		return ""
	}
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.Username
}

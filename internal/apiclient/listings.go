package apiclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/Bernard-Murphy/dbay-public/internal/domain"
)

// CreateListingRequest is the body of POST /listings/listings/.
type CreateListingRequest struct {
	Title               string             `json:"title"`
	Description         string             `json:"description"`
	CategoryID          domain.ID          `json:"category_id"`
	Condition           domain.Condition   `json:"condition"`
	ListingType         domain.ListingType `json:"listing_type"`
	StartingPrice       int64              `json:"starting_price,omitempty"`
	BuyItNowPrice       int64              `json:"buy_it_now_price,omitempty"`
	ReservePrice        int64              `json:"reserve_price,omitempty"`
	Quantity            int                `json:"quantity"`
	ShippingCost        int64              `json:"shipping_cost"`
	ShippingFromCountry string             `json:"shipping_from_country,omitempty"`
}

type PresignRequest struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
}

type PresignResponse struct {
	UploadURL string `json:"upload_url"`
	S3Key     string `json:"s3_key"`
}

type ConfirmMediaRequest struct {
	S3Key     string `json:"s3_key"`
	MediaType string `json:"media_type"`
	FileSize  int64  `json:"file_size"`
}

func (c *Client) ListListings(ctx context.Context, query url.Values) ([]domain.Listing, error) {
	var out listEnvelope[domain.Listing]
	if err := c.get(ctx, ServiceListing, "list_listings", "/listings/listings/", query, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) GetListing(ctx context.Context, id domain.ID) (*domain.Listing, error) {
	var out domain.Listing
	if err := c.get(ctx, ServiceListing, "get_listing", pathf("/listings/listings/%s/", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateListing(ctx context.Context, req CreateListingRequest) (*domain.Listing, error) {
	var out domain.Listing
	if err := c.post(ctx, ServiceListing, "create_listing", "/listings/listings/", req, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, &Error{Service: ServiceListing, Op: "create_listing", Message: "listing service returned no id"}
	}
	return &out, nil
}

func (c *Client) PresignMedia(ctx context.Context, listingID domain.ID, req PresignRequest) (*PresignResponse, error) {
	var out PresignResponse
	path := pathf("/listings/listings/%s/images/presigned-url/", listingID)
	if err := c.post(ctx, ServiceListing, "presign_media", path, req, &out); err != nil {
		return nil, err
	}
	if out.UploadURL == "" || out.S3Key == "" {
		return nil, &Error{Service: ServiceListing, Op: "presign_media", Message: "presign response missing upload_url or s3_key"}
	}
	return &out, nil
}

func (c *Client) ConfirmMedia(ctx context.Context, listingID domain.ID, req ConfirmMediaRequest) error {
	path := pathf("/listings/listings/%s/images/confirm/", listingID)
	return c.post(ctx, ServiceListing, "confirm_media", path, req, nil)
}

// PutObject uploads body to a presigned object-storage URL. No auth headers
// are sent; the signature is in the URL. It uses the upload client, not the
// API call timeout.
func (c *Client) PutObject(ctx context.Context, uploadURL, contentType string, body io.Reader, size int64) (err error) {
	const op = "put_object"
	ctx, span := c.tracer.Start(ctx, "storage."+op)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, body)
	if err != nil {
		return &Error{Service: "storage", Op: op, Message: "failed to build upload request", Err: err}
	}
	req.ContentLength = size
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.upload.Do(req)
	if err != nil {
		span.RecordError(err)
		return &Error{Service: "storage", Op: op, Message: "upload failed", Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{Service: "storage", Op: op, Status: resp.StatusCode,
			Message: fmt.Sprintf("upload rejected with status %d", resp.StatusCode)}
	}
	return nil
}

func (c *Client) WatchListing(ctx context.Context, id domain.ID) error {
	return c.post(ctx, ServiceListing, "watch_listing", pathf("/listings/listings/%s/watch/", id), nil, nil)
}

func (c *Client) UnwatchListing(ctx context.Context, id domain.ID) error {
	return c.post(ctx, ServiceListing, "unwatch_listing", pathf("/listings/listings/%s/unwatch/", id), nil, nil)
}

func (c *Client) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var out listEnvelope[domain.Category]
	if err := c.get(ctx, ServiceListing, "list_categories", "/categories/", nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) ListCategoriesWithItems(ctx context.Context) ([]domain.Category, error) {
	var out listEnvelope[domain.Category]
	if err := c.get(ctx, ServiceListing, "list_categories_with_items", "/categories/with-items/", nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) ListQuestions(ctx context.Context, listingID domain.ID) ([]domain.Question, error) {
	var out listEnvelope[domain.Question]
	if err := c.get(ctx, ServiceListing, "list_questions", pathf("/questions/listings/%s/questions/", listingID), nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) AskQuestion(ctx context.Context, listingID domain.ID, body string) (*domain.Question, error) {
	var out domain.Question
	req := map[string]string{"body": body}
	if err := c.post(ctx, ServiceListing, "ask_question", pathf("/questions/listings/%s/questions/", listingID), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AnswerQuestion(ctx context.Context, questionID domain.ID, body string) (*domain.Answer, error) {
	var out domain.Answer
	req := map[string]string{"body": body}
	if err := c.post(ctx, ServiceListing, "answer_question", pathf("/questions/questions/%s/answers/", questionID), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

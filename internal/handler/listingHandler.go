package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Bernard-Murphy/dbay-public/internal/apiclient"
	"github.com/Bernard-Murphy/dbay-public/internal/domain"
	"github.com/Bernard-Murphy/dbay-public/internal/events"
	"github.com/Bernard-Murphy/dbay-public/internal/middleware"
	"github.com/Bernard-Murphy/dbay-public/internal/pricing"
	"github.com/Bernard-Murphy/dbay-public/internal/store"
	"github.com/Bernard-Murphy/dbay-public/internal/upload"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	// multipartMemory is how much of an upload form is kept in memory before
	// spilling to temporary files.
	multipartMemory = 32 << 20
	maxUploadBody   = 1 << 30
	featuredCount   = 12
)

// ListingHandler serves browsing, the listing page with its bid panel and Q&A,
// and listing creation.
type ListingHandler struct {
	Base
}

func NewListingHandler(d Deps) *ListingHandler {
	return &ListingHandler{Base: newBase(d, "handler.listing")}
}

type homeView struct {
	Categories []domain.Category
	Featured   []domain.Listing
	Err        string
}

// HandleHome shows the search bar, the category browser and recent listings.
func (h *ListingHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	ls := store.NewListingStore(h.client(r))
	if err := ls.FetchCategories(r.Context()); err != nil {
		h.logger.Warn("Failed to load categories", zap.Error(err))
	}
	query := url.Values{"status": {string(domain.ListingStatusActive)}, "page_size": {fmt.Sprint(featuredCount)}}
	if err := ls.FetchListings(r.Context(), query); err != nil {
		h.logger.Warn("Failed to load featured listings", zap.Error(err))
	}
	featured := ls.Listings
	if len(featured) > featuredCount {
		featured = featured[:featuredCount]
	}
	h.render(w, r, http.StatusOK, "home", "dBay", homeView{Categories: ls.Categories, Featured: featured, Err: ls.Err})
}

type listingView struct {
	Listing      *domain.Listing
	Bids         []domain.Bid
	Auction      *domain.AuctionState
	Questions    []domain.Question
	CategoryName string
	IsSeller     bool
	CanBid       bool
	CanBuy       bool

	BidInput      string
	BidUSDInput   string
	BidError      string
	QuestionInput string
	QuestionError string
}

// loadListing fetches everything the listing page shows. Only the listing
// itself is required; bids, auction state and questions are best effort.
func (h *ListingHandler) loadListing(r *http.Request, id domain.ID) (*listingView, error) {
	api := h.client(r)
	ls := store.NewListingStore(api)
	if err := ls.FetchListing(r.Context(), id); err != nil {
		return nil, err
	}
	listing := ls.Current

	if err := ls.FetchQuestions(r.Context(), id); err != nil {
		h.logger.Debug("Failed to load questions", zap.String("listing_id", id.String()), zap.Error(err))
	}
	if err := ls.FetchCategories(r.Context()); err != nil {
		h.logger.Debug("Failed to load categories", zap.Error(err))
	}

	view := &listingView{
		Listing:      listing,
		Questions:    ls.Questions,
		CategoryName: ls.CategoryName(listing.CategoryID),
		CanBuy:       listing.ListingType.AcceptsBuyNow() && listing.Status == domain.ListingStatusActive,
	}
	if view.CategoryName == "" {
		view.CategoryName = listing.CategoryID.String()
	}
	if sess := middleware.CurrentSession(r.Context()); sess.Authenticated() {
		view.IsSeller = sess.UserID == listing.SellerID
	}
	view.CanBid = listing.ListingType.AcceptsBids() && !view.IsSeller

	if listing.ListingType.AcceptsBids() {
		as := store.NewAuctionStore(api)
		if err := as.FetchBids(r.Context(), id); err != nil {
			h.logger.Debug("Failed to load bids", zap.String("listing_id", id.String()), zap.Error(err))
		}
		if err := as.FetchState(r.Context(), id); err != nil {
			h.logger.Debug("Failed to load auction state", zap.String("listing_id", id.String()), zap.Error(err))
		}
		view.Bids, view.Auction = as.Bids, as.State
		if as.State != nil && as.State.Status != "" && as.State.Status != string(domain.ListingStatusActive) {
			view.CanBid = false
		}
	}
	if listing.Status != "" && listing.Status != domain.ListingStatusActive {
		view.CanBid = false
	}
	return view, nil
}

func (h *ListingHandler) HandleGetListing(w http.ResponseWriter, r *http.Request) {
	id := domain.ID(chi.URLParam(r, "id"))
	view, err := h.loadListing(r, id)
	if err != nil {
		h.backendError(w, r, "Listing", err)
		return
	}
	h.render(w, r, http.StatusOK, "listing", view.Listing.Title, view)
}

// HandlePlaceBid submits a bid. Input below the minimum next bid is rejected
// without calling the auction service and the form is shown again with the
// entered amount.
func (h *ListingHandler) HandlePlaceBid(w http.ResponseWriter, r *http.Request) {
	id := domain.ID(chi.URLParam(r, "id"))
	var form BidForm
	_ = h.forms.Decode(r, &form)

	view, err := h.loadListing(r, id)
	if err != nil {
		h.backendError(w, r, "Listing", err)
		return
	}
	if !view.CanBid {
		h.redirect(w, r, listingPath(id), failure("This listing is not accepting bids."))
		return
	}

	as := store.NewAuctionStore(h.client(r))
	amount, err := as.PlaceBid(r.Context(), view.Listing, form.dogeInput(h.rate()))
	if err != nil {
		if h.sessionExpired(w, r, err) {
			return
		}
		status := http.StatusUnprocessableEntity
		outcome := "invalid"
		switch {
		case errors.Is(err, domain.ErrBidTooLow):
			view.BidError = "Minimum bid is Ð" + pricing.FormatDoge(pricing.MinNextBid(view.Listing.PriceForBidding()))
		case errors.Is(err, domain.ErrInvalidAmount):
			view.BidError = "Enter a whole number of DOGE"
		default:
			status = apiclient.HTTPStatus(err)
			outcome = "rejected"
			view.BidError = as.Err
		}
		h.metrics.BidSubmitted(outcome)
		view.BidInput, view.BidUSDInput = form.Amount, form.AmountUSD
		h.render(w, r, status, "listing", view.Listing.Title, view)
		return
	}

	h.metrics.BidSubmitted("accepted")
	h.events.BidSubmitted(r.Context(), id, middleware.UserIDFrom(r.Context()), amount)
	h.redirect(w, r, listingPath(id), success("Bid of Ð"+pricing.FormatDoge(amount)+" placed."))
}

func (h *ListingHandler) HandleBuyNow(w http.ResponseWriter, r *http.Request) {
	id := domain.ID(chi.URLParam(r, "id"))
	api := h.client(r)
	ls := store.NewListingStore(api)
	if err := ls.FetchListing(r.Context(), id); err != nil {
		h.backendError(w, r, "Listing", err)
		return
	}

	as := store.NewAuctionStore(api)
	order, err := as.BuyNow(r.Context(), ls.Current)
	if err != nil {
		if h.sessionExpired(w, r, err) {
			return
		}
		h.redirect(w, r, listingPath(id), failure(as.Err))
		return
	}
	h.events.OrderChanged(r.Context(), events.SubjectOrderPurchased, order.ID, id, middleware.UserIDFrom(r.Context()))
	h.redirect(w, r, "/dashboard/orders", success("Purchase complete. Order #"+shortID(order.ID)+" created."))
}

func (h *ListingHandler) HandleWatch(w http.ResponseWriter, r *http.Request) {
	h.watch(w, r, true)
}

func (h *ListingHandler) HandleUnwatch(w http.ResponseWriter, r *http.Request) {
	h.watch(w, r, false)
}

func (h *ListingHandler) watch(w http.ResponseWriter, r *http.Request, on bool) {
	id := domain.ID(chi.URLParam(r, "id"))
	ls := store.NewListingStore(h.client(r))
	if err := ls.Watch(r.Context(), id, on); err != nil {
		if h.sessionExpired(w, r, err) {
			return
		}
		h.redirect(w, r, listingPath(id), failure(ls.Err))
		return
	}
	msg := "Added to your watchlist."
	if !on {
		msg = "Removed from your watchlist."
	}
	h.redirect(w, r, listingPath(id), success(msg))
}

func (h *ListingHandler) HandleAskQuestion(w http.ResponseWriter, r *http.Request) {
	id := domain.ID(chi.URLParam(r, "id"))
	var form QuestionForm
	if errs := h.forms.Decode(r, &form); errs != nil {
		h.redirect(w, r, listingPath(id)+"#questions", failure("Question: "+errs["body"]))
		return
	}
	ls := store.NewListingStore(h.client(r))
	if err := ls.AskQuestion(r.Context(), id, strings.TrimSpace(form.Body)); err != nil {
		if h.sessionExpired(w, r, err) {
			return
		}
		h.redirect(w, r, listingPath(id)+"#questions", failure(ls.Err))
		return
	}
	h.redirect(w, r, listingPath(id)+"#questions", success("Question sent to the seller."))
}

func (h *ListingHandler) HandleAnswerQuestion(w http.ResponseWriter, r *http.Request) {
	id := domain.ID(chi.URLParam(r, "id"))
	qid := domain.ID(chi.URLParam(r, "qid"))
	var form QuestionForm
	if errs := h.forms.Decode(r, &form); errs != nil {
		h.redirect(w, r, listingPath(id)+"#questions", failure("Answer: "+errs["body"]))
		return
	}
	ls := store.NewListingStore(h.client(r))
	if err := ls.AnswerQuestion(r.Context(), qid, strings.TrimSpace(form.Body)); err != nil {
		if h.sessionExpired(w, r, err) {
			return
		}
		h.redirect(w, r, listingPath(id)+"#questions", failure(ls.Err))
		return
	}
	h.redirect(w, r, listingPath(id)+"#questions", success("Answer posted."))
}

type createListingView struct {
	Form        ListingForm
	Errors      FieldErrors
	Categories  []domain.Category
	Conditions  []domain.Condition
	Types       []domain.ListingType
	FileError   string
	MaxVideoMB  int64
	SubmitError string
}

func (h *ListingHandler) newListingView(r *http.Request, form ListingForm) *createListingView {
	ls := store.NewListingStore(h.client(r))
	if err := ls.FetchCategories(r.Context()); err != nil {
		h.logger.Warn("Failed to load categories", zap.Error(err))
	}
	return &createListingView{
		Form:       form,
		Categories: ls.Categories,
		Conditions: domain.Conditions,
		Types:      domain.ListingTypes,
		MaxVideoMB: upload.MaxVideoBytes >> 20,
	}
}

func (h *ListingHandler) HandleNewListing(w http.ResponseWriter, r *http.Request) {
	form := ListingForm{
		Condition:           string(domain.ConditionNew),
		ListingType:         string(domain.ListingTypeAuction),
		Quantity:            1,
		ShippingFromCountry: "US",
	}
	h.render(w, r, http.StatusOK, "listing_new", "Create a listing", h.newListingView(r, form))
}

// HandleCreateListing validates the form and files, creates the listing and
// uploads media in selection order. Temporary files are removed when the
// request ends.
func (h *ListingHandler) HandleCreateListing(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		h.logger.Warn("Failed to parse listing form", zap.Error(err))
		view := h.newListingView(r, ListingForm{Quantity: 1})
		view.SubmitError = "The upload could not be read. Try fewer or smaller files."
		h.render(w, r, http.StatusBadRequest, "listing_new", "Create a listing", view)
		return
	}
	if r.MultipartForm != nil {
		defer func() {
			if err := r.MultipartForm.RemoveAll(); err != nil {
				h.logger.Warn("Failed to remove temporary upload files", zap.Error(err))
			}
		}()
	}

	form := ListingForm{usdRate: h.rate()}
	errs := h.forms.Decode(r, &form)

	var files []upload.File
	if r.MultipartForm != nil {
		for _, fh := range r.MultipartForm.File["media"] {
			if fh.Size == 0 && fh.Filename == "" {
				continue
			}
			files = append(files, upload.FromMultipart(fh))
		}
	}
	fileErr := upload.ValidateFiles(files)

	if errs != nil || fileErr != nil {
		view := h.newListingView(r, form)
		view.Errors = errs
		if fileErr != nil {
			view.FileError = videoTooLargeMessage(fileErr)
		}
		h.render(w, r, http.StatusUnprocessableEntity, "listing_new", "Create a listing", view)
		return
	}

	req := apiclient.CreateListingRequest{
		Title:               strings.TrimSpace(form.Title),
		Description:         form.Description,
		CategoryID:          domain.ID(form.CategoryID),
		Condition:           domain.Condition(form.Condition),
		ListingType:         domain.ListingType(form.ListingType),
		StartingPrice:       form.StartingPrice,
		BuyItNowPrice:       form.BuyItNowPrice,
		ReservePrice:        form.ReservePrice,
		Quantity:            form.Quantity,
		ShippingCost:        form.ShippingCost,
		ShippingFromCountry: strings.ToUpper(form.ShippingFromCountry),
	}

	uploader := upload.NewUploader(h.client(r), h.logger, h.metrics)
	progress := func(index, percent int) {
		if percent%25 == 0 {
			h.logger.Debug("Media upload progress", zap.Int("index", index), zap.Int("percent", percent))
		}
	}
	result, err := uploader.CreateWithMedia(r.Context(), req, files, progress)
	if err != nil {
		if h.sessionExpired(w, r, err) {
			return
		}
		view := h.newListingView(r, form)
		if errors.Is(err, domain.ErrVideoTooLarge) {
			view.FileError = videoTooLargeMessage(err)
		} else {
			view.SubmitError = "Failed to create listing: " + apiclient.Message(err)
		}
		h.render(w, r, apiclient.HTTPStatus(err), "listing_new", "Create a listing", view)
		return
	}

	confirmed := 0
	for _, f := range result.Files {
		if f.Status == upload.StatusConfirmed {
			confirmed++
		}
	}
	h.events.ListingCreated(r.Context(), result.Listing.ID, middleware.UserIDFrom(r.Context()), confirmed, result.Failed())

	flash := success(fmt.Sprintf("Listing created with %d of %d files.", confirmed, len(files)))
	if len(files) == 0 {
		flash = success("Listing created.")
	}
	if failed := result.FailedFile(); failed != nil {
		flash = failure(uploadFailureMessage(failed, confirmed, len(files)))
	}
	h.redirect(w, r, listingPath(result.Listing.ID), flash)
}

// HandleUserProfile shows another user's public profile.
func (h *ListingHandler) HandleUserProfile(w http.ResponseWriter, r *http.Request) {
	id := domain.ID(chi.URLParam(r, "id"))
	user, err := h.client(r).GetUser(r.Context(), id)
	if err != nil {
		h.backendError(w, r, "User", err)
		return
	}
	name := user.DisplayName
	if name == "" {
		name = user.Username
	}
	h.render(w, r, http.StatusOK, "user", name, user)
}

func listingPath(id domain.ID) string {
	return "/listings/" + url.PathEscape(id.String())
}

// uploadFailureMessage names the file that stopped the upload and how far its
// transfer got.
func uploadFailureMessage(f *upload.FileResult, confirmed, total int) string {
	sent := ""
	if f.Percent > 0 && f.Percent < 100 {
		sent = fmt.Sprintf(" after %d%% was sent", f.Percent)
	}
	return fmt.Sprintf("Listing created with %d of %d files. Uploading %q failed%s: %s. Remaining files were not uploaded.",
		confirmed, total, f.Name, sent, f.Error)
}

func videoTooLargeMessage(err error) string {
	msg := strings.TrimPrefix(err.Error(), domain.ErrVideoTooLarge.Error()+": ")
	return msg + ". Max size for videos is 100MB."
}

package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Bernard-Murphy/dbay-public/internal/apiclient"
	"github.com/Bernard-Murphy/dbay-public/internal/domain"
	"github.com/Bernard-Murphy/dbay-public/internal/handler"
	"github.com/Bernard-Murphy/dbay-public/internal/identity"
	"github.com/Bernard-Murphy/dbay-public/internal/platform/logger"
	"github.com/Bernard-Murphy/dbay-public/internal/rate"
	"github.com/Bernard-Murphy/dbay-public/internal/router"
	"github.com/Bernard-Murphy/dbay-public/internal/session"
	"github.com/Bernard-Murphy/dbay-public/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	Method string
	Path   string
	Query  url.Values
	Body   map[string]any
}

// backend fakes every dBay service under /api/v1. Routes are keyed by
// "METHOD /path"; anything unrouted answers 404.
type backend struct {
	mu     sync.Mutex
	calls  []call
	routes map[string]http.HandlerFunc
}

func (b *backend) handle(key string, fn http.HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.routes[key] = fn
}

func (b *backend) called(method, path string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.calls {
		if c.Method == method && c.Path == path {
			return true
		}
	}
	return false
}

func (b *backend) find(method, path string) (call, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.calls) - 1; i >= 0; i-- {
		if b.calls[i].Method == method && b.calls[i].Path == path {
			return b.calls[i], true
		}
	}
	return call{}, false
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1")
	c := call{Method: r.Method, Path: path, Query: r.URL.Query()}
	raw, _ := io.ReadAll(r.Body)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &c.Body)
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))
	b.mu.Lock()
	b.calls = append(b.calls, c)
	fn := b.routes[r.Method+" "+path]
	b.mu.Unlock()
	if fn == nil {
		reply(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}
	fn(w, r)
}

func reply(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func replyWith(status int, v any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) { reply(w, status, v) }
}

type fixedFetcher float64

func (f fixedFetcher) Fetch(context.Context) (float64, error) { return float64(f), nil }

type env struct {
	t        *testing.T
	backend  *backend
	sessions *session.Manager
	rates    *rate.Cache
	router   http.Handler
}

func newEnv(t *testing.T) *env {
	t.Helper()
	b := &backend{routes: make(map[string]http.HandlerFunc)}
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)

	log := logger.NewNop()
	urls := make(map[apiclient.Service]string)
	for _, svc := range apiclient.Services {
		urls[svc] = srv.URL + "/api/v1"
	}
	api := apiclient.New(apiclient.Config{BaseURLs: urls, UserIDHeader: true}, log, nil)

	views, err := handler.NewRenderer(web.Templates())
	require.NoError(t, err)

	rates := rate.NewCache(fixedFetcher(0.1), 0.25, time.Hour, log)
	require.NoError(t, rates.Refresh(context.Background()))

	codec := session.NewCookieCodec("test-secret", time.Hour, false)
	sessions := session.NewManager(session.NewMemoryStorage(), codec, time.Hour, log)

	deps := handler.Deps{
		API:      api,
		Identity: identity.NewDevProvider(api, log),
		Views:    views,
		Forms:    handler.NewForms(),
		Rates:    rates,
		Logger:   log,
	}
	mux := router.New(router.Handlers{
		Listing:   handler.NewListingHandler(deps),
		Search:    handler.NewSearchHandler(deps),
		User:      handler.NewUserHandler(deps),
		Dashboard: handler.NewDashboardHandler(deps),
		Admin:     handler.NewAdminHandler(deps),
		System:    handler.NewSystemHandler(deps),
	}, router.Options{
		Sessions: sessions,
		Profile: func(ctx context.Context, sess *domain.Session) (*domain.User, error) {
			return api.WithSession(sess).Me(ctx)
		},
		Logger: log,
		Static: http.FileServer(http.FS(web.Static())),
	})
	return &env{t: t, backend: b, sessions: sessions, rates: rates, router: mux}
}

// login persists a session for user and returns the browser's cookies.
func (e *env) login(user domain.User) []*http.Cookie {
	e.t.Helper()
	rec := httptest.NewRecorder()
	store := e.sessions.Load(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(e.t, store.Login(context.Background(), user, session.Credentials{Token: "tok-" + user.ID.String()}))
	return rec.Result().Cookies()
}

func (e *env) do(req *http.Request, cookies []*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *env) get(path string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodGet, path, nil), cookies)
}

func (e *env) postForm(path string, form url.Values, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(req, cookies)
}

func hasCookie(rec *httptest.ResponseRecorder, name string) bool {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name && c.Value != "" {
			return true
		}
	}
	return false
}

var buyer = domain.User{ID: "u-buyer", Username: "shibe", DisplayName: "Shibe"}

func auctionListing() map[string]any {
	return map[string]any{
		"id":             "l-1",
		"title":          "Vintage Doge Plush",
		"seller_id":      "u-seller",
		"category_id":    "c-1",
		"condition":      "GOOD",
		"listing_type":   "AUCTION",
		"status":         "ACTIVE",
		"starting_price": 100,
		"current_price":  150,
		"images":         []any{},
	}
}

func TestHealthz(t *testing.T) {
	e := newEnv(t)
	rec := e.get("/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRateEndpoint(t *testing.T) {
	e := newEnv(t)
	rec := e.get("/api/rate", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var st rate.State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.InDelta(t, 0.1, st.Rate, 1e-9)
	assert.False(t, st.Stale)
}

func TestHome_RendersWhenBackendIsDown(t *testing.T) {
	e := newEnv(t)
	rec := e.get("/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No categories loaded")
	assert.Contains(t, rec.Body.String(), "Login / Register")
}

func TestListingPage(t *testing.T) {
	e := newEnv(t)
	e.backend.handle("GET /listings/listings/l-1/", replyWith(http.StatusOK, auctionListing()))
	e.backend.handle("GET /auction/auctions/l-1/bids/", replyWith(http.StatusOK, []map[string]any{
		{"id": "b-1", "listing_id": "l-1", "bidder_id": "u-other", "amount": 150, "is_winning": true},
	}))

	rec := e.get("/listings/l-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Vintage Doge Plush")
	assert.Contains(t, body, "Minimum bid: Ð")
	assert.Contains(t, body, `class="winning"`)
}

func TestListingPage_NotFound(t *testing.T) {
	e := newEnv(t)
	rec := e.get("/listings/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Listing not found.")
}

func TestPlaceBid_BelowMinimumNeverReachesAuctionService(t *testing.T) {
	e := newEnv(t)
	e.backend.handle("GET /listings/listings/l-1/", replyWith(http.StatusOK, auctionListing()))
	cookies := e.login(buyer)

	rec := e.postForm("/listings/l-1/bid", url.Values{"amount": {"120"}}, cookies)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Minimum bid is Ð")
	assert.Contains(t, rec.Body.String(), `value="120"`)
	assert.False(t, e.backend.called(http.MethodPost, "/auction/auctions/l-1/bid/"))
}

func TestPlaceBid_NotANumber(t *testing.T) {
	e := newEnv(t)
	e.backend.handle("GET /listings/listings/l-1/", replyWith(http.StatusOK, auctionListing()))
	cookies := e.login(buyer)

	rec := e.postForm("/listings/l-1/bid", url.Values{"amount": {"lots"}}, cookies)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Enter a whole number of DOGE")
	assert.False(t, e.backend.called(http.MethodPost, "/auction/auctions/l-1/bid/"))
}

func TestPlaceBid_Accepted(t *testing.T) {
	e := newEnv(t)
	e.backend.handle("GET /listings/listings/l-1/", replyWith(http.StatusOK, auctionListing()))
	e.backend.handle("POST /auction/auctions/l-1/bid/", replyWith(http.StatusCreated, map[string]any{
		"id": "b-2", "listing_id": "l-1", "bidder_id": buyer.ID, "amount": 1000, "is_winning": true,
	}))
	cookies := e.login(buyer)

	rec := e.postForm("/listings/l-1/bid", url.Values{"amount": {"1,000"}}, cookies)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/listings/l-1", rec.Header().Get("Location"))
	assert.True(t, hasCookie(rec, "dbay_flash"))

	sent, ok := e.backend.find(http.MethodPost, "/auction/auctions/l-1/bid/")
	require.True(t, ok)
	assert.EqualValues(t, 1000, sent.Body["amount"])
}

func TestPlaceBid_ServerRejectionShowsMessage(t *testing.T) {
	e := newEnv(t)
	e.backend.handle("GET /listings/listings/l-1/", replyWith(http.StatusOK, auctionListing()))
	e.backend.handle("POST /auction/auctions/l-1/bid/", replyWith(http.StatusBadRequest, map[string]string{
		"error": "Insufficient balance",
	}))
	cookies := e.login(buyer)

	rec := e.postForm("/listings/l-1/bid", url.Values{"amount": {"1000"}}, cookies)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Insufficient balance")
	assert.Contains(t, rec.Body.String(), `value="1000"`)
}

func TestPlaceBid_RequiresLogin(t *testing.T) {
	e := newEnv(t)
	rec := e.postForm("/listings/l-1/bid", url.Values{"amount": {"1000"}}, nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.False(t, e.backend.called(http.MethodGet, "/listings/listings/l-1/"))
}

func TestSearch_ClampsPage(t *testing.T) {
	e := newEnv(t)
	e.backend.handle("GET /search", replyWith(http.StatusOK, map[string]any{
		"results": []any{}, "total": 25, "page": 5, "per_page": 20,
	}))

	rec := e.get("/search?q=doge&page=5", nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/search?page=2&q=doge", rec.Header().Get("Location"))

	rec = e.get("/search?q=doge&page=0", nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/search?q=doge", rec.Header().Get("Location"))
}

func TestSearch_RendersResults(t *testing.T) {
	e := newEnv(t)
	e.backend.handle("GET /search", replyWith(http.StatusOK, map[string]any{
		"results": []any{auctionListing()}, "total": 1, "page": 1, "per_page": 20,
	}))

	rec := e.get("/search?q=plush&listing_type=AUCTION", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Vintage Doge Plush")
	assert.Contains(t, rec.Body.String(), "1 results")

	sent, ok := e.backend.find(http.MethodGet, "/search")
	require.True(t, ok)
	assert.Equal(t, "plush", sent.Query.Get("q"))
}

func TestSearch_BackendFailureShowsError(t *testing.T) {
	e := newEnv(t)
	e.backend.handle("GET /search", replyWith(http.StatusInternalServerError, map[string]string{"detail": "search index offline"}))

	rec := e.get("/search?q=doge", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "search index offline")
}

func TestLogin_InvalidCredentials(t *testing.T) {
	e := newEnv(t)
	e.backend.handle("POST /user/login/", replyWith(http.StatusUnauthorized, map[string]string{"detail": "bad credentials"}))

	rec := e.postForm("/login", url.Values{"username": {"shibe"}, "password": {"wrong"}}, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid username or password.")
	assert.NotContains(t, rec.Body.String(), "wrong")
}

func TestLogin_SuccessStartsSession(t *testing.T) {
	e := newEnv(t)
	e.backend.handle("POST /user/login/", replyWith(http.StatusOK, map[string]any{
		"token": "jwt-1",
		"user":  map[string]any{"id": "u-1", "username": "shibe", "display_name": "Shibe"},
	}))

	rec := e.postForm("/login", url.Values{"username": {"shibe"}, "password": {"pw"}, "next": {"/dashboard/wallet"}}, nil)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard/wallet", rec.Header().Get("Location"))
	assert.True(t, hasCookie(rec, session.DefaultCookieName))
}

func TestLogin_RejectsOffsiteNext(t *testing.T) {
	e := newEnv(t)
	e.backend.handle("POST /user/login/", replyWith(http.StatusOK, map[string]any{
		"token": "jwt-1",
		"user":  map[string]any{"id": "u-1", "username": "shibe"},
	}))

	rec := e.postForm("/login", url.Values{"username": {"shibe"}, "password": {"pw"}, "next": {"//evil.example"}}, nil)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestRegister_ValidationErrors(t *testing.T) {
	e := newEnv(t)
	rec := e.postForm("/register", url.Values{
		"username":         {"ab"},
		"display_name":     {"Shibe"},
		"email":            {"not-an-email"},
		"password":         {"secret"},
		"confirm_password": {"different"},
	}, nil)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.False(t, e.backend.called(http.MethodPost, "/user/register/"))
	assert.Contains(t, rec.Body.String(), `class="field-error"`)
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestPasswordReset_AlwaysGeneric(t *testing.T) {
	e := newEnv(t)
	e.backend.handle("POST /user/password-reset/", replyWith(http.StatusInternalServerError, map[string]string{"detail": "boom"}))

	rec := e.postForm("/password-reset", url.Values{"username": {"shibe"}, "email": {"shibe@example.com"}}, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "If an account exists")
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestLogout_ClearsSession(t *testing.T) {
	e := newEnv(t)
	cookies := e.login(buyer)

	rec := e.postForm("/logout", nil, cookies)
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	rec = e.get("/dashboard/orders", cookies)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestCreateListing_ValidationErrors(t *testing.T) {
	e := newEnv(t)
	cookies := e.login(buyer)

	rec := e.postForm("/listings/new", url.Values{
		"condition":    {"NEW"},
		"listing_type": {"AUCTION"},
		"quantity":     {"1"},
	}, cookies)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `class="field-error"`)
	assert.False(t, e.backend.called(http.MethodPost, "/listings/listings/"))
}

func TestOrders_ShowsShipFormToSeller(t *testing.T) {
	e := newEnv(t)
	e.backend.handle("GET /order/orders/", replyWith(http.StatusOK, []map[string]any{
		{"id": "o-1", "listing_id": "l-1", "buyer_id": "u-other", "seller_id": buyer.ID, "amount": 500, "status": "PAID"},
	}))
	cookies := e.login(buyer)

	rec := e.get("/dashboard/orders", cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/dashboard/orders/o-1/ship")
	assert.Contains(t, rec.Body.String(), "Selling to")
}

func TestShipOrder(t *testing.T) {
	e := newEnv(t)
	e.backend.handle("POST /order/orders/o-1/ship/", replyWith(http.StatusOK, map[string]any{}))
	cookies := e.login(buyer)

	rec := e.postForm("/dashboard/orders/o-1/ship", url.Values{"tracking_number": {"1Z999"}, "carrier": {"UPS"}}, cookies)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard/orders", rec.Header().Get("Location"))
	sent, ok := e.backend.find(http.MethodPost, "/order/orders/o-1/ship/")
	require.True(t, ok)
	assert.Equal(t, "1Z999", sent.Body["tracking_number"])
}

func TestWallet_WithdrawValidation(t *testing.T) {
	e := newEnv(t)
	cookies := e.login(buyer)

	rec := e.postForm("/dashboard/wallet/withdraw", url.Values{"amount": {"-5"}, "address": {"DAddr"}}, cookies)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Enter a whole, positive DOGE amount")
	assert.False(t, e.backend.called(http.MethodPost, "/wallet/wallet/withdraw/"))
}

func TestWallet_ShowsBalance(t *testing.T) {
	e := newEnv(t)
	e.backend.handle("GET /wallet/wallet/balance/", replyWith(http.StatusOK, map[string]any{"available": 1234, "locked": 10, "pending": 0}))
	e.backend.handle("GET /wallet/wallet/deposit-address/", replyWith(http.StatusOK, map[string]any{"address": "DDepositAddr"}))
	cookies := e.login(buyer)

	rec := e.get("/dashboard/wallet", cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "1,234")
	assert.Contains(t, rec.Body.String(), "DDepositAddr")
}

func TestAdmin_StaffOnly(t *testing.T) {
	e := newEnv(t)
	e.backend.handle("GET /user/users/me/", func(w http.ResponseWriter, r *http.Request) {
		staff := r.Header.Get("X-User-ID") == "u-staff"
		reply(w, http.StatusOK, map[string]any{"id": r.Header.Get("X-User-ID"), "username": "x", "is_staff": staff})
	})
	e.backend.handle("GET /order/disputes/", replyWith(http.StatusOK, []map[string]any{
		{"id": "d-1", "order": "o-1", "reason": "Item not received", "status": "OPEN"},
	}))

	rec := e.get("/admin", e.login(buyer))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.False(t, e.backend.called(http.MethodGet, "/order/disputes/"))

	rec = e.get("/admin", e.login(domain.User{ID: "u-staff", Username: "mod"}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Item not received")
}

func TestUserProfilePage(t *testing.T) {
	e := newEnv(t)
	e.backend.handle("GET /user/users/u-seller/", replyWith(http.StatusOK, map[string]any{
		"id": "u-seller", "username": "dogeseller", "display_name": "Doge Seller", "seller_verified": true,
	}))

	rec := e.get("/users/u-seller", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "@dogeseller")
	assert.Contains(t, rec.Body.String(), "Verified seller")
}

func TestStaticAssets(t *testing.T) {
	e := newEnv(t)
	rec := e.get("/static/app.css", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

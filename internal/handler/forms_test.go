package handler

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func formRequest(values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestForms_DecodeValid(t *testing.T) {
	f := NewForms()
	var form RegisterForm
	errs := f.Decode(formRequest(url.Values{
		"username":         {"doge_fan"},
		"display_name":     {"Doge Fan"},
		"email":            {"fan@example.com"},
		"password":         {"wow1"},
		"confirm_password": {"wow1"},
		"unknown":          {"ignored"},
	}), &form)

	require.Nil(t, errs)
	assert.Equal(t, "doge_fan", form.Username)
	assert.Equal(t, "fan@example.com", form.Email)
}

func TestForms_FieldMessages(t *testing.T) {
	f := NewForms()
	var form RegisterForm
	errs := f.Decode(formRequest(url.Values{
		"username":         {"a b"},
		"email":            {"nope"},
		"password":         {"abc"},
		"confirm_password": {"abd"},
		"avatar_url":       {"not a url"},
	}), &form)

	require.NotNil(t, errs)
	assert.Equal(t, "Use letters, numbers and underscores only", errs["username"])
	assert.Equal(t, "Required", errs["display_name"])
	assert.Equal(t, "Enter a valid email address", errs["email"])
	assert.Equal(t, "Must be at least 4 characters", errs["password"])
	assert.Equal(t, "Passwords do not match", errs["confirm_password"])
	assert.Equal(t, "Enter a valid URL", errs["avatar_url"])
}

func TestForms_ConversionError(t *testing.T) {
	f := NewForms()
	var form ListingForm
	errs := f.Decode(formRequest(url.Values{
		"title":          {"Plush"},
		"category_id":    {"c-1"},
		"condition":      {"NEW"},
		"listing_type":   {"AUCTION"},
		"starting_price": {"ten"},
		"quantity":       {"1"},
	}), &form)

	require.NotNil(t, errs)
	assert.Equal(t, "Must be a whole number", errs["starting_price"])
}

func TestListingForm_CrossFieldRules(t *testing.T) {
	tests := []struct {
		name   string
		values url.Values
		want   map[string]string
	}{
		{
			name:   "auction needs starting price",
			values: url.Values{"listing_type": {"AUCTION"}},
			want:   map[string]string{"starting_price": "Auctions need a starting price"},
		},
		{
			name:   "buy now needs a price",
			values: url.Values{"listing_type": {"BUY_IT_NOW"}},
			want:   map[string]string{"buy_it_now_price": "Set a buy-it-now price"},
		},
		{
			name:   "both needs both prices",
			values: url.Values{"listing_type": {"BOTH"}},
			want: map[string]string{
				"starting_price":   "Auctions need a starting price",
				"buy_it_now_price": "Set a buy-it-now price",
			},
		},
		{
			name:   "reserve below start",
			values: url.Values{"listing_type": {"AUCTION"}, "starting_price": {"100"}, "reserve_price": {"50"}},
			want:   map[string]string{"reserve_price": "Reserve must not be below the starting price"},
		},
		{
			name:   "valid auction",
			values: url.Values{"listing_type": {"AUCTION"}, "starting_price": {"100"}, "reserve_price": {"150"}},
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := url.Values{
				"title":       {"Plush"},
				"category_id": {"c-1"},
				"condition":   {"GOOD"},
				"quantity":    {"1"},
			}
			for k, v := range tt.values {
				values[k] = v
			}
			var form ListingForm
			errs := NewForms().Decode(formRequest(values), &form)
			if tt.want == nil {
				assert.Nil(t, errs)
				return
			}
			for field, msg := range tt.want {
				assert.Equal(t, msg, errs[field], field)
			}
		})
	}
}

func TestSafeNext(t *testing.T) {
	assert.Equal(t, "/dashboard/orders", safeNext("/dashboard/orders"))
	assert.Equal(t, "/search?q=doge", safeNext("/search?q=doge"))
	assert.Equal(t, "/", safeNext(""))
	assert.Equal(t, "/", safeNext("https://evil.example/"))
	assert.Equal(t, "/", safeNext("//evil.example"))
	assert.Equal(t, "/", safeNext(`/\evil.example`))
}

func TestFlashRoundTrip(t *testing.T) {
	rec := httptest.NewRecorder()
	setFlash(rec, Flash{Kind: "success", Message: "Bid of Ð1,000 placed."})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	next := httptest.NewRecorder()
	got := popFlash(next, req)

	require.NotNil(t, got)
	assert.Equal(t, "Bid of Ð1,000 placed.", got.Message)
	assert.Equal(t, "success", got.Kind)

	cleared := next.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, -1, cleared[0].MaxAge)
}

func TestTemplateFuncs(t *testing.T) {
	assert.Equal(t, "Like new", humanize("LIKE_NEW"))
	assert.Equal(t, "S", initial("shibe"))
	assert.Equal(t, "?", initial(""))
	assert.Equal(t, "abcdefgh", shortID("abcdefgh-1234"))
}

func listingValues(extra url.Values) url.Values {
	v := url.Values{
		"title":        {"Doge Plush"},
		"category_id":  {"c-1"},
		"condition":    {"NEW"},
		"listing_type": {"AUCTION"},
		"quantity":     {"1"},
	}
	for k, vals := range extra {
		v[k] = vals
	}
	return v
}

func TestListingForm_USDPrices(t *testing.T) {
	f := NewForms()

	t.Run("converted at the current rate", func(t *testing.T) {
		form := ListingForm{usdRate: 0.1}
		errs := f.Decode(formRequest(listingValues(url.Values{"starting_price_usd": {"$25"}})), &form)
		require.Nil(t, errs)
		assert.Equal(t, int64(250), form.StartingPrice)
	})

	t.Run("DOGE field wins", func(t *testing.T) {
		form := ListingForm{usdRate: 0.1}
		errs := f.Decode(formRequest(listingValues(url.Values{
			"starting_price":     {"40"},
			"starting_price_usd": {"25"},
		})), &form)
		require.Nil(t, errs)
		assert.Equal(t, int64(40), form.StartingPrice)
	})

	t.Run("unparseable dollars", func(t *testing.T) {
		form := ListingForm{usdRate: 0.1}
		errs := f.Decode(formRequest(listingValues(url.Values{"starting_price_usd": {"lots"}})), &form)
		require.NotNil(t, errs)
		assert.Equal(t, "Enter a dollar amount", errs["starting_price_usd"])
		assert.Equal(t, "Auctions need a starting price", errs["starting_price"])
	})

	t.Run("no rate loaded", func(t *testing.T) {
		form := ListingForm{}
		errs := f.Decode(formRequest(listingValues(url.Values{"starting_price_usd": {"25"}})), &form)
		require.NotNil(t, errs)
		assert.Contains(t, errs, "starting_price_usd")
	})
}

func TestBidForm_DogeInput(t *testing.T) {
	assert.Equal(t, "1000", (&BidForm{AmountUSD: "100"}).dogeInput(0.1))
	assert.Equal(t, "500", (&BidForm{Amount: "500", AmountUSD: "100"}).dogeInput(0.1))
	assert.Equal(t, "abc", (&BidForm{AmountUSD: "abc"}).dogeInput(0.1))
	assert.Equal(t, "", (&BidForm{}).dogeInput(0.1))
}

package handler

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Bernard-Murphy/dbay-public/internal/domain"
	"github.com/Bernard-Murphy/dbay-public/internal/pricing"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
)

// FieldErrors maps a form field name to the message shown next to it. The
// "_form" key holds errors not tied to one field.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e[k]
	}
	return strings.Join(parts, "; ")
}

// crossChecker is implemented by forms with rules spanning several fields.
type crossChecker interface {
	check(errs FieldErrors)
}

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Forms decodes posted forms into structs and validates them.
type Forms struct {
	decoder  *schema.Decoder
	validate *validator.Validate
}

func NewForms() *Forms {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("schema"), ",", 2)[0]
		switch name {
		case "-":
			return ""
		case "":
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return &Forms{decoder: d, validate: v}
}

// Decode fills dst from the posted form and validates it. It returns nil
// when the form is valid.
func (f *Forms) Decode(r *http.Request, dst any) FieldErrors {
	errs := FieldErrors{}
	if err := r.ParseForm(); err != nil {
		errs["_form"] = "Malformed form submission"
		return errs
	}

	if err := f.decoder.Decode(dst, r.PostForm); err != nil {
		var multi schema.MultiError
		if errors.As(err, &multi) {
			for field, ferr := range multi {
				errs[field] = conversionMessage(ferr)
			}
		} else {
			errs["_form"] = "Malformed form submission"
		}
	}

	if err := f.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				if _, seen := errs[fe.Field()]; !seen {
					errs[fe.Field()] = fieldMessage(fe)
				}
			}
		}
	}

	if c, ok := dst.(crossChecker); ok {
		c.check(errs)
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func conversionMessage(err error) string {
	var conv schema.ConversionError
	if errors.As(err, &conv) && conv.Type != nil {
		switch conv.Type.Kind() {
		case reflect.Int, reflect.Int64:
			return "Must be a whole number"
		}
	}
	return "Invalid value"
}

func fieldMessage(fe validator.FieldError) string {
	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "required":
		return "Required"
	case "min":
		if isString {
			return fmt.Sprintf("Must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("Must be at least %s", fe.Param())
	case "max":
		if isString {
			return fmt.Sprintf("Must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("Must be at most %s", fe.Param())
	case "len":
		return fmt.Sprintf("Must be exactly %s characters", fe.Param())
	case "email":
		return "Enter a valid email address"
	case "url":
		return "Enter a valid URL"
	case "eqfield":
		return "Passwords do not match"
	case "oneof":
		return "Choose one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "username":
		return "Use letters, numbers and underscores only"
	case "alpha":
		return "Use letters only"
	}
	return "Invalid value"
}

type LoginForm struct {
	Username string `schema:"username" validate:"required"`
	Password string `schema:"password" validate:"required"`
	Next     string `schema:"next"`
}

type RegisterForm struct {
	Username        string `schema:"username" validate:"required,min=3,max=20,username"`
	DisplayName     string `schema:"display_name" validate:"required,max=100"`
	Email           string `schema:"email" validate:"required,email"`
	Password        string `schema:"password" validate:"required,min=4"`
	ConfirmPassword string `schema:"confirm_password" validate:"required,eqfield=Password"`
	Bio             string `schema:"bio" validate:"max=500"`
	AvatarURL       string `schema:"avatar_url" validate:"omitempty,url"`
}

type PasswordResetForm struct {
	Username string `schema:"username" validate:"required"`
	Email    string `schema:"email" validate:"required,email"`
}

// BidForm takes the bid in DOGE, or in USD when the DOGE field is empty.
type BidForm struct {
	Amount    string `schema:"amount"`
	AmountUSD string `schema:"amount_usd"`
}

// dogeInput returns the DOGE amount to validate, converting from USD at rate
// when only the USD field was filled in.
func (f *BidForm) dogeInput(rate float64) string {
	if strings.TrimSpace(f.Amount) != "" || strings.TrimSpace(f.AmountUSD) == "" {
		return f.Amount
	}
	doge, err := pricing.DogeFromUSD(f.AmountUSD, rate)
	if err != nil {
		return f.AmountUSD
	}
	return strconv.FormatInt(doge, 10)
}

type QuestionForm struct {
	Body string `schema:"body" validate:"required,max=1000"`
}

type ListingForm struct {
	Title               string `schema:"title" validate:"required,max=200"`
	Description         string `schema:"description" validate:"max=10000"`
	CategoryID          string `schema:"category_id" validate:"required"`
	Condition           string `schema:"condition" validate:"required,oneof=NEW LIKE_NEW GOOD FAIR POOR"`
	ListingType         string `schema:"listing_type" validate:"required,oneof=AUCTION BUY_IT_NOW BOTH"`
	StartingPrice       int64  `schema:"starting_price" validate:"min=0"`
	BuyItNowPrice       int64  `schema:"buy_it_now_price" validate:"min=0"`
	ReservePrice        int64  `schema:"reserve_price" validate:"min=0"`
	Quantity            int    `schema:"quantity" validate:"min=1"`
	ShippingCost        int64  `schema:"shipping_cost" validate:"min=0"`
	ShippingFromCountry string `schema:"shipping_from_country" validate:"omitempty,len=2,alpha"`

	// Optional USD inputs, used for a price whose DOGE field is empty.
	StartingPriceUSD string `schema:"starting_price_usd"`
	BuyItNowPriceUSD string `schema:"buy_it_now_price_usd"`
	ReservePriceUSD  string `schema:"reserve_price_usd"`

	usdRate float64 `schema:"-"`
}

// convertUSD fills empty DOGE prices from their USD inputs.
func (f *ListingForm) convertUSD(errs FieldErrors) {
	prices := []struct {
		field string
		doge  *int64
		usd   string
	}{
		{"starting_price", &f.StartingPrice, f.StartingPriceUSD},
		{"buy_it_now_price", &f.BuyItNowPrice, f.BuyItNowPriceUSD},
		{"reserve_price", &f.ReservePrice, f.ReservePriceUSD},
	}
	for _, p := range prices {
		if *p.doge != 0 || strings.TrimSpace(p.usd) == "" {
			continue
		}
		if _, seen := errs[p.field]; seen {
			continue
		}
		v, err := pricing.DogeFromUSD(p.usd, f.usdRate)
		if err != nil {
			errs[p.field+"_usd"] = "Enter a dollar amount"
			continue
		}
		*p.doge = v
	}
}

func (f *ListingForm) check(errs FieldErrors) {
	f.convertUSD(errs)
	lt := domain.ListingType(f.ListingType)
	if lt.AcceptsBids() && f.StartingPrice <= 0 {
		if _, seen := errs["starting_price"]; !seen {
			errs["starting_price"] = "Auctions need a starting price"
		}
	}
	if lt.AcceptsBuyNow() && f.BuyItNowPrice <= 0 {
		if _, seen := errs["buy_it_now_price"]; !seen {
			errs["buy_it_now_price"] = "Set a buy-it-now price"
		}
	}
	if f.ReservePrice > 0 && f.ReservePrice < f.StartingPrice {
		if _, seen := errs["reserve_price"]; !seen {
			errs["reserve_price"] = "Reserve must not be below the starting price"
		}
	}
}

type ShipForm struct {
	TrackingNumber string `schema:"tracking_number" validate:"required,max=100"`
	Carrier        string `schema:"carrier" validate:"required,max=50"`
}

type WithdrawForm struct {
	Amount  string `schema:"amount" validate:"required"`
	Address string `schema:"address" validate:"required,max=128"`
}

type DepositForm struct {
	Amount string `schema:"amount" validate:"required"`
}

type ProfileForm struct {
	DisplayName string `schema:"display_name" validate:"required,max=100"`
	Bio         string `schema:"bio" validate:"max=500"`
	AvatarURL   string `schema:"avatar_url" validate:"omitempty,url"`
}

// SaveSearchForm carries the filter being saved in hidden fields.
type SaveSearchForm struct {
	Name        string `schema:"name" validate:"max=100"`
	Query       string `schema:"q"`
	Category    string `schema:"category"`
	ListingType string `schema:"listing_type"`
	DateFrom    string `schema:"date_from"`
	DateTo      string `schema:"date_to"`
}

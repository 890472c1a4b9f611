// Package handler renders the storefront pages and handles form posts.
// Handlers read and write backend state through request-scoped stores and
// follow post/redirect/get, carrying one-shot messages in a flash cookie.
package handler

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/Bernard-Murphy/dbay-public/internal/apiclient"
	"github.com/Bernard-Murphy/dbay-public/internal/domain"
	"github.com/Bernard-Murphy/dbay-public/internal/events"
	"github.com/Bernard-Murphy/dbay-public/internal/identity"
	"github.com/Bernard-Murphy/dbay-public/internal/middleware"
	"github.com/Bernard-Murphy/dbay-public/internal/platform/logger"
	"github.com/Bernard-Murphy/dbay-public/internal/platform/metrics"
	"github.com/Bernard-Murphy/dbay-public/internal/rate"
	"go.uber.org/zap"
)

const (
	flashCookieName       = "dbay_flash"
	sessionExpiredMessage = "Your session has expired. Please log in again."
)

// Deps are the shared collaborators of all handlers.
type Deps struct {
	API      *apiclient.Client
	Identity identity.Provider
	Views    *Renderer
	Forms    *Forms
	Rates    *rate.Cache
	Events   *events.Emitter
	Logger   *logger.Logger
	Metrics  *metrics.MetricsManager
}

// Base carries Deps and the helpers every page handler uses.
type Base struct {
	api     *apiclient.Client
	views   *Renderer
	forms   *Forms
	rates   *rate.Cache
	events  *events.Emitter
	logger  *logger.Logger
	metrics *metrics.MetricsManager
}

func newBase(d Deps, name string) Base {
	forms := d.Forms
	if forms == nil {
		forms = NewForms()
	}
	ev := d.Events
	if ev == nil {
		ev = events.NewEmitter(nil, d.Logger)
	}
	return Base{
		api:     d.API,
		views:   d.Views,
		forms:   forms,
		rates:   d.Rates,
		events:  ev,
		logger:  d.Logger.Named(name),
		metrics: d.Metrics,
	}
}

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Kind    string `json:"k"`
	Message string `json:"m"`
}

// Page is the data every template receives.
type Page struct {
	Title     string
	Session   *domain.Session
	Flash     *Flash
	Rate      float64
	RateStale bool
	Path      string
	Query     string
	Data      any
}

// client returns the API client acting for the current visitor.
func (b *Base) client(r *http.Request) *apiclient.Client {
	return b.api.WithSession(middleware.CurrentSession(r.Context()))
}

func (b *Base) page(w http.ResponseWriter, r *http.Request, title string, data any) *Page {
	p := &Page{
		Title:   title,
		Session: middleware.CurrentSession(r.Context()),
		Flash:   popFlash(w, r),
		Path:    r.URL.Path,
		Query:   r.URL.Query().Get("q"),
		Data:    data,
	}
	if b.rates != nil {
		p.Rate = b.rates.Rate()
		p.RateStale = b.rates.State().Stale
	}
	return p
}

// rate is the DOGE/USD rate used for display and USD input.
func (b *Base) rate() float64 {
	if b.rates == nil {
		return 0
	}
	return b.rates.Rate()
}

func (b *Base) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	if err := b.views.Render(w, status, name, b.page(w, r, title, data)); err != nil {
		b.logger.Error("Failed to render page", zap.String("page", name), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func (b *Base) notFound(w http.ResponseWriter, r *http.Request, what string) {
	b.render(w, r, http.StatusNotFound, "error", "Not found", errorView{
		Heading: what + " not found.",
	})
}

// backendError renders an error page for a failed backend call. 404s become
// not-found pages; everything else is a bad gateway.
func (b *Base) backendError(w http.ResponseWriter, r *http.Request, what string, err error) {
	if b.sessionExpired(w, r, err) {
		return
	}
	if errors.Is(err, apiclient.ErrNotFound) {
		b.notFound(w, r, what)
		return
	}
	b.logger.Warn("Backend call failed", zap.String("path", r.URL.Path), zap.Error(err))
	b.render(w, r, apiclient.HTTPStatus(err), "error", "Something went wrong", errorView{
		Heading: "Could not load " + strings.ToLower(what) + ".",
		Detail:  apiclient.Message(err),
	})
}

// sessionExpired handles a backend that no longer accepts the visitor's
// token: the session is dropped and the visitor is sent home. It reports
// whether it wrote a response.
func (b *Base) sessionExpired(w http.ResponseWriter, r *http.Request, err error) bool {
	if err == nil || !errors.Is(err, apiclient.ErrTokenRejected) {
		return false
	}
	if !middleware.CurrentSession(r.Context()).Authenticated() {
		return false
	}
	if auth := middleware.AuthStore(r.Context()); auth != nil {
		if lerr := auth.Logout(r.Context()); lerr != nil {
			b.logger.Warn("Failed to drop rejected session", zap.Error(lerr))
		}
	}
	b.logger.Info("Backend rejected session token, logged out", zap.String("path", r.URL.Path))
	b.redirect(w, r, "/", notice(sessionExpiredMessage))
	return true
}

// redirect sends the visitor to target with an optional flash message.
func (b *Base) redirect(w http.ResponseWriter, r *http.Request, target string, flash *Flash) {
	if flash != nil {
		setFlash(w, *flash)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

type errorView struct {
	Heading string
	Detail  string
}

func success(msg string) *Flash { return &Flash{Kind: "success", Message: msg} }
func failure(msg string) *Flash { return &Flash{Kind: "error", Message: msg} }
func notice(msg string) *Flash  { return &Flash{Kind: "info", Message: msg} }

func setFlash(w http.ResponseWriter, f Flash) {
	raw, err := json.Marshal(f)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func popFlash(w http.ResponseWriter, r *http.Request) *Flash {
	c, err := r.Cookie(flashCookieName)
	if err != nil {
		return nil
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookieName, Path: "/", MaxAge: -1})
	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return nil
	}
	var f Flash
	if err := json.Unmarshal(raw, &f); err != nil || f.Message == "" {
		return nil
	}
	return &f
}

// safeNext only allows local absolute paths as post-login targets.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	if u, err := url.Parse(next); err != nil || u.Host != "" {
		return "/"
	}
	return next
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

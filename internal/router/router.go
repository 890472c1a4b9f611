package router

import (
	"net/http"

	"github.com/Bernard-Murphy/dbay-public/internal/handler"
	"github.com/Bernard-Murphy/dbay-public/internal/middleware"
	"github.com/Bernard-Murphy/dbay-public/internal/platform/logger"
	"github.com/Bernard-Murphy/dbay-public/internal/platform/metrics"
	"github.com/Bernard-Murphy/dbay-public/internal/session"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Handlers groups the page handlers mounted by New.
type Handlers struct {
	Listing   *handler.ListingHandler
	Search    *handler.SearchHandler
	User      *handler.UserHandler
	Dashboard *handler.DashboardHandler
	Admin     *handler.AdminHandler
	System    *handler.SystemHandler
}

// Options configure the middleware stack.
type Options struct {
	Sessions *session.Manager
	Profile  middleware.ProfileFunc
	Logger   *logger.Logger
	Metrics  *metrics.MetricsManager
	Static   http.Handler
}

func New(h Handlers, opts Options) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(opts.Logger, opts.Metrics))
	// Inside Logger so a recovered panic is logged and counted as a 500.
	r.Use(chimw.Recoverer)

	r.Get("/healthz", h.System.HandleHealth)
	if opts.Static != nil {
		r.Handle("/static/*", http.StripPrefix("/static/", opts.Static))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Session(opts.Sessions))

		r.Get("/api/rate", h.System.HandleRate)
		SetupUserRoutes(r, h.User)
		SetupListingRoutes(r, h.Listing)
		SetupSearchRoutes(r, h.Search)
		SetupDashboardRoutes(r, h.Dashboard)
		SetupAdminRoutes(r, h.Admin, opts.Profile, opts.Logger)
	})
	return r
}

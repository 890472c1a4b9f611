package router

import (
	"github.com/Bernard-Murphy/dbay-public/internal/handler"
	"github.com/Bernard-Murphy/dbay-public/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// SetupListingRoutes mounts browsing, the listing page and its actions.
func SetupListingRoutes(mux chi.Router, h *handler.ListingHandler) {
	mux.Get("/", h.HandleHome)
	mux.Get("/users/{id}", h.HandleUserProfile)

	mux.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)

		r.Get("/listings/new", h.HandleNewListing)
		r.Post("/listings/new", h.HandleCreateListing)
		r.Post("/listings/{id}/bid", h.HandlePlaceBid)
		r.Post("/listings/{id}/buy", h.HandleBuyNow)
		r.Post("/listings/{id}/watch", h.HandleWatch)
		r.Post("/listings/{id}/unwatch", h.HandleUnwatch)
		r.Post("/listings/{id}/questions", h.HandleAskQuestion)
		r.Post("/listings/{id}/questions/{qid}/answers", h.HandleAnswerQuestion)
	})

	mux.Get("/listings/{id}", h.HandleGetListing)
}

package router

import (
	"github.com/Bernard-Murphy/dbay-public/internal/handler"
	"github.com/Bernard-Murphy/dbay-public/internal/middleware"
	"github.com/go-chi/chi/v5"
)

func SetupSearchRoutes(mux chi.Router, h *handler.SearchHandler) {
	mux.Get("/search", h.HandleSearch)

	mux.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)

		r.Get("/saved-searches", h.HandleListSavedSearches)
		r.Post("/saved-searches", h.HandleSaveSearch)
		r.Post("/saved-searches/{id}/delete", h.HandleDeleteSavedSearch)
	})
}

package router

import (
	"github.com/Bernard-Murphy/dbay-public/internal/handler"
	"github.com/Bernard-Murphy/dbay-public/internal/middleware"
	"github.com/Bernard-Murphy/dbay-public/internal/platform/logger"
	"github.com/go-chi/chi/v5"
)

// SetupAdminRoutes mounts the staff area behind RequireStaff.
func SetupAdminRoutes(mux chi.Router, h *handler.AdminHandler, profile middleware.ProfileFunc, log *logger.Logger) {
	mux.Group(func(r chi.Router) {
		r.Use(middleware.RequireStaff(profile, log))

		r.Get("/admin", h.HandleDashboard)
	})
}

package router

import (
	"github.com/Bernard-Murphy/dbay-public/internal/handler"
	"github.com/Bernard-Murphy/dbay-public/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// SetupDashboardRoutes mounts the account tabs. Every route needs a session.
func SetupDashboardRoutes(mux chi.Router, h *handler.DashboardHandler) {
	mux.Route("/dashboard", func(r chi.Router) {
		r.Use(middleware.RequireAuth)

		r.Get("/", h.HandleDashboard)
		r.Get("/orders", h.HandleOrders)
		r.Post("/orders/{id}/ship", h.HandleShipOrder)
		r.Post("/orders/{id}/complete", h.HandleCompleteOrder)
		r.Get("/wallet", h.HandleWallet)
		r.Post("/wallet/withdraw", h.HandleWithdraw)
		r.Post("/wallet/simulate-deposit", h.HandleSimulateDeposit)
		r.Get("/profile", h.HandleProfile)
		r.Post("/profile", h.HandleUpdateProfile)
	})
}

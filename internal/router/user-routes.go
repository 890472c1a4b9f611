package router

import (
	"github.com/Bernard-Murphy/dbay-public/internal/handler"
	"github.com/go-chi/chi/v5"
)

// SetupUserRoutes mounts the public auth forms.
func SetupUserRoutes(mux chi.Router, h *handler.UserHandler) {
	mux.Get("/login", h.HandleLoginPage)
	mux.Post("/login", h.HandleLogin)
	mux.Get("/register", h.HandleRegisterPage)
	mux.Post("/register", h.HandleRegister)
	mux.Get("/password-reset", h.HandlePasswordResetPage)
	mux.Post("/password-reset", h.HandlePasswordReset)
	mux.Post("/logout", h.HandleLogout)
}

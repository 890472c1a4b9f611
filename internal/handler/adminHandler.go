package handler

import (
	"net/http"

	"github.com/Bernard-Murphy/dbay-public/internal/domain"
	"github.com/Bernard-Murphy/dbay-public/internal/store"
)

type AdminHandler struct {
	Base
}

func NewAdminHandler(d Deps) *AdminHandler {
	return &AdminHandler{Base: newBase(d, "handler.admin")}
}

type adminView struct {
	Disputes []domain.Dispute
	Open     int
	Err      string
}

// HandleDashboard lists disputes for staff.
func (h *AdminHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	orders := store.NewOrderStore(h.client(r))
	if err := orders.FetchDisputes(r.Context()); h.sessionExpired(w, r, err) {
		return
	}

	view := adminView{Disputes: orders.Disputes, Err: orders.Err}
	for i := range orders.Disputes {
		if orders.Disputes[i].Open() {
			view.Open++
		}
	}
	h.render(w, r, http.StatusOK, "admin", "Admin", view)
}

package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Bernard-Murphy/dbay-public/internal/apiclient"
	"github.com/Bernard-Murphy/dbay-public/internal/domain"
	"github.com/Bernard-Murphy/dbay-public/internal/events"
	"github.com/Bernard-Murphy/dbay-public/internal/middleware"
	"github.com/Bernard-Murphy/dbay-public/internal/store"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// DashboardHandler serves the account area: orders, wallet and profile tabs.
type DashboardHandler struct {
	Base
}

func NewDashboardHandler(d Deps) *DashboardHandler {
	return &DashboardHandler{Base: newBase(d, "handler.dashboard")}
}

// HandleDashboard sends /dashboard to the default tab.
func (h *DashboardHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/dashboard/orders", http.StatusFound)
}

type orderRow struct {
	Order        domain.Order
	IsBuyer      bool
	Counterparty domain.ID
	CanShip      bool
	CanComplete  bool
}

type ordersView struct {
	Tab    string
	Orders []orderRow
	Err    string
}

func (h *DashboardHandler) HandleOrders(w http.ResponseWriter, r *http.Request) {
	viewer := middleware.UserIDFrom(r.Context())
	orders := store.NewOrderStore(h.client(r))
	if err := orders.FetchOrders(r.Context()); err != nil {
		if h.sessionExpired(w, r, err) {
			return
		}
		h.logger.Warn("Failed to load orders", zap.Error(err))
	}

	view := ordersView{Tab: "orders", Err: orders.Err}
	for i := range orders.Orders {
		o := &orders.Orders[i]
		row := orderRow{
			Order:       *o,
			IsBuyer:     o.BuyerID == viewer,
			CanShip:     o.CanShip(viewer),
			CanComplete: o.CanComplete(viewer),
		}
		if row.IsBuyer {
			row.Counterparty = o.SellerID
		} else {
			row.Counterparty = o.BuyerID
		}
		view.Orders = append(view.Orders, row)
	}
	h.render(w, r, http.StatusOK, "orders", "My orders", view)
}

func (h *DashboardHandler) HandleShipOrder(w http.ResponseWriter, r *http.Request) {
	id := domain.ID(chi.URLParam(r, "id"))
	var form ShipForm
	if errs := h.forms.Decode(r, &form); errs != nil {
		h.redirect(w, r, "/dashboard/orders", failure("Enter a tracking number and carrier."))
		return
	}
	orders := store.NewOrderStore(h.client(r))
	if err := orders.Ship(r.Context(), id, strings.TrimSpace(form.TrackingNumber), strings.TrimSpace(form.Carrier)); err != nil {
		if h.sessionExpired(w, r, err) {
			return
		}
		h.redirect(w, r, "/dashboard/orders", failure("Could not mark order shipped: "+orders.Err))
		return
	}
	h.events.OrderChanged(r.Context(), events.SubjectOrderShipped, id, "", middleware.UserIDFrom(r.Context()))
	h.redirect(w, r, "/dashboard/orders", success("Order #"+shortID(id)+" marked shipped."))
}

func (h *DashboardHandler) HandleCompleteOrder(w http.ResponseWriter, r *http.Request) {
	id := domain.ID(chi.URLParam(r, "id"))
	orders := store.NewOrderStore(h.client(r))
	if err := orders.Complete(r.Context(), id); err != nil {
		if h.sessionExpired(w, r, err) {
			return
		}
		h.redirect(w, r, "/dashboard/orders", failure("Could not complete order: "+orders.Err))
		return
	}
	h.events.OrderChanged(r.Context(), events.SubjectOrderCompleted, id, "", middleware.UserIDFrom(r.Context()))
	h.redirect(w, r, "/dashboard/orders", success("Order #"+shortID(id)+" completed. Thanks for confirming receipt."))
}

type walletView struct {
	Tab            string
	Balance        domain.Balance
	DepositAddress string
	History        []domain.LedgerEntry
	Err            string
	Withdraw       WithdrawForm
	WithdrawError  string
	Deposit        DepositForm
	DepositError   string
}

// walletView loads the wallet tab. The returned error is the refresh
// failure, already reflected in the view's Err.
func (h *DashboardHandler) walletView(r *http.Request) (*walletView, error) {
	ws := store.NewWalletStore(h.client(r))
	err := ws.Refresh(r.Context())
	if err != nil {
		h.logger.Warn("Failed to load wallet", zap.Error(err))
	}
	return &walletView{
		Tab:            "wallet",
		Balance:        ws.Balance,
		DepositAddress: ws.DepositAddress,
		History:        ws.History,
		Err:            ws.Err,
	}, err
}

func (h *DashboardHandler) HandleWallet(w http.ResponseWriter, r *http.Request) {
	view, err := h.walletView(r)
	if h.sessionExpired(w, r, err) {
		return
	}
	h.render(w, r, http.StatusOK, "wallet", "Wallet", view)
}

// HandleWithdraw requests a withdrawal. Failures re-render the wallet with
// the entered values kept.
func (h *DashboardHandler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	var form WithdrawForm
	errs := h.forms.Decode(r, &form)

	ws := store.NewWalletStore(h.client(r))
	var err error
	if errs != nil {
		err = errs
		ws.Err = "Enter an amount and a destination address."
	} else {
		err = ws.Withdraw(r.Context(), form.Amount, form.Address)
	}
	if err != nil {
		if h.sessionExpired(w, r, err) {
			return
		}
		view, _ := h.walletView(r)
		view.Withdraw, view.WithdrawError = form, ws.Err
		status := http.StatusUnprocessableEntity
		var apiErr *apiclient.Error
		if errors.As(err, &apiErr) {
			status = apiclient.HTTPStatus(err)
		}
		h.render(w, r, status, "wallet", "Wallet", view)
		return
	}
	h.redirect(w, r, "/dashboard/wallet", success("Withdrawal of Ð"+strings.TrimSpace(form.Amount)+" requested."))
}

// HandleSimulateDeposit credits test funds on development backends.
func (h *DashboardHandler) HandleSimulateDeposit(w http.ResponseWriter, r *http.Request) {
	var form DepositForm
	_ = h.forms.Decode(r, &form)

	ws := store.NewWalletStore(h.client(r))
	if err := ws.SimulateDeposit(r.Context(), form.Amount); err != nil {
		if h.sessionExpired(w, r, err) {
			return
		}
		view, _ := h.walletView(r)
		view.Deposit, view.DepositError = form, ws.Err
		status := http.StatusUnprocessableEntity
		var apiErr *apiclient.Error
		if errors.As(err, &apiErr) {
			status = apiclient.HTTPStatus(err)
		}
		h.render(w, r, status, "wallet", "Wallet", view)
		return
	}
	h.redirect(w, r, "/dashboard/wallet", success("Deposit of Ð"+strings.TrimSpace(form.Amount)+" credited."))
}

type profileView struct {
	Tab    string
	User   domain.User
	Form   ProfileForm
	Errors FieldErrors
	Err    string
}

// HandleProfile shows the profile form. The session's cached fields are used
// when the user service is unavailable.
func (h *DashboardHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	sess := middleware.CurrentSession(r.Context())
	view := profileView{Tab: "profile"}

	user, err := h.client(r).Me(r.Context())
	if h.sessionExpired(w, r, err) {
		return
	}
	if err != nil {
		h.logger.Warn("Failed to load profile", zap.Error(err))
		view.Err = "Could not load your full profile: " + apiclient.Message(err)
		user = &domain.User{ID: sess.UserID, Username: sess.Username, DisplayName: sess.DisplayName, AvatarURL: sess.AvatarURL}
	} else if auth := middleware.AuthStore(r.Context()); auth != nil {
		if err := auth.SetUser(r.Context(), *user); err != nil {
			h.logger.Warn("Failed to refresh session profile", zap.Error(err))
		}
	}
	view.User = *user
	view.Form = ProfileForm{DisplayName: user.DisplayName, Bio: user.Bio, AvatarURL: user.AvatarURL}
	h.render(w, r, http.StatusOK, "profile", "Profile", view)
}

func (h *DashboardHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	sess := middleware.CurrentSession(r.Context())
	var form ProfileForm
	if errs := h.forms.Decode(r, &form); errs != nil {
		view := profileView{Tab: "profile", Form: form, Errors: errs, User: domain.User{ID: sess.UserID, Username: sess.Username}}
		h.render(w, r, http.StatusUnprocessableEntity, "profile", "Profile", view)
		return
	}

	displayName := strings.TrimSpace(form.DisplayName)
	avatar := strings.TrimSpace(form.AvatarURL)
	user, err := h.client(r).UpdateProfile(r.Context(), apiclient.UpdateProfileRequest{
		DisplayName: &displayName,
		Bio:         &form.Bio,
		AvatarURL:   &avatar,
	})
	if h.sessionExpired(w, r, err) {
		return
	}
	if err != nil {
		view := profileView{Tab: "profile", Form: form, Err: "Could not save profile: " + apiclient.Message(err), User: domain.User{ID: sess.UserID, Username: sess.Username}}
		h.render(w, r, apiclient.HTTPStatus(err), "profile", "Profile", view)
		return
	}
	if auth := middleware.AuthStore(r.Context()); auth != nil {
		if user.ID == "" {
			user.ID = sess.UserID
		}
		if err := auth.SetUser(r.Context(), *user); err != nil {
			h.logger.Warn("Failed to refresh session profile", zap.Error(err))
		}
	}
	h.redirect(w, r, "/dashboard/profile", success("Profile updated."))
}

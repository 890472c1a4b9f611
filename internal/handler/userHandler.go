package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Bernard-Murphy/dbay-public/internal/apiclient"
	"github.com/Bernard-Murphy/dbay-public/internal/identity"
	"github.com/Bernard-Murphy/dbay-public/internal/middleware"
	"github.com/Bernard-Murphy/dbay-public/internal/session"
	"go.uber.org/zap"
)

const passwordResetMessage = "If an account exists, a reset link will be sent to that email."

// UserHandler serves login, registration, password reset and logout.
type UserHandler struct {
	Base
	identity identity.Provider
}

func NewUserHandler(d Deps) *UserHandler {
	return &UserHandler{Base: newBase(d, "handler.user"), identity: d.Identity}
}

type authView struct {
	Login    LoginForm
	Register RegisterForm
	Reset    PasswordResetForm
	Errors   FieldErrors
	Err      string
	Notice   string
}

func (h *UserHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	if middleware.CurrentSession(r.Context()).Authenticated() {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, "login", "Log in", authView{Login: LoginForm{Next: r.URL.Query().Get("next")}})
}

func (h *UserHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var form LoginForm
	if errs := h.forms.Decode(r, &form); errs != nil {
		form.Password = ""
		h.render(w, r, http.StatusUnprocessableEntity, "login", "Log in", authView{Login: form, Errors: errs})
		return
	}

	username := strings.TrimSpace(form.Username)
	res, err := h.identity.SignIn(r.Context(), username, form.Password)
	form.Password = ""
	if err != nil {
		status := http.StatusUnauthorized
		msg := "Invalid username or password."
		if !errors.Is(err, identity.ErrInvalidCredentials) {
			h.logger.Warn("Sign-in failed", zap.String("provider", h.identity.Name()), zap.Error(err))
			status = apiclient.HTTPStatus(err)
			msg = "Login failed: " + apiclient.Message(err)
		}
		h.render(w, r, status, "login", "Log in", authView{Login: form, Err: msg})
		return
	}

	if err := h.startSession(r, res); err != nil {
		h.logger.Error("Failed to start session", zap.Error(err))
		h.render(w, r, http.StatusInternalServerError, "login", "Log in", authView{Login: form, Err: "Login failed. Please try again."})
		return
	}
	h.redirect(w, r, safeNext(form.Next), welcome(res, "Welcome back, "))
}

func (h *UserHandler) HandleRegisterPage(w http.ResponseWriter, r *http.Request) {
	if middleware.CurrentSession(r.Context()).Authenticated() {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, "register", "Create an account", authView{})
}

// HandleRegister creates the account through the user service and signs the
// new user in. When registration returns no token a regular sign-in follows.
func (h *UserHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var form RegisterForm
	errs := h.forms.Decode(r, &form)
	password := form.Password
	form.Password, form.ConfirmPassword = "", ""
	if errs != nil {
		h.render(w, r, http.StatusUnprocessableEntity, "register", "Create an account", authView{Register: form, Errors: errs})
		return
	}

	res, err := h.identity.Register(r.Context(), apiclient.RegisterRequest{
		Username:    strings.TrimSpace(form.Username),
		DisplayName: strings.TrimSpace(form.DisplayName),
		Email:       strings.TrimSpace(form.Email),
		Password:    password,
		Bio:         form.Bio,
		AvatarURL:   strings.TrimSpace(form.AvatarURL),
	})
	if err == nil && res.Token == "" {
		res, err = h.identity.SignIn(r.Context(), strings.TrimSpace(form.Username), password)
	}
	if err != nil {
		h.logger.Info("Registration failed", zap.String("username", form.Username), zap.Error(err))
		h.render(w, r, apiclient.HTTPStatus(err), "register", "Create an account", authView{
			Register: form,
			Err:      "Registration failed: " + apiclient.Message(err),
		})
		return
	}

	if err := h.startSession(r, res); err != nil {
		h.logger.Error("Failed to start session", zap.Error(err))
		h.render(w, r, http.StatusInternalServerError, "register", "Create an account", authView{Register: form, Err: "Account created, but signing in failed. Please log in."})
		return
	}
	h.redirect(w, r, "/", welcome(res, "Welcome to dBay, "))
}

func (h *UserHandler) startSession(r *http.Request, res *identity.Result) error {
	store := middleware.AuthStore(r.Context())
	if store == nil {
		return errors.New("no session store in request")
	}
	return store.Login(r.Context(), res.User, session.Credentials{
		Token:       res.Token,
		AccessToken: res.AccessToken,
		Demo:        res.Demo,
	})
}

func welcome(res *identity.Result, prefix string) *Flash {
	if res.Demo {
		return notice("The marketplace is unreachable; you are signed in with a local demo session.")
	}
	name := res.User.DisplayName
	if name == "" {
		name = res.User.Username
	}
	return success(prefix + name + "!")
}

func (h *UserHandler) HandlePasswordResetPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "password_reset", "Reset password", authView{})
}

// HandlePasswordReset always reports the same outcome so the form cannot be
// used to discover which accounts exist.
func (h *UserHandler) HandlePasswordReset(w http.ResponseWriter, r *http.Request) {
	var form PasswordResetForm
	if errs := h.forms.Decode(r, &form); errs != nil {
		h.render(w, r, http.StatusUnprocessableEntity, "password_reset", "Reset password", authView{Reset: form, Errors: errs})
		return
	}
	err := h.client(r).RequestPasswordReset(r.Context(), apiclient.PasswordResetRequest{
		Username: strings.TrimSpace(form.Username),
		Email:    strings.TrimSpace(form.Email),
	})
	if err != nil {
		h.logger.Warn("Password reset request failed", zap.Error(err))
	}
	h.render(w, r, http.StatusOK, "password_reset", "Reset password", authView{Notice: passwordResetMessage})
}

// HandleLogout ends the session locally even if the identity provider could
// not be reached.
func (h *UserHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	store := middleware.AuthStore(r.Context())
	if store == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if sess := store.Current(); sess != nil && !sess.Demo {
		if err := h.identity.SignOut(r.Context(), sess); err != nil {
			h.logger.Warn("Provider sign-out failed", zap.String("provider", h.identity.Name()), zap.Error(err))
		}
	}
	if err := store.Logout(r.Context()); err != nil {
		h.logger.Warn("Failed to delete session", zap.Error(err))
	}
	h.redirect(w, r, "/", notice("You have been logged out."))
}

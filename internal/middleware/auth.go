package middleware

import (
	"context"
	"net/http"

	"github.com/Bernard-Murphy/dbay-public/internal/domain"
	"github.com/Bernard-Murphy/dbay-public/internal/platform/logger"
	"github.com/Bernard-Murphy/dbay-public/internal/session"
	"go.uber.org/zap"
)

// Session restores the visitor's session and stores its AuthStore in the
// request context.
func Session(m *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			store := m.Load(w, r)
			ctx := context.WithValue(r.Context(), AuthStoreCtxKey, store)
			if sess := store.Current(); sess.Authenticated() {
				ctx = context.WithValue(ctx, UserIDCtxKey, sess.UserID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth sends visitors without a session to the home page. The check
// is advisory; the backend enforces authorization itself.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !CurrentSession(r.Context()).Authenticated() {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ProfileFunc fetches the current profile on behalf of sess.
type ProfileFunc func(ctx context.Context, sess *domain.Session) (*domain.User, error)

// RequireStaff admits staff only. A cached staff flag is trusted; otherwise
// the profile is fetched once and the flag saved to the session. Any failure
// redirects home.
func RequireStaff(profile ProfileFunc, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			store := AuthStore(r.Context())
			sess := CurrentSession(r.Context())
			if !sess.Authenticated() {
				http.Redirect(w, r, "/", http.StatusSeeOther)
				return
			}
			if sess.IsStaff {
				next.ServeHTTP(w, r)
				return
			}

			user, err := profile(r.Context(), sess)
			if err != nil {
				log.Warn("staff check failed", zap.String("user_id", sess.UserID.String()), zap.Error(err))
				http.Redirect(w, r, "/", http.StatusSeeOther)
				return
			}
			if err := store.SetUser(r.Context(), *user); err != nil {
				log.Warn("failed to cache profile in session", zap.Error(err))
			}
			if !user.IsStaff {
				http.Redirect(w, r, "/", http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
